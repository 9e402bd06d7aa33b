package blocks

import (
	"fmt"
	"strings"
)

// Hero 是页面顶部的大标题区块。
type Hero struct {
	Heading    string `json:"heading" validate:"required,max=160"`
	Subheading string `json:"subheading,omitempty" validate:"max=300"`
	CTALabel   string `json:"ctaLabel,omitempty" validate:"max=60"`
	CTAHref    string `json:"ctaHref,omitempty" validate:"omitempty,link,max=500"`
	ImageURL   string `json:"imageUrl,omitempty" validate:"omitempty,link,max=500"`
	ImageAlt   string `json:"imageAlt,omitempty" validate:"max=200"`
}

func (*Hero) BlockType() string { return TypeHero }

func (b *Hero) sanitize() {
	b.Heading = PlainText(b.Heading)
	b.Subheading = PlainText(b.Subheading)
	b.CTALabel = PlainText(b.CTALabel)
	b.CTAHref = sanitizeLink(b.CTAHref)
	b.ImageURL = sanitizeLink(b.ImageURL)
	b.ImageAlt = PlainText(b.ImageAlt)
}

func (b *Hero) check() []FieldError {
	if (b.CTALabel == "") != (b.CTAHref == "") {
		return []FieldError{{Field: "ctaHref", Message: "ctaLabel and ctaHref must be provided together"}}
	}
	return nil
}

// RichText 保存 Markdown 源文，HTML 字段由服务端生成。
type RichText struct {
	Markdown string `json:"markdown" validate:"required,max=50000"`
	HTML     string `json:"html,omitempty"`
}

func (*RichText) BlockType() string { return TypeRichText }

func (b *RichText) sanitize() {
	b.Markdown = strings.TrimSpace(b.Markdown)
	b.HTML = renderRichText(b.Markdown)
}

func (*RichText) check() []FieldError { return nil }

// FeatureItem 是特性网格中的一张卡片。
type FeatureItem struct {
	Title string `json:"title" validate:"required,max=120"`
	Body  string `json:"body,omitempty" validate:"max=500"`
	Icon  string `json:"icon,omitempty" validate:"max=64"`
}

// FeatureGrid 展示一组特性卡片。
type FeatureGrid struct {
	Heading string        `json:"heading,omitempty" validate:"max=160"`
	Intro   string        `json:"intro,omitempty" validate:"max=500"`
	Columns int           `json:"columns,omitempty" validate:"omitempty,oneof=2 3 4"`
	Items   []FeatureItem `json:"items" validate:"required,min=1,max=12,dive"`
}

func (*FeatureGrid) BlockType() string { return TypeFeatureGrid }

func (b *FeatureGrid) sanitize() {
	b.Heading = PlainText(b.Heading)
	b.Intro = PlainText(b.Intro)
	for i := range b.Items {
		b.Items[i].Title = PlainText(b.Items[i].Title)
		b.Items[i].Body = PlainText(b.Items[i].Body)
		b.Items[i].Icon = PlainText(b.Items[i].Icon)
	}
}

func (*FeatureGrid) check() []FieldError { return nil }

// Testimonial 为单条客户评价。
type Testimonial struct {
	Quote     string `json:"quote" validate:"required,max=1000"`
	Author    string `json:"author" validate:"required,max=120"`
	Role      string `json:"role,omitempty" validate:"max=120"`
	Company   string `json:"company,omitempty" validate:"max=120"`
	AvatarURL string `json:"avatarUrl,omitempty" validate:"omitempty,link,max=500"`
}

func (*Testimonial) BlockType() string { return TypeTestimonial }

func (b *Testimonial) sanitize() {
	b.Quote = PlainText(b.Quote)
	b.Author = PlainText(b.Author)
	b.Role = PlainText(b.Role)
	b.Company = PlainText(b.Company)
	b.AvatarURL = sanitizeLink(b.AvatarURL)
}

func (*Testimonial) check() []FieldError { return nil }

// FAQItem 是一问一答。
type FAQItem struct {
	Question string `json:"question" validate:"required,max=300"`
	Answer   string `json:"answer" validate:"required,max=2000"`
}

// FAQ 是问答列表。
type FAQ struct {
	Heading string    `json:"heading,omitempty" validate:"max=160"`
	Items   []FAQItem `json:"items" validate:"required,min=1,max=50,dive"`
}

func (*FAQ) BlockType() string { return TypeFAQ }

func (b *FAQ) sanitize() {
	b.Heading = PlainText(b.Heading)
	for i := range b.Items {
		b.Items[i].Question = PlainText(b.Items[i].Question)
		b.Items[i].Answer = PlainText(b.Items[i].Answer)
	}
}

func (*FAQ) check() []FieldError { return nil }

// MetricItem 是一个关键数字。
type MetricItem struct {
	Label  string `json:"label" validate:"required,max=80"`
	Value  string `json:"value" validate:"required,max=40"`
	Suffix string `json:"suffix,omitempty" validate:"max=16"`
}

// Metrics 展示若干关键数字。
type Metrics struct {
	Heading string       `json:"heading,omitempty" validate:"max=160"`
	Items   []MetricItem `json:"items" validate:"required,min=1,max=8,dive"`
}

func (*Metrics) BlockType() string { return TypeMetrics }

func (b *Metrics) sanitize() {
	b.Heading = PlainText(b.Heading)
	for i := range b.Items {
		b.Items[i].Label = PlainText(b.Items[i].Label)
		b.Items[i].Value = PlainText(b.Items[i].Value)
		b.Items[i].Suffix = PlainText(b.Items[i].Suffix)
	}
}

func (*Metrics) check() []FieldError { return nil }

// CTA 是带单个按钮的行动号召区块。
type CTA struct {
	Heading     string `json:"heading" validate:"required,max=160"`
	Body        string `json:"body,omitempty" validate:"max=500"`
	ButtonLabel string `json:"buttonLabel" validate:"required,max=60"`
	ButtonHref  string `json:"buttonHref" validate:"required,link,max=500"`
}

func (*CTA) BlockType() string { return TypeCTA }

func (b *CTA) sanitize() {
	b.Heading = PlainText(b.Heading)
	b.Body = PlainText(b.Body)
	b.ButtonLabel = PlainText(b.ButtonLabel)
	b.ButtonHref = sanitizeLink(b.ButtonHref)
}

func (*CTA) check() []FieldError { return nil }

// Form field input types.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldTel      = "tel"
	FieldTextarea = "textarea"
	FieldSelect   = "select"
	FieldCheckbox = "checkbox"
)

// FormField 描述联系表单中的一个输入项。
type FormField struct {
	Name        string   `json:"name" validate:"required,max=64,fieldname"`
	Label       string   `json:"label" validate:"required,max=120"`
	Type        string   `json:"type" validate:"required,oneof=text email tel textarea select checkbox"`
	Required    bool     `json:"required,omitempty"`
	Placeholder string   `json:"placeholder,omitempty" validate:"max=120"`
	Options     []string `json:"options,omitempty" validate:"max=50,dive,max=120"`
}

// ContactForm 渲染一个提交到 /api/forms 的表单，FormKey 用于归类提交记录。
type ContactForm struct {
	FormKey        string      `json:"formKey" validate:"required,max=64,key"`
	Heading        string      `json:"heading,omitempty" validate:"max=160"`
	Intro          string      `json:"intro,omitempty" validate:"max=500"`
	SubmitLabel    string      `json:"submitLabel,omitempty" validate:"max=60"`
	SuccessMessage string      `json:"successMessage,omitempty" validate:"max=300"`
	Fields         []FormField `json:"fields" validate:"required,min=1,max=20,dive"`
}

func (*ContactForm) BlockType() string { return TypeContactForm }

func (b *ContactForm) sanitize() {
	b.FormKey = strings.ToLower(strings.TrimSpace(b.FormKey))
	b.Heading = PlainText(b.Heading)
	b.Intro = PlainText(b.Intro)
	b.SubmitLabel = PlainText(b.SubmitLabel)
	b.SuccessMessage = PlainText(b.SuccessMessage)
	for i := range b.Fields {
		field := &b.Fields[i]
		field.Name = strings.TrimSpace(field.Name)
		field.Label = PlainText(field.Label)
		field.Type = strings.ToLower(strings.TrimSpace(field.Type))
		field.Placeholder = PlainText(field.Placeholder)
		field.Options = sanitizeList(field.Options)
	}
}

func (b *ContactForm) check() []FieldError {
	var errs []FieldError
	seen := make(map[string]int, len(b.Fields))
	for i, field := range b.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if first, dup := seen[strings.ToLower(field.Name)]; dup && field.Name != "" {
			errs = append(errs, FieldError{Field: path + ".name", Message: fmt.Sprintf("duplicates fields[%d].name", first)})
		} else {
			seen[strings.ToLower(field.Name)] = i
		}
		if field.Type == FieldSelect && len(field.Options) == 0 {
			errs = append(errs, FieldError{Field: path + ".options", Message: "select fields need at least one option"})
		}
		if field.Type != FieldSelect && len(field.Options) > 0 {
			errs = append(errs, FieldError{Field: path + ".options", Message: "options are only allowed on select fields"})
		}
	}
	return errs
}

// Field 按名称查找字段。
func (b *ContactForm) Field(name string) (FormField, bool) {
	for _, field := range b.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FormField{}, false
}

// Logo 是标志墙中的一项。
type Logo struct {
	Name     string `json:"name" validate:"required,max=120"`
	ImageURL string `json:"imageUrl" validate:"required,link,max=500"`
	Href     string `json:"href,omitempty" validate:"omitempty,link,max=500"`
}

// LogoCloud 展示一组客户或合作伙伴标志。
type LogoCloud struct {
	Heading string `json:"heading,omitempty" validate:"max=160"`
	Logos   []Logo `json:"logos" validate:"required,min=1,max=24,dive"`
}

func (*LogoCloud) BlockType() string { return TypeLogoCloud }

func (b *LogoCloud) sanitize() {
	b.Heading = PlainText(b.Heading)
	for i := range b.Logos {
		b.Logos[i].Name = PlainText(b.Logos[i].Name)
		b.Logos[i].ImageURL = sanitizeLink(b.Logos[i].ImageURL)
		b.Logos[i].Href = sanitizeLink(b.Logos[i].Href)
	}
}

func (*LogoCloud) check() []FieldError { return nil }
