package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"github.com/M4MEET/ct-web-sub001/internal/markdown"
)

// FormAction 是联系表单提交的目标地址。
const FormAction = "/api/forms"

// HoneypotField 与表单服务使用的蜜罐字段保持一致。
const HoneypotField = "_gotcha"

var templatePatterns = []string{
	"templates/blocks/*.html",
	"templates/public/*.html",
	"templates/admin/*.html",
}

// LoadTemplates 解析内嵌的全部模板，供 gin 渲染页面与区块渲染共用。
func LoadTemplates(fsys fs.FS) (*template.Template, error) {
	return template.New("ct-web").Funcs(FuncMap()).ParseFS(fsys, templatePatterns...)
}

// RenderContext 携带渲染区块时需要的请求信息。
type RenderContext struct {
	Language string
	PageID   uint
}

// blockData 是传给区块模板的数据。
type blockData struct {
	Block         blocks.Payload
	HTML          template.HTML
	Lang          string
	Index         int
	PageID        uint
	FormAction    string
	HoneypotField string
	SubmitLabel   string
	ThanksMessage string
}

type variantRenderer struct {
	template string
	prepare  func(payload blocks.Payload, data *blockData) error
}

var registry = map[string]variantRenderer{
	blocks.TypeHero:        {template: "block/hero"},
	blocks.TypeRichText:    {template: "block/richText", prepare: prepareRichText},
	blocks.TypeFeatureGrid: {template: "block/featureGrid"},
	blocks.TypeTestimonial: {template: "block/testimonial"},
	blocks.TypeFAQ:         {template: "block/faq"},
	blocks.TypeMetrics:     {template: "block/metrics"},
	blocks.TypeCTA:         {template: "block/cta"},
	blocks.TypeContactForm: {template: "block/contactForm", prepare: prepareContactForm},
	blocks.TypeLogoCloud:   {template: "block/logoCloud"},
}

// BlockRenderer 将已存储的区块分派给各自类型的模板。
type BlockRenderer struct {
	tmpl *template.Template
}

// NewBlockRenderer 校验每种区块类型都有对应模板。
func NewBlockRenderer(tmpl *template.Template) (*BlockRenderer, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("templates are required")
	}
	for _, info := range blocks.Types() {
		renderer, ok := registry[info.Type]
		if !ok {
			return nil, fmt.Errorf("no renderer registered for block type %q", info.Type)
		}
		if tmpl.Lookup(renderer.template) == nil {
			return nil, fmt.Errorf("template %q for block type %q is missing", renderer.template, info.Type)
		}
	}
	return &BlockRenderer{tmpl: tmpl}, nil
}

// Render 渲染单个区块。
func (r *BlockRenderer) Render(block db.Block, ctx RenderContext) (template.HTML, error) {
	renderer, ok := registry[block.Type]
	if !ok {
		return "", fmt.Errorf("unknown block type %q", block.Type)
	}
	payload, err := blocks.Decode(block.Type, block.Data)
	if err != nil {
		return "", fmt.Errorf("decode %s block %d: %w", block.Type, block.ID, err)
	}

	data := &blockData{
		Block:         payload,
		Lang:          locale.NormalizeLanguage(ctx.Language),
		Index:         block.Order,
		PageID:        ctx.PageID,
		FormAction:    FormAction,
		HoneypotField: HoneypotField,
	}
	if data.Lang == "" {
		data.Lang = locale.LanguageEnglish
	}
	if renderer.prepare != nil {
		if err := renderer.prepare(payload, data); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, renderer.template, data); err != nil {
		return "", fmt.Errorf("render %s block %d: %w", block.Type, block.ID, err)
	}
	return template.HTML(buf.String()), nil
}

// RenderAll 依次渲染页面区块；单个区块失败时跳过并收集错误，页面其余部分照常输出。
func (r *BlockRenderer) RenderAll(list []db.Block, ctx RenderContext) ([]template.HTML, []error) {
	out := make([]template.HTML, 0, len(list))
	var errs []error
	for _, block := range list {
		html, err := r.Render(block, ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, html)
	}
	return out, errs
}

// 富文本在渲染时由 Markdown 源重新生成 HTML，不信任存储的 html 字段。
func prepareRichText(payload blocks.Payload, data *blockData) error {
	richText, ok := payload.(*blocks.RichText)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	rendered, err := markdown.Render(richText.Markdown)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	data.HTML = rendered
	return nil
}

func prepareContactForm(payload blocks.Payload, data *blockData) error {
	form, ok := payload.(*blocks.ContactForm)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	data.SubmitLabel = form.SubmitLabel
	if data.SubmitLabel == "" {
		data.SubmitLabel = locale.T(data.Lang, "form.submit")
	}
	data.ThanksMessage = form.SuccessMessage
	if data.ThanksMessage == "" {
		data.ThanksMessage = locale.T(data.Lang, "form.thanks")
	}
	return nil
}
