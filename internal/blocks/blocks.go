package blocks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Block type identifiers as they appear on the wire.
const (
	TypeHero        = "hero"
	TypeRichText    = "richText"
	TypeFeatureGrid = "featureGrid"
	TypeTestimonial = "testimonial"
	TypeFAQ         = "faq"
	TypeMetrics     = "metrics"
	TypeCTA         = "cta"
	TypeContactForm = "contactForm"
	TypeLogoCloud   = "logoCloud"
)

// MaxPerPage 限制单个页面的区块数量。
const MaxPerPage = 100

// Payload 是某一种区块的已解码数据。
type Payload interface {
	BlockType() string
	sanitize()
	check() []FieldError
}

// TypeInfo 描述一种区块，供后台编辑器展示。
type TypeInfo struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type definition struct {
	info TypeInfo
	new  func() Payload
}

var registry = []definition{
	{TypeInfo{TypeHero, "Hero", "Large heading with optional call to action and image"}, func() Payload { return &Hero{} }},
	{TypeInfo{TypeRichText, "Rich text", "Markdown body copy"}, func() Payload { return &RichText{} }},
	{TypeInfo{TypeFeatureGrid, "Feature grid", "Grid of short feature cards"}, func() Payload { return &FeatureGrid{} }},
	{TypeInfo{TypeTestimonial, "Testimonial", "Customer quote with attribution"}, func() Payload { return &Testimonial{} }},
	{TypeInfo{TypeFAQ, "FAQ", "Question and answer list"}, func() Payload { return &FAQ{} }},
	{TypeInfo{TypeMetrics, "Metrics", "Key figures"}, func() Payload { return &Metrics{} }},
	{TypeInfo{TypeCTA, "Call to action", "Heading with a single button"}, func() Payload { return &CTA{} }},
	{TypeInfo{TypeContactForm, "Contact form", "Form whose submissions land in the inbox"}, func() Payload { return &ContactForm{} }},
	{TypeInfo{TypeLogoCloud, "Logo cloud", "Row of client or partner logos"}, func() Payload { return &LogoCloud{} }},
}

// Types 返回全部区块类型，顺序固定。
func Types() []TypeInfo {
	out := make([]TypeInfo, 0, len(registry))
	for _, def := range registry {
		out = append(out, def.info)
	}
	return out
}

// IsKnownType 判断区块类型是否属于封闭集合。
func IsKnownType(blockType string) bool {
	_, ok := lookup(blockType)
	return ok
}

func lookup(blockType string) (definition, bool) {
	for _, def := range registry {
		if def.info.Type == blockType {
			return def, true
		}
	}
	return definition{}, false
}

// Input 是客户端提交的一个区块。
type Input struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Normalized 是经过校验和清洗、可直接落库的区块。
type Normalized struct {
	Type  string
	Data  json.RawMessage
	Order int
}

// Normalize 依次解码、清洗、校验所有区块，并按提交顺序分配 order。
// 任一区块不合法时返回汇总了全部问题的 *ValidationError。
func Normalize(inputs []Input) ([]Normalized, error) {
	if len(inputs) > MaxPerPage {
		return nil, &ValidationError{Errors: []FieldError{{
			Index:   -1,
			Message: fmt.Sprintf("a page may contain at most %d blocks", MaxPerPage),
		}}}
	}

	out := make([]Normalized, 0, len(inputs))
	var problems []FieldError
	for i, in := range inputs {
		data, errs := normalizeOne(in)
		if len(errs) > 0 {
			for _, fe := range errs {
				fe.Index = i
				fe.Type = in.Type
				problems = append(problems, fe)
			}
			continue
		}
		out = append(out, Normalized{Type: in.Type, Data: data, Order: i})
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Errors: problems}
	}
	return out, nil
}

func normalizeOne(in Input) (json.RawMessage, []FieldError) {
	payload, err := decodeStrict(in.Type, in.Data)
	if err != nil {
		return nil, []FieldError{{Field: "data", Message: err.Error()}}
	}

	payload.sanitize()

	errs := validateStruct(payload)
	errs = append(errs, payload.check()...)
	if len(errs) > 0 {
		return nil, errs
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, []FieldError{{Field: "data", Message: "could not encode block"}}
	}
	return data, nil
}

// Decode 解码已存储的区块数据，用于渲染。
func Decode(blockType string, data []byte) (Payload, error) {
	def, ok := lookup(blockType)
	if !ok {
		return nil, fmt.Errorf("unknown block type %q", blockType)
	}
	payload := def.new()
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("decode %s block: %w", blockType, err)
	}
	return payload, nil
}

func decodeStrict(blockType string, data json.RawMessage) (Payload, error) {
	def, ok := lookup(strings.TrimSpace(blockType))
	if !ok || blockType != def.info.Type {
		return nil, fmt.Errorf("unknown block type %q", blockType)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("data is required")
	}
	if trimmed[0] != '{' {
		return nil, errors.New("data must be an object")
	}

	payload := def.new()
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, describeDecodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("data must contain a single object")
	}
	return payload, nil
}

func describeDecodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "data"
		}
		return fmt.Errorf("%s has an invalid type, expected %s", field, typeErr.Type.Kind())
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "json: unknown field ") {
		return fmt.Errorf("unknown field %s", strings.TrimPrefix(msg, "json: unknown field "))
	}
	return errors.New("data is not valid JSON")
}
