package view_test

import (
	"encoding/json"
	"html/template"
	"strings"
	"testing"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/M4MEET/ct-web-sub001/internal/view"
	"github.com/M4MEET/ct-web-sub001/web"
)

func newRenderer(t *testing.T) *view.BlockRenderer {
	t.Helper()
	tmpl, err := view.LoadTemplates(web.FS)
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	renderer, err := view.NewBlockRenderer(tmpl)
	if err != nil {
		t.Fatalf("failed to build renderer: %v", err)
	}
	return renderer
}

func normalizedBlock(t *testing.T, blockType, data string) db.Block {
	t.Helper()
	normalized, err := blocks.Normalize([]blocks.Input{{Type: blockType, Data: json.RawMessage(data)}})
	if err != nil {
		t.Fatalf("normalize %s: %v", blockType, err)
	}
	return db.Block{Type: normalized[0].Type, Data: []byte(normalized[0].Data), Order: normalized[0].Order}
}

func TestRendererCoversEveryBlockType(t *testing.T) {
	renderer := newRenderer(t)

	samples := map[string]string{
		blocks.TypeHero:        `{"heading":"Ship faster","subheading":"Sub","ctaLabel":"Call","ctaHref":"tel:+49301234"}`,
		blocks.TypeRichText:    `{"markdown":"# Title\n\nBody **bold**"}`,
		blocks.TypeFeatureGrid: `{"heading":"Why us","items":[{"title":"Fast","body":"Very"}]}`,
		blocks.TypeTestimonial: `{"quote":"Great team","author":"Sam"}`,
		blocks.TypeFAQ:         `{"items":[{"question":"Q?","answer":"A."}]}`,
		blocks.TypeMetrics:     `{"items":[{"label":"Clients","value":"120","suffix":"+"}]}`,
		blocks.TypeCTA:         `{"heading":"Ready?","buttonLabel":"Start","buttonHref":"/en/contact"}`,
		blocks.TypeContactForm: `{"formKey":"contact","fields":[{"name":"email","label":"Email","type":"email","required":true}]}`,
		blocks.TypeLogoCloud:   `{"logos":[{"name":"Acme","imageUrl":"https://cdn.example.com/acme.svg"}]}`,
	}

	for _, info := range blocks.Types() {
		data, ok := samples[info.Type]
		if !ok {
			t.Fatalf("missing sample for %s", info.Type)
		}
		html, err := renderer.Render(normalizedBlock(t, info.Type, data), view.RenderContext{Language: "en"})
		if err != nil {
			t.Fatalf("render %s: %v", info.Type, err)
		}
		if strings.TrimSpace(string(html)) == "" {
			t.Fatalf("render %s produced empty output", info.Type)
		}
	}
}

func TestRenderRichTextSanitizesMarkdown(t *testing.T) {
	renderer := newRenderer(t)
	block := normalizedBlock(t, blocks.TypeRichText, `{"markdown":"Hello <script>alert(1)</script> [x](javascript:alert(1)) **there**"}`)

	html, err := renderer.Render(block, view.RenderContext{Language: "en"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	out := string(html)
	if strings.Contains(out, "<script") || strings.Contains(out, "javascript:") {
		t.Fatalf("expected unsafe markup to be stripped, got %s", out)
	}
	if !strings.Contains(out, "<strong>there</strong>") {
		t.Fatalf("expected markdown to be rendered, got %s", out)
	}
}

func TestRenderContactFormPostsToFormsEndpoint(t *testing.T) {
	renderer := newRenderer(t)
	block := normalizedBlock(t, blocks.TypeContactForm, `{
		"formKey": "quote",
		"fields": [
			{"name": "name", "label": "Name", "type": "text", "required": true},
			{"name": "budget", "label": "Budget", "type": "select", "options": ["S", "M"]},
			{"name": "message", "label": "Message", "type": "textarea"}
		]
	}`)

	html, err := renderer.Render(block, view.RenderContext{Language: "de", PageID: 7})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	out := string(html)
	for _, want := range []string{
		`action="/api/forms"`,
		`data-form-key="quote"`,
		`data-page-id="7"`,
		`data-locale="de"`,
		`name="` + service.HoneypotField + `"`,
		`<option value="M">M</option>`,
		`<textarea`,
		`>Senden</button>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if view.HoneypotField != service.HoneypotField {
		t.Fatalf("honeypot field mismatch: %s vs %s", view.HoneypotField, service.HoneypotField)
	}
}

func TestRenderAllSkipsBrokenBlocks(t *testing.T) {
	renderer := newRenderer(t)
	good := normalizedBlock(t, blocks.TypeCTA, `{"heading":"Go","buttonLabel":"Go","buttonHref":"/"}`)
	broken := db.Block{Type: blocks.TypeCTA, Data: []byte(`{"heading":`)}
	unknown := db.Block{Type: "carousel", Data: []byte(`{}`)}

	out, errs := renderer.RenderAll([]db.Block{good, broken, unknown}, view.RenderContext{})
	if len(out) != 1 || len(errs) != 2 {
		t.Fatalf("expected 1 rendered and 2 errors, got %d / %d", len(out), len(errs))
	}
}

func TestSafeURLFallsBackForUnsafeLinks(t *testing.T) {
	tmpl := template.Must(template.New("x").Funcs(view.FuncMap()).Parse(`<a href="{{safeURL .}}">x</a>`))

	cases := map[string]string{
		"javascript:alert(1)": `href="#"`,
		"tel:+491234":         `href="tel:`,
		"/en/about":           `href="/en/about"`,
	}
	for input, want := range cases {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, input); err != nil {
			t.Fatalf("execute: %v", err)
		}
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("safeURL(%q) = %s, want %s", input, buf.String(), want)
		}
	}
}
