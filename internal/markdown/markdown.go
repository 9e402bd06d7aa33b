package markdown

import (
	"bytes"
	"html/template"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	engine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// Render 将 Markdown 转换为经过 UGC 策略清洗的 HTML。
func Render(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := engine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	safe := sanitizer.SanitizeBytes(buf.Bytes())
	return template.HTML(safe), nil
}

// SanitizeHTML 对已有 HTML 片段应用同一套 UGC 策略。
func SanitizeHTML(fragment string) string {
	return sanitizer.Sanitize(fragment)
}

// PlainText 去掉常见 Markdown 标记并压缩空白，用于摘要与阅读时长计算。
func PlainText(content string) string {
	replacer := strings.NewReplacer(
		"#", " ",
		"*", " ",
		"`", " ",
		"_", " ",
		">", " ",
		"[", " ",
		"]", " ",
		"(", " ",
		")", " ",
	)
	return strings.Join(strings.Fields(replacer.Replace(content)), " ")
}

// WordCount 统计单词数量，用于阅读时长。
func WordCount(content string) int {
	return len(strings.FieldsFunc(PlainText(content), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) && r != '\'' && r != '-'
	}))
}

// Excerpt 截取纯文本前 limit 个字符，超出时追加省略号。
func Excerpt(content string, limit int) string {
	plain := PlainText(content)
	runes := []rune(plain)
	if limit <= 0 || len(runes) <= limit {
		return plain
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
