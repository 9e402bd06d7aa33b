package blocks

import (
	"html"
	"strings"

	"github.com/M4MEET/ct-web-sub001/internal/markdown"
	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// PlainText 去掉所有标签并还原实体，结果由模板负责转义。
// 反复处理直到结果稳定，避免 "&lt;b&gt;" 这类编码后的标签绕过。
func PlainText(raw string) string {
	current := strings.TrimSpace(raw)
	for i := 0; i < 3; i++ {
		next := strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(current)))
		if next == current {
			break
		}
		current = next
	}
	return current
}

func sanitizeLink(raw string) string {
	return strings.TrimSpace(raw)
}

func sanitizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if cleaned := PlainText(value); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func renderRichText(source string) string {
	rendered, err := markdown.Render(source)
	if err != nil {
		return ""
	}
	return string(rendered)
}
