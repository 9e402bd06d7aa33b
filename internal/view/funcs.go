package view

import (
	"html/template"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/locale"
)

// FuncMap 返回公开站点与后台模板共用的函数。
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"t":        locale.T,
		"langName": locale.Name,
		"safeURL":  safeURL,
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"formatDate": formatDate,
		"isoDate": func(t *time.Time) string {
			if t == nil || t.IsZero() {
				return ""
			}
			return t.UTC().Format(time.RFC3339)
		},
		"join": strings.Join,
	}
}

// safeURL 只放行通过区块链接校验的地址，其余一律替换为 "#"。
func safeURL(raw string) template.URL {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !blocks.IsSafeLink(trimmed) {
		return template.URL("#")
	}
	return template.URL(trimmed)
}

func formatDate(value interface{}) string {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case *time.Time:
		if v == nil {
			return ""
		}
		t = *v
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
