package web

import "embed"

// FS 内嵌页面模板与静态资源，路径以 templates/ 与 static/ 开头。
//
//go:embed templates static
var FS embed.FS
