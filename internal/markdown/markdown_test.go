package markdown

import (
	"strings"
	"testing"
)

func TestRenderStripsScripts(t *testing.T) {
	out, err := Render("# Title\n\n<script>alert(1)</script>\n\n[link](javascript:alert(1))")
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	html := string(out)
	if !strings.Contains(html, "<h1") {
		t.Fatalf("expected heading, got %s", html)
	}
	if strings.Contains(html, "<script") || strings.Contains(html, "javascript:") {
		t.Fatalf("expected unsafe markup to be removed, got %s", html)
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("## Hello, world!\n\nIt's a **bold** move."); got != 6 {
		t.Fatalf("expected 6 words, got %d", got)
	}
	if got := WordCount(""); got != 0 {
		t.Fatalf("expected 0 words, got %d", got)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("# Short", 20); got != "Short" {
		t.Fatalf("unexpected excerpt %q", got)
	}
	if got := Excerpt("abcdefghij", 4); got != "abcd…" {
		t.Fatalf("unexpected excerpt %q", got)
	}
}
