package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

func publicRoutes(env *testEnv) *gin.Engine {
	r := env.engine(nil)
	r.GET("/", env.api.RootRedirect)
	r.GET("/sitemap.xml", env.api.Sitemap)
	r.GET("/:locale/", env.api.ShowHome)
	r.GET("/:locale/:slug", env.api.ShowPage)
	r.GET("/:locale/blog", env.api.ShowBlogList)
	r.GET("/:locale/blog/:slug", env.api.ShowBlogPost)
	r.GET("/:locale/services", env.api.ShowServices)
	r.GET("/:locale/case-studies", env.api.ShowCaseStudies)
	r.GET("/:locale/case-studies/:slug", env.api.ShowCaseStudy)
	r.NoRoute(env.api.PublicNotFound)
	return r
}

func TestShowHomeRendersBlocksAndAlternates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createPage(t, service.HomeSlug, "en", db.StatusPublished, heroBlock(t, "Welcome aboard"))
	env.createPage(t, service.HomeSlug, "de", db.StatusPublished, heroBlock(t, "Willkommen"))
	r := publicRoutes(env)

	rr := performRequest(r, http.MethodGet, "/en/", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Welcome aboard") {
		t.Fatalf("expected hero heading in home page")
	}
	if !strings.Contains(body, `hreflang="de"`) {
		t.Fatalf("expected hreflang alternate for de")
	}
	if rr.Header().Get("Content-Language") != "en-US" {
		t.Fatalf("unexpected Content-Language %q", rr.Header().Get("Content-Language"))
	}

	rr = performRequest(r, http.MethodGet, "/en/home", "", nil)
	if rr.Code != http.StatusMovedPermanently || rr.Header().Get("Location") != "/en/" {
		t.Fatalf("expected home slug to redirect, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestPublicPagesHideInvisibleContent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createPage(t, "draft", "en", db.StatusDraft, heroBlock(t, "Hidden"))
	r := publicRoutes(env)

	cases := []string{"/en/draft", "/es/", "/xx/anything", "/en/blog/missing", "/fr/case-studies/missing"}
	for _, target := range cases {
		rr := performRequest(r, http.MethodGet, target, "", nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", target, rr.Code)
		}
		if strings.Contains(rr.Body.String(), "Hidden") {
			t.Fatalf("draft content leaked on %s", target)
		}
	}

	rr := performRequest(r, http.MethodGet, "/api/unknown/route/here", "", nil)
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `"error"`) {
		t.Fatalf("expected JSON 404 for api path, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestBlogListAndPost(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.api.posts.Create(env.tenant.ID, service.BlogPostInput{
		Slug:    "launch-notes",
		Locale:  "en",
		Title:   "Launch notes",
		Content: "We shipped **blocks**.",
		Status:  string(db.StatusPublished),
	}); err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	r := publicRoutes(env)

	rr := performRequest(r, http.MethodGet, "/en/blog", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Launch notes") {
		t.Fatalf("expected post in list, got %d", rr.Code)
	}
	rr = performRequest(r, http.MethodGet, "/en/blog/launch-notes", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<strong>blocks</strong>") {
		t.Fatalf("expected rendered markdown")
	}
	if rr := performRequest(r, http.MethodGet, "/de/blog/launch-notes", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 in another locale, got %d", rr.Code)
	}
}

func TestRootRedirectLanguageResolution(t *testing.T) {
	env := newTestEnv(t, nil)
	r := publicRoutes(env)

	tests := []struct {
		name     string
		target   string
		headers  map[string]string
		location string
		cookie   bool
	}{
		{name: "query override", target: "/?lang=fr", location: "/fr/", cookie: true},
		{name: "cookie", target: "/", headers: map[string]string{"Cookie": "ct_lang=de"}, location: "/de/"},
		{name: "accept language", target: "/", headers: map[string]string{"Accept-Language": "fr-CH, fr;q=0.9"}, location: "/fr/"},
		{name: "country header", target: "/", headers: map[string]string{"CF-IPCountry": "AT"}, location: "/de/"},
		{name: "default", target: "/", location: "/en/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := performRequest(r, http.MethodGet, tt.target, "", tt.headers)
			if rr.Code != http.StatusFound {
				t.Fatalf("expected 302, got %d", rr.Code)
			}
			if got := rr.Header().Get("Location"); got != tt.location {
				t.Fatalf("expected %s, got %s", tt.location, got)
			}
			if !strings.Contains(rr.Header().Get("Vary"), "Accept-Language") {
				t.Fatalf("expected Vary header, got %q", rr.Header().Get("Vary"))
			}
			setCookie := rr.Header().Get("Set-Cookie")
			if tt.cookie != strings.Contains(setCookie, "ct_lang=") {
				t.Fatalf("unexpected Set-Cookie %q", setCookie)
			}
		})
	}
}

func TestSitemapListsVisibleContentWithAlternates(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createPage(t, "about", "en", db.StatusPublished)
	env.createPage(t, "about", "de", db.StatusPublished)
	env.createPage(t, "secret", "en", db.StatusDraft)
	r := publicRoutes(env)

	rr := performRequest(r, http.MethodGet, "/sitemap.xml", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<loc>https://acme.example.com/en/about</loc>") {
		t.Fatalf("expected en page in sitemap: %s", body)
	}
	if !strings.Contains(body, `hreflang="de"`) {
		t.Fatalf("expected hreflang alternates: %s", body)
	}
	if strings.Contains(body, "secret") {
		t.Fatalf("draft page leaked into sitemap")
	}
}
