package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/gin-gonic/gin"
)

func pageRoutes(env *testEnv, principal *auth.Principal) *gin.Engine {
	r := env.engine(principal)
	r.GET("/api/pages", env.api.ListPages)
	r.GET("/api/pages/:id", env.api.GetPage)
	r.POST("/api/pages", env.api.CreatePage)
	r.PUT("/api/pages/:id", env.api.UpdatePage)
	r.DELETE("/api/pages/:id", env.api.DeletePage)
	r.PUT("/api/pages/:id/blocks", env.api.ReplacePageBlocks)
	r.POST("/api/pages/:id/duplicate", env.api.DuplicatePage)
	r.POST("/api/pages/:id/status", env.api.SetPageStatus)
	r.POST("/api/pages/:id/preview-token", env.api.CreatePreviewToken)
	r.POST("/api/pages/:id/description", env.api.SuggestPageDescription)
	r.GET("/api/blocks/types", env.api.ListBlockTypes)
	return r
}

func TestCreatePageValidatesAndStoresBlocks(t *testing.T) {
	env := newTestEnv(t, nil)
	r := pageRoutes(env, env.writer())

	rr := performRequest(r, http.MethodPost, "/api/pages",
		`{"slug":"About Us","locale":"en","title":"About","blocks":[{"type":"hero","data":{"heading":"<b>Hi</b>"}},{"type":"richText","data":{"markdown":"Plain **text**"}}]}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	page, ok := body["page"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected page object, got %v", body)
	}
	if page["slug"] != "about-us" {
		t.Fatalf("expected normalized slug, got %v", page["slug"])
	}
	if page["status"] != string(db.StatusDraft) {
		t.Fatalf("expected draft status, got %v", page["status"])
	}
	stored, ok := page["blocks"].([]interface{})
	if !ok || len(stored) != 2 {
		t.Fatalf("expected two blocks, got %v", page["blocks"])
	}
	hero := stored[0].(map[string]interface{})["data"].(map[string]interface{})
	if hero["heading"] != "Hi" {
		t.Fatalf("expected sanitized heading, got %v", hero["heading"])
	}

	rr = performRequest(r, http.MethodPost, "/api/pages", `{"slug":"about-us","locale":"en","title":"Again"}`, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate slug, got %d", rr.Code)
	}

	rr = performRequest(r, http.MethodPost, "/api/pages", `{"slug":"bad","locale":"en","title":"Bad","blocks":[{"type":"marquee","data":{}}]}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown block type, got %d", rr.Code)
	}
	if _, ok := decodeBody(t, rr)["error"]; !ok {
		t.Fatalf("expected error field in %s", rr.Body.String())
	}

	rr = performRequest(r, http.MethodPost, "/api/pages", `{"slug":"bad","locale":"es","title":"Bad"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported locale, got %d", rr.Code)
	}
}

func TestReplaceBlocksAndStatusTransitions(t *testing.T) {
	env := newTestEnv(t, nil)
	r := pageRoutes(env, env.writer())
	page := env.createPage(t, "pricing", "en", db.StatusDraft, heroBlock(t, "Old"))
	base := fmt.Sprintf("/api/pages/%d", page.ID)

	rr := performRequest(r, http.MethodPut, base+"/blocks", `{"blocks":[{"type":"cta","data":{"heading":"Talk to us","buttonLabel":"Contact","buttonHref":"/en/contact"}}]}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	reloaded, err := env.api.pages.Get(env.tenant.ID, page.ID)
	if err != nil {
		t.Fatalf("failed to reload page: %v", err)
	}
	if len(reloaded.Blocks) != 1 || reloaded.Blocks[0].Type != "cta" {
		t.Fatalf("expected single cta block, got %+v", reloaded.Blocks)
	}

	rr = performRequest(r, http.MethodPut, base+"/blocks", `{"blocks":null}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected clearing blocks to succeed, got %d", rr.Code)
	}

	rr = performRequest(r, http.MethodPost, base+"/status", `{"status":"archived"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
	rr = performRequest(r, http.MethodPost, base+"/status", `{"status":"scheduled"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for scheduled without publishAt, got %d", rr.Code)
	}
	rr = performRequest(r, http.MethodPost, base+"/status", `{"status":"published"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected publish to succeed, got %d: %s", rr.Code, rr.Body.String())
	}
	published := decodeBody(t, rr)["page"].(map[string]interface{})
	if published["publishedAt"] == nil {
		t.Fatalf("expected publishedAt to be set")
	}
}

func TestDuplicatePageToAnotherLocale(t *testing.T) {
	env := newTestEnv(t, nil)
	r := pageRoutes(env, env.writer())
	page := env.createPage(t, "about", "en", db.StatusPublished, heroBlock(t, "About"))

	rr := performRequest(r, http.MethodPost, fmt.Sprintf("/api/pages/%d/duplicate", page.ID), `{"locale":"fr"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	copied := decodeBody(t, rr)["page"].(map[string]interface{})
	if copied["locale"] != "fr" || copied["status"] != string(db.StatusDraft) {
		t.Fatalf("unexpected duplicate: %v", copied)
	}

	rr = performRequest(r, http.MethodPost, fmt.Sprintf("/api/pages/%d/duplicate", page.ID), `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when duplicating onto itself, got %d", rr.Code)
	}
}

func TestPagesAreTenantScoped(t *testing.T) {
	env := newTestEnv(t, nil)
	page := env.createPage(t, "about", "en", db.StatusDraft)

	other := &auth.Principal{TenantID: env.tenant.ID + 100, UserID: 9, Permission: auth.PermissionOwner}
	r := pageRoutes(env, other)

	if rr := performRequest(r, http.MethodGet, fmt.Sprintf("/api/pages/%d", page.ID), "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 across tenants, got %d", rr.Code)
	}
	if rr := performRequest(r, http.MethodDelete, fmt.Sprintf("/api/pages/%d", page.ID), "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting across tenants, got %d", rr.Code)
	}
	if rr := performRequest(r, http.MethodGet, "/api/pages/abc", "", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", rr.Code)
	}
}

func TestPreviewTokenRendersDraftPage(t *testing.T) {
	env := newTestEnv(t, nil)
	page := env.createPage(t, "launch", "en", db.StatusDraft, heroBlock(t, "Coming soon"))

	r := pageRoutes(env, env.writer())
	r.GET("/:locale/:slug", env.api.ShowPage)

	rr := performRequest(r, http.MethodPost, fmt.Sprintf("/api/pages/%d/preview-token", page.ID), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	previewURL, _ := body["url"].(string)
	if !strings.HasPrefix(previewURL, "https://acme.example.com/en/launch?preview=") {
		t.Fatalf("unexpected preview url %q", previewURL)
	}

	if rr := performRequest(r, http.MethodGet, "/en/launch", "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected draft to be hidden, got %d", rr.Code)
	}

	token := body["token"].(string)
	rr = performRequest(r, http.MethodGet, "/en/launch?preview="+url.QueryEscape(token), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected preview to render, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Coming soon") {
		t.Fatalf("expected draft content in preview")
	}
	if rr.Header().Get("X-Robots-Tag") != "noindex" {
		t.Fatalf("expected noindex header on preview")
	}

	other := env.createPage(t, "other", "en", db.StatusDraft)
	if rr := performRequest(r, http.MethodGet, "/en/other?preview="+url.QueryEscape(token), "", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected token to be bound to page %d, got %d for page %d", page.ID, rr.Code, other.ID)
	}
}

func TestSuggestDescriptionWithoutAI(t *testing.T) {
	env := newTestEnv(t, nil)
	page := env.createPage(t, "about", "en", db.StatusDraft, heroBlock(t, "About"))
	r := pageRoutes(env, env.writer())

	rr := performRequest(r, http.MethodPost, fmt.Sprintf("/api/pages/%d/description", page.ID), "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when AI is not configured, got %d", rr.Code)
	}
}

func TestListBlockTypes(t *testing.T) {
	env := newTestEnv(t, nil)
	r := pageRoutes(env, env.writer())

	rr := performRequest(r, http.MethodGet, "/api/blocks/types", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	types, ok := body["types"].([]interface{})
	if !ok || len(types) != 9 {
		t.Fatalf("expected nine block types, got %v", body["types"])
	}
	if body["maxPerPage"] == nil {
		t.Fatalf("expected maxPerPage")
	}
}
