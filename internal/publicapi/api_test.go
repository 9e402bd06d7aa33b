package publicapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupPublicAPI(t *testing.T) (humatest.TestAPI, *gorm.DB, *db.Tenant) {
	t.Helper()
	dsn := fmt.Sprintf("file:publicapi-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(db.Options{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	tenant, err := service.NewTenantService(gdb).EnsureDefault("Acme")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	_, api := humatest.New(t, DefaultConfig(Options{}, ""))
	_, err = Register(api, Options{DB: gdb, Logger: logger})
	require.NoError(t, err)
	return api, gdb, tenant
}

func heroInput(t *testing.T, heading string) blocks.Input {
	t.Helper()
	data, err := json.Marshal(map[string]string{"heading": heading})
	require.NoError(t, err)
	return blocks.Input{Type: blocks.TypeHero, Data: data}
}

func TestGetPageReturnsPublishedPageWithBlocks(t *testing.T) {
	api, gdb, tenant := setupPublicAPI(t)
	pages := service.NewPageService(gdb)

	_, err := pages.Create(tenant.ID, service.PageInput{
		Slug:   "about",
		Locale: "en",
		Title:  "About",
		Status: string(db.StatusPublished),
		Blocks: []blocks.Input{heroInput(t, "Who we are")},
	})
	require.NoError(t, err)
	_, err = pages.Create(tenant.ID, service.PageInput{
		Slug:   "about",
		Locale: "de",
		Title:  "Über uns",
		Status: string(db.StatusPublished),
	})
	require.NoError(t, err)

	resp := api.Get("/en/pages/about")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "public, max-age=60", resp.Header().Get("Cache-Control"))

	var body struct {
		Page PageView `json:"page"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "About", body.Page.Title)
	require.Len(t, body.Page.Blocks, 1)
	assert.Equal(t, blocks.TypeHero, body.Page.Blocks[0].Type)
	assert.Equal(t, "Who we are", body.Page.Blocks[0].Data["heading"])
	assert.Equal(t, map[string]string{"en": "about", "de": "about"}, body.Page.Translations)
}

func TestGetPageHidesDrafts(t *testing.T) {
	api, gdb, tenant := setupPublicAPI(t)
	_, err := service.NewPageService(gdb).Create(tenant.ID, service.PageInput{
		Slug:   "secret",
		Locale: "en",
		Title:  "Secret",
		Status: string(db.StatusDraft),
	})
	require.NoError(t, err)

	resp := api.Get("/en/pages/secret")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "page not found", body["error"])
}

func TestUnsupportedLocaleIsBadRequest(t *testing.T) {
	api, _, _ := setupPublicAPI(t)

	resp := api.Get("/es/services")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), `"error":"unsupported locale"`)
}

func TestListPostsPaginatesAndClampsPerPage(t *testing.T) {
	api, gdb, tenant := setupPublicAPI(t)
	posts := service.NewBlogPostService(gdb)
	for i := 0; i < 3; i++ {
		_, err := posts.Create(tenant.ID, service.BlogPostInput{
			Slug:    fmt.Sprintf("post-%d", i),
			Locale:  "en",
			Title:   fmt.Sprintf("Post %d", i),
			Content: "Hello **world**",
			Status:  string(db.StatusPublished),
		})
		require.NoError(t, err)
	}
	_, err := posts.Create(tenant.ID, service.BlogPostInput{
		Slug:   "draft",
		Locale: "en",
		Title:  "Draft",
		Status: string(db.StatusDraft),
	})
	require.NoError(t, err)

	resp := api.Get("/en/blog?page=1&perPage=2")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var list struct {
		Posts      []PostSummary `json:"posts"`
		Total      int64         `json:"total"`
		TotalPages int           `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list.Posts, 2)
	assert.EqualValues(t, 3, list.Total)
	assert.Equal(t, 2, list.TotalPages)

	resp = api.Get("/en/blog?perPage=500")
	require.Equal(t, http.StatusOK, resp.Code)
	var clamped struct {
		PerPage int `json:"perPage"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &clamped))
	assert.Equal(t, maxBlogPerPage, clamped.PerPage)

	resp = api.Get("/en/blog/post-1")
	require.Equal(t, http.StatusOK, resp.Code)
	var detail struct {
		Post PostView `json:"post"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	assert.Contains(t, detail.Post.HTML, "<strong>world</strong>")

	assert.Equal(t, http.StatusNotFound, api.Get("/en/blog/draft").Code)
}

func TestServicesAndCaseStudiesLinkVisiblePages(t *testing.T) {
	api, gdb, tenant := setupPublicAPI(t)
	page, err := service.NewPageService(gdb).Create(tenant.ID, service.PageInput{
		Slug:   "consulting",
		Locale: "en",
		Title:  "Consulting",
		Status: string(db.StatusPublished),
	})
	require.NoError(t, err)

	_, err = service.NewOfferingService(gdb).Create(tenant.ID, service.OfferingInput{
		Slug:   "consulting",
		Locale: "en",
		Title:  "Consulting",
		PageID: &page.ID,
		Status: string(db.StatusPublished),
	})
	require.NoError(t, err)
	_, err = service.NewCaseStudyService(gdb).Create(tenant.ID, service.CaseStudyInput{
		Slug:    "migration",
		Locale:  "en",
		Title:   "Cloud migration",
		Client:  "Globex",
		Metrics: []db.CaseMetric{{Label: "Cost", Value: "-30%"}},
		PageID:  &page.ID,
		Status:  string(db.StatusPublished),
	})
	require.NoError(t, err)

	resp := api.Get("/en/services")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var services struct {
		Services []ServiceView `json:"services"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &services))
	require.Len(t, services.Services, 1)
	assert.Equal(t, "consulting", services.Services[0].PageSlug)

	resp = api.Get("/en/case-studies/migration")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var detail struct {
		CaseStudy CaseStudyView `json:"caseStudy"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	assert.Equal(t, "Globex", detail.CaseStudy.Client)
	assert.Equal(t, []db.CaseMetric{{Label: "Cost", Value: "-30%"}}, detail.CaseStudy.Metrics)

	resp = api.Get("/de/case-studies")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"caseStudies":[]}`, resp.Body.String())
}
