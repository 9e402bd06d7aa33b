package handler

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/logging"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/M4MEET/ct-web-sub001/internal/view"
	"github.com/M4MEET/ct-web-sub001/web"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const testSessionSecret = "handler-test-secret"

type testEnv struct {
	api       *API
	db        *gorm.DB
	tenant    *db.Tenant
	templates *template.Template
}

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := db.Open(db.Options{DSN: dsn})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// newTestEnv 构造带 default 租户的 API，mutate 可覆盖依赖。
func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := setupHandlerTestDB(t)
	tenant, err := service.NewTenantService(gdb).EnsureDefault("Acme")
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}
	tmpl, err := view.LoadTemplates(web.FS)
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}

	opts := Options{
		DB:            gdb,
		Logger:        logging.Discard(),
		Templates:     tmpl,
		SessionSecret: testSessionSecret,
		SiteBaseURL:   "https://acme.example.com",
		Media:         service.MediaOptions{Dir: t.TempDir(), URLPath: "/uploads", MaxBytes: 1 << 20},
	}
	if mutate != nil {
		mutate(&opts)
	}
	api, err := NewAPI(opts)
	if err != nil {
		t.Fatalf("failed to build api: %v", err)
	}
	return &testEnv{api: api, db: gdb, tenant: tenant, templates: opts.Templates}
}

// engine 返回挂好会话与租户解析的引擎；principal 非空时直接注入调用者。
func (e *testEnv) engine(principal *auth.Principal) *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(e.templates)
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte(testSessionSecret))), e.api.ResolveTenant())
	if principal != nil {
		injected := *principal
		r.Use(func(c *gin.Context) {
			c.Set(principalContextKey, injected)
			c.Next()
		})
	} else {
		r.Use(e.api.Authenticate())
	}
	return r
}

func (e *testEnv) writer() *auth.Principal {
	return &auth.Principal{TenantID: e.tenant.ID, UserID: 1, Permission: auth.PermissionWrite, Email: "editor@example.com"}
}

func performRequest(r http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func heroBlock(t *testing.T, heading string) blocks.Input {
	t.Helper()
	data, err := json.Marshal(map[string]string{"heading": heading})
	if err != nil {
		t.Fatalf("failed to marshal hero: %v", err)
	}
	return blocks.Input{Type: blocks.TypeHero, Data: data}
}

func (e *testEnv) createPage(t *testing.T, slug, code string, status db.ContentStatus, list ...blocks.Input) *db.Page {
	t.Helper()
	page, err := e.api.pages.Create(e.tenant.ID, service.PageInput{
		Slug:   slug,
		Locale: code,
		Title:  strings.ToUpper(slug[:1]) + slug[1:],
		Status: string(status),
		Blocks: list,
	})
	if err != nil {
		t.Fatalf("failed to create page %s/%s: %v", code, slug, err)
	}
	return page
}
