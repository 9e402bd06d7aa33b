package seed

import (
	"fmt"
	"testing"
	"testing/fstest"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/logging"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSeedDB(t *testing.T) (*gorm.DB, *db.Tenant) {
	t.Helper()
	dsn := fmt.Sprintf("file:seed-%s-%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	gdb, err := db.Open(db.Options{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	tenant, err := service.NewTenantService(gdb).EnsureDefault("Acme")
	require.NoError(t, err)
	return gdb, tenant
}

func TestDefaultFixturesCoverAllLocales(t *testing.T) {
	fixtures, err := Default()
	require.NoError(t, err)

	homes := map[string]bool{}
	for _, page := range fixtures.Pages {
		if page.Slug == service.HomeSlug {
			homes[page.Locale] = true
		}
	}
	assert.Equal(t, map[string]bool{"en": true, "de": true, "fr": true}, homes)
	assert.NotEmpty(t, fixtures.Services)
	assert.NotEmpty(t, fixtures.CaseStudies)
	assert.NotEmpty(t, fixtures.Posts)
	assert.Equal(t, "Acme Consulting", fixtures.Settings["site_name"])
}

func TestRunIsIdempotent(t *testing.T) {
	gdb, tenant := setupSeedDB(t)
	fixtures, err := Default()
	require.NoError(t, err)
	seeder := New(gdb, logging.Discard())

	first, err := seeder.Run(tenant.ID, fixtures)
	require.NoError(t, err)
	total := len(fixtures.Pages) + len(fixtures.Services) + len(fixtures.CaseStudies) + len(fixtures.Posts)
	assert.Equal(t, total, first.Created)
	assert.Zero(t, first.Skipped)
	assert.Equal(t, len(fixtures.Settings), first.Settings)

	second, err := seeder.Run(tenant.ID, fixtures)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, total, second.Skipped)
	assert.Zero(t, second.Settings)

	var pages int64
	require.NoError(t, gdb.Model(&db.Page{}).Where("tenant_id = ?", tenant.ID).Count(&pages).Error)
	assert.EqualValues(t, len(fixtures.Pages), pages)

	home, err := service.NewPageService(gdb).GetBySlug(tenant.ID, "de", service.HomeSlug)
	require.NoError(t, err)
	assert.Equal(t, db.StatusPublished, home.Status)
	assert.NotEmpty(t, home.Blocks)

	var linked db.Service
	require.NoError(t, gdb.Where("tenant_id = ? AND slug = ?", tenant.ID, "platform-engineering").First(&linked).Error)
	require.NotNil(t, linked.PageID)
}

func TestRunKeepsExistingSettings(t *testing.T) {
	gdb, tenant := setupSeedDB(t)
	_, err := service.NewSiteSettingService(gdb).Update(tenant.ID, map[string]string{"site_name": "Custom"})
	require.NoError(t, err)

	result, err := New(gdb, logging.Discard()).Run(tenant.ID, Fixtures{
		Settings: map[string]string{"site_name": "Acme", "primary_color": "#000000"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Settings)

	raw, err := service.NewSiteSettingService(gdb).Raw(tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Custom", raw["site_name"])
	assert.Equal(t, "#000000", raw["primary_color"])
}

func TestLoadMergesFilesInOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"a.yaml":    {Data: []byte("settings:\n  site_name: First\npages:\n  - slug: one\n    locale: en\n    title: One\n")},
		"b.yml":     {Data: []byte("settings:\n  site_name: Second\nposts:\n  - slug: hi\n    locale: en\n    title: Hi\n")},
		"notes.txt": {Data: []byte("ignored")},
	}
	fixtures, err := Load(fsys)
	require.NoError(t, err)
	assert.Equal(t, "Second", fixtures.Settings["site_name"])
	assert.Len(t, fixtures.Pages, 1)
	assert.Len(t, fixtures.Posts, 1)

	_, err = Load(fstest.MapFS{"bad.yaml": {Data: []byte("pages: [")}})
	assert.Error(t, err)
}

func TestRunRejectsUnknownPageReference(t *testing.T) {
	gdb, tenant := setupSeedDB(t)
	_, err := New(gdb, logging.Discard()).Run(tenant.ID, Fixtures{
		Services: []ServiceFixture{{Slug: "x", Locale: "en", Title: "X", PageSlug: "missing"}},
	})
	assert.ErrorContains(t, err, "unknown page en/missing")
}
