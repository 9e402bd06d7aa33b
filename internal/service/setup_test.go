package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"gorm.io/gorm"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%s-%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	gdb, err := db.Open(db.Options{DSN: dsn})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func createTestTenant(t *testing.T, gdb *gorm.DB, slug string) *db.Tenant {
	t.Helper()
	tenant, err := NewTenantService(gdb).Create(TenantInput{Name: "Tenant " + slug, Slug: slug, Domain: slug + ".example.com"})
	if err != nil {
		t.Fatalf("failed to create tenant %s: %v", slug, err)
	}
	return tenant
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
