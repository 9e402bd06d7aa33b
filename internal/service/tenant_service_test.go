package service

import (
	"errors"
	"testing"
)

func TestTenantResolveByHost(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTenantService(gdb)

	fallback, err := svc.EnsureDefault("Main site")
	if err != nil {
		t.Fatalf("EnsureDefault returned error: %v", err)
	}
	again, err := svc.EnsureDefault("ignored")
	if err != nil || again.ID != fallback.ID {
		t.Fatalf("EnsureDefault must be idempotent: %v %v", again, err)
	}

	acme := createTestTenant(t, gdb, "acme")

	cases := map[string]uint{
		"acme.example.com":       acme.ID,
		"ACME.example.com:8080":  acme.ID,
		"acme.example.com.":      acme.ID,
		"unknown.example.com":    fallback.ID,
		"":                       fallback.ID,
		"[::1]:8080":             fallback.ID,
	}
	for host, want := range cases {
		tenant, err := svc.Resolve(host)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", host, err)
		}
		if tenant.ID != want {
			t.Fatalf("Resolve(%q) = %d, want %d", host, tenant.ID, want)
		}
	}
}

func TestTenantResolveWithoutDefault(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTenantService(gdb)

	if _, err := svc.Resolve("nowhere.example.com"); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestTenantCreateValidation(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTenantService(gdb)

	if _, err := svc.Create(TenantInput{Name: " ", Slug: "x"}); !errors.Is(err, ErrTenantNameEmpty) {
		t.Fatalf("expected ErrTenantNameEmpty, got %v", err)
	}
	if _, err := svc.Create(TenantInput{Name: "X", Slug: "x", DefaultLocale: "it"}); !errors.Is(err, ErrInvalidLocale) {
		t.Fatalf("expected ErrInvalidLocale, got %v", err)
	}
	if _, err := svc.Create(TenantInput{Name: "X", Slug: "x", Domain: "x.test"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := svc.Create(TenantInput{Name: "Y", Slug: "y", Domain: "X.TEST"}); !errors.Is(err, ErrTenantExists) {
		t.Fatalf("expected ErrTenantExists for duplicate domain, got %v", err)
	}
}
