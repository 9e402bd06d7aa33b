package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

func settingsRoutes(env *testEnv) *gin.Engine {
	r := env.engine(nil)
	api := r.Group("/api")
	api.GET("/auth/me", env.api.Require(auth.PermissionRead), env.api.Me)
	api.GET("/pages", env.api.Require(auth.PermissionRead), env.api.ListPages)
	admin := api.Group("", env.api.Require(auth.PermissionAdmin))
	admin.GET("/settings", env.api.GetSettings)
	admin.PUT("/settings", env.api.UpdateSettings)
	admin.GET("/settings/api-keys", env.api.ListAPIKeys)
	admin.POST("/settings/api-keys", env.api.CreateAPIKey)
	admin.DELETE("/settings/api-keys/:id", env.api.RevokeAPIKey)
	admin.GET("/users", env.api.ListUsers)
	admin.POST("/users", env.api.CreateUser)
	admin.PATCH("/users/:id", env.api.UpdateUser)
	admin.DELETE("/users/:id", env.api.DeleteUser)
	return r
}

func (e *testEnv) bearer(t *testing.T, perm auth.Permission) (map[string]string, uint) {
	t.Helper()
	created, err := e.api.apiKeys.Create(e.tenant.ID, service.APIKeyInput{Name: perm.String(), Permission: perm.String()},
		auth.Principal{TenantID: e.tenant.ID, Permission: auth.PermissionOwner})
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + created.Plain}, created.Key.ID
}

func TestAuthenticateWithBearerKeys(t *testing.T) {
	env := newTestEnv(t, nil)
	r := settingsRoutes(env)
	readKey, readID := env.bearer(t, auth.PermissionRead)
	adminKey, _ := env.bearer(t, auth.PermissionAdmin)

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		headers map[string]string
		status  int
	}{
		{name: "anonymous", method: http.MethodGet, target: "/api/pages", status: http.StatusUnauthorized},
		{name: "malformed header", method: http.MethodGet, target: "/api/pages", headers: map[string]string{"Authorization": "Basic abc"}, status: http.StatusUnauthorized},
		{name: "read key reads", method: http.MethodGet, target: "/api/pages", headers: readKey, status: http.StatusOK},
		{name: "read key settings", method: http.MethodGet, target: "/api/settings", headers: readKey, status: http.StatusForbidden},
		{name: "admin key settings", method: http.MethodGet, target: "/api/settings", headers: adminKey, status: http.StatusOK},
		{name: "admin key cannot mint owner", method: http.MethodPost, target: "/api/settings/api-keys", body: `{"name":"ci","permission":"owner"}`, headers: adminKey, status: http.StatusForbidden},
		{name: "admin key mints write", method: http.MethodPost, target: "/api/settings/api-keys", body: `{"name":"ci","permission":"write"}`, headers: adminKey, status: http.StatusCreated},
		{name: "invalid setting", method: http.MethodPut, target: "/api/settings", body: `{"default_locale":"es"}`, headers: adminKey, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := performRequest(r, tt.method, tt.target, tt.body, tt.headers)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}

	rr := performRequest(r, http.MethodDelete, fmt.Sprintf("/api/settings/api-keys/%d", readID), "", adminKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected revoke to succeed, got %d", rr.Code)
	}
	if rr := performRequest(r, http.MethodGet, "/api/pages", "", readKey); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked key to be rejected, got %d", rr.Code)
	}
	if rr := performRequest(r, http.MethodDelete, "/api/settings/api-keys/9999", "", adminKey); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown key, got %d", rr.Code)
	}
}

func TestUserManagementRules(t *testing.T) {
	env := newTestEnv(t, nil)
	owner, _, err := env.api.users.EnsureOwner(env.tenant.ID, "owner@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}
	r := env.engine(&auth.Principal{TenantID: env.tenant.ID, UserID: owner.ID, Permission: auth.PermissionOwner})
	r.POST("/api/users", env.api.CreateUser)
	r.PATCH("/api/users/:id", env.api.UpdateUser)
	r.DELETE("/api/users/:id", env.api.DeleteUser)

	rr := performRequest(r, http.MethodPost, "/api/users", `{"email":"editor@example.com","name":"Ed","password":"long-enough-pass","role":"write"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if _, leaked := decodeBody(t, rr)["user"].(map[string]interface{})["password"]; leaked {
		t.Fatalf("password hash must not be serialized")
	}

	rr = performRequest(r, http.MethodPost, "/api/users", `{"email":"editor@example.com","name":"Dup","password":"long-enough-pass","role":"read"}`, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rr.Code)
	}

	if rr := performRequest(r, http.MethodDelete, fmt.Sprintf("/api/users/%d", owner.ID), "", nil); rr.Code != http.StatusForbidden {
		t.Fatalf("expected owner to be unable to delete self, got %d", rr.Code)
	}
	if rr := performRequest(r, http.MethodPatch, fmt.Sprintf("/api/users/%d", owner.ID), `{"role":"admin"}`, nil); rr.Code != http.StatusConflict {
		t.Fatalf("expected last owner demotion to conflict, got %d", rr.Code)
	}
}
