package handler

import (
	"errors"
	"net/http"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	tenantContextKey    = "__tenant"
	principalContextKey = "__principal"

	sessionUserKey   = "user_id"
	sessionTenantKey = "tenant_id"
)

// ResolveTenant 根据 Host 头确定租户，未匹配且没有 default 租户时返回 404。
func (a *API) ResolveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := a.tenants.Resolve(c.Request.Host)
		if err != nil {
			if errors.Is(err, service.ErrTenantNotFound) {
				respondError(c, http.StatusNotFound, "site not found")
			} else {
				a.respondServiceError(c, err, "failed to resolve site")
			}
			c.Abort()
			return
		}
		c.Set(tenantContextKey, tenant)
		c.Next()
	}
}

// TenantFromContext 返回 ResolveTenant 写入的租户，供其他传输层复用。
func TenantFromContext(c *gin.Context) *db.Tenant {
	return currentTenant(c)
}

func currentTenant(c *gin.Context) *db.Tenant {
	if value, exists := c.Get(tenantContextKey); exists {
		if tenant, ok := value.(*db.Tenant); ok {
			return tenant
		}
	}
	return nil
}

func currentPrincipal(c *gin.Context) (auth.Principal, bool) {
	if value, exists := c.Get(principalContextKey); exists {
		if principal, ok := value.(auth.Principal); ok {
			return principal, true
		}
	}
	return auth.Principal{}, false
}

// Authenticate 从 Bearer 密钥或会话中解析调用者；不拒绝匿名请求，由 Require 决定。
func (a *API) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			plain, err := auth.ParseBearer(header)
			if err != nil {
				respondError(c, http.StatusUnauthorized, "invalid authorization header")
				c.Abort()
				return
			}
			_, principal, err := a.apiKeys.Authenticate(plain)
			if err != nil {
				if errors.Is(err, service.ErrAPIKeyRejected) {
					respondError(c, http.StatusUnauthorized, "invalid api key")
				} else {
					a.respondServiceError(c, err, "failed to verify api key")
				}
				c.Abort()
				return
			}
			// 密钥只在所属租户的域名下有效。
			if tenant := currentTenant(c); tenant != nil && tenant.ID != principal.TenantID {
				respondError(c, http.StatusUnauthorized, "invalid api key")
				c.Abort()
				return
			}
			c.Set(principalContextKey, principal)
			c.Next()
			return
		}

		if principal, ok := a.sessionPrincipal(c); ok {
			c.Set(principalContextKey, principal)
		}
		c.Next()
	}
}

// sessionPrincipal 每次请求都重新读取用户，角色变更与删除立即生效。
func (a *API) sessionPrincipal(c *gin.Context) (auth.Principal, bool) {
	session := sessions.Default(c)
	userID, ok := session.Get(sessionUserKey).(uint)
	if !ok || userID == 0 {
		return auth.Principal{}, false
	}
	tenantID, ok := session.Get(sessionTenantKey).(uint)
	if !ok || tenantID == 0 {
		return auth.Principal{}, false
	}
	if tenant := currentTenant(c); tenant != nil && tenant.ID != tenantID {
		return auth.Principal{}, false
	}

	user, err := a.users.Get(tenantID, userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			session.Clear()
			_ = session.Save()
		} else {
			c.Error(err)
		}
		return auth.Principal{}, false
	}
	perm, ok := auth.ParsePermission(user.Role)
	if !ok {
		return auth.Principal{}, false
	}
	return auth.Principal{TenantID: user.TenantID, UserID: user.ID, Permission: perm, Email: user.Email}, true
}

// Require 要求调用者至少具备 perm：无凭据 401，权限不足 403。
func (a *API) Require(perm auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := currentPrincipal(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		if !principal.Permission.Allows(perm) {
			respondError(c, http.StatusForbidden, "insufficient permission")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSessionUser 限定只能由登录用户调用，API Key 无效。
func (a *API) RequireSessionUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := currentPrincipal(c)
		if !ok || !principal.IsUser() {
			respondError(c, http.StatusUnauthorized, "session required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminSessionRequired 用于后台 HTML 页面，未登录时跳转到登录页。
func (a *API) AdminSessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := currentPrincipal(c)
		if !ok || !principal.IsUser() {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}
