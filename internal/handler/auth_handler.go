package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type totpCodeRequest struct {
	Code string `json:"code"`
}

// Login 校验账号密码（以及可选的 TOTP）并建立会话。
func (a *API) Login(c *gin.Context) {
	var payload loginRequest
	if !bindJSON(c, &payload, "invalid login payload") {
		return
	}
	user, status, message := a.authenticateUser(c, payload)
	if user == nil {
		respondError(c, status, message)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// authenticateUser 供 JSON 与表单登录共用；失败时返回状态码与提示。
func (a *API) authenticateUser(c *gin.Context, payload loginRequest) (*db.User, int, string) {
	tenant := currentTenant(c)
	if tenant == nil {
		return nil, http.StatusNotFound, "site not found"
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		return nil, http.StatusBadRequest, "email and password are required"
	}

	user, err := a.users.Authenticate(tenant.ID, payload.Email, payload.Password, payload.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials),
			errors.Is(err, service.ErrTOTPRequired),
			errors.Is(err, service.ErrInvalidTOTP):
			a.logger.WithField("tenant", tenant.Slug).WithField("reason", err.Error()).Warn("login rejected")
			return nil, http.StatusUnauthorized, err.Error()
		default:
			c.Error(err)
			a.logger.WithError(err).Error("login failed")
			return nil, http.StatusInternalServerError, "login failed"
		}
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserKey, user.ID)
	session.Set(sessionTenantKey, user.TenantID)
	if err := session.Save(); err != nil {
		c.Error(err)
		return nil, http.StatusInternalServerError, "failed to save session"
	}
	return user, http.StatusOK, ""
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me 返回当前调用者的身份与权限。
func (a *API) Me(c *gin.Context) {
	principal, _ := currentPrincipal(c)
	body := gin.H{
		"tenantId":   principal.TenantID,
		"permission": principal.Permission.String(),
	}
	if principal.IsUser() {
		user, err := a.users.Get(principal.TenantID, principal.UserID)
		if err != nil {
			a.respondServiceError(c, err, "failed to load user")
			return
		}
		body["user"] = user
	} else {
		body["apiKeyId"] = principal.APIKeyID
	}
	c.JSON(http.StatusOK, body)
}

// SetupTOTP 生成待确认的 TOTP 密钥并返回 otpauth 链接。
func (a *API) SetupTOTP(c *gin.Context) {
	principal, _ := currentPrincipal(c)
	key, err := a.users.SetupTOTP(principal.TenantID, principal.UserID)
	if err != nil {
		a.respondServiceError(c, err, "failed to start totp setup")
		return
	}
	c.JSON(http.StatusOK, gin.H{"secret": key.Secret, "url": key.URL})
}

// EnableTOTP 用验证码确认并启用 TOTP。
func (a *API) EnableTOTP(c *gin.Context) {
	var payload totpCodeRequest
	if !bindJSON(c, &payload, "code is required") {
		return
	}
	principal, _ := currentPrincipal(c)
	if err := a.users.EnableTOTP(principal.TenantID, principal.UserID, payload.Code); err != nil {
		a.respondServiceError(c, err, "failed to enable totp")
		return
	}
	c.JSON(http.StatusOK, gin.H{"totpEnabled": true})
}

// DisableTOTP 在验证码正确时关闭 TOTP。
func (a *API) DisableTOTP(c *gin.Context) {
	var payload totpCodeRequest
	if !bindJSON(c, &payload, "code is required") {
		return
	}
	principal, _ := currentPrincipal(c)
	if err := a.users.DisableTOTP(principal.TenantID, principal.UserID, payload.Code); err != nil {
		a.respondServiceError(c, err, "failed to disable totp")
		return
	}
	c.JSON(http.StatusOK, gin.H{"totpEnabled": false})
}
