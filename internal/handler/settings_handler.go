package handler

import (
	"net/http"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type apiKeyRequest struct {
	Name          string `json:"name"`
	Permission    string `json:"permission"`
	ExpiresInDays int    `json:"expiresInDays"`
}

// apiKeyView 在列表中附带根据当前时间计算的状态。
type apiKeyView struct {
	db.APIKey
	Status string `json:"status"`
}

// GetSettings 返回生效后的站点设置以及原始键值。
func (a *API) GetSettings(c *gin.Context) {
	tenantID := tenantIDOf(c)
	settings, err := a.settings.Get(tenantID)
	if err != nil {
		a.respondServiceError(c, err, "failed to load settings")
		return
	}
	raw, err := a.settings.Raw(tenantID)
	if err != nil {
		a.respondServiceError(c, err, "failed to load settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings, "values": raw, "keys": service.KnownKeys()})
}

// UpdateSettings 接收扁平的键值对，整体校验后写入。
func (a *API) UpdateSettings(c *gin.Context) {
	var payload map[string]string
	if !bindJSON(c, &payload, "settings must be an object of strings") {
		return
	}
	settings, err := a.settings.Update(tenantIDOf(c), payload)
	if err != nil {
		a.respondServiceError(c, err, "failed to update settings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (a *API) ListAPIKeys(c *gin.Context) {
	keys, err := a.apiKeys.List(tenantIDOf(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to list api keys")
		return
	}
	now := a.now()
	views := make([]apiKeyView, 0, len(keys))
	for _, key := range keys {
		views = append(views, apiKeyView{APIKey: key, Status: key.Status(now)})
	}
	c.JSON(http.StatusOK, gin.H{"apiKeys": views})
}

// CreateAPIKey 签发新密钥；明文只在本次响应中出现。
func (a *API) CreateAPIKey(c *gin.Context) {
	var payload apiKeyRequest
	if !bindJSON(c, &payload, "invalid api key payload") {
		return
	}
	actor := principalActor(c)
	created, err := a.apiKeys.Create(tenantIDOf(c), service.APIKeyInput{
		Name:          payload.Name,
		Permission:    payload.Permission,
		ExpiresInDays: payload.ExpiresInDays,
	}, actor)
	if err != nil {
		a.respondServiceError(c, err, "failed to create api key")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"apiKey": apiKeyView{APIKey: created.Key, Status: created.Key.Status(a.now())},
		"key":    created.Plain,
	})
}

func (a *API) RevokeAPIKey(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.apiKeys.Revoke(tenantIDOf(c), id); err != nil {
		a.respondServiceError(c, err, "failed to revoke api key")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "api key revoked", "revokedAt": a.now().UTC().Format(time.RFC3339)})
}
