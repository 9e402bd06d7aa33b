package db

import "time"

// API key status values.
const (
	APIKeyStatusActive  = "active"
	APIKeyStatusExpired = "expired"
	APIKeyStatusRevoked = "revoked"
)

// APIKey 保存 Bearer 密钥的 SHA-256 摘要，明文只在创建时返回一次。
type APIKey struct {
	Model
	TenantID   uint       `gorm:"not null;index" json:"tenantId"`
	Name       string     `gorm:"size:120;not null" json:"name"`
	KeyHash    string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Prefix     string     `gorm:"size:16;not null" json:"prefix"`
	Permission string     `gorm:"size:16;not null" json:"permission"`
	CreatedBy  *uint      `json:"createdBy,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// Status 计算密钥在 now 时刻的状态。
func (k *APIKey) Status(now time.Time) string {
	if k.RevokedAt != nil {
		return APIKeyStatusRevoked
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return APIKeyStatusExpired
	}
	return APIKeyStatusActive
}
