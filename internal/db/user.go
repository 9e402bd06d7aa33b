package db

import "time"

// User 定义了后台用户模型，邮箱在租户内唯一。
type User struct {
	Model
	TenantID    uint       `gorm:"not null;uniqueIndex:idx_users_tenant_email" json:"tenantId"`
	Email       string     `gorm:"size:255;not null;uniqueIndex:idx_users_tenant_email" json:"email"`
	Name        string     `gorm:"size:120" json:"name"`
	Password    string     `gorm:"not null" json:"-"`
	Role        string     `gorm:"size:16;not null;default:read" json:"role"`
	TOTPSecret  string     `gorm:"size:64" json:"-"`
	TOTPPending string     `gorm:"size:64" json:"-"`
	TOTPEnabled bool       `gorm:"not null;default:false" json:"totpEnabled"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}
