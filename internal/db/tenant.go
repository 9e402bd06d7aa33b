package db

// DefaultTenantSlug 为未匹配域名时回退的租户。
const DefaultTenantSlug = "default"

// Tenant 表示一个独立站点，所有内容均按租户隔离。
type Tenant struct {
	Model
	Name          string  `gorm:"size:120;not null" json:"name"`
	Slug          string  `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Domain        *string `gorm:"size:255;uniqueIndex" json:"domain,omitempty"`
	DefaultLocale string  `gorm:"size:8;not null;default:en" json:"defaultLocale"`
}
