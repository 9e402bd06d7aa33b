package db

// SiteSetting 存储租户级的站点键值配置。
type SiteSetting struct {
	Model
	TenantID uint   `gorm:"not null;uniqueIndex:idx_site_settings_tenant_key" json:"tenantId"`
	Key      string `gorm:"size:100;not null;uniqueIndex:idx_site_settings_tenant_key" json:"key"`
	Value    string `gorm:"type:text" json:"value"`
}

// TableName 自定义表名以保持命名一致。
func (SiteSetting) TableName() string {
	return "site_settings"
}

const (
	// SettingKeySiteName 表示站点名称。
	SettingKeySiteName = "site_name"
	// SettingKeyLogoURL 表示站点 Logo 链接。
	SettingKeyLogoURL = "logo_url"

	SettingKeyPrimaryColor     = "primary_color"
	SettingKeyDefaultLocale    = "default_locale"
	SettingKeyContactEmail     = "contact_email"
	SettingKeyAnalyticsEnabled = "analytics_enabled"

	// SettingKeyFooterPrefix 加上 ".<locale>" 后缀存储各语言的页脚文本。
	SettingKeyFooterPrefix = "footer_text"
)
