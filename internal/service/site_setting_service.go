package service

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSettingInvalid 可用于 errors.Is 判断设置校验失败。
var ErrSettingInvalid = errors.New("invalid setting")

// SettingError 指出具体哪个键不合法。
type SettingError struct {
	Key    string
	Reason string
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

func (e *SettingError) Is(target error) bool {
	return target == ErrSettingInvalid
}

const defaultSiteName = "ct-web"

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// SiteSettings 是渲染站点所需的设置快照。
type SiteSettings struct {
	SiteName         string            `json:"siteName"`
	LogoURL          string            `json:"logoUrl"`
	PrimaryColor     string            `json:"primaryColor"`
	DefaultLocale    string            `json:"defaultLocale"`
	ContactEmail     string            `json:"contactEmail"`
	AnalyticsEnabled bool              `json:"analyticsEnabled"`
	Footer           map[string]string `json:"footer"`
}

// FooterFor 返回某语言的页脚，缺失时回退到英文。
func (s SiteSettings) FooterFor(language string) string {
	if text, ok := s.Footer[language]; ok && text != "" {
		return text
	}
	return s.Footer[locale.LanguageEnglish]
}

// SiteSettingService 读取与更新租户的站点设置。
type SiteSettingService struct {
	db *gorm.DB
}

// NewSiteSettingService 构造 SiteSettingService。
func NewSiteSettingService(gdb *gorm.DB) *SiteSettingService {
	return &SiteSettingService{db: gdb}
}

// KnownKeys 返回允许写入的全部键。
func KnownKeys() []string {
	keys := []string{
		db.SettingKeySiteName,
		db.SettingKeyLogoURL,
		db.SettingKeyPrimaryColor,
		db.SettingKeyDefaultLocale,
		db.SettingKeyContactEmail,
		db.SettingKeyAnalyticsEnabled,
	}
	for _, code := range locale.Supported {
		keys = append(keys, footerKey(code))
	}
	return keys
}

func footerKey(language string) string {
	return db.SettingKeyFooterPrefix + "." + language
}

// Raw 返回已存储的键值，不含默认值。
func (s *SiteSettingService) Raw(tenantID uint) (map[string]string, error) {
	var records []db.SiteSetting
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load site settings: %w", err)
	}
	values := make(map[string]string, len(records))
	for _, record := range records {
		values[record.Key] = record.Value
	}
	return values, nil
}

// Get 读取设置并填充默认值；租户默认语言作为 default_locale 的回退。
func (s *SiteSettingService) Get(tenantID uint) (SiteSettings, error) {
	result := SiteSettings{
		SiteName:         defaultSiteName,
		DefaultLocale:    locale.LanguageEnglish,
		AnalyticsEnabled: true,
		Footer:           map[string]string{},
	}

	var tenant db.Tenant
	if err := s.db.First(&tenant, tenantID).Error; err == nil {
		result.SiteName = tenant.Name
		if locale.IsSupported(tenant.DefaultLocale) {
			result.DefaultLocale = tenant.DefaultLocale
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return result, err
	}

	values, err := s.Raw(tenantID)
	if err != nil {
		return result, err
	}

	for key, value := range values {
		switch key {
		case db.SettingKeySiteName:
			if strings.TrimSpace(value) != "" {
				result.SiteName = value
			}
		case db.SettingKeyLogoURL:
			result.LogoURL = value
		case db.SettingKeyPrimaryColor:
			result.PrimaryColor = value
		case db.SettingKeyDefaultLocale:
			if locale.IsSupported(value) {
				result.DefaultLocale = value
			}
		case db.SettingKeyContactEmail:
			result.ContactEmail = value
		case db.SettingKeyAnalyticsEnabled:
			result.AnalyticsEnabled = value != "false"
		default:
			if code, ok := strings.CutPrefix(key, db.SettingKeyFooterPrefix+"."); ok {
				result.Footer[code] = value
			}
		}
	}
	return result, nil
}

// Update 校验并在一个事务内写入给定的键；未知键直接拒绝。
func (s *SiteSettingService) Update(tenantID uint, values map[string]string) (SiteSettings, error) {
	known := make(map[string]struct{})
	for _, key := range KnownKeys() {
		known[key] = struct{}{}
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	cleaned := make(map[string]string, len(values))
	for _, key := range keys {
		if _, ok := known[key]; !ok {
			return SiteSettings{}, &SettingError{Key: key, Reason: "unknown setting"}
		}
		value, err := cleanSetting(key, values[key])
		if err != nil {
			return SiteSettings{}, err
		}
		cleaned[key] = value
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			if err := upsertSetting(tx, tenantID, key, cleaned[key]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SiteSettings{}, fmt.Errorf("update site settings: %w", err)
	}
	return s.Get(tenantID)
}

func cleanSetting(key, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	switch key {
	case db.SettingKeySiteName:
		value = blocks.PlainText(value)
		if len(value) > 120 {
			return "", &SettingError{Key: key, Reason: "must be at most 120 characters"}
		}
	case db.SettingKeyLogoURL:
		if value != "" && !blocks.IsSafeLink(value) {
			return "", &SettingError{Key: key, Reason: "must be a relative path or http(s) URL"}
		}
	case db.SettingKeyPrimaryColor:
		if value != "" && !hexColorPattern.MatchString(value) {
			return "", &SettingError{Key: key, Reason: "must be a hex color like #1a2b3c"}
		}
	case db.SettingKeyDefaultLocale:
		value = strings.ToLower(value)
		if !locale.IsSupported(value) {
			return "", &SettingError{Key: key, Reason: "must be one of en, de, fr"}
		}
	case db.SettingKeyContactEmail:
		if value != "" && inputValidator.Var(value, "email") != nil {
			return "", &SettingError{Key: key, Reason: "must be a valid email address"}
		}
	case db.SettingKeyAnalyticsEnabled:
		value = strings.ToLower(value)
		if value != "true" && value != "false" {
			return "", &SettingError{Key: key, Reason: "must be true or false"}
		}
	default:
		value = blocks.PlainText(value)
		if len(value) > 500 {
			return "", &SettingError{Key: key, Reason: "must be at most 500 characters"}
		}
	}
	return value, nil
}

func upsertSetting(tx *gorm.DB, tenantID uint, key, value string) error {
	setting := db.SiteSetting{TenantID: tenantID, Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}
