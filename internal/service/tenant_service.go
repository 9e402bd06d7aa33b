package service

import (
	"errors"
	"net"
	"strings"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"gorm.io/gorm"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantNameEmpty = errors.New("tenant name is required")
	ErrTenantExists    = errors.New("tenant slug or domain already exists")
)

// TenantService 管理租户并按域名解析租户。
type TenantService struct {
	db *gorm.DB
}

// TenantInput 为创建租户的参数。
type TenantInput struct {
	Name          string
	Slug          string
	Domain        string
	DefaultLocale string
}

// NewTenantService 构造 TenantService。
func NewTenantService(gdb *gorm.DB) *TenantService {
	return &TenantService{db: gdb}
}

// Create 新建租户，slug 与 domain 全局唯一。
func (s *TenantService) Create(input TenantInput) (*db.Tenant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTenantNameEmpty
	}
	slug, err := NormalizeSlug(input.Slug)
	if err != nil {
		return nil, err
	}
	defaultLocale := input.DefaultLocale
	if strings.TrimSpace(defaultLocale) == "" {
		defaultLocale = "en"
	}
	code, err := normalizeLocale(defaultLocale)
	if err != nil {
		return nil, err
	}

	tenant := db.Tenant{Name: name, Slug: slug, DefaultLocale: code}
	if host := normalizeHost(input.Domain); host != "" {
		tenant.Domain = &host
	}

	if err := s.db.Create(&tenant).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrTenantExists
		}
		return nil, err
	}
	return &tenant, nil
}

// Get 按 ID 读取租户。
func (s *TenantService) Get(id uint) (*db.Tenant, error) {
	var tenant db.Tenant
	if err := s.db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// GetBySlug 按 slug 读取租户。
func (s *TenantService) GetBySlug(slug string) (*db.Tenant, error) {
	var tenant db.Tenant
	if err := s.db.Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

// Resolve 根据 Host 头匹配租户域名，未命中时回退到 default 租户。
func (s *TenantService) Resolve(host string) (*db.Tenant, error) {
	if normalized := normalizeHost(host); normalized != "" {
		var tenant db.Tenant
		err := s.db.Where("domain = ?", normalized).First(&tenant).Error
		if err == nil {
			return &tenant, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return s.GetBySlug(db.DefaultTenantSlug)
}

// EnsureDefault 保证存在 slug 为 default 的租户。
func (s *TenantService) EnsureDefault(name string) (*db.Tenant, error) {
	tenant, err := s.GetBySlug(db.DefaultTenantSlug)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, ErrTenantNotFound) {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Default"
	}
	return s.Create(TenantInput{Name: name, Slug: db.DefaultTenantSlug})
}

// List 返回全部租户。
func (s *TenantService) List() ([]db.Tenant, error) {
	var tenants []db.Tenant
	if err := s.db.Order("id asc").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func normalizeHost(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.Trim(host, "[]"), ".")
}
