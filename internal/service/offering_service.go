package service

import (
	"errors"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"gorm.io/gorm"
)

// ErrOfferingNotFound 表示服务条目不存在。
var ErrOfferingNotFound = errors.New("service not found")

// OfferingService 管理站点对外展示的服务条目（db.Service）。
type OfferingService struct {
	db  *gorm.DB
	now func() time.Time
}

// OfferingInput 为创建或更新服务条目的参数。
type OfferingInput struct {
	Slug      string
	Locale    string
	Title     string
	Summary   string
	Icon      string
	SortOrder int
	PageID    *uint
	Status    string
	PublishAt *time.Time
}

// NewOfferingService 构造 OfferingService。
func NewOfferingService(gdb *gorm.DB) *OfferingService {
	return &OfferingService{db: gdb, now: time.Now}
}

// List 返回后台服务列表，按 sort_order 排序。
func (s *OfferingService) List(tenantID uint, filter ContentFilter) ([]db.Service, error) {
	query, err := applyContentFilter(s.db.Model(&db.Service{}).Where("tenant_id = ?", tenantID), filter)
	if err != nil {
		return nil, err
	}
	var services []db.Service
	if err := query.Order("sort_order asc, id asc").Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}

// ListVisible 返回某语言下的公开服务。
func (s *OfferingService) ListVisible(tenantID uint, locale string) ([]db.Service, error) {
	var services []db.Service
	if err := s.db.Scopes(visibleScope(s.now())).
		Where("tenant_id = ? AND locale = ?", tenantID, locale).
		Order("sort_order asc, id asc").
		Find(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}

// Get 读取租户内的服务条目。
func (s *OfferingService) Get(tenantID, id uint) (*db.Service, error) {
	var item db.Service
	if err := s.db.Where("tenant_id = ?", tenantID).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferingNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Create 新建服务条目。
func (s *OfferingService) Create(tenantID uint, input OfferingInput) (*db.Service, error) {
	item := db.Service{TenantID: tenantID}
	if err := s.save(&item, input, true); err != nil {
		return nil, err
	}
	return &item, nil
}

// Update 修改服务条目。
func (s *OfferingService) Update(tenantID, id uint, input OfferingInput) (*db.Service, error) {
	item, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.save(item, input, false); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *OfferingService) save(item *db.Service, input OfferingInput, creating bool) error {
	slug, err := NormalizeSlug(input.Slug)
	if err != nil {
		return err
	}
	code, err := normalizeLocale(input.Locale)
	if err != nil {
		return err
	}
	title := blocks.PlainText(input.Title)
	if title == "" {
		return ErrTitleRequired
	}

	now := s.now()
	if creating || strings.TrimSpace(input.Status) != "" {
		status, publishAt, err := resolveStatus(input.Status, input.PublishAt, now)
		if err != nil {
			return err
		}
		applyStatus(status, publishAt, now, &item.Status, &item.PublishAt, nil)
	}

	item.Slug = slug
	item.Locale = code
	item.Title = title
	item.Summary = blocks.PlainText(input.Summary)
	item.Icon = blocks.PlainText(input.Icon)
	item.SortOrder = input.SortOrder
	item.PageID = input.PageID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureSlugFree(tx, &db.Service{}, item.TenantID, slug, code, item.ID); err != nil {
			return err
		}
		if err := ensurePageInTenant(tx, item.TenantID, item.PageID); err != nil {
			return err
		}
		return tx.Save(item).Error
	})
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	return err
}

// Delete 删除服务条目。
func (s *OfferingService) Delete(tenantID, id uint) error {
	result := s.db.Where("tenant_id = ?", tenantID).Delete(&db.Service{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOfferingNotFound
	}
	return nil
}

// CountByStatus 统计各状态服务数量。
func (s *OfferingService) CountByStatus(tenantID uint) (map[db.ContentStatus]int64, error) {
	return countByStatus(s.db, &db.Service{}, tenantID)
}
