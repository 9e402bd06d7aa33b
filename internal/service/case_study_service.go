package service

import (
	"errors"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrCaseStudyNotFound = errors.New("case study not found")
	ErrTooManyMetrics    = errors.New("a case study may have at most 8 metrics")
)

const maxCaseMetrics = 8

// CaseStudyService 管理客户案例。
type CaseStudyService struct {
	db  *gorm.DB
	now func() time.Time
}

// CaseStudyInput 为创建或更新案例的参数。
type CaseStudyInput struct {
	Slug         string
	Locale       string
	Title        string
	Client       string
	Industry     string
	Summary      string
	CoverMediaID *uint
	Metrics      []db.CaseMetric
	PageID       *uint
	Status       string
	PublishAt    *time.Time
}

// CaseStudyListResult 为分页列表结果。
type CaseStudyListResult struct {
	CaseStudies []db.CaseStudy
	Total       int64
	TotalPages  int
	Page        int
	PerPage     int
}

// NewCaseStudyService 构造 CaseStudyService。
func NewCaseStudyService(gdb *gorm.DB) *CaseStudyService {
	return &CaseStudyService{db: gdb, now: time.Now}
}

// List 分页返回后台案例列表。
func (s *CaseStudyService) List(tenantID uint, filter ContentFilter) (*CaseStudyListResult, error) {
	page, perPage := normalizePagination(filter.Page, filter.PerPage)
	query, err := applyContentFilter(s.db.Model(&db.CaseStudy{}).Where("tenant_id = ?", tenantID), filter)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []db.CaseStudy
	if err := query.Order("updated_at desc, id desc").Offset((page - 1) * perPage).Limit(perPage).Find(&items).Error; err != nil {
		return nil, err
	}
	return &CaseStudyListResult{
		CaseStudies: items,
		Total:       total,
		TotalPages:  totalPages(total, perPage),
		Page:        page,
		PerPage:     perPage,
	}, nil
}

// ListVisible 返回某语言下的公开案例。
func (s *CaseStudyService) ListVisible(tenantID uint, locale string) ([]db.CaseStudy, error) {
	var items []db.CaseStudy
	if err := s.db.Scopes(visibleScope(s.now())).
		Where("tenant_id = ? AND locale = ?", tenantID, locale).
		Order("COALESCE(published_at, publish_at, created_at) desc, id desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Get 读取租户内的案例。
func (s *CaseStudyService) Get(tenantID, id uint) (*db.CaseStudy, error) {
	var item db.CaseStudy
	if err := s.db.Where("tenant_id = ?", tenantID).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCaseStudyNotFound
		}
		return nil, err
	}
	return &item, nil
}

// GetVisible 读取公开案例。
func (s *CaseStudyService) GetVisible(tenantID uint, locale, slug string) (*db.CaseStudy, error) {
	var item db.CaseStudy
	err := s.db.Scopes(visibleScope(s.now())).
		Where("tenant_id = ? AND locale = ? AND slug = ?", tenantID, locale, slug).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCaseStudyNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Create 新建案例。
func (s *CaseStudyService) Create(tenantID uint, input CaseStudyInput) (*db.CaseStudy, error) {
	item := db.CaseStudy{TenantID: tenantID}
	if err := s.save(&item, input, true); err != nil {
		return nil, err
	}
	return &item, nil
}

// Update 修改案例；Status 为空时保留原状态。
func (s *CaseStudyService) Update(tenantID, id uint, input CaseStudyInput) (*db.CaseStudy, error) {
	item, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.save(item, input, false); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CaseStudyService) save(item *db.CaseStudy, input CaseStudyInput, creating bool) error {
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
	metrics := make([]db.CaseMetric, 0, len(input.Metrics))
	for _, metric := range input.Metrics {
		label, value := blocks.PlainText(metric.Label), blocks.PlainText(metric.Value)
		if label == "" && value == "" {
			continue
		}
		metrics = append(metrics, db.CaseMetric{Label: label, Value: value})
	}
	if len(metrics) > maxCaseMetrics {
		return ErrTooManyMetrics
	}

	now := s.now()
	if creating || strings.TrimSpace(input.Status) != "" {
		status, publishAt, err := resolveStatus(input.Status, input.PublishAt, now)
		if err != nil {
			return err
		}
		applyStatus(status, publishAt, now, &item.Status, &item.PublishAt, &item.PublishedAt)
	}

	item.Slug = slug
	item.Locale = code
	item.Title = title
	item.Client = blocks.PlainText(input.Client)
	item.Industry = blocks.PlainText(input.Industry)
	item.Summary = blocks.PlainText(input.Summary)
	item.CoverMediaID = input.CoverMediaID
	item.Metrics = datatypes.JSONSlice[db.CaseMetric](metrics)
	item.PageID = input.PageID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureSlugFree(tx, &db.CaseStudy{}, item.TenantID, slug, code, item.ID); err != nil {
			return err
		}
		if err := ensurePageInTenant(tx, item.TenantID, item.PageID); err != nil {
			return err
		}
		if err := ensureMediaInTenant(tx, item.TenantID, item.CoverMediaID); err != nil {
			return err
		}
		return tx.Save(item).Error
	})
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	return err
}

// SetStatus 只修改案例状态。
func (s *CaseStudyService) SetStatus(tenantID, id uint, input StatusInput) (*db.CaseStudy, error) {
	if strings.TrimSpace(input.Status) == "" {
		return nil, ErrInvalidStatus
	}
	item, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	status, publishAt, err := resolveStatus(input.Status, input.PublishAt, now)
	if err != nil {
		return nil, err
	}
	applyStatus(status, publishAt, now, &item.Status, &item.PublishAt, &item.PublishedAt)
	if err := s.db.Select("status", "publish_at", "published_at", "updated_at").Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// Delete 删除案例。
func (s *CaseStudyService) Delete(tenantID, id uint) error {
	result := s.db.Where("tenant_id = ?", tenantID).Delete(&db.CaseStudy{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCaseStudyNotFound
	}
	return nil
}

// CountByStatus 统计各状态案例数量。
func (s *CaseStudyService) CountByStatus(tenantID uint) (map[db.ContentStatus]int64, error) {
	return countByStatus(s.db, &db.CaseStudy{}, tenantID)
}
