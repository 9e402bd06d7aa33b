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
	ErrPageNotFound    = errors.New("page not found")
	ErrDuplicateTarget = errors.New("duplicate must target another locale or slug")
)

// HomeSlug 是每个语言根路径对应的页面。
const HomeSlug = "home"

// PageService 管理页面及其有序区块。
type PageService struct {
	db  *gorm.DB
	now func() time.Time
}

// PageInput 为创建或更新页面的参数；Blocks 为 nil 时不修改区块。
type PageInput struct {
	Slug        string
	Locale      string
	Title       string
	Description string
	Status      string
	PublishAt   *time.Time
	Blocks      []blocks.Input
}

// PageListResult 为分页列表结果。
type PageListResult struct {
	Pages      []db.Page
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewPageService returns a new PageService instance.
func NewPageService(gdb *gorm.DB) *PageService {
	return &PageService{db: gdb, now: time.Now}
}

// List 按过滤条件分页返回页面，不加载区块。
func (s *PageService) List(tenantID uint, filter ContentFilter) (*PageListResult, error) {
	page, perPage := normalizePagination(filter.Page, filter.PerPage)

	query, err := applyContentFilter(s.db.Model(&db.Page{}).Where("tenant_id = ?", tenantID), filter)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var pages []db.Page
	if err := query.Order("updated_at desc, id desc").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&pages).Error; err != nil {
		return nil, err
	}

	return &PageListResult{
		Pages:      pages,
		Total:      total,
		TotalPages: totalPages(total, perPage),
		Page:       page,
		PerPage:    perPage,
	}, nil
}

// Get 读取页面并按 order 加载区块。
func (s *PageService) Get(tenantID, id uint) (*db.Page, error) {
	return s.get(s.db, tenantID, id)
}

func (s *PageService) get(tx *gorm.DB, tenantID, id uint) (*db.Page, error) {
	var page db.Page
	err := tx.Where("tenant_id = ?", tenantID).
		Preload("Blocks", func(q *gorm.DB) *gorm.DB { return q.Order("sort_order asc") }).
		First(&page, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

// GetVisible 读取公开可见的页面。
func (s *PageService) GetVisible(tenantID uint, locale, slug string) (*db.Page, error) {
	var page db.Page
	err := s.db.Scopes(visibleScope(s.now())).
		Where("tenant_id = ? AND locale = ? AND slug = ?", tenantID, locale, slug).
		Preload("Blocks", func(q *gorm.DB) *gorm.DB { return q.Order("sort_order asc") }).
		First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

// GetBySlug 读取页面而不考虑状态，供预览使用。
func (s *PageService) GetBySlug(tenantID uint, locale, slug string) (*db.Page, error) {
	var page db.Page
	err := s.db.Where("tenant_id = ? AND locale = ? AND slug = ?", tenantID, locale, slug).
		Preload("Blocks", func(q *gorm.DB) *gorm.DB { return q.Order("sort_order asc") }).
		First(&page).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	return &page, nil
}

// ListVisible 返回某语言下全部公开页面；locale 为空时返回所有语言。
func (s *PageService) ListVisible(tenantID uint, locale string) ([]db.Page, error) {
	query := s.db.Scopes(visibleScope(s.now())).Where("tenant_id = ?", tenantID)
	if locale != "" {
		query = query.Where("locale = ?", locale)
	}
	var pages []db.Page
	if err := query.Order("slug asc, locale asc").Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

// Translations 返回同一 slug 在各语言下的公开版本，用于语言切换与 hreflang。
func (s *PageService) Translations(tenantID uint, slug string) (map[string]db.Page, error) {
	var pages []db.Page
	if err := s.db.Scopes(visibleScope(s.now())).
		Where("tenant_id = ? AND slug = ?", tenantID, slug).
		Find(&pages).Error; err != nil {
		return nil, err
	}
	result := make(map[string]db.Page, len(pages))
	for _, page := range pages {
		result[page.Locale] = page
	}
	return result, nil
}

// Create 新建页面，可同时提交区块。
func (s *PageService) Create(tenantID uint, input PageInput) (*db.Page, error) {
	slug, code, title, err := normalizePageMeta(input)
	if err != nil {
		return nil, err
	}
	now := s.now()
	status, publishAt, err := resolveStatus(input.Status, input.PublishAt, now)
	if err != nil {
		return nil, err
	}
	normalized, err := blocks.Normalize(input.Blocks)
	if err != nil {
		return nil, err
	}

	page := db.Page{
		TenantID:    tenantID,
		Slug:        slug,
		Locale:      code,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
	}
	applyStatus(status, publishAt, now, &page.Status, &page.PublishAt, &page.PublishedAt)

	var created *db.Page
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureSlugFree(tx, &db.Page{}, tenantID, slug, code, 0); err != nil {
			return err
		}
		if err := tx.Omit("Blocks").Create(&page).Error; err != nil {
			return err
		}
		if err := insertBlocks(tx, page.ID, normalized); err != nil {
			return err
		}
		created, err = s.get(tx, tenantID, page.ID)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return created, nil
}

// Update 修改页面元数据；Status 非空时一并变更状态，Blocks 非 nil 时整体替换区块。
func (s *PageService) Update(tenantID, id uint, input PageInput) (*db.Page, error) {
	slug, code, title, err := normalizePageMeta(input)
	if err != nil {
		return nil, err
	}

	var normalized []blocks.Normalized
	if input.Blocks != nil {
		if normalized, err = blocks.Normalize(input.Blocks); err != nil {
			return nil, err
		}
	}

	now := s.now()
	var updated *db.Page
	err = s.db.Transaction(func(tx *gorm.DB) error {
		page, err := s.get(tx, tenantID, id)
		if err != nil {
			return err
		}
		if err := ensureSlugFree(tx, &db.Page{}, tenantID, slug, code, page.ID); err != nil {
			return err
		}

		page.Slug = slug
		page.Locale = code
		page.Title = title
		page.Description = strings.TrimSpace(input.Description)
		if strings.TrimSpace(input.Status) != "" {
			status, publishAt, err := resolveStatus(input.Status, input.PublishAt, now)
			if err != nil {
				return err
			}
			applyStatus(status, publishAt, now, &page.Status, &page.PublishAt, &page.PublishedAt)
		}

		page.Blocks = nil
		if err := tx.Omit("Blocks").Save(page).Error; err != nil {
			return err
		}
		if input.Blocks != nil {
			if err := replaceBlocks(tx, page.ID, normalized); err != nil {
				return err
			}
		}
		updated, err = s.get(tx, tenantID, page.ID)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return updated, nil
}

// ReplaceBlocks 在一个事务内删除页面全部区块并写入新的有序区块。
func (s *PageService) ReplaceBlocks(tenantID, id uint, inputs []blocks.Input) (*db.Page, error) {
	normalized, err := blocks.Normalize(inputs)
	if err != nil {
		return nil, err
	}

	var page *db.Page
	err = s.db.Transaction(func(tx *gorm.DB) error {
		current, err := s.get(tx, tenantID, id)
		if err != nil {
			return err
		}
		if err := replaceBlocks(tx, current.ID, normalized); err != nil {
			return err
		}
		// 只更新时间戳；current 上预加载的旧区块不能随之回写。
		if err := tx.Model(&db.Page{}).Where("id = ?", current.ID).
			UpdateColumn("updated_at", s.now().UTC()).Error; err != nil {
			return err
		}
		page, err = s.get(tx, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Delete 删除页面及其区块，并解除服务、案例与表单提交对它的引用。
func (s *PageService) Delete(tenantID, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var page db.Page
		if err := tx.Where("tenant_id = ?", tenantID).First(&page, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPageNotFound
			}
			return err
		}

		if err := tx.Where("page_id = ?", page.ID).Delete(&db.Block{}).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{&db.Service{}, &db.CaseStudy{}, &db.FormSubmission{}} {
			if err := tx.Model(model).
				Where("tenant_id = ? AND page_id = ?", tenantID, page.ID).
				UpdateColumn("page_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&page).Error
	})
}

// Duplicate 把页面连同区块复制到另一语言，副本状态为 draft。
func (s *PageService) Duplicate(tenantID, id uint, targetLocale, targetSlug string) (*db.Page, error) {
	code, err := normalizeLocale(targetLocale)
	if err != nil {
		return nil, err
	}

	var copyPage *db.Page
	err = s.db.Transaction(func(tx *gorm.DB) error {
		source, err := s.get(tx, tenantID, id)
		if err != nil {
			return err
		}

		slug := source.Slug
		if strings.TrimSpace(targetSlug) != "" {
			if slug, err = NormalizeSlug(targetSlug); err != nil {
				return err
			}
		}
		if code == source.Locale && slug == source.Slug {
			return ErrDuplicateTarget
		}
		if err := ensureSlugFree(tx, &db.Page{}, tenantID, slug, code, 0); err != nil {
			return err
		}

		page := db.Page{
			TenantID:    tenantID,
			Slug:        slug,
			Locale:      code,
			Title:       source.Title,
			Description: source.Description,
			Status:      db.StatusDraft,
		}
		if err := tx.Omit("Blocks").Create(&page).Error; err != nil {
			return err
		}
		for _, block := range source.Blocks {
			clone := db.Block{
				PageID: page.ID,
				Type:   block.Type,
				Data:   append(datatypes.JSON(nil), block.Data...),
				Order:  block.Order,
			}
			if err := tx.Create(&clone).Error; err != nil {
				return err
			}
		}
		copyPage, err = s.get(tx, tenantID, page.ID)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	return copyPage, nil
}

// SetStatus 只修改页面状态。
func (s *PageService) SetStatus(tenantID, id uint, input StatusInput) (*db.Page, error) {
	if strings.TrimSpace(input.Status) == "" {
		return nil, ErrInvalidStatus
	}
	now := s.now()
	status, publishAt, err := resolveStatus(input.Status, input.PublishAt, now)
	if err != nil {
		return nil, err
	}

	var page db.Page
	if err := s.db.Where("tenant_id = ?", tenantID).First(&page, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	applyStatus(status, publishAt, now, &page.Status, &page.PublishAt, &page.PublishedAt)
	if err := s.db.Select("status", "publish_at", "published_at", "updated_at").Save(&page).Error; err != nil {
		return nil, err
	}
	return s.Get(tenantID, id)
}

// CountByStatus 统计各状态页面数量。
func (s *PageService) CountByStatus(tenantID uint) (map[db.ContentStatus]int64, error) {
	return countByStatus(s.db, &db.Page{}, tenantID)
}

func normalizePageMeta(input PageInput) (slug, code, title string, err error) {
	if slug, err = NormalizeSlug(input.Slug); err != nil {
		return "", "", "", err
	}
	if code, err = normalizeLocale(input.Locale); err != nil {
		return "", "", "", err
	}
	title = strings.TrimSpace(input.Title)
	if title == "" {
		return "", "", "", ErrTitleRequired
	}
	return slug, code, title, nil
}

func insertBlocks(tx *gorm.DB, pageID uint, normalized []blocks.Normalized) error {
	if len(normalized) == 0 {
		return nil
	}
	rows := make([]db.Block, 0, len(normalized))
	for _, block := range normalized {
		rows = append(rows, db.Block{
			PageID: pageID,
			Type:   block.Type,
			Data:   datatypes.JSON(block.Data),
			Order:  block.Order,
		})
	}
	return tx.Create(&rows).Error
}

func replaceBlocks(tx *gorm.DB, pageID uint, normalized []blocks.Normalized) error {
	if err := tx.Where("page_id = ?", pageID).Delete(&db.Block{}).Error; err != nil {
		return err
	}
	return insertBlocks(tx, pageID, normalized)
}

// ensureSlugFree 检查 (tenant, slug, locale) 是否已被其他记录占用。
func ensureSlugFree(tx *gorm.DB, model interface{}, tenantID uint, slug, code string, excludeID uint) error {
	query := tx.Model(model).Where("tenant_id = ? AND slug = ? AND locale = ?", tenantID, slug, code)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrSlugTaken
	}
	return nil
}

func countByStatus(gdb *gorm.DB, model interface{}, tenantID uint) (map[db.ContentStatus]int64, error) {
	var rows []struct {
		Status db.ContentStatus
		Count  int64
	}
	if err := gdb.Model(model).
		Select("status, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[db.ContentStatus]int64, len(db.ContentStatuses))
	for _, status := range db.ContentStatuses {
		result[status] = 0
	}
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
