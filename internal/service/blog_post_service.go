package service

import (
	"errors"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/markdown"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrBlogPostNotFound = errors.New("blog post not found")
	ErrMediaReference   = errors.New("referenced media asset does not exist")
	ErrTooManyTags      = errors.New("a post may have at most 20 tags")
)

const (
	wordsPerMinute   = 200
	maxTags          = 20
	autoExcerptRunes = 200
)

// BlogPostService 管理博客文章。
type BlogPostService struct {
	db  *gorm.DB
	now func() time.Time
}

// BlogPostInput 为创建或更新文章的参数。
type BlogPostInput struct {
	Slug         string
	Locale       string
	Title        string
	Excerpt      string
	Content      string
	CoverMediaID *uint
	AuthorID     *uint
	Tags         []string
	Status       string
	PublishAt    *time.Time
}

// BlogPostListResult 为分页列表结果。
type BlogPostListResult struct {
	Posts      []db.BlogPost
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewBlogPostService 构造 BlogPostService。
func NewBlogPostService(gdb *gorm.DB) *BlogPostService {
	return &BlogPostService{db: gdb, now: time.Now}
}

// List 分页返回后台文章列表。
func (s *BlogPostService) List(tenantID uint, filter ContentFilter) (*BlogPostListResult, error) {
	query, err := applyContentFilter(s.db.Model(&db.BlogPost{}).Where("tenant_id = ?", tenantID), filter)
	if err != nil {
		return nil, err
	}
	return s.paginate(query, filter.Page, filter.PerPage, "updated_at desc, id desc")
}

// ListVisible 分页返回某语言的公开文章，按发布时间倒序。
func (s *BlogPostService) ListVisible(tenantID uint, locale string, page, perPage int) (*BlogPostListResult, error) {
	query := s.db.Model(&db.BlogPost{}).
		Scopes(visibleScope(s.now())).
		Where("tenant_id = ? AND locale = ?", tenantID, locale)
	return s.paginate(query, page, perPage, "COALESCE(published_at, publish_at, created_at) desc, id desc")
}

func (s *BlogPostService) paginate(query *gorm.DB, page, perPage int, order string) (*BlogPostListResult, error) {
	page, perPage = normalizePagination(page, perPage)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var posts []db.BlogPost
	if err := query.Order(order).Offset((page - 1) * perPage).Limit(perPage).Find(&posts).Error; err != nil {
		return nil, err
	}

	return &BlogPostListResult{
		Posts:      posts,
		Total:      total,
		TotalPages: totalPages(total, perPage),
		Page:       page,
		PerPage:    perPage,
	}, nil
}

// Get 读取租户内的文章。
func (s *BlogPostService) Get(tenantID, id uint) (*db.BlogPost, error) {
	var post db.BlogPost
	if err := s.db.Where("tenant_id = ?", tenantID).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlogPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetVisible 读取公开文章。
func (s *BlogPostService) GetVisible(tenantID uint, locale, slug string) (*db.BlogPost, error) {
	var post db.BlogPost
	err := s.db.Scopes(visibleScope(s.now())).
		Where("tenant_id = ? AND locale = ? AND slug = ?", tenantID, locale, slug).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlogPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// Create 新建文章。
func (s *BlogPostService) Create(tenantID uint, input BlogPostInput) (*db.BlogPost, error) {
	post := db.BlogPost{TenantID: tenantID}
	if err := s.save(&post, input, true); err != nil {
		return nil, err
	}
	return &post, nil
}

// Update 修改文章；Status 为空时保留原状态。
func (s *BlogPostService) Update(tenantID, id uint, input BlogPostInput) (*db.BlogPost, error) {
	post, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.save(post, input, false); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *BlogPostService) save(post *db.BlogPost, input BlogPostInput, creating bool) error {
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
	tags, err := normalizeTags(input.Tags)
	if err != nil {
		return err
	}

	now := s.now()
	if creating || strings.TrimSpace(input.Status) != "" {
		status, publishAt, err := resolveStatus(input.Status, input.PublishAt, now)
		if err != nil {
			return err
		}
		applyStatus(status, publishAt, now, &post.Status, &post.PublishAt, &post.PublishedAt)
	}

	content := strings.TrimSpace(input.Content)
	excerpt := blocks.PlainText(input.Excerpt)
	if excerpt == "" && content != "" {
		excerpt = markdown.Excerpt(content, autoExcerptRunes)
	}

	post.Slug = slug
	post.Locale = code
	post.Title = title
	post.Content = content
	post.Excerpt = excerpt
	post.CoverMediaID = input.CoverMediaID
	post.Tags = datatypes.JSONSlice[string](tags)
	post.ReadingTime = ReadingTime(content)
	if input.AuthorID != nil {
		post.AuthorID = input.AuthorID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := ensureSlugFree(tx, &db.BlogPost{}, post.TenantID, slug, code, post.ID); err != nil {
			return err
		}
		if err := ensureMediaInTenant(tx, post.TenantID, post.CoverMediaID); err != nil {
			return err
		}
		return tx.Save(post).Error
	})
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	return err
}

// SetStatus 只修改文章状态。
func (s *BlogPostService) SetStatus(tenantID, id uint, input StatusInput) (*db.BlogPost, error) {
	if strings.TrimSpace(input.Status) == "" {
		return nil, ErrInvalidStatus
	}
	post, err := s.Get(tenantID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	status, publishAt, err := resolveStatus(input.Status, input.PublishAt, now)
	if err != nil {
		return nil, err
	}
	applyStatus(status, publishAt, now, &post.Status, &post.PublishAt, &post.PublishedAt)
	if err := s.db.Select("status", "publish_at", "published_at", "updated_at").Save(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// Delete 删除文章。
func (s *BlogPostService) Delete(tenantID, id uint) error {
	result := s.db.Where("tenant_id = ?", tenantID).Delete(&db.BlogPost{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBlogPostNotFound
	}
	return nil
}

// CountByStatus 统计各状态文章数量。
func (s *BlogPostService) CountByStatus(tenantID uint) (map[db.ContentStatus]int64, error) {
	return countByStatus(s.db, &db.BlogPost{}, tenantID)
}

// ReadingTime 按每分钟 200 词向上取整，非空内容至少 1 分钟。
func ReadingTime(content string) int {
	words := markdown.WordCount(content)
	if words == 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

func normalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		cleaned := blocks.PlainText(tag)
		if cleaned == "" {
			continue
		}
		key := strings.ToLower(cleaned)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, cleaned)
	}
	if len(tags) > maxTags {
		return nil, ErrTooManyTags
	}
	return tags, nil
}

func ensureMediaInTenant(tx *gorm.DB, tenantID uint, mediaID *uint) error {
	if mediaID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&db.MediaAsset{}).Where("id = ? AND tenant_id = ?", *mediaID, tenantID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrMediaReference
	}
	return nil
}
