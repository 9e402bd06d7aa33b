package service

import (
	"errors"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"gorm.io/gorm"
)

var (
	ErrSlugTaken         = errors.New("slug already exists for this locale")
	ErrInvalidSlug       = errors.New("slug may only contain a-z, 0-9 and -")
	ErrInvalidLocale     = errors.New("unsupported locale")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrTitleRequired     = errors.New("title is required")
	ErrPublishAtRequired = errors.New("scheduled content needs a future publishAt")
	ErrPageReference     = errors.New("referenced page does not exist")
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	maxSlugLength  = 160
)

// StatusInput 描述一次状态变更请求。
type StatusInput struct {
	Status    string
	PublishAt *time.Time
}

// ContentFilter 是各类内容列表共用的过滤条件。
type ContentFilter struct {
	Status  string
	Locale  string
	Search  string
	Page    int
	PerPage int
}

// NormalizeSlug 将输入规范为单段小写 slug，空格与下划线折叠为 "-"。
func NormalizeSlug(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", ErrInvalidSlug
	}

	var builder strings.Builder
	lastDash := false
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastDash = false
		case r == '-' || r == ' ' || r == '_':
			if !lastDash && builder.Len() > 0 {
				builder.WriteByte('-')
				lastDash = true
			}
		default:
			return "", ErrInvalidSlug
		}
	}

	slug := strings.TrimRight(builder.String(), "-")
	if slug == "" || len(slug) > maxSlugLength {
		return "", ErrInvalidSlug
	}
	return slug, nil
}

// normalizeLocale 只接受 en/de/fr 的精确值（忽略大小写与空白）。
func normalizeLocale(raw string) (string, error) {
	code := strings.ToLower(strings.TrimSpace(raw))
	if !locale.IsSupported(code) {
		return "", ErrInvalidLocale
	}
	return code, nil
}

// resolveStatus 校验状态值并返回 scheduled/published 对应的时间字段。
// 未提供状态时返回 draft。
func resolveStatus(raw string, publishAt *time.Time, now time.Time) (db.ContentStatus, *time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return db.StatusDraft, nil, nil
	}
	status, ok := db.ParseStatus(strings.TrimSpace(raw))
	if !ok {
		return "", nil, ErrInvalidStatus
	}
	if status == db.StatusScheduled {
		if publishAt == nil || !publishAt.After(now) {
			return "", nil, ErrPublishAtRequired
		}
		at := publishAt.UTC()
		return status, &at, nil
	}
	return status, nil, nil
}

// applyStatus 把状态写入三个字段：Status、PublishAt、PublishedAt。
func applyStatus(status db.ContentStatus, publishAt *time.Time, now time.Time, statusField *db.ContentStatus, publishAtField **time.Time, publishedAtField **time.Time) {
	*statusField = status
	switch status {
	case db.StatusScheduled:
		*publishAtField = publishAt
	case db.StatusPublished:
		*publishAtField = nil
		if publishedAtField != nil && *publishedAtField == nil {
			at := now.UTC()
			*publishedAtField = &at
		}
	default:
		*publishAtField = nil
	}
}

func normalizePagination(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func totalPages(total int64, perPage int) int {
	if total == 0 || perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// applyContentFilter 为带 status/locale/title 的内容表追加过滤条件。
func applyContentFilter(query *gorm.DB, filter ContentFilter) (*gorm.DB, error) {
	if status := strings.TrimSpace(filter.Status); status != "" {
		parsed, ok := db.ParseStatus(status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		query = query.Where("status = ?", parsed)
	}
	if code := strings.TrimSpace(filter.Locale); code != "" {
		normalized, err := normalizeLocale(code)
		if err != nil {
			return nil, err
		}
		query = query.Where("locale = ?", normalized)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("("+db.CaseInsensitiveLike(query, "title")+" OR "+db.CaseInsensitiveLike(query, "slug")+")", like, like)
	}
	return query, nil
}

// visibleScope 限定公开可见的内容：published，或 publish_at 已到的 scheduled。
func visibleScope(now time.Time) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where("(status = ? OR (status = ? AND publish_at IS NOT NULL AND publish_at <= ?))",
			db.StatusPublished, db.StatusScheduled, now.UTC())
	}
}

// isUniqueViolation 识别唯一约束冲突，兼容未开启 TranslateError 的连接。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// ensurePageInTenant 校验可选的页面引用属于同一租户。
func ensurePageInTenant(tx *gorm.DB, tenantID uint, pageID *uint) error {
	if pageID == nil {
		return nil
	}
	var count int64
	if err := tx.Model(&db.Page{}).Where("id = ? AND tenant_id = ?", *pageID, tenantID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPageReference
	}
	return nil
}
