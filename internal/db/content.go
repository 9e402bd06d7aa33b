package db

import (
	"time"

	"gorm.io/datatypes"
)

// BlogPost 为 Markdown 正文的博客文章。
type BlogPost struct {
	Model
	TenantID     uint                        `gorm:"not null;uniqueIndex:idx_blog_posts_tenant_slug_locale" json:"tenantId"`
	Slug         string                      `gorm:"size:160;not null;uniqueIndex:idx_blog_posts_tenant_slug_locale" json:"slug"`
	Locale       string                      `gorm:"size:8;not null;uniqueIndex:idx_blog_posts_tenant_slug_locale" json:"locale"`
	Title        string                      `gorm:"size:200;not null" json:"title"`
	Excerpt      string                      `gorm:"size:500" json:"excerpt"`
	Content      string                      `gorm:"type:text" json:"content"`
	CoverMediaID *uint                       `gorm:"index" json:"coverMediaId,omitempty"`
	AuthorID     *uint                       `json:"authorId,omitempty"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Status       ContentStatus               `gorm:"size:16;not null;default:draft;index" json:"status"`
	PublishAt    *time.Time                  `json:"publishAt,omitempty"`
	PublishedAt  *time.Time                  `json:"publishedAt,omitempty"`
	ReadingTime  int                         `gorm:"not null;default:0" json:"readingTime"`
}

// Visible 判断文章在 now 时刻是否公开。
func (p *BlogPost) Visible(now time.Time) bool {
	return IsVisible(p.Status, p.PublishAt, now)
}

// Service 描述对外提供的一项服务，可关联一个详情页面。
type Service struct {
	Model
	TenantID  uint          `gorm:"not null;uniqueIndex:idx_services_tenant_slug_locale" json:"tenantId"`
	Slug      string        `gorm:"size:160;not null;uniqueIndex:idx_services_tenant_slug_locale" json:"slug"`
	Locale    string        `gorm:"size:8;not null;uniqueIndex:idx_services_tenant_slug_locale" json:"locale"`
	Title     string        `gorm:"size:200;not null" json:"title"`
	Summary   string        `gorm:"size:500" json:"summary"`
	Icon      string        `gorm:"size:64" json:"icon"`
	SortOrder int           `gorm:"not null;default:0" json:"sortOrder"`
	PageID    *uint         `gorm:"index" json:"pageId,omitempty"`
	Status    ContentStatus `gorm:"size:16;not null;default:draft;index" json:"status"`
	PublishAt *time.Time    `json:"publishAt,omitempty"`
}

// Visible 判断服务在 now 时刻是否公开。
func (s *Service) Visible(now time.Time) bool {
	return IsVisible(s.Status, s.PublishAt, now)
}

// CaseMetric 为案例中展示的单个指标。
type CaseMetric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// CaseStudy 描述客户案例，可关联一个详情页面。
type CaseStudy struct {
	Model
	TenantID     uint                            `gorm:"not null;uniqueIndex:idx_case_studies_tenant_slug_locale" json:"tenantId"`
	Slug         string                          `gorm:"size:160;not null;uniqueIndex:idx_case_studies_tenant_slug_locale" json:"slug"`
	Locale       string                          `gorm:"size:8;not null;uniqueIndex:idx_case_studies_tenant_slug_locale" json:"locale"`
	Title        string                          `gorm:"size:200;not null" json:"title"`
	Client       string                          `gorm:"size:120" json:"client"`
	Industry     string                          `gorm:"size:120" json:"industry"`
	Summary      string                          `gorm:"size:1000" json:"summary"`
	CoverMediaID *uint                           `gorm:"index" json:"coverMediaId,omitempty"`
	Metrics      datatypes.JSONSlice[CaseMetric] `json:"metrics"`
	PageID       *uint                           `gorm:"index" json:"pageId,omitempty"`
	Status       ContentStatus                   `gorm:"size:16;not null;default:draft;index" json:"status"`
	PublishAt    *time.Time                      `json:"publishAt,omitempty"`
	PublishedAt  *time.Time                      `json:"publishedAt,omitempty"`
}

// TableName 保持复数表名可读。
func (CaseStudy) TableName() string {
	return "case_studies"
}

// Visible 判断案例在 now 时刻是否公开。
func (c *CaseStudy) Visible(now time.Time) bool {
	return IsVisible(c.Status, c.PublishAt, now)
}
