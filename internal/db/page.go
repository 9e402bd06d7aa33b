package db

import (
	"time"

	"gorm.io/datatypes"
)

// Page 是由有序区块组成的营销页面，slug+locale 在租户内唯一。
type Page struct {
	Model
	TenantID    uint          `gorm:"not null;uniqueIndex:idx_pages_tenant_slug_locale" json:"tenantId"`
	Slug        string        `gorm:"size:160;not null;uniqueIndex:idx_pages_tenant_slug_locale" json:"slug"`
	Locale      string        `gorm:"size:8;not null;uniqueIndex:idx_pages_tenant_slug_locale" json:"locale"`
	Title       string        `gorm:"size:200;not null" json:"title"`
	Description string        `gorm:"size:500" json:"description"`
	Status      ContentStatus `gorm:"size:16;not null;default:draft;index" json:"status"`
	PublishAt   *time.Time    `json:"publishAt,omitempty"`
	PublishedAt *time.Time    `json:"publishedAt,omitempty"`
	Blocks      []Block       `gorm:"constraint:OnDelete:CASCADE;" json:"blocks,omitempty"`
}

// Block 是页面中的一个类型化内容单元，Data 为经过校验与清洗的 JSON。
type Block struct {
	Model
	PageID uint           `gorm:"not null;index:idx_blocks_page_order" json:"pageId"`
	Type   string         `gorm:"size:32;not null" json:"type"`
	Data   datatypes.JSON `json:"data"`
	Order  int            `gorm:"column:sort_order;not null;index:idx_blocks_page_order" json:"order"`
}

// Visible 判断页面在 now 时刻是否公开。
func (p *Page) Visible(now time.Time) bool {
	return IsVisible(p.Status, p.PublishAt, now)
}
