package db

import "time"

// Model 替代 gorm.Model：不含 DeletedAt，删除即物理删除，唯一索引可复用。
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContentStatus 表示内容的发布状态。
type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusInReview  ContentStatus = "inReview"
	StatusScheduled ContentStatus = "scheduled"
	StatusPublished ContentStatus = "published"
)

// ContentStatuses 按生命周期顺序列出所有状态。
var ContentStatuses = []ContentStatus{StatusDraft, StatusInReview, StatusScheduled, StatusPublished}

// Valid 判断状态是否属于枚举。
func (s ContentStatus) Valid() bool {
	for _, candidate := range ContentStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ParseStatus 严格匹配状态值，大小写敏感。
func ParseStatus(raw string) (ContentStatus, bool) {
	status := ContentStatus(raw)
	return status, status.Valid()
}

// IsVisible 判断内容在 now 时刻是否对公众可见。
// scheduled 内容在 publishAt 到达后即视为已发布。
func IsVisible(status ContentStatus, publishAt *time.Time, now time.Time) bool {
	switch status {
	case StatusPublished:
		return true
	case StatusScheduled:
		return publishAt != nil && !publishAt.After(now)
	default:
		return false
	}
}
