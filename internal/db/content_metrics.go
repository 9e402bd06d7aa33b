package db

import "time"

// ContentStatistic 汇总公开路径的 PV/UV。
type ContentStatistic struct {
	ID             uint      `gorm:"primaryKey"`
	TenantID       uint      `gorm:"not null;uniqueIndex:idx_content_stat_tenant_path"`
	Path           string    `gorm:"size:300;not null;uniqueIndex:idx_content_stat_tenant_path"`
	PageViews      uint64    `gorm:"default:0"`
	UniqueVisitors uint64    `gorm:"default:0"`
	LastViewedAt   time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName 指定自定义表名。
func (ContentStatistic) TableName() string {
	return "content_statistics"
}

// ContentVisit 记录访客对路径的访问，用于 UV 去重。
type ContentVisit struct {
	ID           uint      `gorm:"primaryKey"`
	TenantID     uint      `gorm:"not null;uniqueIndex:idx_content_visit"`
	Path         string    `gorm:"size:300;not null;uniqueIndex:idx_content_visit"`
	VisitorID    string    `gorm:"size:64;not null;uniqueIndex:idx_content_visit"`
	LastViewedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 指定自定义表名。
func (ContentVisit) TableName() string {
	return "content_visits"
}
