package service

import (
	"errors"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidView 表示缺少访客或路径。
var ErrInvalidView = errors.New("invalid visitor or path")

const maxTrackedPathLength = 300

// AnalyticsService 负责公开页面的 PV/UV 统计与后台概览。
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService 创建 AnalyticsService。
func NewAnalyticsService(gdb *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: gdb}
}

// RecordView 记录访客对路径的一次浏览，PV 总是累加，UV 按访客去重。
func (s *AnalyticsService) RecordView(tenantID uint, path, visitorID string, now time.Time) (*db.ContentStatistic, error) {
	path = strings.TrimSpace(path)
	if visitorID == "" || path == "" || tenantID == 0 {
		return nil, ErrInvalidView
	}
	path = truncate(path, maxTrackedPathLength)

	var stats db.ContentStatistic

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		visit := db.ContentVisit{
			TenantID:     tenantID,
			Path:         path,
			VisitorID:    visitorID,
			LastViewedAt: now,
		}
		insert := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "path"}, {Name: "visitor_id"}},
			DoNothing: true,
		}).Create(&visit)
		if insert.Error != nil {
			return insert.Error
		}

		isNewVisitor := insert.RowsAffected == 1
		if !isNewVisitor {
			if err := tx.Model(&db.ContentVisit{}).
				Where("tenant_id = ? AND path = ? AND visitor_id = ?", tenantID, path, visitorID).
				UpdateColumn("last_viewed_at", now).Error; err != nil {
				return err
			}
		}

		statsResult := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND path = ?", tenantID, path).
			First(&stats)

		switch {
		case errors.Is(statsResult.Error, gorm.ErrRecordNotFound):
			stats = db.ContentStatistic{TenantID: tenantID, Path: path}
			if err := tx.Create(&stats).Error; err != nil {
				return err
			}
		case statsResult.Error != nil:
			return statsResult.Error
		}

		stats.PageViews++
		if isNewVisitor {
			stats.UniqueVisitors++
		}
		stats.LastViewedAt = now

		return tx.Save(&stats).Error
	}); err != nil {
		return nil, err
	}

	return &stats, nil
}

// Overview 汇总租户的访问、内容状态与表单收件箱。
type Overview struct {
	TotalPageViews      uint64                                 `json:"totalPageViews"`
	TotalUniqueVisitors uint64                                 `json:"totalUniqueVisitors"`
	TopPaths            []PathStat                             `json:"topPaths"`
	Content             map[string]map[db.ContentStatus]int64 `json:"content"`
	NewSubmissions      int64                                  `json:"newSubmissions"`
	TotalSubmissions    int64                                  `json:"totalSubmissions"`
}

// PathStat 描述热门路径的统计信息。
type PathStat struct {
	Path           string    `json:"path"`
	PageViews      uint64    `json:"pageViews"`
	UniqueVisitors uint64    `json:"uniqueVisitors"`
	LastViewedAt   time.Time `json:"lastViewedAt"`
}

// Overview 返回租户级概览，limit 控制热门路径数量。
func (s *AnalyticsService) Overview(tenantID uint, limit int) (Overview, error) {
	if limit <= 0 {
		limit = 5
	}

	overview := Overview{Content: make(map[string]map[db.ContentStatus]int64)}

	var totals struct {
		PageViews uint64
	}
	if err := s.db.Model(&db.ContentStatistic{}).
		Select("COALESCE(SUM(page_views), 0) AS page_views").
		Where("tenant_id = ?", tenantID).
		Scan(&totals).Error; err != nil {
		return overview, err
	}
	overview.TotalPageViews = totals.PageViews

	var uniqueVisitors int64
	if err := s.db.Model(&db.ContentVisit{}).
		Where("tenant_id = ?", tenantID).
		Distinct("visitor_id").
		Count(&uniqueVisitors).Error; err != nil {
		return overview, err
	}
	overview.TotalUniqueVisitors = uint64(uniqueVisitors)

	var top []PathStat
	if err := s.db.Model(&db.ContentStatistic{}).
		Select("path, page_views, unique_visitors, last_viewed_at").
		Where("tenant_id = ?", tenantID).
		Order("page_views DESC, path ASC").
		Limit(limit).
		Scan(&top).Error; err != nil {
		return overview, err
	}
	overview.TopPaths = top

	models := map[string]interface{}{
		"pages":       &db.Page{},
		"blogPosts":   &db.BlogPost{},
		"services":    &db.Service{},
		"caseStudies": &db.CaseStudy{},
	}
	for name, model := range models {
		counts, err := countByStatus(s.db, model, tenantID)
		if err != nil {
			return overview, err
		}
		overview.Content[name] = counts
	}

	if err := s.db.Model(&db.FormSubmission{}).
		Where("tenant_id = ? AND status = ?", tenantID, db.SubmissionStatusNew).
		Count(&overview.NewSubmissions).Error; err != nil {
		return overview, err
	}
	if err := s.db.Model(&db.FormSubmission{}).
		Where("tenant_id = ?", tenantID).
		Count(&overview.TotalSubmissions).Error; err != nil {
		return overview, err
	}

	return overview, nil
}
