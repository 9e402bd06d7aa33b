package handler

import (
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
)

// AnalyticsProvider 抽象访问统计，测试中可以替换为内存实现。
type AnalyticsProvider interface {
	RecordView(tenantID uint, path, visitorID string, now time.Time) (*db.ContentStatistic, error)
	Overview(tenantID uint, limit int) (service.Overview, error)
}

var _ AnalyticsProvider = (*service.AnalyticsService)(nil)
