package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxOverviewPaths = 50

// AnalyticsOverview 返回访问量、热门路径与内容状态统计。
func (a *API) AnalyticsOverview(c *gin.Context) {
	limit := parsePositiveInt(c.Query("limit"), 10)
	if limit > maxOverviewPaths {
		limit = maxOverviewPaths
	}
	overview, err := a.analytics.Overview(tenantIDOf(c), limit)
	if err != nil {
		a.respondServiceError(c, err, "failed to load analytics")
		return
	}
	c.JSON(http.StatusOK, gin.H{"overview": overview})
}
