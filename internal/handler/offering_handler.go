package handler

import (
	"net/http"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type offeringRequest struct {
	Slug      string     `json:"slug"`
	Locale    string     `json:"locale"`
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	Icon      string     `json:"icon"`
	SortOrder int        `json:"sortOrder"`
	PageID    *uint      `json:"pageId"`
	Status    string     `json:"status"`
	PublishAt *time.Time `json:"publishAt"`
}

func (r offeringRequest) toInput() service.OfferingInput {
	return service.OfferingInput{
		Slug:      r.Slug,
		Locale:    r.Locale,
		Title:     r.Title,
		Summary:   r.Summary,
		Icon:      r.Icon,
		SortOrder: r.SortOrder,
		PageID:    r.PageID,
		Status:    r.Status,
		PublishAt: r.PublishAt,
	}
}

// ListOfferings 按排序值列出服务条目。
func (a *API) ListOfferings(c *gin.Context) {
	items, err := a.offerings.List(tenantIDOf(c), contentFilterFromQuery(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to list services")
		return
	}
	if items == nil {
		items = []db.Service{}
	}
	c.JSON(http.StatusOK, gin.H{"services": items})
}

func (a *API) GetOffering(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	item, err := a.offerings.Get(tenantIDOf(c), id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": item})
}

func (a *API) CreateOffering(c *gin.Context) {
	var payload offeringRequest
	if !bindJSON(c, &payload, "invalid service payload") {
		return
	}
	item, err := a.offerings.Create(tenantIDOf(c), payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to create service")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"service": item})
}

func (a *API) UpdateOffering(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload offeringRequest
	if !bindJSON(c, &payload, "invalid service payload") {
		return
	}
	item, err := a.offerings.Update(tenantIDOf(c), id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"service": item})
}

func (a *API) DeleteOffering(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.offerings.Delete(tenantIDOf(c), id); err != nil {
		a.respondServiceError(c, err, "failed to delete service")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "service deleted"})
}
