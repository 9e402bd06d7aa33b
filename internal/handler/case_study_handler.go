package handler

import (
	"net/http"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type caseStudyRequest struct {
	Slug         string          `json:"slug"`
	Locale       string          `json:"locale"`
	Title        string          `json:"title"`
	Client       string          `json:"client"`
	Industry     string          `json:"industry"`
	Summary      string          `json:"summary"`
	CoverMediaID *uint           `json:"coverMediaId"`
	Metrics      []db.CaseMetric `json:"metrics"`
	PageID       *uint           `json:"pageId"`
	Status       string          `json:"status"`
	PublishAt    *time.Time      `json:"publishAt"`
}

func (r caseStudyRequest) toInput() service.CaseStudyInput {
	return service.CaseStudyInput{
		Slug:         r.Slug,
		Locale:       r.Locale,
		Title:        r.Title,
		Client:       r.Client,
		Industry:     r.Industry,
		Summary:      r.Summary,
		CoverMediaID: r.CoverMediaID,
		Metrics:      r.Metrics,
		PageID:       r.PageID,
		Status:       r.Status,
		PublishAt:    r.PublishAt,
	}
}

// ListCaseStudies 分页列出客户案例。
func (a *API) ListCaseStudies(c *gin.Context) {
	result, err := a.caseStudies.List(tenantIDOf(c), contentFilterFromQuery(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to list case studies")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"caseStudies": result.CaseStudies,
		"total":       result.Total,
		"page":        result.Page,
		"perPage":     result.PerPage,
		"totalPages":  result.TotalPages,
	})
}

func (a *API) GetCaseStudy(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	item, err := a.caseStudies.Get(tenantIDOf(c), id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load case study")
		return
	}
	c.JSON(http.StatusOK, gin.H{"caseStudy": item})
}

func (a *API) CreateCaseStudy(c *gin.Context) {
	var payload caseStudyRequest
	if !bindJSON(c, &payload, "invalid case study payload") {
		return
	}
	item, err := a.caseStudies.Create(tenantIDOf(c), payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to create case study")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"caseStudy": item})
}

func (a *API) UpdateCaseStudy(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload caseStudyRequest
	if !bindJSON(c, &payload, "invalid case study payload") {
		return
	}
	item, err := a.caseStudies.Update(tenantIDOf(c), id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update case study")
		return
	}
	c.JSON(http.StatusOK, gin.H{"caseStudy": item})
}

func (a *API) SetCaseStudyStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload statusRequest
	if !bindJSON(c, &payload, "invalid status payload") {
		return
	}
	item, err := a.caseStudies.SetStatus(tenantIDOf(c), id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"caseStudy": item})
}

func (a *API) DeleteCaseStudy(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.caseStudies.Delete(tenantIDOf(c), id); err != nil {
		a.respondServiceError(c, err, "failed to delete case study")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "case study deleted"})
}
