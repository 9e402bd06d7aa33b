package handler

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type submissionRequest struct {
	FormKey string                 `json:"formKey"`
	Locale  string                 `json:"locale"`
	PageID  *uint                  `json:"pageId"`
	Data    map[string]interface{} `json:"data"`
}

type submissionStatusRequest struct {
	Status string `json:"status"`
}

// SubmitForm 处理公开表单提交：先限流，再校验保存。
// 命中蜜罐的请求返回 202，不写入数据库。
func (a *API) SubmitForm(c *gin.Context) {
	tenantID := tenantIDOf(c)
	key := "form:" + strconv.FormatUint(uint64(tenantID), 10) + ":" + c.ClientIP()
	allowed, retryAfter, err := a.limiter.Allow(c.Request.Context(), key)
	if err != nil {
		a.logger.WithError(err).Warn("rate limiter unavailable, allowing request")
	} else if !allowed {
		seconds := int(math.Ceil(retryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		respondError(c, http.StatusTooManyRequests, "too many submissions, please try again later")
		return
	}

	var payload submissionRequest
	if !bindJSON(c, &payload, "invalid submission payload") {
		return
	}
	if payload.Data == nil {
		payload.Data = map[string]interface{}{}
	}

	result, err := a.forms.Submit(c.Request.Context(), tenantID, service.SubmissionInput{
		FormKey:   payload.FormKey,
		Locale:    payload.Locale,
		PageID:    payload.PageID,
		Data:      payload.Data,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to save submission")
		return
	}
	if result.Discarded {
		c.JSON(http.StatusAccepted, gin.H{"message": "submission received"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": result.Submission.ID, "message": "submission received"})
}

func submissionFilterFromQuery(c *gin.Context) service.SubmissionFilter {
	return service.SubmissionFilter{
		FormKey: strings.TrimSpace(c.Query("formKey")),
		Status:  strings.TrimSpace(c.Query("status")),
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("perPage"), 0),
	}
}

// ListSubmissions 分页列出表单提交。
func (a *API) ListSubmissions(c *gin.Context) {
	result, err := a.forms.List(tenantIDOf(c), submissionFilterFromQuery(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to list submissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submissions": result.Submissions,
		"total":       result.Total,
		"page":        result.Page,
		"perPage":     result.PerPage,
		"totalPages":  result.TotalPages,
	})
}

func (a *API) GetSubmission(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	submission, err := a.forms.Get(tenantIDOf(c), id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load submission")
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": submission})
}

// UpdateSubmission 修改提交的处理状态（new/read/archived）。
func (a *API) UpdateSubmission(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload submissionStatusRequest
	if !bindJSON(c, &payload, "invalid submission payload") {
		return
	}
	submission, err := a.forms.UpdateStatus(tenantIDOf(c), id, payload.Status)
	if err != nil {
		a.respondServiceError(c, err, "failed to update submission")
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": submission})
}

func (a *API) DeleteSubmission(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.forms.Delete(tenantIDOf(c), id); err != nil {
		a.respondServiceError(c, err, "failed to delete submission")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "submission deleted"})
}

// ExportSubmissions 以 CSV 附件形式导出筛选后的全部提交。
func (a *API) ExportSubmissions(c *gin.Context) {
	filter := submissionFilterFromQuery(c)
	var buf bytes.Buffer
	if err := a.forms.ExportCSV(tenantIDOf(c), filter, &buf); err != nil {
		a.respondServiceError(c, err, "failed to export submissions")
		return
	}
	name := "submissions"
	if filter.FormKey != "" {
		name += "-" + filter.FormKey
	}
	name += "-" + a.now().Format("20060102") + ".csv"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
