package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func respondErrorDetails(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, gin.H{"error": message, "details": details})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// idParam 解析路径中的 :id，失败时直接写入 400。
func idParam(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func contentFilterFromQuery(c *gin.Context) service.ContentFilter {
	return service.ContentFilter{
		Status:  strings.TrimSpace(c.Query("status")),
		Locale:  strings.TrimSpace(c.Query("locale")),
		Search:  strings.TrimSpace(c.Query("search")),
		Page:    parsePositiveInt(c.Query("page"), 1),
		PerPage: parsePositiveInt(c.Query("perPage"), 0),
	}
}

type statusRequest struct {
	Status    string     `json:"status"`
	PublishAt *time.Time `json:"publishAt"`
}

func (r statusRequest) toInput() service.StatusInput {
	return service.StatusInput{Status: r.Status, PublishAt: r.PublishAt}
}

type errorStatus struct {
	err    error
	status int
}

// serviceErrorStatuses 把领域错误映射到 HTTP 状态码，按顺序匹配。
var serviceErrorStatuses = []errorStatus{
	{service.ErrTenantNotFound, http.StatusNotFound},
	{service.ErrPageNotFound, http.StatusNotFound},
	{service.ErrBlogPostNotFound, http.StatusNotFound},
	{service.ErrOfferingNotFound, http.StatusNotFound},
	{service.ErrCaseStudyNotFound, http.StatusNotFound},
	{service.ErrMediaNotFound, http.StatusNotFound},
	{service.ErrSubmissionNotFound, http.StatusNotFound},
	{service.ErrFormNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrAPIKeyNotFound, http.StatusNotFound},

	{service.ErrSlugTaken, http.StatusConflict},
	{service.ErrUserEmailTaken, http.StatusConflict},
	{service.ErrLastOwner, http.StatusConflict},
	{service.ErrMediaInUse, http.StatusConflict},
	{service.ErrTenantExists, http.StatusConflict},

	{service.ErrRoleAboveOwn, http.StatusForbidden},
	{service.ErrPermissionAbove, http.StatusForbidden},
	{service.ErrOwnerRoleRestricted, http.StatusForbidden},
	{service.ErrCannotDeleteSelf, http.StatusForbidden},

	{service.ErrMediaTooLarge, http.StatusRequestEntityTooLarge},
	{service.ErrAINotConfigured, http.StatusServiceUnavailable},

	{service.ErrInvalidSlug, http.StatusBadRequest},
	{service.ErrInvalidLocale, http.StatusBadRequest},
	{service.ErrInvalidStatus, http.StatusBadRequest},
	{service.ErrTitleRequired, http.StatusBadRequest},
	{service.ErrPublishAtRequired, http.StatusBadRequest},
	{service.ErrPageReference, http.StatusBadRequest},
	{service.ErrMediaReference, http.StatusBadRequest},
	{service.ErrTooManyTags, http.StatusBadRequest},
	{service.ErrTooManyMetrics, http.StatusBadRequest},
	{service.ErrDuplicateTarget, http.StatusBadRequest},
	{service.ErrFormKeyInvalid, http.StatusBadRequest},
	{service.ErrSubmissionStatus, http.StatusBadRequest},
	{service.ErrMediaType, http.StatusBadRequest},
	{service.ErrMediaEmpty, http.StatusBadRequest},
	{service.ErrMediaUnsafeImage, http.StatusBadRequest},
	{service.ErrInvalidEmail, http.StatusBadRequest},
	{service.ErrPasswordTooShort, http.StatusBadRequest},
	{service.ErrInvalidRole, http.StatusBadRequest},
	{service.ErrAPIKeyNameEmpty, http.StatusBadRequest},
	{service.ErrInvalidPermission, http.StatusBadRequest},
	{service.ErrInvalidExpiry, http.StatusBadRequest},
	{service.ErrTOTPNotPending, http.StatusBadRequest},
	{service.ErrTOTPAlreadyEnabled, http.StatusBadRequest},
	{service.ErrTOTPNotEnabled, http.StatusBadRequest},
	{service.ErrInvalidTOTP, http.StatusBadRequest},
	{service.ErrInvalidView, http.StatusBadRequest},
	{service.ErrFormInvalid, http.StatusBadRequest},
	{service.ErrSettingInvalid, http.StatusBadRequest},

	{service.ErrAPIKeyRejected, http.StatusUnauthorized},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
}

// respondServiceError 将服务层错误转换为 JSON 响应；未知错误记录后返回 500。
func (a *API) respondServiceError(c *gin.Context, err error, fallback string) {
	var blockErr *blocks.ValidationError
	if errors.As(err, &blockErr) {
		respondErrorDetails(c, http.StatusBadRequest, "invalid blocks", blockErr.Errors)
		return
	}
	var formErr *service.FormValidationError
	if errors.As(err, &formErr) {
		respondErrorDetails(c, http.StatusBadRequest, "invalid form submission", formErr.Fields)
		return
	}
	var settingErr *service.SettingError
	if errors.As(err, &settingErr) {
		respondErrorDetails(c, http.StatusBadRequest, "invalid setting", gin.H{settingErr.Key: settingErr.Reason})
		return
	}
	if errors.Is(err, blocks.ErrInvalid) {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, candidate := range serviceErrorStatuses {
		if errors.Is(err, candidate.err) {
			respondError(c, candidate.status, candidate.err.Error())
			return
		}
	}

	c.Error(err)
	a.logger.WithError(err).WithField("path", c.FullPath()).Error(fallback)
	respondError(c, http.StatusInternalServerError, fallback)
}
