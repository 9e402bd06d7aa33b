package handler

import (
	"errors"
	"net/http"

	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const adminRecentSubmissions = 5

var submissionStatuses = []string{db.SubmissionStatusNew, db.SubmissionStatusRead, db.SubmissionStatusArchived}

// ShowLoginPage 渲染后台登录页，已登录时直接进入面板。
func (a *API) ShowLoginPage(c *gin.Context) {
	if principal, ok := currentPrincipal(c); ok && principal.IsUser() {
		c.Redirect(http.StatusFound, "/admin")
		return
	}
	a.renderAdmin(c, http.StatusOK, "admin/login", gin.H{"title": "Sign in"})
}

// SubmitLogin 处理登录表单，失败时带着错误信息重新渲染。
func (a *API) SubmitLogin(c *gin.Context) {
	payload := loginRequest{
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
		Code:     c.PostForm("code"),
	}
	user, status, message := a.authenticateUser(c, payload)
	if user == nil {
		a.renderAdmin(c, status, "admin/login", gin.H{
			"title": "Sign in",
			"error": message,
			"email": payload.Email,
		})
		return
	}
	c.Redirect(http.StatusFound, "/admin")
}

// SubmitLogout 清除会话后回到登录页。
func (a *API) SubmitLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.Redirect(http.StatusFound, "/admin/login")
}

// ShowDashboard 渲染概览：访问统计、内容状态与最近的表单提交。
func (a *API) ShowDashboard(c *gin.Context) {
	tenantID := tenantIDOf(c)
	overview, err := a.analytics.Overview(tenantID, 10)
	if err != nil {
		a.adminError(c, err)
		return
	}
	recent, err := a.forms.Recent(tenantID, adminRecentSubmissions)
	if err != nil {
		a.adminError(c, err)
		return
	}
	a.renderAdmin(c, http.StatusOK, "admin/dashboard", gin.H{
		"title":    "Dashboard",
		"nav":      "dashboard",
		"overview": overview,
		"statuses": db.ContentStatuses,
		"recent":   recent,
	})
}

// ShowPages 渲染页面列表与新建表单。
func (a *API) ShowPages(c *gin.Context) {
	filter := contentFilterFromQuery(c)
	result, err := a.pages.List(tenantIDOf(c), filter)
	if err != nil {
		if isBadRequest(err) {
			filter = service.ContentFilter{Page: 1}
			result, err = a.pages.List(tenantIDOf(c), filter)
		}
		if err != nil {
			a.adminError(c, err)
			return
		}
	}
	a.renderAdmin(c, http.StatusOK, "admin/pages", gin.H{
		"title":      "Pages",
		"nav":        "pages",
		"filter":     filter,
		"locales":    locale.Supported,
		"statuses":   db.ContentStatuses,
		"pages":      result.Pages,
		"page":       result.Page,
		"totalPages": result.TotalPages,
	})
}

// ShowPageEditor 渲染区块编辑器，编辑操作通过 JSON API 完成。
func (a *API) ShowPageEditor(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		c.Redirect(http.StatusFound, "/admin/pages")
		return
	}
	page, err := a.pages.Get(tenantIDOf(c), id)
	if err != nil {
		if errors.Is(err, service.ErrPageNotFound) {
			c.Redirect(http.StatusFound, "/admin/pages")
			return
		}
		a.adminError(c, err)
		return
	}
	a.renderAdmin(c, http.StatusOK, "admin/page_edit", gin.H{
		"title":      page.Title,
		"nav":        "pages",
		"page":       page,
		"locales":    locale.Supported,
		"statuses":   db.ContentStatuses,
		"blockTypes": blocks.Types(),
	})
}

// ShowForms 渲染表单提交收件箱。
func (a *API) ShowForms(c *gin.Context) {
	filter := submissionFilterFromQuery(c)
	result, err := a.forms.List(tenantIDOf(c), filter)
	if err != nil {
		if isBadRequest(err) {
			filter = service.SubmissionFilter{Page: 1}
			result, err = a.forms.List(tenantIDOf(c), filter)
		}
		if err != nil {
			a.adminError(c, err)
			return
		}
	}
	a.renderAdmin(c, http.StatusOK, "admin/forms", gin.H{
		"title":              "Form submissions",
		"nav":                "forms",
		"filter":             filter,
		"submissionStatuses": submissionStatuses,
		"submissions":        result.Submissions,
		"page":               result.Page,
		"totalPages":         result.TotalPages,
	})
}

func (a *API) adminError(c *gin.Context, err error) {
	c.Error(err)
	a.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("admin page failed")
	c.String(http.StatusInternalServerError, "internal server error")
}

// isBadRequest 判断错误是否来自无效的筛选参数。
func isBadRequest(err error) bool {
	for _, candidate := range serviceErrorStatuses {
		if errors.Is(err, candidate.err) {
			return candidate.status == http.StatusBadRequest
		}
	}
	return false
}
