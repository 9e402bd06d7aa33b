package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/blocks"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type pageRequest struct {
	Slug        string         `json:"slug"`
	Locale      string         `json:"locale"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	PublishAt   *time.Time     `json:"publishAt"`
	Blocks      []blocks.Input `json:"blocks"`
}

func (r pageRequest) toInput() service.PageInput {
	return service.PageInput{
		Slug:        r.Slug,
		Locale:      r.Locale,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		PublishAt:   r.PublishAt,
		Blocks:      r.Blocks,
	}
}

type blocksRequest struct {
	Blocks []blocks.Input `json:"blocks"`
}

type duplicateRequest struct {
	Locale string `json:"locale"`
	Slug   string `json:"slug"`
}

// ListPages 分页返回页面列表，不含区块。
func (a *API) ListPages(c *gin.Context) {
	result, err := a.pages.List(tenantIDOf(c), contentFilterFromQuery(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to list pages")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pages":      result.Pages,
		"total":      result.Total,
		"page":       result.Page,
		"perPage":    result.PerPage,
		"totalPages": result.TotalPages,
	})
}

// GetPage 返回页面及其有序区块。
func (a *API) GetPage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	page, err := a.pages.Get(tenantIDOf(c), id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load page")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// CreatePage 新建页面，可同时提交区块。
func (a *API) CreatePage(c *gin.Context) {
	var payload pageRequest
	if !bindJSON(c, &payload, "invalid page payload") {
		return
	}
	page, err := a.pages.Create(tenantIDOf(c), payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to create page")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page": page})
}

// UpdatePage 修改页面元数据；请求中带 blocks 时一并替换区块。
func (a *API) UpdatePage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload pageRequest
	if !bindJSON(c, &payload, "invalid page payload") {
		return
	}
	page, err := a.pages.Update(tenantIDOf(c), id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update page")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// ReplacePageBlocks 在事务中整体替换页面区块。
func (a *API) ReplacePageBlocks(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload blocksRequest
	if !bindJSON(c, &payload, "invalid blocks payload") {
		return
	}
	if payload.Blocks == nil {
		payload.Blocks = []blocks.Input{}
	}
	page, err := a.pages.ReplaceBlocks(tenantIDOf(c), id, payload.Blocks)
	if err != nil {
		a.respondServiceError(c, err, "failed to save blocks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// DeletePage 删除页面及其区块。
func (a *API) DeletePage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.pages.Delete(tenantIDOf(c), id); err != nil {
		a.respondServiceError(c, err, "failed to delete page")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "page deleted"})
}

// DuplicatePage 将页面复制到另一种语言，新页面为草稿。
func (a *API) DuplicatePage(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload duplicateRequest
	if !bindJSON(c, &payload, "invalid duplicate payload") {
		return
	}
	page, err := a.pages.Duplicate(tenantIDOf(c), id, payload.Locale, payload.Slug)
	if err != nil {
		a.respondServiceError(c, err, "failed to duplicate page")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"page": page})
}

// SetPageStatus 变更页面发布状态。
func (a *API) SetPageStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload statusRequest
	if !bindJSON(c, &payload, "invalid status payload") {
		return
	}
	page, err := a.pages.SetStatus(tenantIDOf(c), id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// CreatePreviewToken 为页面签发预览令牌，持有者可查看未发布内容。
func (a *API) CreatePreviewToken(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	tenantID := tenantIDOf(c)
	page, err := a.pages.Get(tenantID, id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load page")
		return
	}
	token, expires, err := auth.GeneratePreviewToken(a.previewSecret, tenantID, page.ID, a.previewTTL, a.now())
	if err != nil {
		a.respondServiceError(c, err, "failed to sign preview token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expires,
		"url":       a.baseURL + pagePath(page.Locale, page.Slug) + "?preview=" + url.QueryEscape(token),
	})
}

// SuggestPageDescription 根据页面文字生成 meta 描述建议。
func (a *API) SuggestPageDescription(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	page, err := a.pages.Get(tenantIDOf(c), id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load page")
		return
	}
	result, err := a.summaries.Summarize(c.Request.Context(), service.SummaryInput{
		Title:    page.Title,
		Content:  pageText(page.Blocks),
		Language: page.Locale,
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to generate description")
		return
	}
	c.JSON(http.StatusOK, gin.H{"description": result.Summary, "usage": result})
}

// ListBlockTypes 返回区块类型目录，供编辑器使用。
func (a *API) ListBlockTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": blocks.Types(), "maxPerPage": blocks.MaxPerPage})
}

// pagePath 返回页面的公开路径，home 对应语言根路径。
func pagePath(locale, slug string) string {
	if slug == service.HomeSlug {
		return "/" + locale + "/"
	}
	return "/" + locale + "/" + slug
}

// pageText 提取区块中的可读文字，供摘要使用。
func pageText(list []db.Block) string {
	var parts []string
	for _, block := range list {
		payload, err := blocks.Decode(block.Type, block.Data)
		if err != nil {
			continue
		}
		switch b := payload.(type) {
		case *blocks.Hero:
			parts = append(parts, b.Heading, b.Subheading)
		case *blocks.RichText:
			parts = append(parts, b.Markdown)
		case *blocks.FeatureGrid:
			parts = append(parts, b.Heading, b.Intro)
			for _, item := range b.Items {
				parts = append(parts, item.Title+": "+item.Body)
			}
		case *blocks.CTA:
			parts = append(parts, b.Heading, b.Body)
		case *blocks.FAQ:
			for _, item := range b.Items {
				parts = append(parts, item.Question, item.Answer)
			}
		case *blocks.Testimonial:
			parts = append(parts, b.Quote)
		}
	}
	nonEmpty := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			nonEmpty = append(nonEmpty, trimmed)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
