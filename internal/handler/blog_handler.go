package handler

import (
	"net/http"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type blogPostRequest struct {
	Slug         string     `json:"slug"`
	Locale       string     `json:"locale"`
	Title        string     `json:"title"`
	Excerpt      string     `json:"excerpt"`
	Content      string     `json:"content"`
	CoverMediaID *uint      `json:"coverMediaId"`
	Tags         []string   `json:"tags"`
	Status       string     `json:"status"`
	PublishAt    *time.Time `json:"publishAt"`
}

func (r blogPostRequest) toInput() service.BlogPostInput {
	return service.BlogPostInput{
		Slug:         r.Slug,
		Locale:       r.Locale,
		Title:        r.Title,
		Excerpt:      r.Excerpt,
		Content:      r.Content,
		CoverMediaID: r.CoverMediaID,
		Tags:         r.Tags,
		Status:       r.Status,
		PublishAt:    r.PublishAt,
	}
}

// ListBlogPosts 分页列出文章，支持状态、语言与关键字筛选。
func (a *API) ListBlogPosts(c *gin.Context) {
	result, err := a.posts.List(tenantIDOf(c), contentFilterFromQuery(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to list posts")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":      result.Posts,
		"total":      result.Total,
		"page":       result.Page,
		"perPage":    result.PerPage,
		"totalPages": result.TotalPages,
	})
}

func (a *API) GetBlogPost(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	post, err := a.posts.Get(tenantIDOf(c), id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// CreateBlogPost 新建文章，会话用户自动记为作者。
func (a *API) CreateBlogPost(c *gin.Context) {
	var payload blogPostRequest
	if !bindJSON(c, &payload, "invalid post payload") {
		return
	}
	input := payload.toInput()
	if principal, ok := currentPrincipal(c); ok && principal.IsUser() {
		authorID := principal.UserID
		input.AuthorID = &authorID
	}
	post, err := a.posts.Create(tenantIDOf(c), input)
	if err != nil {
		a.respondServiceError(c, err, "failed to create post")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

func (a *API) UpdateBlogPost(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload blogPostRequest
	if !bindJSON(c, &payload, "invalid post payload") {
		return
	}
	post, err := a.posts.Update(tenantIDOf(c), id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (a *API) SetBlogPostStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload statusRequest
	if !bindJSON(c, &payload, "invalid status payload") {
		return
	}
	post, err := a.posts.SetStatus(tenantIDOf(c), id, payload.toInput())
	if err != nil {
		a.respondServiceError(c, err, "failed to update status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (a *API) DeleteBlogPost(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := a.posts.Delete(tenantIDOf(c), id); err != nil {
		a.respondServiceError(c, err, "failed to delete post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

// SummarizeBlogPost 调用模型为文章生成摘要，未配置时返回 503。
func (a *API) SummarizeBlogPost(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	post, err := a.posts.Get(tenantIDOf(c), id)
	if err != nil {
		a.respondServiceError(c, err, "failed to load post")
		return
	}
	result, err := a.summaries.Summarize(c.Request.Context(), service.SummaryInput{
		Title:    post.Title,
		Content:  post.Content,
		Language: post.Locale,
	})
	if err != nil {
		a.respondServiceError(c, err, "failed to generate summary")
		return
	}
	c.JSON(http.StatusOK, result)
}
