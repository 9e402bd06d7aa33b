package publicapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/markdown"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/danielgtaylor/huma/v2"
)

const (
	defaultBlogPerPage = 10
	maxBlogPerPage     = 50
)

// BlockView 是区块的公开表示，data 为已校验清洗后的负载。
type BlockView struct {
	Type string         `json:"type" doc:"Block variant"`
	Data map[string]any `json:"data"`
}

// PageView 是页面的公开表示。
type PageView struct {
	ID           uint              `json:"id"`
	Slug         string            `json:"slug"`
	Locale       string            `json:"locale"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	PublishedAt  *time.Time        `json:"publishedAt,omitempty"`
	Blocks       []BlockView       `json:"blocks"`
	Translations map[string]string `json:"translations,omitempty" doc:"Slug of the same page per locale"`
}

// MediaView 描述封面图片。
type MediaView struct {
	URL    string `json:"url"`
	Alt    string `json:"alt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// PostSummary 用于文章列表。
type PostSummary struct {
	ID          uint       `json:"id"`
	Slug        string     `json:"slug"`
	Locale      string     `json:"locale"`
	Title       string     `json:"title"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Tags        []string   `json:"tags"`
	ReadingTime int        `json:"readingTime"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// PostView 额外包含 Markdown 原文与渲染后的 HTML。
type PostView struct {
	PostSummary
	Content string     `json:"content"`
	HTML    string     `json:"html"`
	Cover   *MediaView `json:"cover,omitempty"`
}

// ServiceView 是服务条目的公开表示。
type ServiceView struct {
	Slug      string `json:"slug"`
	Locale    string `json:"locale"`
	Title     string `json:"title"`
	Summary   string `json:"summary,omitempty"`
	Icon      string `json:"icon,omitempty"`
	SortOrder int    `json:"sortOrder"`
	PageSlug  string `json:"pageSlug,omitempty" doc:"Slug of the linked page when it is published"`
}

// CaseStudyView 是客户案例的公开表示。
type CaseStudyView struct {
	Slug     string          `json:"slug"`
	Locale   string          `json:"locale"`
	Title    string          `json:"title"`
	Client   string          `json:"client,omitempty"`
	Industry string          `json:"industry,omitempty"`
	Summary  string          `json:"summary,omitempty"`
	Metrics  []db.CaseMetric `json:"metrics"`
	Cover    *MediaView      `json:"cover,omitempty"`
	PageSlug string          `json:"pageSlug,omitempty"`
}

type localeInput struct {
	Locale string `path:"locale" doc:"Content locale (en, de or fr)"`
}

type slugInput struct {
	Locale string `path:"locale" doc:"Content locale (en, de or fr)"`
	Slug   string `path:"slug"`
}

type blogListInput struct {
	Locale  string `path:"locale" doc:"Content locale (en, de or fr)"`
	Page    int    `query:"page" default:"1" doc:"1-based page number"`
	PerPage int    `query:"perPage" default:"10" doc:"Items per page, at most 50"`
}

type pageOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         struct {
		Page PageView `json:"page"`
	}
}

type blogListOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         struct {
		Posts      []PostSummary `json:"posts"`
		Total      int64         `json:"total"`
		Page       int           `json:"page"`
		PerPage    int           `json:"perPage"`
		TotalPages int           `json:"totalPages"`
	}
}

type blogPostOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         struct {
		Post PostView `json:"post"`
	}
}

type servicesOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         struct {
		Services []ServiceView `json:"services"`
	}
}

type caseStudiesOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         struct {
		CaseStudies []CaseStudyView `json:"caseStudies"`
	}
}

type caseStudyOutput struct {
	CacheControl string `header:"Cache-Control"`
	Body         struct {
		CaseStudy CaseStudyView `json:"caseStudy"`
	}
}

func (s *Server) registerRoutes() {
	tags := []string{"content"}
	errs := []int{http.StatusBadRequest, http.StatusNotFound}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-page",
		Method:      http.MethodGet,
		Path:        "/{locale}/pages/{slug}",
		Summary:     "Get a published page with its blocks",
		Tags:        tags,
		Errors:      errs,
	}, s.getPage)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-blog-posts",
		Method:      http.MethodGet,
		Path:        "/{locale}/blog",
		Summary:     "List published blog posts",
		Tags:        tags,
		Errors:      errs,
	}, s.listPosts)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-blog-post",
		Method:      http.MethodGet,
		Path:        "/{locale}/blog/{slug}",
		Summary:     "Get a published blog post",
		Tags:        tags,
		Errors:      errs,
	}, s.getPost)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/{locale}/services",
		Summary:     "List published services",
		Tags:        tags,
		Errors:      errs,
	}, s.listServices)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-case-studies",
		Method:      http.MethodGet,
		Path:        "/{locale}/case-studies",
		Summary:     "List published case studies",
		Tags:        tags,
		Errors:      errs,
	}, s.listCaseStudies)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-case-study",
		Method:      http.MethodGet,
		Path:        "/{locale}/case-studies/{slug}",
		Summary:     "Get a published case study",
		Tags:        tags,
		Errors:      errs,
	}, s.getCaseStudy)
}

func (s *Server) getPage(ctx context.Context, input *slugInput) (*pageOutput, error) {
	tenant, err := scope(ctx, input.Locale)
	if err != nil {
		return nil, err
	}
	page, err := s.pages.GetVisible(tenant.ID, input.Locale, input.Slug)
	if err != nil {
		if errors.Is(err, service.ErrPageNotFound) {
			return nil, huma.Error404NotFound("page not found")
		}
		return nil, s.internalError(err, "failed to load page")
	}

	view := PageView{
		ID:          page.ID,
		Slug:        page.Slug,
		Locale:      page.Locale,
		Title:       page.Title,
		Description: page.Description,
		PublishedAt: page.PublishedAt,
		Blocks:      make([]BlockView, 0, len(page.Blocks)),
	}
	for _, block := range page.Blocks {
		data := map[string]any{}
		if err := json.Unmarshal(block.Data, &data); err != nil {
			s.logger.WithError(err).WithField("block_id", block.ID).Warn("skipping block with unreadable data")
			continue
		}
		view.Blocks = append(view.Blocks, BlockView{Type: block.Type, Data: data})
	}
	if translations, err := s.pages.Translations(tenant.ID, page.Slug); err == nil && len(translations) > 1 {
		view.Translations = make(map[string]string, len(translations))
		for code, translated := range translations {
			view.Translations[code] = translated.Slug
		}
	}

	out := &pageOutput{CacheControl: cacheControl}
	out.Body.Page = view
	return out, nil
}

func (s *Server) listPosts(ctx context.Context, input *blogListInput) (*blogListOutput, error) {
	tenant, err := scope(ctx, input.Locale)
	if err != nil {
		return nil, err
	}
	page := input.Page
	if page < 1 {
		page = 1
	}
	perPage := input.PerPage
	if perPage < 1 {
		perPage = defaultBlogPerPage
	}
	if perPage > maxBlogPerPage {
		perPage = maxBlogPerPage
	}

	result, err := s.posts.ListVisible(tenant.ID, input.Locale, page, perPage)
	if err != nil {
		return nil, s.internalError(err, "failed to list posts")
	}

	out := &blogListOutput{CacheControl: cacheControl}
	out.Body.Posts = make([]PostSummary, 0, len(result.Posts))
	for _, post := range result.Posts {
		out.Body.Posts = append(out.Body.Posts, postSummary(post))
	}
	out.Body.Total = result.Total
	out.Body.Page = result.Page
	out.Body.PerPage = result.PerPage
	out.Body.TotalPages = result.TotalPages
	return out, nil
}

func (s *Server) getPost(ctx context.Context, input *slugInput) (*blogPostOutput, error) {
	tenant, err := scope(ctx, input.Locale)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetVisible(tenant.ID, input.Locale, input.Slug)
	if err != nil {
		if errors.Is(err, service.ErrBlogPostNotFound) {
			return nil, huma.Error404NotFound("post not found")
		}
		return nil, s.internalError(err, "failed to load post")
	}
	html, err := markdown.Render(post.Content)
	if err != nil {
		return nil, s.internalError(err, "failed to render post")
	}

	out := &blogPostOutput{CacheControl: cacheControl}
	out.Body.Post = PostView{
		PostSummary: postSummary(*post),
		Content:     post.Content,
		HTML:        string(html),
		Cover:       s.cover(tenant.ID, post.CoverMediaID, nil),
	}
	return out, nil
}

func (s *Server) listServices(ctx context.Context, input *localeInput) (*servicesOutput, error) {
	tenant, err := scope(ctx, input.Locale)
	if err != nil {
		return nil, err
	}
	items, err := s.offerings.ListVisible(tenant.ID, input.Locale)
	if err != nil {
		return nil, s.internalError(err, "failed to list services")
	}
	slugs, err := s.visiblePageSlugs(tenant.ID, input.Locale)
	if err != nil {
		return nil, err
	}

	out := &servicesOutput{CacheControl: cacheControl}
	out.Body.Services = make([]ServiceView, 0, len(items))
	for _, item := range items {
		view := ServiceView{
			Slug:      item.Slug,
			Locale:    item.Locale,
			Title:     item.Title,
			Summary:   item.Summary,
			Icon:      item.Icon,
			SortOrder: item.SortOrder,
		}
		if item.PageID != nil {
			view.PageSlug = slugs[*item.PageID]
		}
		out.Body.Services = append(out.Body.Services, view)
	}
	return out, nil
}

func (s *Server) listCaseStudies(ctx context.Context, input *localeInput) (*caseStudiesOutput, error) {
	tenant, err := scope(ctx, input.Locale)
	if err != nil {
		return nil, err
	}
	items, err := s.caseStudies.ListVisible(tenant.ID, input.Locale)
	if err != nil {
		return nil, s.internalError(err, "failed to list case studies")
	}
	slugs, err := s.visiblePageSlugs(tenant.ID, input.Locale)
	if err != nil {
		return nil, err
	}
	var coverIDs []uint
	for _, item := range items {
		if item.CoverMediaID != nil {
			coverIDs = append(coverIDs, *item.CoverMediaID)
		}
	}
	covers, err := s.media.GetMany(tenant.ID, coverIDs)
	if err != nil {
		return nil, s.internalError(err, "failed to load covers")
	}

	out := &caseStudiesOutput{CacheControl: cacheControl}
	out.Body.CaseStudies = make([]CaseStudyView, 0, len(items))
	for _, item := range items {
		out.Body.CaseStudies = append(out.Body.CaseStudies, s.caseStudyView(tenant.ID, item, slugs, covers))
	}
	return out, nil
}

func (s *Server) getCaseStudy(ctx context.Context, input *slugInput) (*caseStudyOutput, error) {
	tenant, err := scope(ctx, input.Locale)
	if err != nil {
		return nil, err
	}
	item, err := s.caseStudies.GetVisible(tenant.ID, input.Locale, input.Slug)
	if err != nil {
		if errors.Is(err, service.ErrCaseStudyNotFound) {
			return nil, huma.Error404NotFound("case study not found")
		}
		return nil, s.internalError(err, "failed to load case study")
	}
	slugs, err := s.visiblePageSlugs(tenant.ID, input.Locale)
	if err != nil {
		return nil, err
	}

	out := &caseStudyOutput{CacheControl: cacheControl}
	out.Body.CaseStudy = s.caseStudyView(tenant.ID, *item, slugs, nil)
	return out, nil
}

func (s *Server) caseStudyView(tenantID uint, item db.CaseStudy, slugs map[uint]string, covers map[uint]db.MediaAsset) CaseStudyView {
	view := CaseStudyView{
		Slug:     item.Slug,
		Locale:   item.Locale,
		Title:    item.Title,
		Client:   item.Client,
		Industry: item.Industry,
		Summary:  item.Summary,
		Metrics:  []db.CaseMetric(item.Metrics),
		Cover:    s.cover(tenantID, item.CoverMediaID, covers),
	}
	if view.Metrics == nil {
		view.Metrics = []db.CaseMetric{}
	}
	if item.PageID != nil {
		view.PageSlug = slugs[*item.PageID]
	}
	return view
}

// cover 优先使用批量查询的结果，未提供时单独读取。
func (s *Server) cover(tenantID uint, mediaID *uint, preloaded map[uint]db.MediaAsset) *MediaView {
	if mediaID == nil {
		return nil
	}
	asset, ok := preloaded[*mediaID]
	if !ok {
		if preloaded != nil {
			return nil
		}
		loaded, err := s.media.Get(tenantID, *mediaID)
		if err != nil {
			return nil
		}
		asset = *loaded
	}
	return &MediaView{URL: asset.URL, Alt: asset.Alt, Width: asset.Width, Height: asset.Height}
}

func (s *Server) visiblePageSlugs(tenantID uint, code string) (map[uint]string, error) {
	pages, err := s.pages.ListVisible(tenantID, code)
	if err != nil {
		return nil, s.internalError(err, "failed to load pages")
	}
	slugs := make(map[uint]string, len(pages))
	for _, page := range pages {
		slugs[page.ID] = page.Slug
	}
	return slugs, nil
}

func postSummary(post db.BlogPost) PostSummary {
	tags := []string(post.Tags)
	if tags == nil {
		tags = []string{}
	}
	return PostSummary{
		ID:          post.ID,
		Slug:        post.Slug,
		Locale:      post.Locale,
		Title:       post.Title,
		Excerpt:     post.Excerpt,
		Tags:        tags,
		ReadingTime: post.ReadingTime,
		PublishedAt: post.PublishedAt,
	}
}
