package handler

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"github.com/M4MEET/ct-web-sub001/internal/markdown"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/M4MEET/ct-web-sub001/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	visitorCookieName   = "ct_visitor"
	visitorCookieMaxAge = 365 * 24 * 60 * 60
	publicBlogPerPage   = 10
)

type alternateLink struct {
	Lang    string
	URL     string
	Name    string
	Current bool
}

type serviceCard struct {
	Item db.Service
	URL  string
}

type caseStudyCard struct {
	Item  db.CaseStudy
	URL   string
	Cover *db.MediaAsset
}

// publicLanguage 读取路径中的语言段，不受支持时直接渲染 404。
func (a *API) publicLanguage(c *gin.Context) (string, bool) {
	code := c.Param("locale")
	if !locale.IsSupported(code) {
		a.renderNotFound(c, a.fallbackLanguage(c))
		return "", false
	}
	return code, true
}

func (a *API) fallbackLanguage(c *gin.Context) string {
	if code := readLanguageCookie(c); code != "" {
		return code
	}
	if code := a.siteSettings(c).DefaultLocale; locale.IsSupported(code) {
		return code
	}
	return a.defaultLocale
}

func (a *API) renderNotFound(c *gin.Context, language string) {
	a.renderPublic(c, http.StatusNotFound, "public/error", language, gin.H{
		"title":   locale.T(language, "error.notFound"),
		"status":  http.StatusNotFound,
		"message": locale.T(language, "error.notFound"),
	})
}

func (a *API) renderServerError(c *gin.Context, language string, err error) {
	c.Error(err)
	a.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("failed to render public page")
	a.renderPublic(c, http.StatusInternalServerError, "public/error", language, gin.H{
		"title":   locale.T(language, "error.server"),
		"status":  http.StatusInternalServerError,
		"message": locale.T(language, "error.server"),
	})
}

// ShowHome 渲染语言首页（slug 为 home 的页面）。
func (a *API) ShowHome(c *gin.Context) {
	language, ok := a.publicLanguage(c)
	if !ok {
		return
	}
	a.showPage(c, language, service.HomeSlug)
}

// ShowPage 渲染 /:locale/:slug 对应的页面。
func (a *API) ShowPage(c *gin.Context) {
	language, ok := a.publicLanguage(c)
	if !ok {
		return
	}
	slug := c.Param("slug")
	if slug == service.HomeSlug {
		c.Redirect(http.StatusMovedPermanently, pagePath(language, slug))
		return
	}
	a.showPage(c, language, slug)
}

func (a *API) showPage(c *gin.Context, language, slug string) {
	tenant := currentTenant(c)
	page, preview, err := a.loadPublicPage(c, tenant.ID, language, slug)
	if err != nil {
		if errors.Is(err, service.ErrPageNotFound) {
			a.renderNotFound(c, language)
			return
		}
		a.renderServerError(c, language, err)
		return
	}

	rendered, renderErrs := a.blocks.RenderAll(page.Blocks, view.RenderContext{Language: language, PageID: page.ID})
	for _, renderErr := range renderErrs {
		a.logger.WithError(renderErr).WithFields(logrus.Fields{
			"tenant":  tenant.Slug,
			"page_id": page.ID,
		}).Warn("skipped block that failed to render")
	}

	var alternates []alternateLink
	if translations, err := a.pages.Translations(tenant.ID, page.Slug); err == nil {
		for _, code := range locale.Supported {
			translated, ok := translations[code]
			if !ok && !(preview && code == language) {
				continue
			}
			target := slug
			if ok {
				target = translated.Slug
			}
			alternates = append(alternates, alternateLink{
				Lang:    code,
				URL:     a.absoluteURL(c, pagePath(code, target)),
				Name:    locale.Name(code),
				Current: code == language,
			})
		}
	} else {
		c.Error(err)
	}
	if len(alternates) < 2 {
		alternates = nil
	}

	if preview {
		c.Header("Cache-Control", "no-store")
		c.Header("X-Robots-Tag", "noindex")
	} else {
		a.recordView(c, tenant.ID)
	}

	title := page.Title
	if page.Slug == service.HomeSlug {
		title = ""
	}
	a.renderPublic(c, http.StatusOK, "public/page", language, gin.H{
		"title":       title,
		"description": page.Description,
		"canonical":   a.absoluteURL(c, pagePath(language, page.Slug)),
		"alternates":  alternates,
		"preview":     preview,
		"page":        page,
		"blocks":      rendered,
	})
}

// loadPublicPage 优先按预览令牌加载页面，令牌无效时按普通访客处理。
func (a *API) loadPublicPage(c *gin.Context, tenantID uint, language, slug string) (*db.Page, bool, error) {
	if token := strings.TrimSpace(c.Query("preview")); token != "" {
		claims, err := auth.ParsePreviewToken(a.previewSecret, token)
		if err == nil && claims.TenantID == tenantID {
			page, err := a.pages.GetBySlug(tenantID, language, slug)
			if err == nil && page.ID == claims.PageID {
				return page, true, nil
			}
		}
	}
	page, err := a.pages.GetVisible(tenantID, language, slug)
	return page, false, err
}

// ShowBlogList 分页列出某语言的公开文章。
func (a *API) ShowBlogList(c *gin.Context) {
	language, ok := a.publicLanguage(c)
	if !ok {
		return
	}
	tenant := currentTenant(c)
	pageNum := parsePositiveInt(c.Query("page"), 1)
	result, err := a.posts.ListVisible(tenant.ID, language, pageNum, publicBlogPerPage)
	if err != nil {
		a.renderServerError(c, language, err)
		return
	}

	base := "/" + language + "/blog"
	var prevURL, nextURL string
	if result.Page > 1 {
		prevURL = base
		if result.Page > 2 {
			prevURL += "?page=" + strconv.Itoa(result.Page-1)
		}
	}
	if result.Page < result.TotalPages {
		nextURL = base + "?page=" + strconv.Itoa(result.Page+1)
	}

	a.recordView(c, tenant.ID)
	a.renderPublic(c, http.StatusOK, "public/blog_list", language, gin.H{
		"title":      locale.T(language, "nav.blog"),
		"canonical":  a.absoluteURL(c, base),
		"alternates": a.sectionAlternates(c, language, "/blog"),
		"posts":      result.Posts,
		"prevURL":    prevURL,
		"nextURL":    nextURL,
	})
}

// ShowBlogPost 渲染单篇公开文章。
func (a *API) ShowBlogPost(c *gin.Context) {
	language, ok := a.publicLanguage(c)
	if !ok {
		return
	}
	tenant := currentTenant(c)
	post, err := a.posts.GetVisible(tenant.ID, language, c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrBlogPostNotFound) {
			a.renderNotFound(c, language)
			return
		}
		a.renderServerError(c, language, err)
		return
	}

	body, err := markdown.Render(post.Content)
	if err != nil {
		a.logger.WithError(err).WithField("post_id", post.ID).Warn("failed to render post body")
		body = template.HTML("")
	}

	a.recordView(c, tenant.ID)
	a.renderPublic(c, http.StatusOK, "public/blog_post", language, gin.H{
		"title":       post.Title,
		"description": post.Excerpt,
		"canonical":   a.absoluteURL(c, "/"+language+"/blog/"+post.Slug),
		"post":        post,
		"cover":       a.coverFor(tenant.ID, post.CoverMediaID),
		"body":        body,
	})
}

// ShowServices 列出公开的服务条目，关联页面可见时附带链接。
func (a *API) ShowServices(c *gin.Context) {
	language, ok := a.publicLanguage(c)
	if !ok {
		return
	}
	tenant := currentTenant(c)
	items, err := a.offerings.ListVisible(tenant.ID, language)
	if err != nil {
		a.renderServerError(c, language, err)
		return
	}
	linked := a.visiblePagePaths(c, tenant.ID, language)

	cards := make([]serviceCard, 0, len(items))
	for _, item := range items {
		card := serviceCard{Item: item}
		if item.PageID != nil {
			card.URL = linked[*item.PageID]
		}
		cards = append(cards, card)
	}

	a.recordView(c, tenant.ID)
	a.renderPublic(c, http.StatusOK, "public/services", language, gin.H{
		"title":      locale.T(language, "nav.services"),
		"canonical":  a.absoluteURL(c, "/"+language+"/services"),
		"alternates": a.sectionAlternates(c, language, "/services"),
		"services":   cards,
	})
}

// ShowCaseStudies 列出公开案例。
func (a *API) ShowCaseStudies(c *gin.Context) {
	language, ok := a.publicLanguage(c)
	if !ok {
		return
	}
	tenant := currentTenant(c)
	items, err := a.caseStudies.ListVisible(tenant.ID, language)
	if err != nil {
		a.renderServerError(c, language, err)
		return
	}

	var coverIDs []uint
	for _, item := range items {
		if item.CoverMediaID != nil {
			coverIDs = append(coverIDs, *item.CoverMediaID)
		}
	}
	covers, err := a.media.GetMany(tenant.ID, coverIDs)
	if err != nil {
		c.Error(err)
		covers = nil
	}

	cards := make([]caseStudyCard, 0, len(items))
	for _, item := range items {
		card := caseStudyCard{Item: item, URL: "/" + language + "/case-studies/" + item.Slug}
		if item.CoverMediaID != nil {
			if cover, ok := covers[*item.CoverMediaID]; ok {
				card.Cover = &cover
			}
		}
		cards = append(cards, card)
	}

	a.recordView(c, tenant.ID)
	a.renderPublic(c, http.StatusOK, "public/case_studies", language, gin.H{
		"title":      locale.T(language, "nav.caseStudies"),
		"canonical":  a.absoluteURL(c, "/"+language+"/case-studies"),
		"alternates": a.sectionAlternates(c, language, "/case-studies"),
		"studies":    cards,
	})
}

// ShowCaseStudy 渲染单个案例详情。
func (a *API) ShowCaseStudy(c *gin.Context) {
	language, ok := a.publicLanguage(c)
	if !ok {
		return
	}
	tenant := currentTenant(c)
	study, err := a.caseStudies.GetVisible(tenant.ID, language, c.Param("slug"))
	if err != nil {
		if errors.Is(err, service.ErrCaseStudyNotFound) {
			a.renderNotFound(c, language)
			return
		}
		a.renderServerError(c, language, err)
		return
	}

	var pageURL string
	if study.PageID != nil {
		pageURL = a.visiblePagePaths(c, tenant.ID, language)[*study.PageID]
	}

	a.recordView(c, tenant.ID)
	a.renderPublic(c, http.StatusOK, "public/case_study", language, gin.H{
		"title":       study.Title,
		"description": study.Summary,
		"canonical":   a.absoluteURL(c, "/"+language+"/case-studies/"+study.Slug),
		"study":       study,
		"cover":       a.coverFor(tenant.ID, study.CoverMediaID),
		"pageURL":     pageURL,
	})
}

// PublicNotFound 处理未匹配的路由：API 路径返回 JSON，其余渲染错误页。
func (a *API) PublicNotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		respondError(c, http.StatusNotFound, "not found")
		return
	}
	if currentTenant(c) == nil {
		c.String(http.StatusNotFound, "not found")
		return
	}
	a.renderNotFound(c, a.fallbackLanguage(c))
}

// visiblePagePaths 返回某语言下可见页面的 ID 到路径映射。
func (a *API) visiblePagePaths(c *gin.Context, tenantID uint, language string) map[uint]string {
	pages, err := a.pages.ListVisible(tenantID, language)
	if err != nil {
		c.Error(err)
		return map[uint]string{}
	}
	paths := make(map[uint]string, len(pages))
	for _, page := range pages {
		paths[page.ID] = pagePath(page.Locale, page.Slug)
	}
	return paths
}

func (a *API) coverFor(tenantID uint, mediaID *uint) *db.MediaAsset {
	if mediaID == nil {
		return nil
	}
	asset, err := a.media.Get(tenantID, *mediaID)
	if err != nil {
		return nil
	}
	return asset
}

// sectionAlternates 为各语言都存在的栏目页生成语言切换链接。
func (a *API) sectionAlternates(c *gin.Context, language, suffix string) []alternateLink {
	links := make([]alternateLink, 0, len(locale.Supported))
	for _, code := range locale.Supported {
		links = append(links, alternateLink{
			Lang:    code,
			URL:     a.absoluteURL(c, "/"+code+suffix),
			Name:    locale.Name(code),
			Current: code == language,
		})
	}
	return links
}

// absoluteURL 优先使用配置的站点地址，否则根据请求推断。
func (a *API) absoluteURL(c *gin.Context, path string) string {
	if a.baseURL != "" {
		return a.baseURL + path
	}
	scheme := "http"
	if isSecureRequest(c) {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: path}
	return u.String()
}

// recordView 记录一次浏览；统计失败不影响页面渲染。
func (a *API) recordView(c *gin.Context, tenantID uint) {
	if !a.siteSettings(c).AnalyticsEnabled {
		return
	}
	visitorID := a.ensureVisitorID(c)
	if _, err := a.analytics.RecordView(tenantID, c.Request.URL.Path, visitorID, a.now().UTC()); err != nil {
		a.logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("failed to record page view")
	}
}

func (a *API) ensureVisitorID(c *gin.Context) string {
	if id, err := c.Cookie(visitorCookieName); err == nil {
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id
		}
	}

	visitorID := uuid.NewString()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     visitorCookieName,
		Value:    visitorID,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureRequest(c),
		MaxAge:   visitorCookieMaxAge,
		Expires:  a.now().Add(365 * 24 * time.Hour),
		SameSite: http.SameSiteLaxMode,
	})
	return visitorID
}
