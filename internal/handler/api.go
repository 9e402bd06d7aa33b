package handler

import (
	"html/template"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"github.com/M4MEET/ct-web-sub001/internal/notify"
	"github.com/M4MEET/ct-web-sub001/internal/ratelimit"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/M4MEET/ct-web-sub001/internal/view"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options 汇总构造 API 所需的依赖。
type Options struct {
	DB            *gorm.DB
	Logger        *logrus.Logger
	Templates     *template.Template
	SessionSecret string
	PreviewTTL    time.Duration
	SiteBaseURL   string
	DefaultLocale string
	Media         service.MediaOptions
	Limiter       ratelimit.Limiter
	Notifier      notify.Notifier
	Summaries     *service.SummaryService
	Analytics     AnalyticsProvider
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	logger      *logrus.Logger
	tenants     *service.TenantService
	pages       *service.PageService
	posts       *service.BlogPostService
	offerings   *service.OfferingService
	caseStudies *service.CaseStudyService
	media       *service.MediaService
	forms       *service.FormService
	settings    *service.SiteSettingService
	apiKeys     *service.APIKeyService
	users       *service.UserService
	analytics   AnalyticsProvider
	summaries   *service.SummaryService
	blocks      *view.BlockRenderer
	limiter     ratelimit.Limiter

	previewSecret string
	previewTTL    time.Duration
	baseURL       string
	defaultLocale string
	now           func() time.Time
}

const (
	siteSettingsContextKey = "__site_settings"
	defaultPreviewTTL      = time.Hour
)

// NewAPI constructs a handler set with shared services.
func NewAPI(opts Options) (*API, error) {
	if opts.DB == nil {
		return nil, eris.New("database is required")
	}
	if opts.Templates == nil {
		return nil, eris.New("templates are required")
	}
	if strings.TrimSpace(opts.SessionSecret) == "" {
		return nil, eris.New("session secret is required")
	}

	renderer, err := view.NewBlockRenderer(opts.Templates)
	if err != nil {
		return nil, eris.Wrap(err, "failed to build block renderer")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewMemory(ratelimit.Settings{})
	}
	summaries := opts.Summaries
	if summaries == nil {
		summaries = service.NewSummaryService(service.SummaryOptions{Logger: logger})
	}
	analytics := opts.Analytics
	if analytics == nil {
		analytics = service.NewAnalyticsService(opts.DB)
	}
	ttl := opts.PreviewTTL
	if ttl <= 0 {
		ttl = defaultPreviewTTL
	}
	defaultLocale := locale.NormalizeLanguage(opts.DefaultLocale)
	if defaultLocale == "" {
		defaultLocale = locale.LanguageEnglish
	}

	return &API{
		db:            opts.DB,
		logger:        logger,
		tenants:       service.NewTenantService(opts.DB),
		pages:         service.NewPageService(opts.DB),
		posts:         service.NewBlogPostService(opts.DB),
		offerings:     service.NewOfferingService(opts.DB),
		caseStudies:   service.NewCaseStudyService(opts.DB),
		media:         service.NewMediaService(opts.DB, opts.Media),
		forms:         service.NewFormService(opts.DB, opts.Notifier, logger),
		settings:      service.NewSiteSettingService(opts.DB),
		apiKeys:       service.NewAPIKeyService(opts.DB),
		users:         service.NewUserService(opts.DB),
		analytics:     analytics,
		summaries:     summaries,
		blocks:        renderer,
		limiter:       limiter,
		previewSecret: opts.SessionSecret,
		previewTTL:    ttl,
		baseURL:       strings.TrimRight(opts.SiteBaseURL, "/"),
		defaultLocale: defaultLocale,
		now:           time.Now,
	}, nil
}

// DB exposes the underlying gorm instance for health checks and the public API.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Tenants 暴露租户服务，供公开 API 复用同一套解析逻辑。
func (a *API) Tenants() *service.TenantService {
	return a.tenants
}

func (a *API) siteSettings(c *gin.Context) service.SiteSettings {
	if cached, exists := c.Get(siteSettingsContextKey); exists {
		if settings, ok := cached.(service.SiteSettings); ok {
			return settings
		}
	}

	tenant := currentTenant(c)
	var settings service.SiteSettings
	if tenant != nil {
		loaded, err := a.settings.Get(tenant.ID)
		if err != nil {
			c.Error(err)
			a.logger.WithError(err).WithField("tenant", tenant.Slug).Warn("failed to load site settings")
		}
		settings = loaded
	}
	if strings.TrimSpace(settings.SiteName) == "" && tenant != nil {
		settings.SiteName = tenant.Name
	}

	c.Set(siteSettingsContextKey, settings)
	return settings
}

// renderPublic 为公开站点模板附加站点设置、导航与语言信息。
func (a *API) renderPublic(c *gin.Context, status int, name, language string, data gin.H) {
	settings := a.siteSettings(c)
	pref := locale.PreferenceForLanguage(language)

	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}
	defaults := gin.H{
		"site":     settings,
		"lang":     pref.Language,
		"htmlLang": pref.HTMLLang,
		"footer":   settings.FooterFor(pref.Language),
		"year":     a.now().Year(),
		"nav":      buildNav(pref.Language, c.Request.URL.Path),
	}
	for key, value := range defaults {
		if _, exists := payload[key]; !exists {
			payload[key] = value
		}
	}

	c.Header("Content-Language", pref.HTMLLang)
	c.HTML(status, name, payload)
}

// renderAdmin 为后台模板附加站点名称、当前用户与未读提交数。
func (a *API) renderAdmin(c *gin.Context, status int, name string, data gin.H) {
	payload := gin.H{}
	for key, value := range data {
		payload[key] = value
	}
	if _, exists := payload["site"]; !exists {
		payload["site"] = a.siteSettings(c)
	}
	if principal, ok := currentPrincipal(c); ok {
		if _, exists := payload["user"]; !exists {
			payload["user"] = principal
		}
		if _, exists := payload["newSubmissions"]; !exists {
			if unread, err := a.forms.CountNew(principal.TenantID); err == nil {
				payload["newSubmissions"] = unread
			}
		}
	}
	c.HTML(status, name, payload)
}

type navLink struct {
	Label  string
	URL    string
	Active bool
}

func buildNav(language, currentPath string) []navLink {
	prefix := "/" + language
	links := []navLink{
		{Label: locale.T(language, "nav.home"), URL: prefix + "/"},
		{Label: locale.T(language, "nav.services"), URL: prefix + "/services"},
		{Label: locale.T(language, "nav.caseStudies"), URL: prefix + "/case-studies"},
		{Label: locale.T(language, "nav.blog"), URL: prefix + "/blog"},
	}
	for i := range links {
		if i == 0 {
			links[i].Active = currentPath == links[i].URL
			continue
		}
		links[i].Active = strings.HasPrefix(currentPath, links[i].URL)
	}
	return links
}

func principalActor(c *gin.Context) auth.Principal {
	principal, _ := currentPrincipal(c)
	return principal
}

func tenantIDOf(c *gin.Context) uint {
	if principal, ok := currentPrincipal(c); ok {
		return principal.TenantID
	}
	if tenant := currentTenant(c); tenant != nil {
		return tenant.ID
	}
	return 0
}
