package router

import (
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/auth"
	"github.com/M4MEET/ct-web-sub001/internal/handler"
	"github.com/M4MEET/ct-web-sub001/internal/publicapi"
	"github.com/M4MEET/ct-web-sub001/web"
	"github.com/getsentry/sentry-go"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const sessionName = "ct_session"

// Options 为路由装配所需的外部配置。
type Options struct {
	DB            *gorm.DB
	Logger        *logrus.Logger
	Templates     *template.Template
	Sentry        *sentry.Hub
	SessionSecret string
	SessionMaxAge time.Duration
	SecureCookies bool
	UploadDir     string
	UploadURLPath string
	APITitle      string
	APIVersion    string
}

// New 配置 Gin 引擎和全部路由。
func New(api *handler.API, opts Options) (*gin.Engine, error) {
	if api == nil {
		return nil, eris.New("handler api is required")
	}
	if opts.Templates == nil {
		return nil, eris.New("templates are required")
	}
	if strings.TrimSpace(opts.SessionSecret) == "" {
		return nil, eris.New("session secret is required")
	}
	gdb := opts.DB
	if gdb == nil {
		gdb = api.DB()
	}

	r := gin.New()
	r.Use(api.Sentry(opts.Sentry), api.RequestID(), api.RequestLogger(), api.Recovery())
	r.SetHTMLTemplate(opts.Templates)

	// 静态文件服务
	staticFS, err := fs.Sub(web.FS, "static")
	if err != nil {
		return nil, eris.Wrap(err, "failed to open embedded static files")
	}
	r.StaticFS("/static", http.FS(staticFS))
	if opts.UploadDir != "" {
		uploadPath := "/" + strings.Trim(opts.UploadURLPath, "/")
		if uploadPath == "/" {
			uploadPath = "/uploads"
		}
		r.Static(uploadPath, opts.UploadDir)
	}
	r.GET("/healthz", api.HealthCheck)

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	site := r.Group("")
	site.Use(sessions.Sessions(sessionName, store), api.ResolveTenant())

	// 公开站点
	site.GET("/", api.RootRedirect)
	site.GET("/sitemap.xml", api.Sitemap)
	site.GET("/:locale/", api.ShowHome)
	site.GET("/:locale/:slug", api.ShowPage)
	site.GET("/:locale/blog", api.ShowBlogList)
	site.GET("/:locale/blog/:slug", api.ShowBlogPost)
	site.GET("/:locale/services", api.ShowServices)
	site.GET("/:locale/case-studies", api.ShowCaseStudies)
	site.GET("/:locale/case-studies/:slug", api.ShowCaseStudy)
	site.POST("/api/forms", api.SubmitForm)

	if _, err := publicapi.Mount(r, r.Group("/api/public"), publicapi.Options{
		DB:      gdb,
		Logger:  opts.Logger,
		Title:   opts.APITitle,
		Version: opts.APIVersion,
	}); err != nil {
		return nil, eris.Wrap(err, "failed to mount public api")
	}

	registerAPI(site.Group("/api", api.Authenticate()), api)
	registerAdmin(site.Group("/admin", api.Authenticate()), api)

	r.NoRoute(sessions.Sessions(sessionName, store), api.ResolveTenant(), api.PublicNotFound)
	return r, nil
}

func registerAPI(group *gin.RouterGroup, api *handler.API) {
	authGroup := group.Group("/auth")
	{
		authGroup.POST("/login", api.Login)
		authGroup.POST("/logout", api.Logout)
		authGroup.GET("/me", api.Require(auth.PermissionRead), api.Me)

		totp := authGroup.Group("/totp", api.RequireSessionUser())
		totp.POST("/setup", api.SetupTOTP)
		totp.POST("/enable", api.EnableTOTP)
		totp.POST("/disable", api.DisableTOTP)
	}

	read := group.Group("", api.Require(auth.PermissionRead))
	{
		read.GET("/pages", api.ListPages)
		read.GET("/pages/:id", api.GetPage)
		read.GET("/blocks/types", api.ListBlockTypes)
		read.GET("/blog-posts", api.ListBlogPosts)
		read.GET("/blog-posts/:id", api.GetBlogPost)
		read.GET("/services", api.ListOfferings)
		read.GET("/services/:id", api.GetOffering)
		read.GET("/case-studies", api.ListCaseStudies)
		read.GET("/case-studies/:id", api.GetCaseStudy)
		read.GET("/media", api.ListMedia)
		read.GET("/media/:id", api.GetMedia)
		read.GET("/forms", api.ListSubmissions)
		read.GET("/forms/export", api.ExportSubmissions)
		read.GET("/forms/:id", api.GetSubmission)
		read.GET("/analytics/overview", api.AnalyticsOverview)
	}

	write := group.Group("", api.Require(auth.PermissionWrite))
	{
		write.POST("/pages", api.CreatePage)
		write.PUT("/pages/:id", api.UpdatePage)
		write.DELETE("/pages/:id", api.DeletePage)
		write.PUT("/pages/:id/blocks", api.ReplacePageBlocks)
		write.POST("/pages/:id/duplicate", api.DuplicatePage)
		write.POST("/pages/:id/status", api.SetPageStatus)
		write.POST("/pages/:id/preview-token", api.CreatePreviewToken)
		write.POST("/pages/:id/description", api.SuggestPageDescription)

		write.POST("/blog-posts", api.CreateBlogPost)
		write.PUT("/blog-posts/:id", api.UpdateBlogPost)
		write.DELETE("/blog-posts/:id", api.DeleteBlogPost)
		write.POST("/blog-posts/:id/status", api.SetBlogPostStatus)
		write.POST("/blog-posts/:id/summary", api.SummarizeBlogPost)

		write.POST("/services", api.CreateOffering)
		write.PUT("/services/:id", api.UpdateOffering)
		write.DELETE("/services/:id", api.DeleteOffering)

		write.POST("/case-studies", api.CreateCaseStudy)
		write.PUT("/case-studies/:id", api.UpdateCaseStudy)
		write.DELETE("/case-studies/:id", api.DeleteCaseStudy)
		write.POST("/case-studies/:id/status", api.SetCaseStudyStatus)

		write.POST("/media", api.UploadMedia)
		write.PATCH("/media/:id", api.UpdateMedia)
		write.DELETE("/media/:id", api.DeleteMedia)

		write.PATCH("/forms/:id", api.UpdateSubmission)
		write.DELETE("/forms/:id", api.DeleteSubmission)
	}

	admin := group.Group("", api.Require(auth.PermissionAdmin))
	{
		admin.GET("/settings", api.GetSettings)
		admin.PUT("/settings", api.UpdateSettings)
		admin.GET("/settings/api-keys", api.ListAPIKeys)
		admin.POST("/settings/api-keys", api.CreateAPIKey)
		admin.DELETE("/settings/api-keys/:id", api.RevokeAPIKey)

		admin.GET("/users", api.ListUsers)
		admin.POST("/users", api.CreateUser)
		admin.PATCH("/users/:id", api.UpdateUser)
		admin.DELETE("/users/:id", api.DeleteUser)
	}
}

// 后台管理路由
func registerAdmin(group *gin.RouterGroup, api *handler.API) {
	group.GET("/login", api.ShowLoginPage)
	group.POST("/login", api.SubmitLogin)
	group.POST("/logout", api.SubmitLogout)

	pages := group.Group("", api.AdminSessionRequired())
	{
		pages.GET("", api.ShowDashboard)
		pages.GET("/pages", api.ShowPages)
		pages.GET("/pages/:id", api.ShowPageEditor)
		pages.GET("/forms", api.ShowForms)
	}
}
