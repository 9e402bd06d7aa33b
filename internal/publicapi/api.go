// Package publicapi 提供只读的公开内容接口，并生成 OpenAPI 文档。
package publicapi

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/locale"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humagin"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// OpenAPIPath 相对于挂载分组的路径，huma 会追加 .json/.yaml。
	OpenAPIPath = "/openapi"

	cacheControl = "public, max-age=60"
)

// Options configures the public content API.
type Options struct {
	DB      *gorm.DB
	Logger  *logrus.Logger
	Title   string
	Version string
}

// Server 持有公开接口使用的服务。
type Server struct {
	api         huma.API
	logger      *logrus.Logger
	tenants     *service.TenantService
	pages       *service.PageService
	posts       *service.BlogPostService
	offerings   *service.OfferingService
	caseStudies *service.CaseStudyService
	media       *service.MediaService
}

type tenantKey struct{}

var errorModelOnce sync.Once

// Error 是公开接口的错误响应，与后台 JSON 接口保持相同的 {"error": ...} 形状。
type Error struct {
	status  int
	Message string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// GetStatus 实现 huma.StatusError。
func (e *Error) GetStatus() int { return e.status }

func useErrorModel() {
	errorModelOnce.Do(func() {
		huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
			apiErr := &Error{status: status, Message: msg}
			for _, err := range errs {
				if err != nil {
					apiErr.Details = append(apiErr.Details, err.Error())
				}
			}
			return apiErr
		}
	})
}

// DefaultConfig 返回挂载在 /api/public 下的 huma 配置。
func DefaultConfig(opts Options, prefix string) huma.Config {
	title := opts.Title
	if title == "" {
		title = "Public content API"
	}
	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	config := huma.DefaultConfig(title, version)
	config.OpenAPIPath = OpenAPIPath
	config.DocsPath = "/docs"
	// 响应体不附加 $schema 链接字段。
	config.CreateHooks = nil
	if prefix != "" {
		config.Servers = []*huma.Server{{URL: prefix}}
	}
	return config
}

// Mount 在 gin 分组上创建 huma API 并注册全部操作。
func Mount(engine *gin.Engine, group *gin.RouterGroup, opts Options) (*Server, error) {
	useErrorModel()
	api := humagin.NewWithGroup(engine, group, DefaultConfig(opts, group.BasePath()))
	return Register(api, opts)
}

// Register 在任意 huma API 上注册公开内容操作。
func Register(api huma.API, opts Options) (*Server, error) {
	if opts.DB == nil {
		return nil, eris.New("database is required")
	}
	useErrorModel()
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	srv := &Server{
		api:         api,
		logger:      logger,
		tenants:     service.NewTenantService(opts.DB),
		pages:       service.NewPageService(opts.DB),
		posts:       service.NewBlogPostService(opts.DB),
		offerings:   service.NewOfferingService(opts.DB),
		caseStudies: service.NewCaseStudyService(opts.DB),
		media:       service.NewMediaService(opts.DB, service.MediaOptions{}),
	}
	api.UseMiddleware(srv.tenantMiddleware)
	srv.registerRoutes()
	return srv, nil
}

// API exposes the underlying huma API, mainly for tests.
func (s *Server) API() huma.API {
	return s.api
}

// tenantMiddleware 与站点一致，按 Host 解析租户。
func (s *Server) tenantMiddleware(ctx huma.Context, next func(huma.Context)) {
	tenant, err := s.tenants.Resolve(ctx.Host())
	if err != nil {
		if errors.Is(err, service.ErrTenantNotFound) {
			_ = huma.WriteErr(s.api, ctx, http.StatusNotFound, "site not found")
			return
		}
		s.logger.WithError(err).Error("failed to resolve tenant for public api")
		_ = huma.WriteErr(s.api, ctx, http.StatusInternalServerError, "internal server error")
		return
	}
	next(huma.WithValue(ctx, tenantKey{}, tenant))
}

func tenantFrom(ctx context.Context) (*db.Tenant, error) {
	tenant, ok := ctx.Value(tenantKey{}).(*db.Tenant)
	if !ok || tenant == nil {
		return nil, huma.Error404NotFound("site not found")
	}
	return tenant, nil
}

// scope 校验语言参数并取出租户。
func scope(ctx context.Context, code string) (*db.Tenant, error) {
	if !locale.IsSupported(code) {
		return nil, huma.Error400BadRequest("unsupported locale")
	}
	return tenantFrom(ctx)
}

// internalError 记录原始错误，只向调用方返回通用提示。
func (s *Server) internalError(err error, message string) error {
	s.logger.WithError(err).Error(message)
	return huma.Error500InternalServerError(message)
}
