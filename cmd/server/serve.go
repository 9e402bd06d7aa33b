package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/M4MEET/ct-web-sub001/internal/config"
	"github.com/M4MEET/ct-web-sub001/internal/handler"
	"github.com/M4MEET/ct-web-sub001/internal/logging"
	"github.com/M4MEET/ct-web-sub001/internal/notify"
	"github.com/M4MEET/ct-web-sub001/internal/ratelimit"
	"github.com/M4MEET/ct-web-sub001/internal/router"
	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/M4MEET/ct-web-sub001/internal/view"
	"github.com/M4MEET/ct-web-sub001/web"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	gin.SetMode(cfg.GinMode)
	if cfg.UsesDefaultSessionSecret() {
		logger.Warn("SESSION_SECRET is not set, using the development default")
	}

	hub, flush, err := logging.InitSentry(logger, logging.SentrySettings{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Sentry.Release,
	})
	if err != nil {
		return err
	}
	defer flush()

	limiter, closeLimiter, err := newLimiter(ctx, cfg.Forms.RedisURL, ratelimit.Settings{
		Burst: cfg.Forms.RateLimitBurst,
		Every: cfg.Forms.RateLimitEvery,
	}, logger)
	if err != nil {
		return err
	}
	defer closeLimiter()

	notifier, err := newNotifier(cfg.SMTP, logger)
	if err != nil {
		return err
	}

	tenant, err := service.NewTenantService(rt.db).EnsureDefault("Default")
	if err != nil {
		return eris.Wrap(err, "ensure default tenant")
	}
	if cfg.SuperRootUserName != "" && cfg.SuperRootPassword != "" {
		owner, created, err := service.NewUserService(rt.db).EnsureOwner(tenant.ID, cfg.SuperRootUserName, cfg.SuperRootPassword)
		if err != nil {
			return eris.Wrap(err, "ensure owner account")
		}
		if created {
			logger.WithField("email", owner.Email).Info("created owner account for default tenant")
		}
	}

	templates, err := view.LoadTemplates(web.FS)
	if err != nil {
		return eris.Wrap(err, "load templates")
	}

	api, err := handler.NewAPI(handler.Options{
		DB:            rt.db,
		Logger:        logger,
		Templates:     templates,
		SessionSecret: cfg.SessionSecret,
		PreviewTTL:    cfg.PreviewTokenTTL,
		SiteBaseURL:   cfg.SiteBaseURL,
		DefaultLocale: cfg.DefaultLocale,
		Media: service.MediaOptions{
			Dir:      cfg.UploadDir,
			URLPath:  cfg.UploadURLPath,
			MaxBytes: cfg.UploadMaxBytes,
		},
		Limiter:  limiter,
		Notifier: notifier,
		Summaries: service.NewSummaryService(service.SummaryOptions{
			APIKey:  cfg.AI.APIKey,
			BaseURL: cfg.AI.BaseURL,
			Model:   cfg.AI.Model,
			Logger:  logger,
		}),
	})
	if err != nil {
		return err
	}

	engine, err := router.New(api, router.Options{
		DB:            rt.db,
		Logger:        logger,
		Templates:     templates,
		Sentry:        hub,
		SessionSecret: cfg.SessionSecret,
		SessionMaxAge: cfg.SessionMaxAge,
		SecureCookies: cfg.Environment == "production",
		UploadDir:     cfg.UploadDir,
		UploadURLPath: cfg.UploadURLPath,
		APITitle:      "Content API",
		APIVersion:    version,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.ListenAddr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newLimiter 配置了 REDIS_URL 时使用 Redis 固定窗口，否则退回进程内令牌桶。
func newLimiter(ctx context.Context, redisURL string, settings ratelimit.Settings, logger *logrus.Logger) (ratelimit.Limiter, func(), error) {
	if redisURL == "" {
		memory := ratelimit.NewMemory(settings)
		return memory, memory.Close, nil
	}
	limiter, err := ratelimit.NewRedisFromURL(ctx, redisURL, settings)
	if err != nil {
		return nil, nil, eris.Wrap(err, "connect redis rate limiter")
	}
	logger.Info("form rate limiting backed by redis")
	return limiter, func() {
		if err := limiter.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}, nil
}

// newNotifier 未配置 SMTP 时只把提交写入日志。
func newNotifier(smtp config.SMTPConfig, logger *logrus.Logger) (notify.Notifier, error) {
	if smtp.Addr == "" || smtp.NotifyTo == "" {
		return notify.LogNotifier{Logger: logger}, nil
	}
	notifier, err := notify.NewSMTPNotifier(notify.SMTPSettings{
		Addr:     smtp.Addr,
		User:     smtp.User,
		Password: smtp.Password,
		From:     smtp.From,
		To:       smtp.NotifyTo,
	})
	if err != nil {
		return nil, eris.Wrap(err, "configure smtp notifier")
	}
	return notifier, nil
}
