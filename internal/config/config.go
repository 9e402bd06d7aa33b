package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabaseURL       string
	SessionSecret     string
	SessionMaxAge     time.Duration
	GinMode           string
	Environment       string
	UploadDir         string
	UploadURLPath     string
	UploadMaxBytes    int64
	SiteBaseURL       string
	DefaultLocale     string
	SuperRootUserName string
	SuperRootPassword string
	ShutdownGrace     time.Duration

	Log    LogConfig
	Sentry SentryConfig
	Forms  FormConfig
	SMTP   SMTPConfig
	AI     AIConfig

	PreviewTokenTTL time.Duration
}

// LogConfig 控制日志输出。
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SentryConfig 为空 DSN 时不启用 Sentry。
type SentryConfig struct {
	DSN     string
	Release string
}

// FormConfig 描述公开表单提交的限流参数。
type FormConfig struct {
	RedisURL       string
	RateLimitBurst int
	RateLimitEvery time.Duration
}

// SMTPConfig 用于表单提交通知邮件。
type SMTPConfig struct {
	Addr     string
	User     string
	Password string
	From     string
	NotifyTo string
}

// AIConfig 用于生成摘要与 meta 描述。
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

const (
	defaultPort            = "8080"
	defaultDatabaseURL     = "data/ctweb.db"
	defaultSessionSecret   = "ct-web-dev-secret"
	defaultSessionMaxAge   = 7 * 24 * time.Hour
	defaultUploadMaxBytes  = 10 << 20
	defaultShutdownGrace   = 10 * time.Second
	defaultPreviewTokenTTL = time.Hour
	defaultFormBurst       = 5
	defaultFormEvery       = time.Minute
	defaultAIModel         = "gpt-4o-mini"
)

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 数值或时长格式错误时返回带键名的错误。
func Load() (AppConfig, error) {
	port := getEnv("PORT", defaultPort)

	cfg := AppConfig{
		Port:              port,
		ListenAddr:        getEnv("LISTEN_ADDR", fmt.Sprintf(":%s", port)),
		DatabaseURL:       getEnv("DATABASE_URL", getEnv("DATABASE_PATH", defaultDatabaseURL)),
		SessionSecret:     getEnv("SESSION_SECRET", defaultSessionSecret),
		GinMode:           getEnv("GIN_MODE", "release"),
		Environment:       getEnv("ENV", "development"),
		UploadDir:         getEnv("UPLOAD_DIR", "data/uploads"),
		UploadURLPath:     "/" + strings.Trim(getEnv("UPLOAD_URL_PATH", "/uploads"), "/"),
		SiteBaseURL:       strings.TrimRight(getEnv("SITE_BASE_URL", "http://localhost:"+port), "/"),
		DefaultLocale:     strings.ToLower(getEnv("DEFAULT_LOCALE", "en")),
		SuperRootUserName: getEnv("SUPER_ROOT_USER_NAME", ""),
		SuperRootPassword: getEnv("SUPER_ROOT_PASSWORD", ""),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
			File:   getEnv("LOG_FILE", ""),
		},
		Sentry: SentryConfig{
			DSN:     getEnv("SENTRY_DSN", ""),
			Release: getEnv("SENTRY_RELEASE", ""),
		},
		Forms: FormConfig{
			RedisURL: getEnv("REDIS_URL", ""),
		},
		SMTP: SMTPConfig{
			Addr:     getEnv("SMTP_ADDR", ""),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			NotifyTo: getEnv("NOTIFY_EMAIL", ""),
		},
		AI: AIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", defaultAIModel),
		},
	}

	var err error
	if cfg.SessionMaxAge, err = durationEnv("SESSION_MAX_AGE", defaultSessionMaxAge); err != nil {
		return AppConfig{}, err
	}
	if cfg.ShutdownGrace, err = durationEnv("SHUTDOWN_GRACE", defaultShutdownGrace); err != nil {
		return AppConfig{}, err
	}
	if cfg.PreviewTokenTTL, err = durationEnv("PREVIEW_TOKEN_TTL", defaultPreviewTokenTTL); err != nil {
		return AppConfig{}, err
	}
	if cfg.Forms.RateLimitEvery, err = durationEnv("FORM_RATE_LIMIT_WINDOW", defaultFormEvery); err != nil {
		return AppConfig{}, err
	}
	if cfg.Forms.RateLimitBurst, err = intEnv("FORM_RATE_LIMIT", defaultFormBurst); err != nil {
		return AppConfig{}, err
	}
	if cfg.Log.MaxSizeMB, err = intEnv("LOG_MAX_SIZE_MB", 50); err != nil {
		return AppConfig{}, err
	}
	if cfg.Log.MaxBackups, err = intEnv("LOG_MAX_BACKUPS", 5); err != nil {
		return AppConfig{}, err
	}
	if cfg.Log.MaxAgeDays, err = intEnv("LOG_MAX_AGE_DAYS", 30); err != nil {
		return AppConfig{}, err
	}

	maxBytes, err := intEnv("UPLOAD_MAX_BYTES", defaultUploadMaxBytes)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.UploadMaxBytes = int64(maxBytes)

	if cfg.Forms.RateLimitBurst <= 0 {
		return AppConfig{}, eris.Errorf("FORM_RATE_LIMIT must be positive, got %d", cfg.Forms.RateLimitBurst)
	}

	return cfg, nil
}

// UsesDefaultSessionSecret 用于启动时提示未配置 SESSION_SECRET。
func (c AppConfig) UsesDefaultSessionSecret() bool {
	return c.SessionSecret == defaultSessionSecret
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}
