package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	gormlogger "gorm.io/gorm/logger"
)

// Options 描述日志输出方式。
type Options struct {
	Level  string
	Format string
	// File 非空时额外写入按大小滚动的日志文件。
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New constructs a logrus logger configured with JSON (or text) output and the provided level.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetReportCaller(false)
	logger.SetLevel(logrus.InfoLevel)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return nil, eris.Errorf("invalid log format: %s", opts.Format)
	}

	var out io.Writer = os.Stdout
	if file := strings.TrimSpace(opts.File); file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    positiveOr(opts.MaxSizeMB, 50),
			MaxBackups: positiveOr(opts.MaxBackups, 5),
			MaxAge:     positiveOr(opts.MaxAgeDays, 30),
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	if opts.Level == "" {
		return logger, nil
	}

	parsedLevel, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, eris.Wrapf(err, "invalid log level: %s", opts.Level)
	}

	logger.SetLevel(parsedLevel)
	return logger, nil
}

// Discard 返回一个丢弃所有输出的 logger，供测试与未注入日志的组件使用。
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// GormLogger 将 gorm 的慢查询与错误输出转到 logrus。
func GormLogger(logger *logrus.Logger) gormlogger.Interface {
	if logger == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return gormlogger.New(logger.WithField("component", "gorm"), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
