package main

import (
	"fmt"
	"os"

	"github.com/M4MEET/ct-web-sub001/internal/config"
	"github.com/M4MEET/ct-web-sub001/internal/db"
	"github.com/M4MEET/ct-web-sub001/internal/logging"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// 构建时通过 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, false))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "ctweb",
		Short:         "Multi-tenant marketing site and content API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env 只补充未设置的变量，文件不存在时忽略。
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return eris.Wrapf(err, "load %s", envFile)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newTenantCmd(),
		newUserCmd(),
		newAPIKeyCmd(),
	)
	return root
}

// runtime 汇总子命令共用的配置、日志与数据库连接。
type runtime struct {
	cfg    config.AppConfig
	logger *logrus.Logger
	db     *gorm.DB
}

func bootstrap() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, eris.Wrap(err, "load configuration")
	}
	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, eris.Wrap(err, "configure logger")
	}
	gdb, err := db.Open(db.Options{DSN: cfg.DatabaseURL, Logger: logging.GormLogger(logger)})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		_ = db.Close(gdb)
		return nil, err
	}
	logger.WithField("dialect", db.Dialect(gdb)).Debug("database ready")
	return &runtime{cfg: cfg, logger: logger, db: gdb}, nil
}

func (rt *runtime) Close() {
	if err := db.Close(rt.db); err != nil {
		rt.logger.WithError(err).Warn("failed to close database")
	}
}
