package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Options 控制数据库连接方式。
type Options struct {
	// DSN 为 postgres:// URL 或 key=value 形式时使用 PostgreSQL，否则视为 SQLite 文件路径。
	DSN    string
	Logger gormlogger.Interface
}

// Open opens a GORM connection based on the provided DSN.
func Open(opts Options) (*gorm.DB, error) {
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		dsn = "ctweb.db"
	}

	logger := opts.Logger
	if logger == nil {
		logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	cfg := &gorm.Config{Logger: logger, TranslateError: true}

	switch detectDialect(dsn) {
	case DialectPostgres:
		conn, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres")
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, eris.Wrap(err, "postgres handle")
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		return conn, nil
	default:
		if !isMemoryDSN(dsn) {
			if err := ensureParentDir(sqlitePath(dsn)); err != nil {
				return nil, eris.Wrap(err, "prepare sqlite directory")
			}
		}
		conn, err := gorm.Open(sqlite.Open(withSQLiteParams(dsn)), cfg)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite")
		}
		return conn, nil
	}
}

// Migrate 为全部模型创建或更新表结构。
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return eris.Wrap(err, "auto migrate")
	}
	return nil
}

// Models 按依赖顺序列出需要迁移的模型。
func Models() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&APIKey{},
		&Page{},
		&Block{},
		&BlogPost{},
		&Service{},
		&CaseStudy{},
		&MediaAsset{},
		&FormSubmission{},
		&SiteSetting{},
		&ContentStatistic{},
		&ContentVisit{},
	}
}

// Close 关闭底层连接池。
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Dialect 返回连接所使用的方言名称。
func Dialect(gdb *gorm.DB) string {
	if gdb == nil || gdb.Dialector == nil {
		return ""
	}
	if gdb.Dialector.Name() == "postgres" {
		return DialectPostgres
	}
	return DialectSQLite
}

// CaseInsensitiveLike 返回按方言区分的不区分大小写匹配表达式。
func CaseInsensitiveLike(gdb *gorm.DB, column string) string {
	if Dialect(gdb) == DialectPostgres {
		return fmt.Sprintf("%s ILIKE ?", column)
	}
	return fmt.Sprintf("LOWER(%s) LIKE LOWER(?)", column)
}

func detectDialect(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres
	case strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	return path
}

func withSQLiteParams(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_foreign_keys") {
		params = append(params, "_foreign_keys=on")
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return errors.New("database path parent is not a directory")
		}
		return nil
	}

	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}

	return err
}
