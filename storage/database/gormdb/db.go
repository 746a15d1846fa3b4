package gormrepos

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/trezcool/classroom/core"
)

const defaultSQLiteDSN = "classroom.db"

// Open opens the sqlite or postgres database of conf and migrates it.
func Open(conf *core.Config) (*gorm.DB, error) {
	lvl := logger.Warn
	if conf.Debug {
		lvl = logger.Info
	}
	if conf.TestMode {
		lvl = logger.Silent
	}
	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	switch conf.Database.Engine {
	case core.EngineSQLite:
		dsn := conf.Database.DSN
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		if err := ensureDirForSQLite(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case core.EnginePostgres:
		dialector = postgres.Open(conf.Database.DSN)
	default:
		return nil, errors.Errorf("gorm: unsupported database engine %q", conf.Database.Engine)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&profileModel{}, &courseModel{}, &taskModel{}, &messageModel{}); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create db dir %q", dir)
	}
	return nil
}
