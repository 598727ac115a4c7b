package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const errDBClientNil = "db client is nil"

// sqlite extended result codes for uniqueness violations
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// ErrClientNil is returned by operations on a nil or closed client.
var ErrClientNil = errors.New(errDBClientNil)

type DBClient struct {
	DB   *gorm.DB
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the SQLite file at dbPath and migrates the
// given models.
func Open(dbPath string, models ...any) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// one writer at a time; SQLite serialises writes anyway
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	return &DBClient{DB: db, db: sqlDB, path: dbPath}, nil
}

func (c *DBClient) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

func (c *DBClient) Ping() error {
	if c == nil || c.db == nil {
		return ErrClientNil
	}
	return c.db.Ping()
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// IsUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return true
		}
	}
	return false
}
