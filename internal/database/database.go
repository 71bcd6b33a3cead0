// Package database provides the sqlite connection behind the result cache index.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrUnsupportedDriver indicates the database URL uses an unsupported driver.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

const (
	sqlitePrefix = "sqlite:///"
	memoryPath   = ":memory:"
)

// Database wraps a GORM connection with lifecycle management.
type Database struct {
	db *gorm.DB
}

// NewDatabase opens a database from a connection URL of the form
// sqlite:///path/to/file.db or sqlite:///:memory:. Parent directories of a
// file database are created.
func NewDatabase(ctx context.Context, url string) (Database, error) {
	return NewDatabaseWithLogger(ctx, url, nil)
}

// NewDatabaseWithLogger opens a database whose SQL trace goes to logger.
// A nil logger uses slog.Default at the time of each query.
func NewDatabaseWithLogger(ctx context.Context, url string, logger *slog.Logger) (Database, error) {
	path, err := parseSQLitePath(url)
	if err != nil {
		return Database{}, fmt.Errorf("parse database url: %w", err)
	}
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Database{}, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: slogGormLogger{logger: logger},
	})
	if err != nil {
		return Database{}, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return Database{}, fmt.Errorf("get underlying db: %w", err)
	}
	// Each pooled connection to :memory: opens a separate empty database.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		return Database{}, fmt.Errorf("ping database: %w", err)
	}

	return Database{db: db}, nil
}

// Session returns a GORM session with the given context.
func (d Database) Session(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

// AutoMigrate creates or updates the tables of the given models.
func (d Database) AutoMigrate(ctx context.Context, models ...any) error {
	if err := d.Session(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying db: %w", err)
	}
	return sqlDB.Close()
}

func parseSQLitePath(url string) (string, error) {
	if !strings.HasPrefix(url, sqlitePrefix) {
		return "", ErrUnsupportedDriver
	}
	path := strings.TrimPrefix(url, sqlitePrefix)
	if path == "" {
		return "", errors.New("empty sqlite path")
	}
	return path, nil
}
