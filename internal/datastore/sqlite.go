package datastore

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// SQLiteStore implements Interface for SQLite. A path of ":memory:" gives a
// private in-memory database.
type SQLiteStore struct {
	DataStore
	Path          string
	SlowThreshold time.Duration
}

func NewSQLiteStore(path string, slowThreshold time.Duration) *SQLiteStore {
	return &SQLiteStore{Path: path, SlowThreshold: slowThreshold}
}

func (store *SQLiteStore) Open() error {
	if store.Path == "" {
		return errors.Newf("sqlite path is empty").
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}

	dsn := store.Path
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Newf("failed to create database directory: %w", err).
					Category(errors.CategoryDatabase).
					Context("path", dir).
					Component("datastore").
					Build()
			}
		}
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(store.SlowThreshold))
	if err != nil {
		return errors.Newf("failed to open SQLite database: %w", err).
			Category(errors.CategoryDatabase).
			Context("path", store.Path).
			Component("datastore").
			Build()
	}

	// One connection keeps ":memory:" a single database and serialises writers.
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Newf("failed to retrieve generic DB object: %w", err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}
	sqlDB.SetMaxOpenConns(1)

	store.DB = db
	GetLogger().Info("opened SQLite database", logger.String("path", store.Path))
	return performAutoMigration(db, "sqlite")
}
