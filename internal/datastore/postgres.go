package datastore

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
	"github.com/questioncrawler/wikidata-cache/internal/privacy"
)

// PostgresStore implements Interface for PostgreSQL.
type PostgresStore struct {
	DataStore
	DSN           string
	SlowThreshold time.Duration
}

func NewPostgresStore(dsn string, slowThreshold time.Duration) *PostgresStore {
	return &PostgresStore{DSN: dsn, SlowThreshold: slowThreshold}
}

func (store *PostgresStore) Open() error {
	if store.DSN == "" {
		return errors.Newf("postgres DSN is empty").
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}

	db, err := gorm.Open(postgres.Open(store.DSN), gormConfig(store.SlowThreshold))
	if err != nil {
		return errors.Newf("failed to open PostgreSQL database: %w", privacy.WrapError(err)).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Build()
	}

	store.DB = db
	GetLogger().Info("opened PostgreSQL database", logger.String("dsn", privacy.ScrubMessage(store.DSN)))
	return performAutoMigration(db, "postgres")
}
