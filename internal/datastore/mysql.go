package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// MySQLConfig holds the MySQL connection parameters.
type MySQLConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

func (c MySQLConfig) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Config        MySQLConfig
	SlowThreshold time.Duration
}

func NewMySQLStore(cfg MySQLConfig, slowThreshold time.Duration) *MySQLStore {
	return &MySQLStore{Config: cfg, SlowThreshold: slowThreshold}
}

func (store *MySQLStore) Open() error {
	if store.Config.Host == "" || store.Config.Database == "" {
		return errors.Newf("mysql host and database are required").
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}

	db, err := gorm.Open(mysql.Open(store.Config.dsn()), gormConfig(store.SlowThreshold))
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", store.Config.Host),
			logger.String("port", store.Config.Port),
			logger.String("database", store.Config.Database),
			logger.Error(err))
		return errors.Newf("failed to open MySQL database: %w", err).
			Category(errors.CategoryDatabase).
			Context("host", store.Config.Host).
			Context("database", store.Config.Database).
			Component("datastore").
			Build()
	}

	store.DB = db
	return performAutoMigration(db, "mysql")
}
