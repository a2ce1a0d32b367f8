// Package datastore persists trivia entries. The gorm backends (SQLite, MySQL,
// PostgreSQL) share DataStore; MongoStore talks to MongoDB directly.
package datastore

import (
	"context"
	"strings"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
)

// Interface is the entry store contract.
type Interface interface {
	Open() error
	Close() error
	Ping(ctx context.Context) error

	// Count returns the number of stored entries for c.
	Count(ctx context.Context, c category.Category) (int64, error)
	// CountAll returns the stock of every category that has entries.
	CountAll(ctx context.Context) (map[category.Category]int64, error)
	// SampleRandom returns up to n entries drawn uniformly from all entries of c.
	SampleRandom(ctx context.Context, c category.Category, n int) ([]Entry, error)
	// FindRecent returns up to n entries of c, newest first.
	FindRecent(ctx context.Context, c category.Category, n int) ([]Entry, error)
	// FindOneRandomOffset returns the entry at a random offset in [0, count),
	// or nil when c has no entries.
	FindOneRandomOffset(ctx context.Context, c category.Category) (*Entry, error)
	// Insert persists e. A repeat of an existing entry yields ErrDuplicateKey.
	Insert(ctx context.Context, e *Entry) error
}

var (
	// ErrDuplicateKey is returned by Insert when the entry already exists.
	ErrDuplicateKey = errors.NewStd("duplicate entry")
	// ErrNotOpen is returned when the store is used before Open.
	ErrNotOpen = errors.NewStd("database connection is not initialized")
)

// New returns the store selected by settings.Database.Type. Call Open before use.
func New(settings *conf.Settings) (Interface, error) {
	db := settings.Database
	switch strings.ToLower(db.Type) {
	case "", conf.DatabaseSQLite:
		return NewSQLiteStore(db.SQLite.Path, db.SlowQueryThreshold), nil
	case conf.DatabaseMySQL:
		return NewMySQLStore(MySQLConfig{
			Host:     db.MySQL.Host,
			Port:     db.MySQL.Port,
			Username: db.MySQL.Username,
			Password: db.MySQL.Password,
			Database: db.MySQL.Database,
		}, db.SlowQueryThreshold), nil
	case conf.DatabasePostgres:
		return NewPostgresStore(db.Postgres.DSN, db.SlowQueryThreshold), nil
	case conf.DatabaseMongo:
		return NewMongoStore(MongoConfig{
			URI:        db.Mongo.URI,
			Database:   db.Mongo.Database,
			Collection: db.Mongo.Collection,
			Timeout:    db.Mongo.Timeout,
		}), nil
	default:
		return nil, errors.Newf("unsupported database type %q", db.Type).
			Category(errors.CategoryConfiguration).
			Component("datastore").
			Build()
	}
}
