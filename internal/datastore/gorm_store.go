package datastore

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// DataStore implements the query side of Interface on a GORM database.
// Backends embed it and provide Open.
type DataStore struct {
	DB *gorm.DB
}

func gormConfig(slowThreshold time.Duration) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(GetLogger(), slowThreshold),
		TranslateError: true,
	}
}

// performAutoMigration creates or updates the entries table and its indexes.
func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return errors.Newf("failed to migrate %s schema: %w", dbType, err).
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Component("datastore").
			Build()
	}
	GetLogger().Debug("database migration completed",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

func (ds *DataStore) db(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, ErrNotOpen
	}
	return ds.DB.WithContext(ctx), nil
}

// Close releases the connection pool.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}

func (ds *DataStore) Ping(ctx context.Context) error {
	if ds.DB == nil {
		return ErrNotOpen
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (ds *DataStore) Count(ctx context.Context, c category.Category) (int64, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&Entry{}).Where("category = ?", c).Count(&n).Error; err != nil {
		return 0, dbError("count entries", c, err)
	}
	return n, nil
}

func (ds *DataStore) CountAll(ctx context.Context) (map[category.Category]int64, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Category category.Category
		Total    int64
	}
	if err := db.Model(&Entry{}).
		Select("category, COUNT(*) AS total").
		Group("category").
		Scan(&rows).Error; err != nil {
		return nil, dbError("count all entries", "", err)
	}

	out := make(map[category.Category]int64, len(rows))
	for _, r := range rows {
		out[r.Category] = r.Total
	}
	return out, nil
}

func (ds *DataStore) SampleRandom(ctx context.Context, c category.Category, n int) ([]Entry, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	entries := []Entry{}
	if n <= 0 {
		return entries, nil
	}
	if err := db.Where("category = ?", c).
		Order(randomOrder(db)).
		Limit(n).
		Find(&entries).Error; err != nil {
		return nil, dbError("sample entries", c, err)
	}
	return entries, nil
}

func (ds *DataStore) FindRecent(ctx context.Context, c category.Category, n int) ([]Entry, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	entries := []Entry{}
	if n <= 0 {
		return entries, nil
	}
	if err := db.Where("category = ?", c).
		Order("created_at DESC").
		Order("id").
		Limit(n).
		Find(&entries).Error; err != nil {
		return nil, dbError("find recent entries", c, err)
	}
	return entries, nil
}

func (ds *DataStore) FindOneRandomOffset(ctx context.Context, c category.Category) (*Entry, error) {
	total, err := ds.Count(ctx, c)
	if err != nil || total == 0 {
		return nil, err
	}

	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := db.Where("category = ?", c).
		Order("created_at").
		Order("id").
		Offset(int(rand.Int64N(total))).
		Limit(1).
		Find(&entries).Error; err != nil {
		return nil, dbError("find entry by offset", c, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (ds *DataStore) Insert(ctx context.Context, e *Entry) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	e.prepare()
	if err := db.Create(e).Error; err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s %s", ErrDuplicateKey, e.Category, e.DedupeKey[:12])
		}
		return dbError("insert entry", e.Category, err)
	}
	return nil
}

// randomOrder returns the dialect's random ordering function.
func randomOrder(db *gorm.DB) string {
	if db.Dialector.Name() == "mysql" {
		return "RAND()"
	}
	return "RANDOM()"
}

// isDuplicateKeyError recognises unique violations, translated or not.
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

func dbError(op string, c category.Category, err error) error {
	return errors.Newf("%s: %w", op, err).
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Context("category", string(c)).
		Component("datastore").
		Build()
}
