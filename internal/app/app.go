// Package app assembles the cache service from the settings: store, upstream
// client, top-up lock, metrics and the cache orchestrator.
package app

import (
	"context"

	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/datastore"
	"github.com/questioncrawler/wikidata-cache/internal/entrycache"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/lock"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
	"github.com/questioncrawler/wikidata-cache/internal/observability"
	"github.com/questioncrawler/wikidata-cache/internal/privacy"
	"github.com/questioncrawler/wikidata-cache/internal/wikidata"
)

// App holds the wired components. Close releases them.
type App struct {
	Settings *conf.Settings
	Store    datastore.Interface
	Upstream *wikidata.Client
	Locker   lock.Locker
	Metrics  *observability.Metrics
	Service  *entrycache.Service

	closers []func() error
	log     logger.Logger
}

// New opens the store and builds every component. On error everything
// opened so far is closed again.
func New(ctx context.Context, settings *conf.Settings) (_ *App, err error) {
	a := &App{Settings: settings, log: logger.Get("app")}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Metrics, err = observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	a.Store, err = datastore.New(settings)
	if err != nil {
		return nil, err
	}
	if err = a.Store.Open(); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	a.Upstream, err = wikidata.NewClient(WikidataConfig(settings), wikidata.WithMetrics(a.Metrics.Upstream))
	if err != nil {
		return nil, err
	}

	if settings.Redis.Enabled {
		rl, lerr := lock.NewRedisLocker(ctx, lock.RedisConfig{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
			TTL:      settings.Redis.LockTTL,
		})
		if lerr != nil {
			return nil, lerr
		}
		a.Locker = rl
		a.closers = append(a.closers, rl.Close)
	} else {
		a.Locker = lock.NewLocalLocker()
	}

	opts := CacheOptions(settings)
	opts.Locker = a.Locker
	opts.Metrics = a.Metrics.Cache
	a.Service = entrycache.New(a.Store, a.Upstream, opts)

	a.log.Info("cache service ready",
		logger.String("database", settings.Database.Type),
		logger.String("endpoint", privacy.SanitizeURL(a.Upstream.Config().Endpoint)),
		logger.Bool("shared_lock", settings.Redis.Enabled),
		logger.Int("min_entries", opts.MinEntriesPerCategory))

	return a, nil
}

// Close releases the components in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// WikidataConfig maps the settings onto the upstream client config.
func WikidataConfig(settings *conf.Settings) wikidata.Config {
	w := settings.Wikidata
	return wikidata.Config{
		Endpoint:      w.Endpoint,
		UserAgent:     w.UserAgent,
		Language:      w.Language,
		QueryLimit:    w.QueryLimit,
		Timeout:       w.Timeout,
		CacheTTL:      w.CacheTTL,
		MaxAttempts:   w.MaxAttempts,
		RetryDelay:    w.RetryDelay,
		MaxRetryAfter: w.MaxRetryAfter,
		RateLimit:     w.RateLimit,
		RateBurst:     w.RateBurst,
	}
}

// CacheOptions maps the settings onto the cache service options.
func CacheOptions(settings *conf.Settings) entrycache.Options {
	c := settings.Cache
	return entrycache.Options{
		MinEntriesPerCategory: c.MinEntriesPerCategory,
		DefaultSampleSize:     c.DefaultSampleSize,
		RequireImage:          c.RequireImage,
		RandomEntryAttempts:   c.RandomEntryAttempts,
	}
}
