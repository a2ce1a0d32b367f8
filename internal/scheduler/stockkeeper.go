// Package scheduler keeps category stock at the configured floor by running
// the cache initialisation on a cron schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/questioncrawler/wikidata-cache/internal/entrycache"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

const defaultSchedule = "@every 6h"

// Initializer tops every category up to the stock floor.
type Initializer interface {
	IsDatabaseInitialized(ctx context.Context) bool
	InitializeDatabase(ctx context.Context) []entrycache.InitResult
}

// StockKeeper runs an Initializer periodically. Overlapping runs are skipped.
type StockKeeper struct {
	refill   Initializer
	cron     *cron.Cron
	schedule string
	log      logger.Logger

	// ctx is cancelled by Stop so a running job can wind down.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// Option customises the StockKeeper.
type Option func(*StockKeeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(k *StockKeeper) {
		if c != nil {
			k.cron = c
		}
	}
}

// WithSchedule overrides the cron specification.
func WithSchedule(spec string) Option {
	return func(k *StockKeeper) {
		if spec != "" {
			k.schedule = spec
		}
	}
}

func NewStockKeeper(refill Initializer, opts ...Option) *StockKeeper {
	ctx, cancel := context.WithCancel(context.Background())
	k := &StockKeeper{
		refill:   refill,
		schedule: defaultSchedule,
		log:      logger.Get("scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.cron == nil {
		k.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return k
}

// Start registers the refill job and launches the scheduler.
func (k *StockKeeper) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return nil
	}

	if _, err := k.cron.AddFunc(k.schedule, func() { k.RunOnce(k.ctx) }); err != nil {
		return errors.Newf("invalid stock schedule %q: %w", k.schedule, err).
			Category(errors.CategoryConfiguration).
			Component("scheduler").
			Build()
	}

	k.cron.Start()
	k.started = true
	k.log.Info("stock keeper started", logger.String("schedule", k.schedule))
	return nil
}

// Stop halts the scheduler. The returned context is done once a running job
// has completed.
func (k *StockKeeper) Stop() context.Context {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cancel()
	if !k.started {
		return k.ctx
	}
	k.started = false
	return k.cron.Stop()
}

// WarmUp runs one refill pass unless every category already holds the floor.
// It reports whether a pass ran.
func (k *StockKeeper) WarmUp(ctx context.Context) bool {
	if k.refill.IsDatabaseInitialized(ctx) {
		k.log.Info("stock at floor, skipping warm-up")
		return false
	}
	k.log.Info("stock below floor, warming up")
	k.RunOnce(ctx)
	return true
}

// RunOnce performs one refill pass and logs a summary.
func (k *StockKeeper) RunOnce(ctx context.Context) []entrycache.InitResult {
	start := time.Now()
	results := k.refill.InitializeDatabase(ctx)

	requested, saved, failed := 0, 0, 0
	for _, r := range results {
		requested += r.Requested
		saved += r.Saved
		if r.Err != nil {
			failed++
		}
	}

	k.log.Info("stock refill finished",
		logger.Int("categories", len(results)),
		logger.Int("requested", requested),
		logger.Int("saved", saved),
		logger.Int("failed", failed),
		logger.Duration("elapsed", time.Since(start)))
	return results
}
