// Package entrycache serves trivia entries from the store and tops the store
// up from Wikidata when a category runs short.
//
// Public operations never return errors. Failures are logged and turned into
// an empty result, which callers read as "temporarily unavailable".
package entrycache

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/datastore"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
	"github.com/questioncrawler/wikidata-cache/internal/wikidata"
)

const (
	opGetEntries   = "get_entries"
	opRandomEntry  = "random_entry"
	opFetchAndSave = "fetch_and_save"
	opInitialize   = "initialize"
	opIsReady      = "is_initialized"
	opStock        = "stock"

	statusSuccess = "success"
	statusEmpty   = "empty"
	statusError   = "error"
)

// Store is the part of the entry store the service uses.
type Store interface {
	Count(ctx context.Context, c category.Category) (int64, error)
	CountAll(ctx context.Context) (map[category.Category]int64, error)
	SampleRandom(ctx context.Context, c category.Category, n int) ([]datastore.Entry, error)
	FindRecent(ctx context.Context, c category.Category, n int) ([]datastore.Entry, error)
	FindOneRandomOffset(ctx context.Context, c category.Category) (*datastore.Entry, error)
	Insert(ctx context.Context, e *datastore.Entry) error
}

// Upstream fetches the raw records of a category. A nil slice with an error
// means the upstream is unavailable.
type Upstream interface {
	FetchCategory(ctx context.Context, c category.Category) ([]wikidata.Record, error)
}

// InitResult reports what InitializeDatabase did for one category.
type InitResult struct {
	Category  category.Category `json:"category"`
	Before    int64             `json:"before"`
	Requested int               `json:"requested"`
	Saved     int               `json:"saved"`
	Err       error             `json:"-"`
}

// Service is the cache orchestrator. It holds no state besides its
// collaborators; durable state lives in the store.
type Service struct {
	store    Store
	upstream Upstream
	opts     Options
	log      logger.Logger
}

func New(store Store, upstream Upstream, opts Options) *Service {
	opts.applyDefaults()
	return &Service{
		store:    store,
		upstream: upstream,
		opts:     opts,
		log:      opts.Logger,
	}
}

// MinEntriesPerCategory returns the configured stock floor.
func (s *Service) MinEntriesPerCategory() int {
	return s.opts.MinEntriesPerCategory
}

// GetEntriesForCategory returns up to count entries of c. When the store holds
// fewer than count, the deficit is fetched from upstream first and the result
// is the existing entries followed by the new ones. count <= 0 returns a
// random sample of DefaultSampleSize without any top-up.
func (s *Service) GetEntriesForCategory(ctx context.Context, c category.Category, count int) []datastore.Entry {
	entries, err := guard(ctx, s, opGetEntries, func() ([]datastore.Entry, error) {
		return s.getEntriesForCategory(ctx, c, count)
	})
	if err != nil {
		s.fail(ctx, opGetEntries, err, logger.String("category", string(c)), logger.Int("count", count))
		return []datastore.Entry{}
	}
	s.succeed(opGetEntries, len(entries))
	return entries
}

func (s *Service) getEntriesForCategory(ctx context.Context, c category.Category, count int) ([]datastore.Entry, error) {
	if !c.IsValid() {
		s.logUnknownCategory(ctx, c)
		return []datastore.Entry{}, nil
	}

	if count <= 0 {
		return s.store.SampleRandom(ctx, c, s.opts.DefaultSampleSize)
	}

	stock, err := s.store.Count(ctx, c)
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.SetStock(string(c), stock)

	if stock >= int64(count) {
		return s.store.SampleRandom(ctx, c, count)
	}

	existing, err := s.store.FindRecent(ctx, c, count)
	if err != nil {
		return nil, err
	}

	deficit := count - int(stock)
	fresh, ran, err := s.topUp(ctx, c, deficit)
	if err != nil {
		// Whatever was saved before the failure is still served.
		s.log.WithContext(ctx).Warn("top-up failed, serving existing entries",
			logger.String("category", string(c)),
			logger.Int("deficit", deficit),
			logger.Error(err))
	}

	if !ran {
		// Another caller did the top-up; pick its entries up from the store.
		fresh, err = s.store.FindRecent(ctx, c, count)
		if err != nil {
			return nil, err
		}
	}

	return mergeEntries(existing, fresh, count), nil
}

// mergeEntries appends the entries of fresh not already in existing and
// truncates the result to limit.
func mergeEntries(existing, fresh []datastore.Entry, limit int) []datastore.Entry {
	out := make([]datastore.Entry, 0, min(limit, len(existing)+len(fresh)))
	seen := make(map[string]struct{}, len(existing)+len(fresh))
	for _, list := range [][]datastore.Entry{existing, fresh} {
		for _, e := range list {
			if len(out) == limit {
				return out
			}
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// GetRandomEntry returns one entry of a randomly picked category, or nil.
// An empty category is topped up to MinEntriesPerCategory and read again; when
// the fill brings nothing another category is picked. At most
// RandomEntryAttempts fills are tried.
func (s *Service) GetRandomEntry(ctx context.Context) *datastore.Entry {
	entry, err := guard(ctx, s, opRandomEntry, func() (*datastore.Entry, error) {
		return s.getRandomEntry(ctx)
	})
	if err != nil {
		s.fail(ctx, opRandomEntry, err)
		return nil
	}
	if entry == nil {
		s.succeed(opRandomEntry, 0)
		return nil
	}
	s.succeed(opRandomEntry, 1)
	return entry
}

func (s *Service) getRandomEntry(ctx context.Context) (*datastore.Entry, error) {
	c := category.Random()
	for attempt := 1; attempt <= s.opts.RandomEntryAttempts; attempt++ {
		stock, err := s.store.Count(ctx, c)
		if err != nil {
			return nil, err
		}

		if stock > 0 {
			return s.store.FindOneRandomOffset(ctx, c)
		}

		s.log.WithContext(ctx).Info("category empty, filling before picking",
			logger.String("category", string(c)),
			logger.Int("attempt", attempt))
		saved, ran, err := s.topUp(ctx, c, s.opts.MinEntriesPerCategory)
		if err != nil {
			s.log.WithContext(ctx).Warn("fill for random entry failed",
				logger.String("category", string(c)),
				logger.Error(err))
		}
		if ran && len(saved) == 0 {
			c = category.Random()
			continue
		}

		entry, err := s.store.FindOneRandomOffset(ctx, c)
		if err != nil || entry != nil {
			return entry, err
		}
	}

	s.log.WithContext(ctx).Warn("no random entry available",
		logger.Int("attempts", s.opts.RandomEntryAttempts))
	return nil, nil
}

// FetchAndSaveEntries pulls up to count new entries of c from upstream and
// persists them. Only the entries actually stored are returned; duplicates
// are skipped.
func (s *Service) FetchAndSaveEntries(ctx context.Context, c category.Category, count int) []datastore.Entry {
	saved, err := guard(ctx, s, opFetchAndSave, func() ([]datastore.Entry, error) {
		return s.fetchAndSave(ctx, c, count)
	})
	if err != nil {
		s.fail(ctx, opFetchAndSave, err, logger.String("category", string(c)), logger.Int("count", count))
		if saved == nil {
			return []datastore.Entry{}
		}
		return saved
	}
	s.succeed(opFetchAndSave, len(saved))
	return saved
}

// topUp runs fetchAndSave under the category lock. The top-up is detached from
// ctx cancellation so a client disconnect does not abort it half way. ran is
// false when a concurrent top-up of c was joined instead.
func (s *Service) topUp(ctx context.Context, c category.Category, n int) (saved []datastore.Entry, ran bool, err error) {
	ctx = context.WithoutCancel(ctx)
	ran, err = s.opts.Locker.Do(ctx, "topup:"+string(c), func(ctx context.Context) error {
		var err error
		saved, err = s.fetchAndSave(ctx, c, n)
		return err
	})
	return saved, ran, err
}

// fetchAndSave returns the entries stored before any non-duplicate insert
// failure together with that failure.
func (s *Service) fetchAndSave(ctx context.Context, c category.Category, count int) ([]datastore.Entry, error) {
	saved := []datastore.Entry{}

	def, ok := category.Lookup(c)
	if !ok {
		s.logUnknownCategory(ctx, c)
		return saved, nil
	}
	if count <= 0 {
		return saved, nil
	}

	log := s.log.Module("topup").WithContext(ctx).With(logger.String("category", string(c)))
	start := time.Now()

	records, err := s.upstream.FetchCategory(ctx, c)
	if err != nil || len(records) == 0 {
		if err != nil {
			log.Warn("upstream unavailable, no entries fetched", logger.Error(err))
		} else {
			log.Info("upstream returned no records")
		}
		s.opts.Metrics.RecordTopUp(string(c), count, 0, 0)
		return saved, nil
	}

	candidates := s.candidates(records)
	duplicates := 0

	// Duplicates do not use up the count; later candidates take their place.
	for _, rec := range candidates {
		if len(saved) == count {
			break
		}
		entry, err := datastore.NewEntry(c, def.Project(rec), rec, rec[category.ImageField])
		if err != nil {
			s.opts.Metrics.RecordTopUp(string(c), count, len(saved), duplicates)
			return saved, errors.New(err).
				Category(errors.CategoryValidation).
				Component("entrycache").
				Context("category", string(c)).
				Build()
		}

		if err := s.store.Insert(ctx, entry); err != nil {
			if errors.Is(err, datastore.ErrDuplicateKey) {
				duplicates++
				continue
			}
			s.opts.Metrics.RecordTopUp(string(c), count, len(saved), duplicates)
			return saved, err
		}
		saved = append(saved, *entry)
	}

	s.opts.Metrics.RecordTopUp(string(c), count, len(saved), duplicates)
	log.Info("top-up finished",
		logger.Int("requested", count),
		logger.Int("records", len(records)),
		logger.Int("candidates", len(candidates)),
		logger.Int("saved", len(saved)),
		logger.Int("duplicates", duplicates),
		logger.Duration("elapsed", time.Since(start)))

	return saved, nil
}

// candidates keeps the records eligible for storage, in upstream order.
func (s *Service) candidates(records []wikidata.Record) []wikidata.Record {
	if !s.opts.RequireImage {
		return records
	}
	out := make([]wikidata.Record, 0, len(records))
	for _, r := range records {
		if r[category.ImageField] != "" {
			out = append(out, r)
		}
	}
	return out
}

// IsDatabaseInitialized reports whether every category holds at least
// MinEntriesPerCategory entries.
func (s *Service) IsDatabaseInitialized(ctx context.Context) bool {
	ready, err := guard(ctx, s, opIsReady, func() (bool, error) {
		for _, c := range category.All() {
			n, err := s.store.Count(ctx, c)
			if err != nil {
				return false, err
			}
			if n < int64(s.opts.MinEntriesPerCategory) {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		s.fail(ctx, opIsReady, err)
		return false
	}
	return ready
}

// InitializeDatabase tops every category up to MinEntriesPerCategory, one
// category at a time in registry order. Re-running it is safe.
func (s *Service) InitializeDatabase(ctx context.Context) []InitResult {
	results, err := guard(ctx, s, opInitialize, func() ([]InitResult, error) {
		return s.initializeDatabase(ctx), nil
	})
	if err != nil {
		s.fail(ctx, opInitialize, err)
		return results
	}
	s.succeed(opInitialize, len(results))
	return results
}

func (s *Service) initializeDatabase(ctx context.Context) []InitResult {
	results := make([]InitResult, 0, len(category.All()))
	for _, c := range category.All() {
		res := InitResult{Category: c}

		before, err := s.store.Count(ctx, c)
		if err != nil {
			res.Err = err
			s.log.WithContext(ctx).Error("failed to count category during initialisation",
				logger.String("category", string(c)), logger.Error(err))
			results = append(results, res)
			continue
		}
		res.Before = before

		shortfall := s.opts.MinEntriesPerCategory - int(before)
		if shortfall <= 0 {
			s.opts.Metrics.SetStock(string(c), before)
			results = append(results, res)
			continue
		}
		res.Requested = shortfall

		saved, _, err := s.topUp(ctx, c, shortfall)
		res.Saved = len(saved)
		res.Err = err
		if err != nil {
			s.log.WithContext(ctx).Error("failed to initialise category",
				logger.String("category", string(c)), logger.Error(err))
		}
		s.opts.Metrics.SetStock(string(c), before+int64(len(saved)))
		results = append(results, res)
	}
	return results
}

// Stock returns the entry count of every category, zero included.
func (s *Service) Stock(ctx context.Context) (map[category.Category]int64, error) {
	return guard(ctx, s, opStock, func() (map[category.Category]int64, error) {
		counts, err := s.store.CountAll(ctx)
		if err != nil {
			return nil, err
		}
		stock := make(map[category.Category]int64, len(category.All()))
		for _, c := range category.All() {
			stock[c] = counts[c]
			s.opts.Metrics.SetStock(string(c), counts[c])
		}
		return stock, nil
	})
}

// guard runs fn, converting a panic into an error and timing the operation.
func guard[T any](ctx context.Context, s *Service, op string, fn func() (T, error)) (result T, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = errors.Newf("panic in %s: %v", op, r).
				Category(errors.CategoryGeneric).
				Priority(errors.PriorityCritical).
				Component("entrycache").
				Context("operation", op).
				Build()
			s.log.WithContext(ctx).Error("recovered panic",
				logger.String("operation", op),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
		}
		s.opts.Metrics.RecordDuration(op, time.Since(start).Seconds())
	}()
	return fn()
}

func (s *Service) succeed(op string, n int) {
	if n == 0 {
		s.opts.Metrics.RecordOperation(op, statusEmpty)
		return
	}
	s.opts.Metrics.RecordOperation(op, statusSuccess)
}

func (s *Service) fail(ctx context.Context, op string, err error, fields ...logger.Field) {
	s.opts.Metrics.RecordOperation(op, statusError)
	fields = append(fields, logger.String("operation", op), logger.Error(err))
	s.log.WithContext(ctx).Error(fmt.Sprintf("%s failed", op), fields...)
}

func (s *Service) logUnknownCategory(ctx context.Context, c category.Category) {
	s.log.WithContext(ctx).Error("unknown category requested",
		logger.String("category", string(c)),
		logger.String("error_type", string(errors.CategoryUnknownCategory)))
}
