package entrycache

import (
	"github.com/questioncrawler/wikidata-cache/internal/lock"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// Options configures a Service. Start from DefaultOptions.
type Options struct {
	// MinEntriesPerCategory is the stock floor initialisation fills up to.
	MinEntriesPerCategory int
	// DefaultSampleSize is used when a caller asks for count <= 0.
	DefaultSampleSize int
	// RequireImage drops upstream records without an image.
	RequireImage bool
	// RandomEntryAttempts bounds the category picks of GetRandomEntry.
	RandomEntryAttempts int

	Locker  lock.Locker
	Metrics MetricsRecorder
	Logger  logger.Logger
}

func DefaultOptions() Options {
	return Options{
		MinEntriesPerCategory: 500,
		DefaultSampleSize:     10,
		RequireImage:          true,
		RandomEntryAttempts:   3,
	}
}

func (o *Options) applyDefaults() {
	d := DefaultOptions()
	if o.MinEntriesPerCategory <= 0 {
		o.MinEntriesPerCategory = d.MinEntriesPerCategory
	}
	if o.DefaultSampleSize <= 0 {
		o.DefaultSampleSize = d.DefaultSampleSize
	}
	if o.RandomEntryAttempts <= 0 {
		o.RandomEntryAttempts = d.RandomEntryAttempts
	}
	if o.Locker == nil {
		o.Locker = lock.NewLocalLocker()
	}
	if o.Metrics == nil {
		o.Metrics = noopRecorder{}
	}
	if o.Logger == nil {
		o.Logger = logger.Get("entrycache")
	}
}

// MetricsRecorder receives service level measurements.
type MetricsRecorder interface {
	RecordOperation(operation, status string)
	RecordDuration(operation string, seconds float64)
	RecordTopUp(category string, requested, saved, duplicates int)
	SetStock(category string, n int64)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, string)    {}
func (noopRecorder) RecordDuration(string, float64)    {}
func (noopRecorder) RecordTopUp(string, int, int, int) {}
func (noopRecorder) SetStock(string, int64)            {}
