package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks the entry cache: operation outcomes, top-ups and stock.
type CacheMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	topUpsTotal       *prometheus.CounterVec
	entriesRequested  *prometheus.CounterVec
	entriesSaved      *prometheus.CounterVec
	duplicatesTotal   *prometheus.CounterVec
	stock             *prometheus.GaugeVec
}

// NewCacheMetrics creates and registers the cache collectors.
func NewCacheMetrics(registry prometheus.Registerer) (*CacheMetrics, error) {
	m := &CacheMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CacheMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrycache_operations_total",
			Help: "Total number of cache service operations",
		},
		[]string{"operation", "status"}, // status: success, empty, error
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entrycache_operation_duration_seconds",
			Help:    "Time taken by cache service operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount16), // 1ms to ~32s
		},
		[]string{"operation"},
	)

	m.topUpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrycache_topups_total",
			Help: "Total number of upstream top-ups per category",
		},
		[]string{"category"},
	)

	m.entriesRequested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrycache_entries_requested_total",
			Help: "Entries asked for by top-ups",
		},
		[]string{"category"},
	)

	m.entriesSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrycache_entries_saved_total",
			Help: "Entries persisted by top-ups",
		},
		[]string{"category"},
	)

	m.duplicatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entrycache_duplicates_total",
			Help: "Upstream records skipped because they were already stored",
		},
		[]string{"category"},
	)

	m.stock = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "entrycache_stock_entries",
			Help: "Stored entries per category at the last count",
		},
		[]string{"category"},
	)
}

func (m *CacheMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.topUpsTotal,
		m.entriesRequested,
		m.entriesSaved,
		m.duplicatesTotal,
		m.stock,
	}
}

// Describe implements prometheus.Collector.
func (m *CacheMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *CacheMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}

func (m *CacheMetrics) RecordOperation(operation, status string) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
}

func (m *CacheMetrics) RecordDuration(operation string, seconds float64) {
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordTopUp records one fetch-and-save pass.
func (m *CacheMetrics) RecordTopUp(category string, requested, saved, duplicates int) {
	m.topUpsTotal.WithLabelValues(category).Inc()
	m.entriesRequested.WithLabelValues(category).Add(float64(requested))
	m.entriesSaved.WithLabelValues(category).Add(float64(saved))
	m.duplicatesTotal.WithLabelValues(category).Add(float64(duplicates))
}

func (m *CacheMetrics) SetStock(category string, n int64) {
	m.stock.WithLabelValues(category).Set(float64(n))
}
