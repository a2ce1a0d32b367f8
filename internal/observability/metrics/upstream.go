package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks SPARQL endpoint traffic and the query cache.
type UpstreamMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	failuresTotal   *prometheus.CounterVec
	queryCacheTotal *prometheus.CounterVec
}

func NewUpstreamMetrics(registry prometheus.Registerer) (*UpstreamMetrics, error) {
	m := &UpstreamMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikidata_requests_total",
				Help: "HTTP requests sent to the SPARQL endpoint",
			},
			[]string{"status"}, // HTTP status code, or "error" for transport failures
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wikidata_request_duration_seconds",
				Help:    "Latency of SPARQL endpoint requests",
				Buckets: prometheus.ExponentialBuckets(BucketStart1ms*10, BucketFactor2, BucketCount12), // 10ms to ~20s
			},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikidata_query_failures_total",
				Help: "Queries that failed after every attempt",
			},
			[]string{"reason"}, // status, network, parse, cancelled
		),
		queryCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wikidata_query_cache_lookups_total",
				Help: "Query cache lookups by result",
			},
			[]string{"result"}, // hit, miss
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *UpstreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.failuresTotal.Describe(ch)
	m.queryCacheTotal.Describe(ch)
}

func (m *UpstreamMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.failuresTotal.Collect(ch)
	m.queryCacheTotal.Collect(ch)
}

func (m *UpstreamMetrics) RecordUpstreamRequest(status string, d time.Duration) {
	m.requestsTotal.WithLabelValues(status).Inc()
	m.requestDuration.Observe(d.Seconds())
}

func (m *UpstreamMetrics) RecordUpstreamFailure(reason string) {
	m.failuresTotal.WithLabelValues(reason).Inc()
}

func (m *UpstreamMetrics) RecordQueryCacheHit() {
	m.queryCacheTotal.WithLabelValues("hit").Inc()
}

func (m *UpstreamMetrics) RecordQueryCacheMiss() {
	m.queryCacheTotal.WithLabelValues("miss").Inc()
}
