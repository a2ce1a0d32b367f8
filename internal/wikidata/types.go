package wikidata

import (
	"fmt"
	"runtime"
	"time"
)

const (
	// DefaultEndpoint is the public Wikidata Query Service.
	DefaultEndpoint = "https://query.wikidata.org/sparql"

	userAgentName    = "QuestionCrawler"
	userAgentVersion = "1.0"
	userAgentContact = "https://github.com/questioncrawler/wikidata-cache"
)

// Record is one flattened SPARQL binding: variable name to literal value.
type Record map[string]string

// Config holds the upstream client settings.
type Config struct {
	Endpoint    string
	UserAgent   string
	Language    string
	QueryLimit  int
	Timeout     time.Duration
	CacheTTL    time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	// MaxRetryAfter caps how long a 429 Retry-After header may delay the next attempt.
	MaxRetryAfter time.Duration
	// RateLimit is requests per second shared by all queries; 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// DefaultConfig returns the defaults: 30 minute cache, 3 attempts 2 seconds apart.
func DefaultConfig() Config {
	return Config{
		Endpoint:      DefaultEndpoint,
		UserAgent:     DefaultUserAgent(),
		Language:      "es,en",
		QueryLimit:    500,
		Timeout:       60 * time.Second,
		CacheTTL:      30 * time.Minute,
		MaxAttempts:   3,
		RetryDelay:    2 * time.Second,
		MaxRetryAfter: 30 * time.Second,
		RateLimit:     2,
		RateBurst:     2,
	}
}

// DefaultUserAgent follows the Wikimedia User-Agent policy: name/version (contact) library.
func DefaultUserAgent() string {
	return fmt.Sprintf("%s/%s (%s) Go-http-client/%s",
		userAgentName, userAgentVersion, userAgentContact, runtime.Version())
}

// Stats is a snapshot of client counters.
type Stats struct {
	Requests      int64
	Failures      int64
	CacheHits     int64
	CacheMisses   int64
	CachedQueries int
	TotalDuration time.Duration
}

// MetricsRecorder receives upstream client events. observability.metrics implements it.
type MetricsRecorder interface {
	RecordUpstreamRequest(status string, duration time.Duration)
	RecordUpstreamFailure(reason string)
	RecordQueryCacheHit()
	RecordQueryCacheMiss()
}

type noopRecorder struct{}

func (noopRecorder) RecordUpstreamRequest(string, time.Duration) {}
func (noopRecorder) RecordUpstreamFailure(string)                {}
func (noopRecorder) RecordQueryCacheHit()                        {}
func (noopRecorder) RecordQueryCacheMiss()                       {}
