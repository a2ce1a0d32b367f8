// Package wikidata is the upstream query client for the Wikidata SPARQL endpoint.
// Results are cached by query text and failed requests are retried a fixed
// number of times before the client gives up.
package wikidata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/httpclient"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

const maxErrorBodyPreview = 300

// Client executes SPARQL queries against the upstream knowledge base.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      QueryCache
	limiter    *rate.Limiter
	inflight   singleflight.Group
	recorder   MetricsRecorder
	log        logger.Logger

	requests      atomic.Int64
	failures      atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	totalDuration atomic.Int64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, for tests and custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithQueryCache injects the query result cache.
func WithQueryCache(qc QueryCache) Option {
	return func(c *Client) { c.cache = qc }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r MetricsRecorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates a client. Zero config fields take their DefaultConfig value.
func NewClient(config Config, opts ...Option) (*Client, error) {
	defaults := DefaultConfig()
	if config.Endpoint == "" {
		config.Endpoint = defaults.Endpoint
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.Language == "" {
		config.Language = defaults.Language
	}
	if config.QueryLimit <= 0 {
		config.QueryLimit = defaults.QueryLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.MaxRetryAfter <= 0 {
		config.MaxRetryAfter = defaults.MaxRetryAfter
	}

	if _, err := url.ParseRequestURI(config.Endpoint); err != nil {
		return nil, errors.Newf("invalid SPARQL endpoint %q: %w", config.Endpoint, err).
			Category(errors.CategoryConfiguration).
			Component("wikidata").
			Build()
	}

	c := &Client{
		config:   config,
		recorder: noopRecorder{},
		log:      logger.Get("wikidata"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httpclient.New(httpclient.Config{
			Timeout:   config.Timeout,
			UserAgent: config.UserAgent,
		})
	}
	if c.cache == nil {
		c.cache = NewMemoryQueryCache(config.CacheTTL)
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// FetchCategory runs the category's query. See Query for the result contract.
func (c *Client) FetchCategory(ctx context.Context, cat category.Category) ([]Record, error) {
	def, ok := category.Lookup(cat)
	if !ok {
		return nil, errors.Newf("unknown category %q", cat).
			Category(errors.CategoryUnknownCategory).
			Component("wikidata").
			Build()
	}
	return c.Query(ctx, def.Query(c.config.Language, c.config.QueryLimit))
}

// Query returns the flattened records for a SPARQL query.
//
// A cached result younger than CacheTTL is returned without network I/O.
// A nil slice with a non-nil error means every attempt failed; an empty,
// non-nil slice means the upstream answered with no rows.
func (c *Client) Query(ctx context.Context, query string) ([]Record, error) {
	if records, ok := c.cache.Get(query); ok {
		c.cacheHits.Add(1)
		c.recorder.RecordQueryCacheHit()
		return records, nil
	}
	c.cacheMisses.Add(1)
	c.recorder.RecordQueryCacheMiss()

	// Identical concurrent queries share one upstream round trip. The shared
	// request is detached from the caller that started it, so a cancelled
	// caller only abandons its own wait.
	ch := c.inflight.DoChan(query, func() (any, error) {
		if records, ok := c.cache.Get(query); ok {
			return records, nil
		}
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout())
		defer cancel()
		records, err := c.queryWithRetry(flightCtx, query)
		if err != nil {
			return nil, err
		}
		c.cache.Set(query, records)
		return records, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Record), nil
	case <-ctx.Done():
		return nil, errors.Newf("SPARQL query abandoned: %w", ctx.Err()).
			Category(errors.CategoryUpstream).
			Component("wikidata").
			Build()
	}
}

// flightTimeout bounds a shared request: every attempt plus the pauses
// between them.
func (c *Client) flightTimeout() time.Duration {
	pause := max(c.config.RetryDelay, c.config.MaxRetryAfter)
	return time.Duration(c.config.MaxAttempts)*c.config.Timeout +
		time.Duration(c.config.MaxAttempts-1)*pause
}

// queryWithRetry makes up to MaxAttempts attempts with RetryDelay between them.
func (c *Client) queryWithRetry(ctx context.Context, query string) ([]Record, error) {
	var lastErr error

attempts:
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		records, retryAfter, err := c.doRequest(ctx, query)
		if err == nil {
			return records, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == c.config.MaxAttempts {
			break
		}

		delay := c.config.RetryDelay
		if retryAfter > delay {
			delay = min(retryAfter, c.config.MaxRetryAfter)
		}

		c.log.WithContext(ctx).Warn("SPARQL query failed, retrying",
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", c.config.MaxAttempts),
			logger.Duration("delay", delay),
			logger.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			break attempts
		}
	}

	c.failures.Add(1)
	c.recorder.RecordUpstreamFailure(failureReason(ctx, lastErr))

	return nil, errors.Newf("upstream unavailable after %d attempts: %w", c.config.MaxAttempts, lastErr).
		Category(errors.CategoryUpstream).
		Context("attempts", c.config.MaxAttempts).
		Component("wikidata").
		Build()
}

// doRequest performs one GET. retryAfter is set when the server asked for a pause.
func (c *Client) doRequest(ctx context.Context, query string) (records []Record, retryAfter time.Duration, err error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, errors.Newf("rate limiter wait: %w", err).
				Category(errors.CategoryCancellation).
				Component("wikidata").
				Build()
		}
	}

	start := time.Now()
	c.requests.Add(1)

	reqURL := c.config.Endpoint + "?" + url.Values{
		"query":  {query},
		"format": {"json"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, 0, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryNetwork).
			Component("wikidata").
			Build()
	}
	req.Header.Set("Accept", "application/sparql-results+json, application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("error", start)
		return nil, 0, errors.Newf("HTTP request failed: %w", err).
			Category(errors.CategoryNetwork).
			Context("endpoint", c.config.Endpoint).
			Component("wikidata").
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe("error", start)
		return nil, 0, errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Component("wikidata").
			Build()
	}

	c.observe(strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode != http.StatusOK {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), errors.Newf("SPARQL endpoint returned status %d: %s", resp.StatusCode, preview(body)).
			Category(errors.CategoryHTTP).
			Context("status_code", resp.StatusCode).
			Component("wikidata").
			Build()
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "json") {
		return nil, 0, errors.Newf("SPARQL endpoint returned non-JSON response (Content-Type: %s)", ct).
			Category(errors.CategoryUpstreamParse).
			Context("content_type", ct).
			Component("wikidata").
			Build()
	}

	records, err = flattenBindings(body)
	if err != nil {
		return nil, 0, err
	}

	c.log.WithContext(ctx).Debug("SPARQL query succeeded",
		logger.Int("records", len(records)),
		logger.Duration("elapsed", time.Since(start)))

	return records, 0, nil
}

func (c *Client) observe(status string, start time.Time) {
	d := time.Since(start)
	c.totalDuration.Add(int64(d))
	c.recorder.RecordUpstreamRequest(status, d)
}

// ClearCache drops every cached query result.
func (c *Client) ClearCache() {
	c.cache.Flush()
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Requests:      c.requests.Load(),
		Failures:      c.failures.Load(),
		CacheHits:     c.cacheHits.Load(),
		CacheMisses:   c.cacheMisses.Load(),
		CachedQueries: c.cache.ItemCount(),
		TotalDuration: time.Duration(c.totalDuration.Load()),
	}
}

// parseRetryAfter understands the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func failureReason(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "cancelled"
	case errors.IsCategory(err, errors.CategoryHTTP):
		return "status"
	case errors.IsCategory(err, errors.CategoryUpstreamParse):
		return "parse"
	default:
		return "network"
	}
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyPreview {
		return fmt.Sprintf("%s...", s[:maxErrorBodyPreview])
	}
	return s
}
