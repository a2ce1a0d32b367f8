package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/datastore"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// Default counts per route.
const (
	DefaultEntriesCount = 1
	DefaultFetchCount   = 5
	LegacyEntriesCount  = 10
)

// CacheService is the part of the cache service the facade serves.
type CacheService interface {
	GetEntriesForCategory(ctx context.Context, c category.Category, count int) []datastore.Entry
	GetRandomEntry(ctx context.Context) *datastore.Entry
	FetchAndSaveEntries(ctx context.Context, c category.Category, count int) []datastore.Entry
	IsDatabaseInitialized(ctx context.Context) bool
	Stock(ctx context.Context) (map[category.Category]int64, error)
}

// Pinger checks that the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FetchResponse is returned by the forced fetch endpoint.
type FetchResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status      string                      `json:"status"`
	Version     string                      `json:"version,omitempty"`
	Database    string                      `json:"database"`
	Initialized bool                        `json:"initialized"`
	Stock       map[category.Category]int64 `json:"stock"`
}

// Controller holds the entry handlers.
type Controller struct {
	service CacheService
	store   Pinger
	log     logger.Logger

	// Version is reported by /api/health.
	Version string
}

// NewController creates the entry controller. store may be nil, in which
// case /api/health skips the ping.
func NewController(svc CacheService, store Pinger, log logger.Logger) *Controller {
	if log == nil {
		log = GetLogger()
	}
	return &Controller{service: svc, store: store, log: log}
}

// RegisterRoutes registers the entry endpoints on the /api group.
func (c *Controller) RegisterRoutes(g *echo.Group) {
	g.GET("/health", c.Health)

	// Static segments win over :category in echo's router.
	g.GET("/entries/random", c.GetRandomEntry)
	g.GET("/entries/:category", c.GetEntries)
	g.POST("/entries/fetch/:category", c.FetchEntries)

	for _, cat := range category.All() {
		g.GET("/"+string(cat), c.legacyHandler(cat))
	}
}

// GetEntries serves up to count entries of one category.
func (c *Controller) GetEntries(ctx echo.Context) error {
	cat := category.Category(ctx.Param("category"))
	count := parseCount(ctx, DefaultEntriesCount)

	entries := c.service.GetEntriesForCategory(ctx.Request().Context(), cat, count)
	return ctx.JSON(http.StatusOK, nonNil(entries))
}

// GetRandomEntry serves one entry of a random category, or null.
func (c *Controller) GetRandomEntry(ctx echo.Context) error {
	entry := c.service.GetRandomEntry(ctx.Request().Context())
	if entry == nil {
		return ctx.JSON(http.StatusOK, nil)
	}
	return ctx.JSON(http.StatusOK, entry)
}

// FetchEntries forces an upstream fetch and reports how many entries were saved.
func (c *Controller) FetchEntries(ctx echo.Context) error {
	cat := category.Category(ctx.Param("category"))
	count := parseCount(ctx, DefaultFetchCount)

	saved := c.service.FetchAndSaveEntries(ctx.Request().Context(), cat, count)

	c.log.WithContext(ctx.Request().Context()).Info("forced fetch",
		logger.String("category", string(cat)),
		logger.Int("requested", count),
		logger.Int("saved", len(saved)))

	return ctx.JSON(http.StatusOK, FetchResponse{Success: true, Count: len(saved)})
}

// legacyHandler serves the per-category routes kept for older clients.
func (c *Controller) legacyHandler(cat category.Category) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		entries := c.service.GetEntriesForCategory(ctx.Request().Context(), cat, LegacyEntriesCount)
		return ctx.JSON(http.StatusOK, nonNil(entries))
	}
}

// Health reports store connectivity and stock. A store that cannot be
// reached is the one failure the facade surfaces as 500.
func (c *Controller) Health(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	if c.store != nil {
		if err := c.store.Ping(reqCtx); err != nil {
			return errors.Newf("database unreachable: %w", err).
				Category(errors.CategoryDatabase).
				Component("api").
				Build()
		}
	}

	stock, err := c.service.Stock(reqCtx)
	if err != nil {
		return errors.Newf("failed to read stock: %w", err).
			Category(errors.CategoryDatabase).
			Component("api").
			Build()
	}

	return ctx.JSON(http.StatusOK, HealthResponse{
		Status:      "OK",
		Version:     c.Version,
		Database:    "connected",
		Initialized: c.service.IsDatabaseInitialized(reqCtx),
		Stock:       stock,
	})
}

// parseCount reads the count query parameter. Missing or non-numeric
// values fall back to def.
func parseCount(ctx echo.Context, def int) int {
	raw := ctx.QueryParam("count")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func nonNil(entries []datastore.Entry) []datastore.Entry {
	if entries == nil {
		return []datastore.Entry{}
	}
	return entries
}
