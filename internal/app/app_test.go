package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/lock"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings, err := conf.LoadFrom(viper.New())
	require.NoError(t, err)
	settings.Database.SQLite.Path = ":memory:"
	return settings
}

func TestNewWiresInMemoryStack(t *testing.T) {
	a, err := New(context.Background(), testSettings(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.IsType(t, &lock.LocalLocker{}, a.Locker)
	require.NoError(t, a.Store.Ping(context.Background()))

	stock, err := a.Service.Stock(context.Background())
	require.NoError(t, err)
	assert.Len(t, stock, len(category.All()))
	assert.False(t, a.Service.IsDatabaseInitialized(context.Background()))
}

func TestNewUsesRedisLockWhenEnabled(t *testing.T) {
	mr := miniredis.RunT(t)

	settings := testSettings(t)
	settings.Redis.Enabled = true
	settings.Redis.Addr = mr.Addr()

	a, err := New(context.Background(), settings)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.IsType(t, &lock.RedisLocker{}, a.Locker)
}

func TestNewFailsOnUnreachableRedis(t *testing.T) {
	settings := testSettings(t)
	settings.Redis.Enabled = true
	settings.Redis.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := New(ctx, settings)
	require.Error(t, err)
	assert.Nil(t, a)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	settings := testSettings(t)
	settings.Database.Type = "cassandra"

	_, err := New(context.Background(), settings)
	require.Error(t, err)
}

func TestSettingsMapping(t *testing.T) {
	settings := testSettings(t)
	settings.Wikidata.Endpoint = "https://sparql.example.org/query"
	settings.Wikidata.MaxAttempts = 5
	settings.Cache.MinEntriesPerCategory = 42
	settings.Cache.RequireImage = false

	wc := WikidataConfig(settings)
	assert.Equal(t, "https://sparql.example.org/query", wc.Endpoint)
	assert.Equal(t, 5, wc.MaxAttempts)
	assert.Equal(t, settings.Wikidata.CacheTTL, wc.CacheTTL)

	opts := CacheOptions(settings)
	assert.Equal(t, 42, opts.MinEntriesPerCategory)
	assert.False(t, opts.RequireImage)
}
