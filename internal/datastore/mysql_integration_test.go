//go:build integration

package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/questioncrawler/wikidata-cache/internal/category"
)

func TestMySQLStoreIntegration(t *testing.T) {
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("wikidata_cache"),
		tcmysql.WithUsername("cache"),
		tcmysql.WithPassword("cache"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	store := NewMySQLStore(MySQLConfig{
		Host:     host,
		Port:     port.Port(),
		Username: "cache",
		Password: "cache",
		Database: "wikidata_cache",
	}, 0)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	seed(t, store, category.Paises, 4)
	require.ErrorIs(t, store.Insert(ctx, paisEntry(t, "Country 1", "CAPITAL 1")), ErrDuplicateKey)

	n, err := store.Count(ctx, category.Paises)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	sample, err := store.SampleRandom(ctx, category.Paises, 2)
	require.NoError(t, err)
	assert.Len(t, sample, 2)

	recent, err := store.FindRecent(ctx, category.Paises, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Country 3", recent[0].Fields["countryLabel"])
}
