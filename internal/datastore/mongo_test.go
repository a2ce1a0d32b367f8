package datastore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questioncrawler/wikidata-cache/internal/category"
)

// Runs against a live server when MONGODB_TEST_URI is set.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx := context.Background()

	store := NewMongoStore(MongoConfig{
		URI:        uri,
		Database:   "wikidata_cache_test",
		Collection: "entries_" + uuid.NewString()[:8],
	})
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		_ = store.coll.Drop(context.Background())
		_ = store.Close()
	})

	seed(t, store, category.Paises, 4)
	require.ErrorIs(t, store.Insert(ctx, paisEntry(t, "country 2", "Capital 2")), ErrDuplicateKey)

	n, err := store.Count(ctx, category.Paises)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	all, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), all[category.Paises])

	sample, err := store.SampleRandom(ctx, category.Paises, 3)
	require.NoError(t, err)
	assert.Len(t, sample, 3)

	recent, err := store.FindRecent(ctx, category.Paises, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "Country 3", recent[0].Fields["countryLabel"])

	one, err := store.FindOneRandomOffset(ctx, category.Paises)
	require.NoError(t, err)
	require.NotNil(t, one)

	none, err := store.FindOneRandomOffset(ctx, category.Canciones)
	require.NoError(t, err)
	assert.Nil(t, none)
}
