package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/datastore"
	"github.com/questioncrawler/wikidata-cache/internal/entrycache"
	"github.com/questioncrawler/wikidata-cache/internal/wikidata"
)

// recordSource hands out n distinct records per category.
type recordSource struct {
	n     int
	calls atomic.Int32
}

func (r *recordSource) FetchCategory(_ context.Context, c category.Category) ([]wikidata.Record, error) {
	r.calls.Add(1)
	def, _ := category.Lookup(c)
	out := make([]wikidata.Record, 0, r.n)
	for i := range r.n {
		rec := wikidata.Record{category.ImageField: fmt.Sprintf("https://img/%s/%d.jpg", c, i)}
		for _, f := range def.Fields {
			rec[f] = fmt.Sprintf("%s %d", f, i)
		}
		out = append(out, rec)
	}
	return out, nil
}

func TestWarmUpWithService(t *testing.T) {
	ctx := context.Background()

	store := datastore.NewSQLiteStore(":memory:", 0)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	upstream := &recordSource{n: 3}
	opts := entrycache.DefaultOptions()
	opts.MinEntriesPerCategory = 2
	svc := entrycache.New(store, upstream, opts)

	k := NewStockKeeper(svc)
	t.Cleanup(func() { <-k.Stop().Done() })

	// Empty stock: one pass, one upstream call per category.
	require.True(t, k.WarmUp(ctx))
	assert.Equal(t, int32(len(category.All())), upstream.calls.Load())
	assert.True(t, svc.IsDatabaseInitialized(ctx))

	// Restart with the floor reached: nothing to do.
	assert.False(t, k.WarmUp(ctx))
	assert.Equal(t, int32(len(category.All())), upstream.calls.Load())
}
