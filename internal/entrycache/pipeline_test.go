package entrycache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/datastore"
	"github.com/questioncrawler/wikidata-cache/internal/wikidata"
)

// sparqlBody renders records in the SPARQL JSON results format.
func sparqlBody(t *testing.T, records []wikidata.Record) string {
	t.Helper()
	bindings := make([]map[string]map[string]string, 0, len(records))
	for _, r := range records {
		b := map[string]map[string]string{}
		for k, v := range r {
			b[k] = map[string]string{"type": "literal", "value": v}
		}
		bindings = append(bindings, b)
	}
	data, err := json.Marshal(map[string]any{
		"head":    map[string]any{"vars": []string{}},
		"results": map[string]any{"bindings": bindings},
	})
	require.NoError(t, err)
	return string(data)
}

func TestPipelineWithSQLiteAndUpstream(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := datastore.NewSQLiteStore(":memory:", 0)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	transport := httpmock.NewMockTransport()
	responder := httpmock.NewStringResponder(http.StatusOK, sparqlBody(t, makeRecords(category.Paises, 4))).
		HeaderSet(http.Header{"Content-Type": {"application/sparql-results+json"}})
	transport.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`^https://query\.wikidata\.org/sparql`), responder)

	cfg := wikidata.DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.RateLimit = 0
	client, err := wikidata.NewClient(cfg, wikidata.WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)

	svc := New(store, client, DefaultOptions())

	for i := range 2 {
		fields := map[string]string{"countryLabel": fmt.Sprintf("Existing %d", i), "capitalLabel": "X"}
		e, err := datastore.NewEntry(category.Paises, fields, fields, "https://img")
		require.NoError(t, err)
		require.NoError(t, store.Insert(ctx, e))
	}

	got := svc.GetEntriesForCategory(ctx, category.Paises, 5)
	assert.Len(t, got, 5)
	assert.Equal(t, 1, transport.GetTotalCallCount())

	n, err := store.Count(ctx, category.Paises)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// Same query again from the query cache: only the fourth record is new.
	saved := svc.FetchAndSaveEntries(ctx, category.Paises, 4)
	assert.Len(t, saved, 1)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}
