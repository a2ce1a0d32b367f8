package initdb

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/entrycache"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
)

func TestPrintReport(t *testing.T) {
	results := []entrycache.InitResult{
		{Category: category.Paises, Before: 500},
		{Category: category.Elementos, Before: 100, Requested: 400, Saved: 118},
		{Category: category.Pinturas, Before: 0, Requested: 500, Saved: 500},
		{Category: category.Formula1, Requested: 500, Err: errors.NewStd("upstream unavailable")},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintReport(&buf, results, 500))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "CATEGORY")
	assert.Contains(t, lines[1], "full")
	assert.Contains(t, lines[2], "partial")
	assert.Contains(t, lines[3], "ok")
	assert.Contains(t, lines[4], "error: upstream unavailable")
}

func TestResultsError(t *testing.T) {
	assert.NoError(t, ResultsError([]entrycache.InitResult{{Category: category.Paises}}))

	err := ResultsError([]entrycache.InitResult{
		{Category: category.Paises},
		{Category: category.Canciones, Err: errors.NewStd("disk full")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canciones: disk full")
}
