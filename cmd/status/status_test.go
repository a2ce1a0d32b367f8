package status

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questioncrawler/wikidata-cache/internal/category"
)

func TestPrint(t *testing.T) {
	r := Report{
		Floor: 500,
		Stock: map[category.Category]int64{
			category.Paises:    500,
			category.Elementos: 118,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(category.All())+1)
	assert.NotContains(t, lines[0], "below floor", "paises is at the floor")
	assert.Contains(t, lines[2], "elementos")
	assert.Contains(t, lines[2], "below floor")
	assert.Contains(t, lines[len(lines)-1], "false")
}
