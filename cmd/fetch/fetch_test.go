package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Formula1 ")
	require.NoError(t, err)
	assert.Equal(t, category.Formula1, c)

	_, err = ParseCategory("dinosaurios")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryUnknownCategory))
	assert.Contains(t, err.Error(), "paises")
}

func TestCommandRejectsUnknownCategoryBeforeOpeningStore(t *testing.T) {
	cmd := Command(&conf.Settings{})
	cmd.SetArgs([]string{"dinosaurios"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestCommandCountFlag(t *testing.T) {
	cmd := Command(&conf.Settings{})
	require.NoError(t, cmd.Flags().Parse([]string{"--count", "12"}))

	n, err := cmd.Flags().GetInt("count")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}
