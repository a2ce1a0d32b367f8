package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCoversEveryCategory(t *testing.T) {
	t.Parallel()

	all := All()
	require.Len(t, all, 7)
	for _, c := range all {
		d, ok := Lookup(c)
		require.True(t, ok, "missing definition for %s", c)
		assert.Equal(t, c, d.Category)
		assert.Len(t, d.Fields, 2)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	t.Parallel()

	all := All()
	all[0] = "mutated"
	assert.Equal(t, Paises, All()[0])
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"paises", Paises, true},
		{" Formula1 ", Formula1, true},
		{"PINTURAS", Pinturas, true},
		{"not-a-real-category", "not-a-real-category", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestQueryRendersFieldsLanguageAndLimit(t *testing.T) {
	t.Parallel()

	d, _ := Lookup(Elementos)
	q := d.Query("es,en", 500)

	assert.Contains(t, q, "SELECT ?elementLabel ?symbol ?image WHERE {")
	assert.Contains(t, q, `wikibase:language "es,en"`)
	assert.Contains(t, q, "LIMIT 500")
}

func TestProjectKeepsOnlyCategoryFields(t *testing.T) {
	t.Parallel()

	d, _ := Lookup(Paises)
	got := d.Project(map[string]string{
		"countryLabel": "España",
		"capitalLabel": "  ",
		"image":        "http://commons.wikimedia.org/x.jpg",
		"other":        "ignored",
	})

	assert.Equal(t, map[string]string{"countryLabel": "España"}, got)
}

func TestRandomIsValid(t *testing.T) {
	t.Parallel()

	for range 50 {
		assert.True(t, Random().IsValid())
	}
}
