// Package category defines the fixed set of trivia categories and, for each one,
// the SPARQL query that sources it and the fields projected from its records.
package category

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Category is one of the seven trivia topics.
type Category string

const (
	Paises     Category = "paises"
	Monumentos Category = "monumentos"
	Elementos  Category = "elementos"
	Peliculas  Category = "peliculas"
	Canciones  Category = "canciones"
	Formula1   Category = "formula1"
	Pinturas   Category = "pinturas"
)

// ImageField is selected by every query and carries the Commons image URL.
const ImageField = "image"

// Definition ties a category to its upstream query and projected fields.
type Definition struct {
	Category Category
	// Fields lists the record keys copied into an entry, in display order.
	Fields []string

	selectVars string
	where      string
}

// Query renders the SPARQL text for this category.
func (d Definition) Query(language string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s ?%s WHERE {\n", d.selectVars, ImageField)
	b.WriteString(d.where)
	fmt.Fprintf(&b, "  SERVICE wikibase:label { bd:serviceParam wikibase:language %q. }\n", language)
	fmt.Fprintf(&b, "}\nLIMIT %d\n", limit)
	return b.String()
}

// Project copies the category's non-empty fields out of a flat upstream record.
func (d Definition) Project(record map[string]string) map[string]string {
	out := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		if v := strings.TrimSpace(record[f]); v != "" {
			out[f] = v
		}
	}
	return out
}

// order is the fixed category order used by initialization and reports.
var order = []Category{Paises, Monumentos, Elementos, Peliculas, Canciones, Formula1, Pinturas}

var registry = map[Category]Definition{
	Paises: {
		Category:   Paises,
		Fields:     []string{"countryLabel", "capitalLabel"},
		selectVars: "?countryLabel ?capitalLabel",
		where: "  ?country wdt:P31 wd:Q6256.\n" +
			"  ?country wdt:P36 ?capital.\n" +
			"  OPTIONAL { ?capital wdt:P18 ?image . }\n",
	},
	Monumentos: {
		Category:   Monumentos,
		Fields:     []string{"monumentLabel", "countryLabel"},
		selectVars: "?monumentLabel ?countryLabel",
		where: "  ?monument wdt:P31 wd:Q570116;\n" +
			"            wdt:P17 ?country.\n" +
			"  OPTIONAL { ?monument wdt:P18 ?image . }\n",
	},
	Elementos: {
		Category:   Elementos,
		Fields:     []string{"elementLabel", "symbol"},
		selectVars: "?elementLabel ?symbol",
		where: "  ?element wdt:P31 wd:Q11344.\n" +
			"  ?element wdt:P246 ?symbol.\n" +
			"  OPTIONAL { ?element wdt:P18 ?image . }\n",
	},
	Peliculas: {
		Category:   Peliculas,
		Fields:     []string{"peliculaLabel", "directorLabel"},
		selectVars: "?peliculaLabel ?directorLabel",
		where: "  ?pelicula wdt:P31 wd:Q11424.\n" +
			"  ?pelicula wdt:P57 ?director.\n" +
			"  OPTIONAL { ?pelicula wdt:P18 ?image . }\n",
	},
	Canciones: {
		Category:   Canciones,
		Fields:     []string{"songLabel", "artistLabel"},
		selectVars: "?songLabel ?artistLabel",
		where: "  ?song wdt:P31 wd:Q7366;\n" +
			"        wdt:P175 ?artist.\n" +
			"  OPTIONAL { ?song wdt:P18 ?image . }\n",
	},
	Formula1: {
		Category:   Formula1,
		Fields:     []string{"year", "winnerLabel"},
		selectVars: "?year ?winnerLabel",
		where: "  wd:Q1968 wdt:P793 ?event.\n" +
			"  ?event wdt:P585 ?date.\n" +
			"  ?event wdt:P1346 ?winner.\n" +
			"  BIND(YEAR(?date) AS ?year)\n" +
			"  OPTIONAL { ?event wdt:P18 ?image . }\n",
	},
	Pinturas: {
		Category:   Pinturas,
		Fields:     []string{"paintingLabel", "artistLabel"},
		selectVars: "?paintingLabel ?artistLabel",
		where: "  ?painting wdt:P31 wd:Q3305213;\n" +
			"            wdt:P170 ?artist.\n" +
			"  OPTIONAL { ?painting wdt:P18 ?image . }\n",
	},
}

// All returns the categories in their fixed order.
func All() []Category {
	out := make([]Category, len(order))
	copy(out, order)
	return out
}

// Parse converts a wire name to a Category. Matching is case-insensitive.
func Parse(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.IsValid()
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	_, ok := registry[c]
	return ok
}

func (c Category) String() string { return string(c) }

// Lookup returns the definition for c.
func Lookup(c Category) (Definition, bool) {
	d, ok := registry[c]
	return d, ok
}

// Random picks a category uniformly at random.
func Random() Category {
	return order[rand.IntN(len(order))]
}
