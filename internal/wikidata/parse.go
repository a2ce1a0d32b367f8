package wikidata

import (
	"github.com/antonholmquist/jason"

	"github.com/questioncrawler/wikidata-cache/internal/errors"
)

// flattenBindings turns a SPARQL JSON result document into flat records.
//
//	{"results":{"bindings":[{"countryLabel":{"type":"literal","value":"Perú"}}]}}
//
// becomes []Record{{"countryLabel": "Perú"}}. Bindings whose value is not a
// string are skipped. A document without results.bindings is malformed.
func flattenBindings(body []byte) ([]Record, error) {
	doc, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return nil, errors.Newf("malformed SPARQL response: %w", err).
			Category(errors.CategoryUpstreamParse).
			Context("response_size", len(body)).
			Component("wikidata").
			Build()
	}

	bindings, err := doc.GetObjectArray("results", "bindings")
	if err != nil {
		return nil, errors.Newf("SPARQL response has no results.bindings: %w", err).
			Category(errors.CategoryUpstreamParse).
			Component("wikidata").
			Build()
	}

	records := make([]Record, 0, len(bindings))
	for _, binding := range bindings {
		record := make(Record, len(binding.Map()))
		for name, value := range binding.Map() {
			term, err := value.Object()
			if err != nil {
				continue
			}
			s, err := term.GetString("value")
			if err != nil {
				continue
			}
			record[name] = s
		}
		records = append(records, record)
	}

	return records, nil
}
