package wikidata

import (
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
)

const endpointPattern = `=~^https://query\.wikidata\.org/sparql`

// setupTestClient returns a client wired to a private httpmock transport with
// no rate limiting and a tiny retry delay.
func setupTestClient(tb testing.TB, mutate func(*Config)) (*Client, *httpmock.MockTransport) {
	tb.Helper()

	transport := httpmock.NewMockTransport()
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.RateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}

	client, err := NewClient(cfg, WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(tb, err)
	return client, transport
}

// sparqlResponder answers with a SPARQL JSON document.
func sparqlResponder(status int, body string) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		resp.Header.Set("Content-Type", "application/sparql-results+json;charset=utf-8")
		return resp, nil
	}
}

const paisesResponse = `{
  "head": {"vars": ["countryLabel", "capitalLabel", "image"]},
  "results": {"bindings": [
    {"countryLabel": {"type": "literal", "xml:lang": "es", "value": "Perú"},
     "capitalLabel": {"type": "literal", "xml:lang": "es", "value": "Lima"},
     "image": {"type": "uri", "value": "http://commons.wikimedia.org/wiki/Special:FilePath/Lima.jpg"}},
    {"countryLabel": {"type": "literal", "xml:lang": "es", "value": "Chile"},
     "capitalLabel": {"type": "literal", "xml:lang": "es", "value": "Santiago"}}
  ]}
}`

const emptyResponse = `{"head": {"vars": []}, "results": {"bindings": []}}`
