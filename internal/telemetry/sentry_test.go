package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
)

type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (m *mockTransport) Flush(time.Duration) bool              { return true }
func (m *mockTransport) FlushWithContext(context.Context) bool { return true }
func (m *mockTransport) Configure(sentry.ClientOptions)        {}
func (m *mockTransport) Close()                                {}
func (m *mockTransport) SendEvent(e *sentry.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func TestInitSentryDisabled(t *testing.T) {
	settings := &conf.Settings{}
	require.NoError(t, InitSentry(settings, "test"))
}

func TestReportedErrorsAreFiltered(t *testing.T) {
	transport := &mockTransport{}
	require.NoError(t, initSentry(sentry.ClientOptions{
		Dsn:         "",
		Transport:   transport,
		Environment: "test",
		ServerName:  "secret-host",
		BeforeSend:  applyPrivacyFilters,
	}))
	t.Cleanup(func() {
		errors.SetTelemetryReporter(nil)
		_ = sentry.Init(sentry.ClientOptions{})
	})

	_ = errors.Newf("database unreachable").
		Category(errors.CategoryDatabase).
		Component("datastore").
		Build()

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Len(t, transport.events, 1)
	event := transport.events[0]
	assert.Empty(t, event.ServerName)
	assert.Equal(t, "database", event.Tags["category"])
	assert.Equal(t, "datastore", event.Tags["component"])
}
