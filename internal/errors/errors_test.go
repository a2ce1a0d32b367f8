package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderFields(t *testing.T) {
	ee := Newf("query failed after %d attempts", 3).
		Component("wikidata").
		Category(CategoryUpstream).
		Priority("bogus").
		Context("attempts", 3).
		Build()

	assert.Equal(t, "query failed after 3 attempts", ee.Error())
	assert.Equal(t, "wikidata", ee.GetComponent())
	assert.Equal(t, PriorityMedium, ee.Priority)
	assert.Equal(t, 3, ee.GetContext()["attempts"])
	assert.True(t, IsCategory(ee, CategoryUpstream))
	assert.False(t, IsNotFound(ee))
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	inner := New(NewStd("duplicate key")).Category(CategoryConflict).Build()
	outer := New(fmt.Errorf("insert entry: %w", inner)).Build()

	assert.Equal(t, CategoryConflict, outer.Category)
	assert.True(t, Is(outer, inner))
}

func TestGetContextReturnsCopy(t *testing.T) {
	ee := New(NewStd("x")).Context("k", "v").Build()
	ctx := ee.GetContext()
	ctx["k"] = "changed"
	assert.Equal(t, "v", ee.GetContext()["k"])
}

type captureTransport struct {
	events []*sentry.Event
}

func (c *captureTransport) Flush(_ time.Duration) bool { return true }
func (c *captureTransport) FlushWithContext(_ context.Context) bool { return true }
func (c *captureTransport) Configure(_ sentry.ClientOptions)       {}
func (c *captureTransport) SendEvent(e *sentry.Event)               { c.events = append(c.events, e) }
func (c *captureTransport) Close()                                  {}

func TestSentryReporterCapturesOnce(t *testing.T) {
	transport := &captureTransport{}
	client, err := sentry.NewClient(sentry.ClientOptions{Dsn: "", Transport: transport})
	require.NoError(t, err)
	hub := sentry.NewHub(client, sentry.NewScope())

	reporter := NewSentryReporterWithHub(true, hub)
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := Newf("upstream returned 503").
		Component("wikidata").
		Category(CategoryUpstream).
		Context("url", "https://query.wikidata.org/sparql?query=abc").
		Build()

	require.True(t, ee.IsReported())
	reporter.ReportError(ee)

	require.Len(t, transport.events, 1)
	event := transport.events[0]
	assert.Equal(t, sentry.LevelWarning, event.Level)
	assert.Equal(t, "Wikidata Upstream Unavailable", event.Exception[0].Type)
	assert.Equal(t, "upstream-unavailable", event.Tags["category"])
}

func TestDisabledReporterSkipsCapture(t *testing.T) {
	SetTelemetryReporter(NewSentryReporter(false))
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := Newf("x").Build()
	assert.False(t, ee.IsReported())
}
