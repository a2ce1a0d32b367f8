// Package telemetry initialises Sentry error reporting from the settings and
// connects it to the enhanced error package.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/questioncrawler/wikidata-cache/internal/conf"
	"github.com/questioncrawler/wikidata-cache/internal/errors"
	"github.com/questioncrawler/wikidata-cache/internal/logger"
)

// InitSentry initialises the global Sentry hub when enabled and installs the
// reporter used by errors.Build. Disabled settings are a no-op.
func InitSentry(settings *conf.Settings, version string) error {
	if !settings.Sentry.Enabled {
		return nil
	}
	return initSentry(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Sentry.Environment,
		ServerName:       "",
		Release:          fmt.Sprintf("wikidata-cache@%s", version),
		BeforeSend:       applyPrivacyFilters,
	})
}

func initSentry(opts sentry.ClientOptions) error {
	if err := sentry.Init(opts); err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	logger.Get("telemetry").Info("sentry error reporting enabled",
		logger.String("environment", opts.Environment),
		logger.String("release", opts.Release))
	return nil
}

// applyPrivacyFilters strips host identification from outgoing events.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// Flush waits for queued events to be delivered.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
