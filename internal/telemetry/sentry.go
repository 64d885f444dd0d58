// Package telemetry reports swallowed failures to Sentry.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Options struct {
	DSN         string
	Environment string
	Release     string
}

// Reporter forwards errors to Sentry. A Reporter built from an empty DSN is
// disabled and only logs at debug.
type Reporter struct {
	hub     *sentry.Hub
	enabled bool
}

// Init initializes the global Sentry client. An empty DSN returns a disabled
// reporter and no error.
func Init(opts Options) (*Reporter, error) {
	if opts.DSN == "" {
		slog.Debug("Sentry DSN not set, error reporting disabled")
		return &Reporter{}, nil
	}

	sentryOpts := sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Cookies = ""
			}
			return event
		},
	}
	if sentryOpts.Environment == "" {
		sentryOpts.Environment = "production"
	}
	if err := sentry.Init(sentryOpts); err != nil {
		return &Reporter{}, fmt.Errorf("init sentry: %w", err)
	}

	slog.Info("Sentry error reporting enabled", "environment", sentryOpts.Environment)
	return NewReporter(sentry.CurrentHub()), nil
}

// NewReporter wraps an existing hub.
func NewReporter(hub *sentry.Hub) *Reporter {
	return &Reporter{hub: hub, enabled: hub != nil}
}

func (r *Reporter) Enabled() bool {
	return r != nil && r.enabled
}

// CaptureError sends err with tags attached. The hub on ctx wins over the
// reporter's own, so per-request scopes are kept.
func (r *Reporter) CaptureError(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	if !r.Enabled() {
		slog.DebugContext(ctx, "Error not reported, Sentry disabled", "error", err)
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = r.hub
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be sent.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if !r.Enabled() {
		return true
	}
	return r.hub.Flush(timeout)
}
