package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (r *recorder) beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func newTestHub(t *testing.T) (*sentry.Hub, *recorder) {
	t.Helper()
	rec := &recorder{}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:        "https://public@example.com/1",
		BeforeSend: rec.beforeSend,
	})
	require.NoError(t, err)
	return sentry.NewHub(client, sentry.NewScope()), rec
}

func TestInit_EmptyDSNDisablesReporting(t *testing.T) {
	r, err := Init(Options{})
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	r.CaptureError(context.Background(), errors.New("ignored"), nil)
	assert.True(t, r.Flush(0))
}

func TestReporter_CaptureErrorAttachesTags(t *testing.T) {
	hub, rec := newTestHub(t)
	r := NewReporter(hub)

	r.CaptureError(context.Background(), errors.New("disk full"), map[string]string{
		"component": "recurring",
		"retryable": "true",
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 1)
	assert.Equal(t, "recurring", rec.events[0].Tags["component"])
	assert.Equal(t, "true", rec.events[0].Tags["retryable"])
	require.NotEmpty(t, rec.events[0].Exception)
	assert.Equal(t, "disk full", rec.events[0].Exception[0].Value)
}

func TestReporter_PrefersHubFromContext(t *testing.T) {
	own, ownRec := newTestHub(t)
	scoped, scopedRec := newTestHub(t)
	r := NewReporter(own)

	ctx := sentry.SetHubOnContext(context.Background(), scoped)
	r.CaptureError(ctx, errors.New("boom"), nil)

	assert.Empty(t, ownRec.events)
	assert.Len(t, scopedRec.events, 1)
}

func TestReporter_NilErrorIsIgnored(t *testing.T) {
	hub, rec := newTestHub(t)
	NewReporter(hub).CaptureError(context.Background(), nil, nil)
	assert.Empty(t, rec.events)
}
