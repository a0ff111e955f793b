package observability_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/aretw0/scenesync/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(typ domain.EventType, id string, at time.Time) *domain.TransactionEvent {
	return &domain.TransactionEvent{Type: typ, TransactionID: id, DocumentID: "doc", Timestamp: at}
}

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics(nil)
	hooks := m.Hooks()
	ctx := context.Background()
	t0 := time.Now()

	hooks.Emit(ctx, event(domain.EventRequested, "a", t0))
	hooks.Emit(ctx, event(domain.EventRequested, "b", t0))
	hooks.Emit(ctx, event(domain.EventRequested, "c", t0))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Pending))

	hooks.Emit(ctx, event(domain.EventCommitted, "a", t0.Add(20*time.Millisecond)))
	hooks.Emit(ctx, event(domain.EventRolledBack, "b", t0.Add(30*time.Millisecond)))
	hooks.Emit(ctx, event(domain.EventEvicted, "c", t0.Add(time.Second)))
	hooks.Emit(ctx, event(domain.EventFailed, "d", t0))
	// Unknown ids (e.g. authority-side commits) do not move the gauge.
	hooks.Emit(ctx, event(domain.EventCommitted, "zzz", t0))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.Pending))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Events.WithLabelValues("requested")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("evicted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Resolution))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().Emit(context.Background(), event(domain.EventFailed, "x", time.Now()))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `scenesync_transaction_events_total{event="failed"} 1`)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	hooks := observability.LogHooks(logger)

	e := event(domain.EventFailed, "t1", time.Now())
	e.Err = domain.ErrTargetNotFound
	hooks.Emit(context.Background(), e)

	out := buf.String()
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"txn_id":"t1"`)
	assert.Contains(t, out, `"err":"target not found"`)
}
