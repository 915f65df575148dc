package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taxbook/internal/clock"
	"github.com/smallbiznis/taxbook/internal/config"
	logdomain "github.com/smallbiznis/taxbook/internal/requestlog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type captureStore struct {
	mu      sync.Mutex
	records []*logdomain.LogRecord
}

func (s *captureStore) Record(ctx context.Context, record *logdomain.LogRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *captureStore) List(ctx context.Context, query logdomain.ListQuery) (logdomain.ListResult, error) {
	_ = ctx
	_ = query
	return logdomain.ListResult{}, nil
}

func (s *captureStore) Purge(ctx context.Context, olderThanDays int) (int64, error) {
	_ = ctx
	_ = olderThanDays
	return 0, nil
}

func (s *captureStore) all() []*logdomain.LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*logdomain.LogRecord, len(s.records))
	copy(out, s.records)
	return out
}

type stubLifecycle struct {
	hooks []fx.Hook
}

func (l *stubLifecycle) Append(h fx.Hook) {
	l.hooks = append(l.hooks, h)
}

func newTestFactory(t *testing.T) (*Factory, *captureStore, *clock.FakeClock, func()) {
	t.Helper()

	store := &captureStore{}
	lc := &stubLifecycle{}
	clk := clock.NewFakeClock(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC))
	recorder := NewRecorder(lc, zap.NewNop(), config.Config{LogQueueSize: 8}, store)

	ctx := context.Background()
	for _, hook := range lc.hooks {
		require.NoError(t, hook.OnStart(ctx))
	}
	stop := func() {
		for _, hook := range lc.hooks {
			_ = hook.OnStop(ctx)
		}
	}

	return NewFactory(zap.NewNop(), recorder, clk), store, clk, stop
}

func TestFinishPersistsOneRecord(t *testing.T) {
	factory, store, clk, stop := newTestFactory(t)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ownerID := node.Generate()

	m := factory.Begin("/business/create", "POST", Options{IPAddress: "10.0.0.1", UserAgent: "test-agent"})
	m.SetOwner(ownerID)
	m.Log(logdomain.LevelInfo, "validated payload", map[string]any{"invoiceNo": "INV-001"})
	clk.Advance(120 * time.Millisecond)
	m.Finish(context.Background(), 201, true, "")

	// A second finish must not produce a second record.
	m.Finish(context.Background(), 500, false, "late")

	stop()

	records := store.all()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, m.RequestID(), rec.RequestID)
	assert.Equal(t, "/business/create", rec.Endpoint)
	assert.Equal(t, "POST", rec.Method)
	assert.Equal(t, logdomain.LevelInfo, rec.Level)
	assert.Equal(t, 201, rec.StatusCode)
	assert.True(t, rec.Success)
	assert.EqualValues(t, 120, rec.DurationMS)
	require.NotNil(t, rec.OwnerID)
	assert.Equal(t, ownerID, *rec.OwnerID)
	assert.Equal(t, "10.0.0.1", rec.IPAddress)
	assert.Equal(t, "test-agent", rec.UserAgent)
	assert.Contains(t, string(rec.Metadata), "validated payload")
	assert.Contains(t, string(rec.Metadata), "response sent")
}

func TestFinishSeverityBanding(t *testing.T) {
	factory, store, _, stop := newTestFactory(t)

	cases := []struct {
		status int
		level  logdomain.Level
	}{
		{200, logdomain.LevelInfo},
		{404, logdomain.LevelWarn},
		{503, logdomain.LevelError},
	}
	for _, tc := range cases {
		m := factory.Begin("/generate", "GET", Options{})
		m.Finish(context.Background(), tc.status, tc.status < 400, "")
	}

	stop()

	records := store.all()
	require.Len(t, records, len(cases))
	for i, tc := range cases {
		assert.Equal(t, tc.level, records[i].Level, "status %d", tc.status)
	}
}

func TestFinishErrorForcesErrorLevel(t *testing.T) {
	factory, store, _, stop := newTestFactory(t)

	m := factory.Begin("/business", "POST", Options{})
	m.FinishError(context.Background(), 500, "runtime panic: nil dereference")

	stop()

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, logdomain.LevelError, records[0].Level)
	assert.False(t, records[0].Success)
	require.NotNil(t, records[0].ErrorDetail)
	assert.Equal(t, "runtime panic: nil dereference", *records[0].ErrorDetail)
}

func TestSkipPersistSuppressesRecord(t *testing.T) {
	factory, store, _, stop := newTestFactory(t)

	m := factory.Begin("/logs", "GET", Options{SkipPersist: true})
	m.Log(logdomain.LevelInfo, "listing records", nil)
	m.Finish(context.Background(), 200, true, "")

	stop()

	assert.Empty(t, store.all())
}

func TestEnqueueFallsBackWhenQueueFull(t *testing.T) {
	store := &captureStore{}
	lc := &stubLifecycle{}
	// Writer never started: the queue fills, then enqueue degrades to a
	// synchronous write.
	recorder := NewRecorder(lc, zap.NewNop(), config.Config{LogQueueSize: 1}, store)

	recorder.Enqueue(context.Background(), &logdomain.LogRecord{RequestID: "queued"})
	recorder.Enqueue(context.Background(), &logdomain.LogRecord{RequestID: "inline"})

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "inline", records[0].RequestID)
}
