// Package monitor builds the per-request observability record that every API
// operation leaves behind: an in-memory trail of events, emitted live to the
// structured log and persisted once as a request log record on finish.
package monitor

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/taxbook/internal/clock"
	logdomain "github.com/smallbiznis/taxbook/internal/requestlog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var Module = fx.Module("monitor",
	fx.Provide(NewFactory),
	fx.Provide(NewRecorder),
)

// Factory creates monitors bound to the shared logger and recorder.
type Factory struct {
	log      *zap.Logger
	recorder *Recorder
	clock    clock.Clock
}

func NewFactory(log *zap.Logger, recorder *Recorder, clk clock.Clock) *Factory {
	return &Factory{
		log:      log.Named("monitor"),
		recorder: recorder,
		clock:    clk,
	}
}

// Options configure a single request's monitor.
type Options struct {
	// SkipPersist suppresses the final store write. Set by route
	// configuration for the log-administration endpoints so querying the
	// audit trail never appends to it.
	SkipPersist bool

	IPAddress string
	UserAgent string
}

// TrailEntry is one event in the per-request trail.
type TrailEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     logdomain.Level `json:"level"`
	Message   string          `json:"message"`
	Meta      map[string]any  `json:"meta,omitempty"`
}

// Monitor accumulates the trail for one request. Methods are safe for
// concurrent use; Finish is effective exactly once.
type Monitor struct {
	factory *Factory

	requestID string
	endpoint  string
	method    string
	opts      Options
	startedAt time.Time

	mu       sync.Mutex
	ownerID  *snowflake.ID
	trail    []TrailEntry
	finished bool
}

// Begin starts monitoring one request.
func (f *Factory) Begin(endpoint, method string, opts Options) *Monitor {
	m := &Monitor{
		factory:   f,
		requestID: uuid.NewString(),
		endpoint:  endpoint,
		method:    method,
		opts:      opts,
		startedAt: f.clock.Now(),
	}
	m.Log(logdomain.LevelInfo, "incoming request", map[string]any{
		"ipAddress": opts.IPAddress,
		"userAgent": opts.UserAgent,
	})
	return m
}

// RequestID returns the generated request identifier.
func (m *Monitor) RequestID() string {
	return m.requestID
}

// SetOwner attaches the authenticated owner once authentication succeeds.
func (m *Monitor) SetOwner(ownerID snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownerID = &ownerID
}

// Log appends an event to the trail and emits it to the live stream.
func (m *Monitor) Log(level logdomain.Level, message string, meta map[string]any) {
	entry := TrailEntry{
		Timestamp: m.factory.clock.Now(),
		Level:     level,
		Message:   message,
		Meta:      meta,
	}

	m.mu.Lock()
	m.trail = append(m.trail, entry)
	m.mu.Unlock()

	fields := []zap.Field{
		zap.String("request_id", m.requestID),
		zap.String("endpoint", m.endpoint),
		zap.String("method", m.method),
	}
	if len(meta) > 0 {
		fields = append(fields, zap.Any("meta", meta))
	}

	log := m.factory.log
	switch level {
	case logdomain.LevelError:
		log.Error(message, fields...)
	case logdomain.LevelWarn:
		log.Warn(message, fields...)
	default:
		log.Info(message, fields...)
	}
}

// Finish derives severity from the status banding, snapshots the trail and
// hands the record to the recorder. Subsequent calls are no-ops.
func (m *Monitor) Finish(ctx context.Context, statusCode int, success bool, errDetail string) {
	m.finish(ctx, statusCode, success, errDetail, logdomain.LevelForStatus(statusCode))
}

// FinishError records a request that failed with a caught panic or internal
// error; severity is error regardless of status.
func (m *Monitor) FinishError(ctx context.Context, statusCode int, errDetail string) {
	m.finish(ctx, statusCode, false, errDetail, logdomain.LevelError)
}

func (m *Monitor) finish(ctx context.Context, statusCode int, success bool, errDetail string, level logdomain.Level) {
	now := m.factory.clock.Now()
	duration := now.Sub(m.startedAt)

	m.mu.Lock()
	if m.finished {
		m.mu.Unlock()
		return
	}
	m.finished = true
	m.mu.Unlock()

	m.Log(level, "response sent", map[string]any{
		"statusCode": statusCode,
		"success":    success,
		"durationMs": duration.Milliseconds(),
	})

	m.mu.Lock()
	ownerID := m.ownerID
	trail := make([]TrailEntry, len(m.trail))
	copy(trail, m.trail)
	m.mu.Unlock()

	if m.opts.SkipPersist {
		return
	}

	message := "request completed"
	if !success {
		message = "request rejected"
	}
	if level == logdomain.LevelError {
		message = "request failed"
	}

	record := &logdomain.LogRecord{
		RequestID:  m.requestID,
		Endpoint:   m.endpoint,
		Method:     m.method,
		Level:      level,
		Message:    message,
		OwnerID:    ownerID,
		StatusCode: statusCode,
		DurationMS: duration.Milliseconds(),
		Success:    success,
		Metadata:   marshalTrail(trail),
		IPAddress:  m.opts.IPAddress,
		UserAgent:  m.opts.UserAgent,
		CreatedAt:  now,
	}
	if errDetail != "" {
		record.ErrorDetail = &errDetail
	}

	m.factory.recorder.Enqueue(ctx, record)
}

func marshalTrail(trail []TrailEntry) datatypes.JSON {
	raw, err := json.Marshal(trail)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
