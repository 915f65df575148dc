package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/taxbook/internal/config"
	logdomain "github.com/smallbiznis/taxbook/internal/requestlog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Recorder moves log persistence off the response path. Records flow through
// a bounded queue into a single writer goroutine; when the queue is full the
// enqueue degrades to a synchronous write so no finished request is dropped.
// Delivery is at-least-once, keyed by request id.
type Recorder struct {
	log   *zap.Logger
	store logdomain.Service

	queue chan *logdomain.LogRecord

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewRecorder(lc fx.Lifecycle, log *zap.Logger, cfg config.Config, store logdomain.Service) *Recorder {
	size := cfg.LogQueueSize
	if size <= 0 {
		size = 256
	}
	r := &Recorder{
		log:   log.Named("monitor.recorder"),
		store: store,
		queue: make(chan *logdomain.LogRecord, size),
		done:  make(chan struct{}),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go r.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = ctx
			r.Close()
			return nil
		},
	})

	return r
}

// Enqueue hands a record to the background writer. The request context is
// deliberately not used for the write: a caller disconnect must not lose the
// record.
func (r *Recorder) Enqueue(ctx context.Context, record *logdomain.LogRecord) {
	_ = ctx
	if record == nil {
		return
	}

	r.mu.Lock()
	closed := r.closed
	if !closed {
		select {
		case r.queue <- record:
			r.mu.Unlock()
			return
		default:
		}
	}
	r.mu.Unlock()

	// Queue full or recorder stopped: write inline rather than drop.
	r.write(record)
}

func (r *Recorder) run() {
	defer close(r.done)
	for record := range r.queue {
		r.write(record)
	}
}

func (r *Recorder) write(record *logdomain.LogRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.Record(ctx, record); err != nil {
		r.log.Warn("request log write failed",
			zap.String("request_id", record.RequestID),
			zap.Error(err),
		)
	}
}

// Close drains the queue and stops the writer.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}
