package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/workforce-hq/workforce/internal/tenancy"
)

const dispatchWriteTimeout = 5 * time.Second

type dispatchJob struct {
	actx tenancy.ActingContext
	ev   Event
}

// Dispatcher hands audit events to a single background writer so request
// handlers never wait on the audit table. A full buffer drops the event.
type Dispatcher struct {
	store  *Store
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan dispatchJob
	done   chan struct{}
}

// NewDispatcher starts the writer goroutine.
func NewDispatcher(store *Store, buffer int, logger *slog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		store:  store,
		logger: logger,
		queue:  make(chan dispatchJob, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for job := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchWriteTimeout)
		d.store.Append(ctx, job.actx, job.ev)
		cancel()
	}
}

// Append enqueues ev without blocking. The request context is not carried
// over; the write outlives the request.
func (d *Dispatcher) Append(_ context.Context, actx tenancy.ActingContext, ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ev, "dispatcher closed")
		return
	}
	select {
	case d.queue <- dispatchJob{actx: actx, ev: ev}:
	default:
		d.drop(ev, "buffer full")
	}
}

func (d *Dispatcher) drop(ev Event, reason string) {
	d.store.observer.AuditDropped(ev.Action)
	d.logger.Warn("audit event dropped",
		slog.String("reason", reason),
		slog.String("action", ev.Action),
		slog.String("resource_id", ev.ResourceID),
	)
}

// Close stops accepting events and waits until queued events are written or
// ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
