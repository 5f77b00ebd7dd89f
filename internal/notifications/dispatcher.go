package notifications

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/lifecycle"
)

// drainTimeout bounds delivery of buffered events after shutdown begins.
const drainTimeout = 5 * time.Second

// Dispatcher is a Notifier backed by a bounded buffer drained by one worker.
// Events offered while the buffer is full are dropped and counted.
type Dispatcher struct {
	events    chan Event
	publisher Publisher
	logger    *slog.Logger
	dropped   atomic.Int64
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher with room for size pending events.
func NewDispatcher(publisher Publisher, size int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		events:    make(chan Event, size),
		publisher: publisher,
		logger:    logger.With("system", "notifications"),
		now:       time.Now,
	}
}

// Notify stamps e and queues it without blocking.
func (d *Dispatcher) Notify(_ context.Context, e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now().UTC()
	}

	select {
	case d.events <- e:
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("notification dropped", "type", e.Type, "key", e.Key(), "dropped", n)
	}
}

// Dropped returns the number of events discarded because the buffer was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Start runs the delivery worker on the coordinator. On shutdown the worker delivers
// what is already buffered, bounded by drainTimeout, then closes the publisher.
func (d *Dispatcher) Start(lc *lifecycle.Coordinator) {
	lc.Go(d.run)
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case e := <-d.events:
			d.publish(ctx, e)
		case <-ctx.Done():
			d.drain()
			if err := d.publisher.Close(); err != nil {
				d.logger.Error("publisher close failed", "error", err)
			}
			return
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case e := <-d.events:
			d.publish(ctx, e)
		default:
			return
		}
		if ctx.Err() != nil {
			d.logger.Warn("notification drain timed out", "pending", len(d.events))
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, e Event) {
	if err := d.publisher.Publish(ctx, e); err != nil {
		d.logger.Error("notification publish failed", "type", e.Type, "key", e.Key(), "error", err)
	}
}
