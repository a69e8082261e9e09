package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
)

const dispatchBufferSize = 10_000

// Dispatcher hands events to a Publisher from a background worker so request
// handling never waits on the broker.
type Dispatcher struct {
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Collector

	mu     sync.RWMutex
	closed bool
	events chan ReadingEvent
	done   chan struct{}
}

func NewDispatcher(pub Publisher, log *zap.Logger, m *metrics.Collector) *Dispatcher {
	d := &Dispatcher{
		pub:     pub,
		log:     log,
		metrics: m,
		events:  make(chan ReadingEvent, dispatchBufferSize),
		done:    make(chan struct{}),
	}
	go d.worker()
	return d
}

// Enqueue queues ev for publication. If the buffer is full or the dispatcher
// is shut down, the event is dropped and a warning is emitted.
func (d *Dispatcher) Enqueue(ev ReadingEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "dispatcher closed")
		return
	}

	select {
	case d.events <- ev:
	default:
		d.drop(ev, "buffer full")
	}
}

func (d *Dispatcher) drop(ev ReadingEvent, reason string) {
	d.metrics.EventPublished("dropped")
	d.log.Warn("dropping reading event",
		zap.String("reason", reason),
		zap.String("type", string(ev.Type)),
		zap.String("reading_id", ev.ReadingID.String()),
	)
}

// Shutdown drains queued events, waiting at most timeout, then closes the
// publisher.
func (d *Dispatcher) Shutdown(timeout time.Duration) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-time.After(timeout):
		d.log.Warn("event dispatcher shutdown timed out; some events may be lost")
	}

	if err := d.pub.Close(); err != nil {
		d.log.Error("closing event publisher", zap.Error(err))
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for ev := range d.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.pub.Publish(ctx, ev); err != nil {
			d.metrics.EventPublished("failed")
			d.log.Error("failed to publish reading event",
				zap.String("type", string(ev.Type)),
				zap.String("reading_id", ev.ReadingID.String()),
				zap.Error(err),
			)
		} else {
			d.metrics.EventPublished("ok")
		}
		cancel()
	}
}
