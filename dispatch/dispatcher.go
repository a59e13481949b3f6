package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/opd-ai/nowlink/limits"
	"github.com/opd-ai/nowlink/pipeline"
	"github.com/sirupsen/logrus"
)

// Handler consumes one notification on the consumer goroutine.
type Handler func(n pipeline.Notification)

// Dispatcher is a bounded FIFO of pending notifications. It implements
// pipeline.Scheduler.
type Dispatcher struct {
	queue   chan pipeline.Notification
	handler Handler

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a dispatcher holding up to depth notifications.
func New(depth int, handler Handler) (*Dispatcher, error) {
	if err := limits.ValidateDispatchDepth(depth); err != nil {
		return nil, err
	}
	if handler == nil {
		handler = func(pipeline.Notification) {}
	}

	logrus.WithFields(logrus.Fields{
		"function": "dispatch.New",
		"depth":    depth,
	}).Debug("Creating dispatcher")

	return &Dispatcher{
		queue:   make(chan pipeline.Notification, depth),
		handler: handler,
	}, nil
}

// Schedule queues n without blocking. It is safe to call from the callback
// goroutine.
func (d *Dispatcher) Schedule(n pipeline.Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		d.dropped.Add(1)
		return false
	}
}

// Iterate runs every notification queued at the time of the call and
// returns how many ran. Notifications scheduled while it runs are left for
// the next call.
func (d *Dispatcher) Iterate() int {
	ran := 0
	for pending := len(d.queue); pending > 0; pending-- {
		select {
		case n := <-d.queue:
			d.deliver(n)
			ran++
		default:
			return ran
		}
	}
	return ran
}

// Run delivers notifications as they arrive until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"function": "Dispatcher.Run",
	}).Debug("Dispatcher loop started")

	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{
				"function":  "Dispatcher.Run",
				"delivered": d.delivered.Load(),
				"dropped":   d.dropped.Load(),
			}).Debug("Dispatcher loop stopped")
			return ctx.Err()
		case n := <-d.queue:
			d.deliver(n)
		}
	}
}

func (d *Dispatcher) deliver(n pipeline.Notification) {
	d.handler(n)
	n.Release()
	d.delivered.Add(1)
}

// Discard empties the queue without running the handler and returns how
// many notifications were discarded.
func (d *Dispatcher) Discard() int {
	discarded := 0
	for {
		select {
		case n := <-d.queue:
			n.Release()
			discarded++
		default:
			return discarded
		}
	}
}

// Pending returns the number of queued notifications.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Delivered returns the number of notifications handed to the handler.
func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}

// Dropped returns the number of notifications rejected because the queue was
// full.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
