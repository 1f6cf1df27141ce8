// Package notify turns changed comments into messages and delivers them one
// at a time.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"comment_notifier/internal/domain"
)

// Sender transmits a single notification. Implementations are never called
// concurrently by a Dispatcher.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// ErrorHandler decides what a failed send means. Returning nil drops the
// notification and keeps the dispatcher running; returning an error stops it.
type ErrorHandler func(n domain.Notification, err error) error

type DispatcherOption func(*Dispatcher)

func WithErrorHandler(h ErrorHandler) DispatcherOption {
	return func(d *Dispatcher) { d.onError = h }
}

// Dispatcher is a single-consumer queue in front of a Sender. Producers call
// Enqueue from any goroutine; Run drains the queue on its own goroutine, so
// at most one Send is in flight.
type Dispatcher struct {
	sender  Sender
	queue   chan domain.Notification
	onError ErrorHandler
	logger  *slog.Logger

	closeOnce sync.Once
	sent      atomic.Int64
	dropped   atomic.Int64
}

func NewDispatcher(sender Sender, size int, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if size < 0 {
		size = 0
	}
	d := &Dispatcher{
		sender: sender,
		queue:  make(chan domain.Notification, size),
		logger: logger.With("component", "notify"),
		onError: func(n domain.Notification, err error) error {
			return fmt.Errorf("send notification for comment %s: %w", n.Record.ID, err)
		},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Enqueue blocks until the notification is queued or ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, n domain.Notification) error {
	select {
	case d.queue <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tells Run that nothing more will be enqueued.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.queue) })
}

// Run sends queued notifications until the queue is closed and empty, or the
// error handler returns an error.
func (d *Dispatcher) Run(ctx context.Context) error {
	for n := range d.queue {
		if err := d.sender.Send(ctx, n); err != nil {
			if herr := d.onError(n, err); herr != nil {
				return herr
			}
			d.dropped.Add(1)
			d.logger.Warn("notification dropped",
				"comment_id", n.Record.ID,
				"error", err,
			)
			continue
		}

		d.sent.Add(1)
		d.logger.Info("notification sent",
			"comment_id", n.Record.ID,
			"commenter", n.Record.CommenterName,
			"kind", n.Kind.String(),
		)
	}
	return nil
}

func (d *Dispatcher) Sent() int {
	return int(d.sent.Load())
}

func (d *Dispatcher) Dropped() int {
	return int(d.dropped.Load())
}
