package notify

import (
	"context"
	"log/slog"
	"sync"

	"propbridge/pkg/requestcontext"
)

// AsyncDispatcher fans deliveries out to a bounded worker pool fed by a
// buffered inbox. When the inbox is full the delivery is dropped with a
// warning; notification loss is acceptable, blocking a state transition is
// not.
type AsyncDispatcher struct {
	sender  Sender
	inbox   chan Notification
	logger  *slog.Logger
	metrics *Metrics

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

func NewAsyncDispatcher(sender Sender, workers, buffer int, logger *slog.Logger, metrics *Metrics) *AsyncDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	d := &AsyncDispatcher{
		sender: sender,
		inbox:  make(chan Notification, buffer),
		logger: logger,
		stop:   make(chan struct{}),

		metrics: metrics,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch enqueues a delivery without blocking the caller.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, n Notification) {
	select {
	case d.inbox <- n:
		if d.metrics != nil {
			d.metrics.RecordEnqueued(string(n.Kind))
		}
	default:
		if d.metrics != nil {
			d.metrics.RecordDropped(string(n.Kind))
		}
		d.logger.WarnContext(ctx, "notification inbox full, dropping delivery",
			"kind", n.Kind,
			"recipient", n.Recipient,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stop:
			// Drain remaining deliveries before exiting.
			for {
				select {
				case n := <-d.inbox:
					d.deliver(n)
				default:
					return
				}
			}
		case n := <-d.inbox:
			d.deliver(n)
		}
	}
}

func (d *AsyncDispatcher) deliver(n Notification) {
	ctx := context.Background()
	if err := d.sender.Send(ctx, n); err != nil {
		if d.metrics != nil {
			d.metrics.RecordFailed(string(n.Kind))
		}
		d.logger.Warn("notification delivery failed",
			"kind", n.Kind,
			"recipient", n.Recipient,
			"error", err,
		)
		return
	}
	if d.metrics != nil {
		d.metrics.RecordSent(string(n.Kind))
	}
}

// Close stops the workers after draining the inbox.
func (d *AsyncDispatcher) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}
