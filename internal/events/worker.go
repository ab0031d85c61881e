package events

import (
	"context"
	"log/slog"
	"time"
)

// Sink is where the worker ships pending entries (Kafka in production).
type Sink interface {
	Ship(ctx context.Context, entry PendingEntry) error
}

// Worker drains the outbox on an interval. A failed ship leaves the entry
// pending for the next tick; publication is at-least-once and consumers
// dedupe on event ID.
type Worker struct {
	outbox   *OutboxStore
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewWorker(outbox *OutboxStore, sink Sink, logger *slog.Logger) *Worker {
	return &Worker{
		outbox:   outbox,
		sink:     sink,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	entries, err := w.outbox.FetchPending(ctx, w.batch)
	if err != nil {
		w.logger.ErrorContext(ctx, "fetch pending events failed", "error", err)
		return
	}
	for _, entry := range entries {
		if err := w.sink.Ship(ctx, entry); err != nil {
			w.logger.WarnContext(ctx, "ship event failed, will retry",
				"entry_id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			continue
		}
		if err := w.outbox.MarkPublished(ctx, entry.ID); err != nil {
			w.logger.ErrorContext(ctx, "mark published failed",
				"entry_id", entry.ID,
				"error", err,
			)
		}
	}
}
