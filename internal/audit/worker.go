package audit

import (
	"context"
	"log/slog"
)

// Worker drains the publisher queue into a store. Append failures are logged
// and the event is dropped; audit never blocks registration.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run blocks until ctx is done or the inbox is closed. Events still buffered
// when ctx ends are flushed with a background context.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.append(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			w.append(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "failed to append audit event",
			"action", event.Action,
			"form_id", event.FormID,
			"error", err,
		)
	}
}
