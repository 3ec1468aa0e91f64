package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"regform/pkg/requestcontext"
)

// ErrQueueFull is returned by Emit when the async queue cannot take more events.
var ErrQueueFull = errors.New("audit queue full")

// Publisher captures structured audit events. With a queue it hands events to
// a Worker; without one it appends synchronously. The publisher owns its
// queue: Close closes it and later events are appended synchronously.
type Publisher struct {
	store  Store
	queue  chan Event
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithQueue makes Emit non-blocking: events go to queue and a Worker drains it.
func WithQueue(queue chan Event) Option {
	return func(p *Publisher) {
		p.queue = queue
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills in ID, timestamp and request metadata, then records the event.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = DeviceLabel(requestcontext.UserAgent(ctx))
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.queue == nil || p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit queue full, dropping event",
			"action", event.Action,
			"form_id", event.FormID,
		)
		return ErrQueueFull
	}
}

// Close closes the queue so the Worker drains it and stops. It is safe to
// call more than once and concurrently with Emit.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.queue != nil {
		close(p.queue)
	}
}
