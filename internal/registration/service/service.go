// Package service runs the registration pipeline: live field events,
// submission, recording and the delayed form reset.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"regform/internal/audit"
	"regform/internal/registration/errorstate"
	"regform/internal/registration/metrics"
	"regform/internal/registration/models"
	"regform/internal/registration/strength"
	"regform/internal/registration/upload"
	"regform/internal/registration/validation"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/sentinel"
)

// DefaultResetDelay is how long the success banner stays before the form resets.
const DefaultResetDelay = 2 * time.Second

// DefaultStoreKey is the key accepted records are appended under.
const DefaultStoreKey = "registrations"

// RecordStore reads and replaces the record list under a key.
type RecordStore interface {
	Load(ctx context.Context, key string) ([]models.RegistrationRecord, error)
	Save(ctx context.Context, key string, records []models.RegistrationRecord) error
}

// Appender is implemented by stores that append atomically. The service
// prefers it over load-push-save.
type Appender interface {
	Append(ctx context.Context, key string, record models.RegistrationRecord) error
}

// Form is the rendering surface of one form session.
type Form interface {
	errorstate.Surface
	ID() string
	// Do runs fn with exclusive access to the form's event stream.
	Do(fn func())
	SetValue(id models.FieldID, value string)
	Value(id models.FieldID) string
	SetStrength(ind strength.Indicator)
	SelectFile(file *models.FileDescriptor, d upload.Decision)
	Snapshot() models.FormSnapshot
	ShowSuccess()
	Reset()
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SecretSealer one-way transforms a secret before it is persisted.
type SecretSealer interface {
	Seal(secret string) (string, error)
}

// Service orchestrates validation, error display and recording.
type Service struct {
	records    RecordStore
	key        string
	registry   *validation.Registry
	guard      *upload.Guard
	errors     *errorstate.Manager
	scheduler  *Scheduler
	resetDelay time.Duration
	sealer     SecretSealer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	audit      AuditPublisher
	tracer     trace.Tracer

	// appendMu serializes load-push-save for stores without Appender.
	appendMu sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithSealer stores password as a sealed value and drops confirmPassword.
func WithSealer(sealer SecretSealer) Option {
	return func(s *Service) {
		s.sealer = sealer
	}
}

func WithResetDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.resetDelay = d
		}
	}
}

func WithScheduler(scheduler *Scheduler) Option {
	return func(s *Service) {
		s.scheduler = scheduler
	}
}

func WithRegistry(registry *validation.Registry) Option {
	return func(s *Service) {
		s.registry = registry
	}
}

func WithUploadGuard(guard *upload.Guard) Option {
	return func(s *Service) {
		s.guard = guard
	}
}

func WithStoreKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.key = key
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service over records.
func New(records RecordStore, opts ...Option) *Service {
	s := &Service{
		records:    records,
		key:        DefaultStoreKey,
		registry:   validation.DefaultRegistry(),
		guard:      upload.New(),
		resetDelay: DefaultResetDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = NewScheduler(nil)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("regform/registration")
	}
	s.errors = errorstate.New(errorstate.WithLogger(s.logger))
	return s
}

// ListRecords returns every stored registration.
func (s *Service) ListRecords(ctx context.Context) ([]models.RegistrationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "registration.list")
	defer span.End()

	records, err := s.records.Load(ctx, s.key)
	if err != nil {
		s.incrementStoreFailure("load")
		span.RecordError(err)
		if errors.Is(err, sentinel.ErrUnavailable) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "record store unavailable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrations")
	}
	return records, nil
}

// Forget cancels any pending reset for a form that is going away.
func (s *Service) Forget(formID string) {
	s.scheduler.Cancel(formID)
}

// Close cancels every pending reset.
func (s *Service) Close() {
	s.scheduler.Stop()
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"form_id", event.FormID,
			"error", err,
		)
	}
}

func (s *Service) incrementStoreFailure(op string) {
	if s.metrics != nil {
		s.metrics.IncrementStoreFailure(op)
	}
}
