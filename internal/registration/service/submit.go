package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"regform/internal/audit"
	"regform/internal/registration/models"
	"regform/pkg/requestcontext"
)

// WarnNotSaved is added to an accepted result whose record could not be stored.
const WarnNotSaved = "registration accepted but could not be saved"

const maskedSecret = "********"

// Submit validates every field and the photo, shows or hides every error,
// and records the registration when all pass. Validation failures are data;
// the error is only non-nil when ctx is already done.
func (s *Service) Submit(ctx context.Context, form Form) (models.SubmissionResult, error) {
	if err := ctx.Err(); err != nil {
		return models.SubmissionResult{}, err
	}
	var result models.SubmissionResult
	form.Do(func() {
		result = s.submit(ctx, form)
	})
	return result, nil
}

func (s *Service) submit(ctx context.Context, form Form) models.SubmissionResult {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registration.submit",
		trace.WithAttributes(attribute.String("form.id", form.ID())))
	defer span.End()

	snap := form.Snapshot()
	now := requestcontext.Now(ctx)

	outcomes := s.registry.Validate(snap, now)
	outcomes = append(outcomes, s.guard.Check(snap.File()).Outcome)
	s.errors.ApplyAll(form, outcomes)
	result := models.NewSubmissionResult(outcomes)

	span.SetAttributes(attribute.Bool("registration.accepted", result.Accepted))
	if s.metrics != nil {
		s.metrics.IncrementSubmission(result.Accepted)
		for _, o := range result.Invalid() {
			s.metrics.IncrementFieldFailure(string(o.FieldID))
		}
	}

	if !result.Accepted {
		invalid := make([]string, 0, len(outcomes))
		for _, o := range result.Invalid() {
			invalid = append(invalid, string(o.FieldID))
		}
		s.logger.InfoContext(ctx, "registration rejected",
			"form_id", form.ID(),
			"invalid_fields", invalid,
		)
		s.emitAudit(ctx, audit.Event{
			Action: audit.ActionRegistrationRejected,
			FormID: form.ID(),
			Fields: invalid,
		})
		if s.metrics != nil {
			s.metrics.ObserveSubmit(start)
		}
		return result
	}

	if _, err := s.Record(ctx, form, snap); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record not saved")
		result.Warnings = append(result.Warnings, WarnNotSaved)
	}
	if s.metrics != nil {
		s.metrics.ObserveSubmit(start)
	}
	return result
}

// Record stores an accepted snapshot, logs it, shows the success banner and
// schedules the reset. A persistence failure is returned but never stops the
// success signal. Callers must hold the form's event (see Form.Do).
func (s *Service) Record(ctx context.Context, form Form, snap models.FormSnapshot) (models.RegistrationRecord, error) {
	ctx, span := s.tracer.Start(ctx, "registration.record")
	defer span.End()

	rec, err := s.buildRecord(snap, requestcontext.Now(ctx))
	if err == nil {
		err = s.persist(ctx, rec)
	}
	if err != nil {
		span.RecordError(err)
		s.logger.WarnContext(ctx, "registration not saved",
			"form_id", form.ID(),
			"error", err,
		)
		s.emitAudit(ctx, audit.Event{
			Action: audit.ActionRegistrationNotSaved,
			FormID: form.ID(),
			Reason: err.Error(),
		})
	}

	s.logger.InfoContext(ctx, "registration accepted", s.dumpArgs(form.ID(), snap, rec)...)
	form.ShowSuccess()
	s.scheduleReset(form)
	s.emitAudit(ctx, audit.Event{
		Action: audit.ActionRegistrationAccepted,
		FormID: form.ID(),
	})
	return rec, err
}

// buildRecord takes every field except the photo, in catalog order.
func (s *Service) buildRecord(snap models.FormSnapshot, now time.Time) (models.RegistrationRecord, error) {
	fields := make(map[string]string)
	for _, spec := range models.Fields() {
		if spec.Kind == models.KindFile {
			continue
		}
		fields[string(spec.ID)] = snap.Value(spec.ID)
	}
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(fields[string(models.FieldPassword)])
		if err != nil {
			return models.RegistrationRecord{}, fmt.Errorf("seal password: %w", err)
		}
		fields[string(models.FieldPassword)] = sealed
		delete(fields, string(models.FieldConfirmPassword))
	}
	return models.NewRegistrationRecord(fields, now), nil
}

func (s *Service) persist(ctx context.Context, rec models.RegistrationRecord) error {
	ctx, span := s.tracer.Start(ctx, "registration.persist")
	defer span.End()

	if appender, ok := s.records.(Appender); ok {
		if err := appender.Append(ctx, s.key, rec); err != nil {
			s.incrementStoreFailure("append")
			return fmt.Errorf("append registration: %w", err)
		}
		return nil
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()
	existing, err := s.records.Load(ctx, s.key)
	if err != nil {
		s.incrementStoreFailure("load")
		return fmt.Errorf("load registrations: %w", err)
	}
	if err := s.records.Save(ctx, s.key, append(existing, rec)); err != nil {
		s.incrementStoreFailure("save")
		return fmt.Errorf("save registrations: %w", err)
	}
	return nil
}

// dumpArgs lists accepted values for the diagnostic log with secrets masked.
func (s *Service) dumpArgs(formID string, snap models.FormSnapshot, rec models.RegistrationRecord) []any {
	fields := make([]any, 0, len(models.Fields()))
	for _, spec := range models.Fields() {
		if spec.Kind == models.KindFile {
			continue
		}
		value := snap.Value(spec.ID)
		if spec.IsSecret() {
			value = maskedSecret
		}
		fields = append(fields, slog.String(string(spec.ID), value))
	}
	args := []any{
		"form_id", formID,
		slog.Group("fields", fields...),
		"registration_date", rec.RegistrationDate.Format(models.RegistrationDateLayout),
	}
	if file := snap.File(); file != nil {
		args = append(args, "photo", file.Name)
	}
	return args
}

func (s *Service) scheduleReset(form Form) {
	_, replaced := s.scheduler.Schedule(form.ID(), s.resetDelay, func(task *Task) {
		form.Do(func() {
			if !task.Claim() {
				return
			}
			form.Reset()
			s.logger.Debug("form reset", "form_id", form.ID())
		})
	})
	if replaced && s.metrics != nil {
		s.metrics.IncrementResetCancelled()
	}
}
