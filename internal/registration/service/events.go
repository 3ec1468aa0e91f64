package service

import (
	"context"
	"fmt"

	"regform/internal/audit"
	"regform/internal/registration/models"
	"regform/internal/registration/strength"
	"regform/internal/registration/upload"
	"regform/internal/registration/validation"
	dErrors "regform/pkg/domain-errors"
)

// KeyEvent is a key press on the form.
type KeyEvent struct {
	Key  string `json:"key"`
	Ctrl bool   `json:"ctrl"`
	Meta bool   `json:"meta"`
}

// IsSubmitShortcut reports Ctrl+Enter or Cmd+Enter.
func (k KeyEvent) IsSubmitShortcut() bool {
	return k.Key == "Enter" && (k.Ctrl || k.Meta)
}

// Input applies a typed value: the phone filter, the strength bar and the
// live password confirmation check.
func (s *Service) Input(ctx context.Context, form Form, id models.FieldID, value string) error {
	spec, ok := models.Lookup(id)
	if !ok || spec.Kind == models.KindFile {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown field %q", id))
	}
	form.Do(func() {
		if id == models.FieldPhone {
			value = validation.SanitizePhone(value)
		}
		form.SetValue(id, value)
		if id == models.FieldPassword {
			form.SetStrength(strength.Evaluate(value))
		}
		if outcome, applies := validation.OnInput(id, form.Snapshot()); applies {
			s.errors.Apply(form, outcome)
		}
	})
	return nil
}

// Blur runs the focus-loss check. applied is false when the field has no
// blur check or is empty.
func (s *Service) Blur(ctx context.Context, form Form, id models.FieldID) (outcome models.ValidationOutcome, applied bool, err error) {
	if _, ok := models.Lookup(id); !ok {
		return models.ValidationOutcome{}, false, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown field %q", id))
	}
	form.Do(func() {
		outcome, applied = validation.OnBlur(id, form.Snapshot())
		if applied {
			s.errors.Apply(form, outcome)
		}
	})
	return outcome, applied, nil
}

// SelectFile runs the upload guard on a newly chosen photo. A nil file
// clears the selection.
func (s *Service) SelectFile(ctx context.Context, form Form, file *models.FileDescriptor) upload.Decision {
	decision := s.guard.Check(file)
	form.Do(func() {
		form.SelectFile(file, decision)
	})
	if decision.Rejected() {
		s.logger.InfoContext(ctx, "photo rejected",
			"form_id", form.ID(),
			"size_mb", decision.SizeMB,
			"limit_mb", s.guard.MaxMB(),
		)
		if s.metrics != nil {
			s.metrics.IncrementUploadRejected()
		}
		s.emitAudit(ctx, audit.Event{
			Action: audit.ActionUploadRejected,
			FormID: form.ID(),
			Reason: decision.Alert,
		})
	}
	return decision
}

// KeyPress submits on Ctrl/Cmd+Enter. submitted is false for any other key.
func (s *Service) KeyPress(ctx context.Context, form Form, key KeyEvent) (result models.SubmissionResult, submitted bool, err error) {
	if !key.IsSubmitShortcut() {
		return models.SubmissionResult{}, false, nil
	}
	result, err = s.Submit(ctx, form)
	return result, err == nil, err
}
