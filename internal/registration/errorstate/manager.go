// Package errorstate projects validation outcomes onto an error display.
package errorstate

import (
	"log/slog"

	"regform/internal/registration/models"
)

// Surface is the part of the rendering surface that shows per-field errors.
type Surface interface {
	// ShowError flags the field and shows message in its error slot.
	ShowError(spec models.FieldSpec, message string)
	// HideError clears the flag, hides the slot and restores the default message.
	HideError(spec models.FieldSpec)
}

// Manager applies outcomes to a Surface. Applying the same outcome twice
// leaves the surface as applying it once.
type Manager struct {
	logger *slog.Logger
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func New(opts ...Option) *Manager {
	m := &Manager{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply shows or hides the error for one outcome. Outcomes for unknown
// fields are dropped.
func (m *Manager) Apply(surface Surface, outcome models.ValidationOutcome) {
	spec, ok := models.Lookup(outcome.FieldID)
	if !ok {
		m.logger.Debug("ignoring outcome for unknown field", "field", outcome.FieldID)
		return
	}
	if outcome.Valid {
		surface.HideError(spec)
		return
	}
	message := outcome.Message
	if message == "" {
		message = spec.DefaultMessage
	}
	surface.ShowError(spec, message)
}

// ApplyAll applies outcomes in order.
func (m *Manager) ApplyAll(surface Surface, outcomes []models.ValidationOutcome) {
	for _, o := range outcomes {
		m.Apply(surface, o)
	}
}
