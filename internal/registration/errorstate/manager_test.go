package errorstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"regform/internal/registration/models"
)

type slot struct {
	flagged bool
	visible bool
	message string
}

type recordingSurface struct {
	slots map[models.FieldID]slot
	calls int
}

func newRecordingSurface() *recordingSurface {
	return &recordingSurface{slots: map[models.FieldID]slot{}}
}

func (s *recordingSurface) ShowError(spec models.FieldSpec, message string) {
	s.calls++
	s.slots[spec.ID] = slot{flagged: true, visible: true, message: message}
}

func (s *recordingSurface) HideError(spec models.FieldSpec) {
	s.calls++
	s.slots[spec.ID] = slot{message: spec.DefaultMessage}
}

func TestApply(t *testing.T) {
	m := New()

	t.Run("invalid uses default message", func(t *testing.T) {
		s := newRecordingSurface()
		m.Apply(s, models.Fail(models.FieldEmail, ""))
		assert.Equal(t, slot{flagged: true, visible: true, message: models.MsgEmailInvalid}, s.slots[models.FieldEmail])
	})

	t.Run("override message wins", func(t *testing.T) {
		s := newRecordingSurface()
		m.Apply(s, models.Fail(models.FieldBirthDate, models.MsgMinimumAge))
		assert.Equal(t, models.MsgMinimumAge, s.slots[models.FieldBirthDate].message)
	})

	t.Run("valid hides and restores default", func(t *testing.T) {
		s := newRecordingSurface()
		m.Apply(s, models.Fail(models.FieldBirthDate, models.MsgMinimumAge))
		m.Apply(s, models.Pass(models.FieldBirthDate))
		assert.Equal(t, slot{message: models.MsgBirthDateMissing}, s.slots[models.FieldBirthDate])
	})

	t.Run("unknown field ignored", func(t *testing.T) {
		s := newRecordingSurface()
		m.Apply(s, models.Fail("nickname", "x"))
		assert.Zero(t, s.calls)
	})
}

func TestApply_Idempotent(t *testing.T) {
	m := New()
	outcomes := []models.ValidationOutcome{
		models.Fail(models.FieldFullName, ""),
		models.Pass(models.FieldEmail),
		models.Fail(models.FieldPhoto, models.MsgFileTooLarge),
	}

	once := newRecordingSurface()
	m.ApplyAll(once, outcomes)

	twice := newRecordingSurface()
	m.ApplyAll(twice, outcomes)
	m.ApplyAll(twice, outcomes)

	assert.Equal(t, once.slots, twice.slots)
}
