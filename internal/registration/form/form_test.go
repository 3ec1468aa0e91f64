package form

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regform/internal/registration/models"
	"regform/internal/registration/strength"
	"regform/internal/registration/upload"
	"regform/pkg/platform/sentinel"
)

func TestForm_NewHasHiddenErrorSlots(t *testing.T) {
	f := New("f1")
	state := f.State()

	assert.Equal(t, "f1", state.ID)
	assert.Len(t, state.Errors, len(models.Fields()))
	for id, slot := range state.Errors {
		assert.False(t, slot.Flagged, id)
		assert.False(t, slot.Visible, id)
	}
	assert.Equal(t, strength.Empty(), state.Strength)
}

func TestForm_SelectFile(t *testing.T) {
	f := New("f1")
	photo := &models.FileDescriptor{Name: "me.png", SizeBytes: 1024}
	f.SelectFile(photo, upload.Check(photo))

	state := f.State()
	require.NotNil(t, state.File)
	assert.Equal(t, "✓ me.png (0.00 MB)", state.FileDisplay)

	big := &models.FileDescriptor{Name: "big.png", SizeBytes: 10 << 20}
	f.SelectFile(big, upload.Check(big))
	state = f.State()
	assert.Nil(t, state.File)
	assert.Empty(t, state.FileDisplay)
	assert.Equal(t, models.MsgFileTooLarge, state.Alert)

	f.DismissAlert()
	assert.Empty(t, f.State().Alert)
}

func TestForm_ResetRestoresInitialState(t *testing.T) {
	f := New("f1")
	f.SetValue(models.FieldFullName, "Budi")
	f.SetStrength(strength.Evaluate("Secr3t!password"))
	photo := &models.FileDescriptor{Name: "me.png", SizeBytes: 1}
	f.SelectFile(photo, upload.Check(photo))
	spec, _ := models.Lookup(models.FieldBirthDate)
	f.ShowError(spec, models.MsgMinimumAge)
	f.ShowSuccess()
	f.ScrollTo(640)
	f.ToggleVisibility(models.FieldPassword)

	f.Reset()

	assert.Equal(t, New("f1").State(), f.State())
}

func TestForm_ToggleVisibility(t *testing.T) {
	f := New("f1")
	state := f.State()
	assert.Equal(t, map[models.FieldID]bool{
		models.FieldPassword:        true,
		models.FieldConfirmPassword: true,
	}, state.Masked)

	masked, ok := f.ToggleVisibility(models.FieldPassword)
	require.True(t, ok)
	assert.False(t, masked)
	assert.False(t, f.State().Masked[models.FieldPassword])
	assert.True(t, f.State().Masked[models.FieldConfirmPassword], "toggles are independent")

	masked, ok = f.ToggleVisibility(models.FieldPassword)
	require.True(t, ok)
	assert.True(t, masked)

	for _, id := range []models.FieldID{models.FieldEmail, models.FieldPhoto, "nickname"} {
		_, ok := f.ToggleVisibility(id)
		assert.False(t, ok, id)
	}

	f.ToggleVisibility(models.FieldConfirmPassword)
	f.Reset()
	assert.True(t, f.State().Masked[models.FieldConfirmPassword])
}

func TestForm_StateIsACopy(t *testing.T) {
	f := New("f1")
	f.SetValue(models.FieldCity, "jakarta")
	state := f.State()
	state.Values[models.FieldCity] = "bandung"
	assert.Equal(t, "jakarta", f.Value(models.FieldCity))
}

func TestForm_DoSerializesEvents(t *testing.T) {
	f := New("f1")
	var wg sync.WaitGroup
	active := 0
	maxActive := 0
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Do(func() {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}

func TestSessions(t *testing.T) {
	evicted := make(chan string, 1)
	s := NewSessions(WithTTL(time.Minute), WithOnEvicted(func(id string) { evicted <- id }))

	f := s.Create()
	got, err := s.Get(f.ID())
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Equal(t, 1, s.Count())

	s.Delete(f.ID())
	assert.Equal(t, f.ID(), <-evicted)

	_, err = s.Get(f.ID())
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestSessions_Expire(t *testing.T) {
	s := NewSessions(WithTTL(10 * time.Millisecond))
	f := s.Create()
	time.Sleep(30 * time.Millisecond)
	_, err := s.Get(f.ID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
