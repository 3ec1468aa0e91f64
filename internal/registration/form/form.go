// Package form models the rendering surface of one registration form: what a
// browser would show for the field values, error slots, strength bar, upload
// line and success banner.
package form

import (
	"sync"

	"regform/internal/registration/models"
	"regform/internal/registration/strength"
	"regform/internal/registration/upload"
)

// FieldError is the visible state of one error slot.
type FieldError struct {
	ErrorID string `json:"error_id"`
	Flagged bool   `json:"flagged"`
	Visible bool   `json:"visible"`
	Message string `json:"message"`
}

// State is a point-in-time copy of everything the surface displays.
type State struct {
	ID             string                        `json:"id"`
	Values         map[models.FieldID]string     `json:"values"`
	File           *models.FileDescriptor        `json:"file,omitempty"`
	FileDisplay    string                        `json:"file_display"`
	Alert          string                        `json:"alert,omitempty"`
	Strength       strength.Indicator            `json:"strength"`
	Errors         map[models.FieldID]FieldError `json:"errors"`
	SuccessVisible bool                          `json:"success_visible"`
	ScrollY        int                           `json:"scroll_y"`
	// Masked tells, per password field, whether its input hides the characters.
	Masked map[models.FieldID]bool `json:"masked"`
}

// Form is one form session. Each method is safe for concurrent use; Do
// serializes whole events so an event never observes another half-applied.
type Form struct {
	id string

	events sync.Mutex

	mu             sync.Mutex
	values         map[models.FieldID]string
	file           *models.FileDescriptor
	fileDisplay    string
	alert          string
	indicator      strength.Indicator
	errors         map[models.FieldID]FieldError
	successVisible bool
	scrollY        int
	masked         map[models.FieldID]bool
}

// New returns an empty form with every error slot hidden.
func New(id string) *Form {
	f := &Form{id: id}
	f.clear()
	return f
}

func (f *Form) ID() string {
	return f.id
}

// Do runs fn as one event. Calls to Do on the same form never overlap.
func (f *Form) Do(fn func()) {
	f.events.Lock()
	defer f.events.Unlock()
	fn()
}

func (f *Form) SetValue(id models.FieldID, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[id] = value
}

func (f *Form) Value(id models.FieldID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[id]
}

// SetStrength updates the strength bar.
func (f *Form) SetStrength(ind strength.Indicator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indicator = ind
}

// SelectFile applies an upload decision for file. A rejected file is dropped
// and its alert raised; a nil file clears the selection.
func (f *Form) SelectFile(file *models.FileDescriptor, d upload.Decision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alert = d.Alert
	if !d.Selected || d.ClearSelection {
		f.file = nil
		f.fileDisplay = ""
		return
	}
	c := *file
	f.file = &c
	f.fileDisplay = d.Display
}

// DismissAlert acknowledges the pending alert.
func (f *Form) DismissAlert() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alert = ""
}

// ToggleVisibility flips a password field between masked and plain text and
// returns the new masking. ok is false for fields that have no toggle.
func (f *Form) ToggleVisibility(id models.FieldID) (masked, ok bool) {
	spec, found := models.Lookup(id)
	if !found || !spec.IsSecret() {
		return false, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masked[id] = !f.masked[id]
	return f.masked[id], true
}

func (f *Form) ScrollTo(y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if y < 0 {
		y = 0
	}
	f.scrollY = y
}

// Snapshot captures the current values and file.
func (f *Form) Snapshot() models.FormSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.NewSnapshot(f.values, f.file)
}

func (f *Form) ShowError(spec models.FieldSpec, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[spec.ID] = FieldError{ErrorID: spec.ErrorID, Flagged: true, Visible: true, Message: message}
}

func (f *Form) HideError(spec models.FieldSpec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[spec.ID] = FieldError{ErrorID: spec.ErrorID, Message: spec.DefaultMessage}
}

func (f *Form) ShowSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successVisible = true
}

// Reset returns the form to its initial state and scrolls to the top.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clear()
}

func (f *Form) clear() {
	f.values = make(map[models.FieldID]string)
	f.file = nil
	f.fileDisplay = ""
	f.alert = ""
	f.indicator = strength.Empty()
	f.successVisible = false
	f.scrollY = 0
	f.errors = make(map[models.FieldID]FieldError)
	f.masked = make(map[models.FieldID]bool)
	for _, spec := range models.Fields() {
		f.errors[spec.ID] = FieldError{ErrorID: spec.ErrorID, Message: spec.DefaultMessage}
		if spec.IsSecret() {
			f.masked[spec.ID] = true
		}
	}
}

// State copies the displayed state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := State{
		ID:             f.id,
		Values:         make(map[models.FieldID]string, len(f.values)),
		FileDisplay:    f.fileDisplay,
		Alert:          f.alert,
		Strength:       f.indicator,
		Errors:         make(map[models.FieldID]FieldError, len(f.errors)),
		SuccessVisible: f.successVisible,
		ScrollY:        f.scrollY,
		Masked:         make(map[models.FieldID]bool, len(f.masked)),
	}
	for k, v := range f.masked {
		s.Masked[k] = v
	}
	for k, v := range f.values {
		s.Values[k] = v
	}
	for k, v := range f.errors {
		s.Errors[k] = v
	}
	if f.file != nil {
		c := *f.file
		s.File = &c
	}
	return s
}
