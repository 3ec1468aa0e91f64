// Package upload judges the file chosen for the photo field.
package upload

import (
	"fmt"
	"math"

	"regform/internal/registration/models"
)

// DefaultMaxMB is the largest accepted photo, in MiB.
const DefaultMaxMB = 5.0

const bytesPerMB = 1024 * 1024

// Decision is what the guard tells the surface to do with a selection.
type Decision struct {
	// Selected is false when no file was chosen.
	Selected bool
	Outcome  models.ValidationOutcome
	// Display is the filename line; empty when nothing should be shown.
	Display string
	// Alert is a blocking notice, distinct from the inline error slot.
	Alert string
	// ClearSelection asks the surface to drop the chosen file.
	ClearSelection bool
	SizeMB         float64
}

// Rejected reports whether the selection was refused.
func (d Decision) Rejected() bool {
	return d.Selected && !d.Outcome.Valid
}

// Guard enforces the upload size limit.
type Guard struct {
	maxMB float64
}

// Option configures a Guard.
type Option func(*Guard)

// WithMaxMB overrides the size limit. Non-positive values are ignored.
func WithMaxMB(mb float64) Option {
	return func(g *Guard) {
		if mb > 0 {
			g.maxMB = mb
		}
	}
}

func New(opts ...Option) *Guard {
	g := &Guard{maxMB: DefaultMaxMB}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxMB returns the configured limit.
func (g *Guard) MaxMB() float64 {
	return g.maxMB
}

// Check judges file. The size is rounded to two decimals before comparison,
// so a file that displays as "5.00 MB" is accepted.
func (g *Guard) Check(file *models.FileDescriptor) Decision {
	if file == nil {
		return Decision{Outcome: models.Pass(models.FieldPhoto)}
	}
	mb := SizeMB(file.SizeBytes)
	if mb > g.maxMB {
		msg := g.message()
		return Decision{
			Selected:       true,
			Outcome:        models.Fail(models.FieldPhoto, msg),
			Alert:          msg,
			ClearSelection: true,
			SizeMB:         mb,
		}
	}
	return Decision{
		Selected: true,
		Outcome:  models.Pass(models.FieldPhoto),
		Display:  fmt.Sprintf("✓ %s (%.2f MB)", file.Name, mb),
		SizeMB:   mb,
	}
}

func (g *Guard) message() string {
	if g.maxMB == DefaultMaxMB {
		return models.MsgFileTooLarge
	}
	return fmt.Sprintf("File exceeds the %gMB maximum", g.maxMB)
}

// bodyMarginBytes leaves room for multipart framing on top of the photo itself.
const bodyMarginBytes = bytesPerMB

// MaxBodyBytes is how much of an upload body to read before giving up on
// counting. Anything cut off at this cap is already over maxMB.
func MaxBodyBytes(maxMB float64) int64 {
	if maxMB <= 0 {
		maxMB = DefaultMaxMB
	}
	return int64(math.Ceil(maxMB*bytesPerMB)) + bodyMarginBytes
}

// MaxBodyBytes returns the read cap for this guard's limit.
func (g *Guard) MaxBodyBytes() int64 {
	return MaxBodyBytes(g.maxMB)
}

// SizeMB converts bytes to MiB rounded to two decimals.
func SizeMB(sizeBytes int64) float64 {
	return math.Round(float64(sizeBytes)/bytesPerMB*100) / 100
}

var defaultGuard = New()

// Check runs the guard with the default limit.
func Check(file *models.FileDescriptor) Decision {
	return defaultGuard.Check(file)
}
