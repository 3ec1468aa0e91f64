package validation

import (
	"regform/internal/registration/models"
)

// MaxPhoneDigits caps what the live phone filter lets through.
const MaxPhoneDigits = 13

// OnBlur runs the focus-loss check for email and phone. It applies only when
// the field has a value; an empty field keeps whatever state it showed.
func OnBlur(id models.FieldID, snap models.FormSnapshot) (outcome models.ValidationOutcome, applies bool) {
	if snap.Value(id) == "" {
		return models.ValidationOutcome{}, false
	}
	switch id {
	case models.FieldEmail:
		return matches(id, emailPattern, snap), true
	case models.FieldPhone:
		return matches(id, phonePattern, snap), true
	default:
		return models.ValidationOutcome{}, false
	}
}

// OnInput runs the per-keystroke check. Only confirmPassword has one, and
// only while it is non-empty.
func OnInput(id models.FieldID, snap models.FormSnapshot) (outcome models.ValidationOutcome, applies bool) {
	if id != models.FieldConfirmPassword || snap.Value(id) == "" {
		return models.ValidationOutcome{}, false
	}
	if snap.Value(models.FieldConfirmPassword) != snap.Value(models.FieldPassword) {
		return models.Fail(id, ""), true
	}
	return models.Pass(id), true
}

// SanitizePhone is the live input filter: it drops every non-digit and
// truncates to MaxPhoneDigits. The submit-time pattern still applies.
func SanitizePhone(raw string) string {
	digits := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			digits = append(digits, raw[i])
		}
	}
	if len(digits) > MaxPhoneDigits {
		digits = digits[:MaxPhoneDigits]
	}
	return string(digits)
}
