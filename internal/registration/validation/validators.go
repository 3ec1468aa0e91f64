// Package validation holds one pure predicate per registration field and the
// ordered registry that runs them.
package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"regform/internal/registration/models"
)

// Validator judges one field of a snapshot. now is only read by the
// birth-date rule.
type Validator func(snap models.FormSnapshot, now time.Time) models.ValidationOutcome

// MinimumAge is the youngest age accepted at registration.
const MinimumAge = 17

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// BirthDateLayout is the HTML date-input format.
const BirthDateLayout = "2006-01-02"

// notSpaceOrAt mirrors the ECMAScript [^\s@] class, which also excludes
// vertical tab and Unicode space separators.
const notSpaceOrAt = `[^\s\v\p{Zs}\x{2028}\x{2029}\x{feff}@]`

var (
	emailPattern = regexp.MustCompile(`^` + notSpaceOrAt + `+@` + notSpaceOrAt + `+\.` + notSpaceOrAt + `+$`)
	phonePattern = regexp.MustCompile(`^08\d{8,11}$`)
)

func FullName(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	return required(models.FieldFullName, snap)
}

func Email(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	return matches(models.FieldEmail, emailPattern, snap)
}

func Phone(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	return matches(models.FieldPhone, phonePattern, snap)
}

// BirthDate requires a date and an age of at least MinimumAge on now's
// calendar day. The two failures carry distinct messages.
func BirthDate(snap models.FormSnapshot, now time.Time) models.ValidationOutcome {
	raw := snap.Value(models.FieldBirthDate)
	if raw == "" {
		return models.Fail(models.FieldBirthDate, models.MsgBirthDateMissing)
	}
	birth, err := time.Parse(BirthDateLayout, raw)
	if err != nil {
		return models.Fail(models.FieldBirthDate, models.MsgBirthDateMissing)
	}
	if Age(birth, now) < MinimumAge {
		return models.Fail(models.FieldBirthDate, models.MsgMinimumAge)
	}
	return models.Pass(models.FieldBirthDate)
}

// Gender requires exactly one selected option. Adapters collapse a
// multi-valued selection to "" before building the snapshot.
func Gender(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	return selected(models.FieldGender, snap)
}

func Address(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	return required(models.FieldAddress, snap)
}

func City(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	return selected(models.FieldCity, snap)
}

// Password counts characters, the same way the strength score does.
func Password(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	if utf8.RuneCountInString(snap.Value(models.FieldPassword)) < MinPasswordLength {
		return models.Fail(models.FieldPassword, "")
	}
	return models.Pass(models.FieldPassword)
}

// ConfirmPassword requires a byte-for-byte match with the password field.
func ConfirmPassword(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	if snap.Value(models.FieldConfirmPassword) != snap.Value(models.FieldPassword) {
		return models.Fail(models.FieldConfirmPassword, "")
	}
	return models.Pass(models.FieldConfirmPassword)
}

func Terms(snap models.FormSnapshot, _ time.Time) models.ValidationOutcome {
	if !IsChecked(snap.Value(models.FieldTerms)) {
		return models.Fail(models.FieldTerms, "")
	}
	return models.Pass(models.FieldTerms)
}

// Age counts completed years: the year difference, minus one when now falls
// before the birthday's month and day. The birthday itself counts as reached.
func Age(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// IsChecked interprets a checkbox value. Browsers send "on" for a ticked box
// and omit it otherwise; JSON clients may send booleans as strings.
func IsChecked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "off", "0", "no":
		return false
	default:
		return true
	}
}

func required(id models.FieldID, snap models.FormSnapshot) models.ValidationOutcome {
	if strings.TrimSpace(snap.Value(id)) == "" {
		return models.Fail(id, "")
	}
	return models.Pass(id)
}

func selected(id models.FieldID, snap models.FormSnapshot) models.ValidationOutcome {
	if snap.Value(id) == "" {
		return models.Fail(id, "")
	}
	return models.Pass(id)
}

func matches(id models.FieldID, pattern *regexp.Regexp, snap models.FormSnapshot) models.ValidationOutcome {
	if !pattern.MatchString(snap.Value(id)) {
		return models.Fail(id, "")
	}
	return models.Pass(id)
}
