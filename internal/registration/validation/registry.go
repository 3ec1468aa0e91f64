package validation

import (
	"time"

	"regform/internal/registration/models"
)

// Rule binds a validator to its field.
type Rule struct {
	Field models.FieldID
	Check Validator
}

// Registry is the ordered set of field rules run on submission.
type Registry struct {
	rules []Rule
	index map[models.FieldID]Validator
}

// NewRegistry builds a registry; later rules for the same field replace earlier ones.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{index: make(map[models.FieldID]Validator, len(rules))}
	for _, rule := range rules {
		if _, exists := r.index[rule.Field]; !exists {
			r.rules = append(r.rules, rule)
		} else {
			for i := range r.rules {
				if r.rules[i].Field == rule.Field {
					r.rules[i] = rule
				}
			}
		}
		r.index[rule.Field] = rule.Check
	}
	return r
}

// DefaultRegistry holds the registration form rules in display order.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Rule{Field: models.FieldFullName, Check: FullName},
		Rule{Field: models.FieldEmail, Check: Email},
		Rule{Field: models.FieldPhone, Check: Phone},
		Rule{Field: models.FieldBirthDate, Check: BirthDate},
		Rule{Field: models.FieldGender, Check: Gender},
		Rule{Field: models.FieldAddress, Check: Address},
		Rule{Field: models.FieldCity, Check: City},
		Rule{Field: models.FieldPassword, Check: Password},
		Rule{Field: models.FieldConfirmPassword, Check: ConfirmPassword},
		Rule{Field: models.FieldTerms, Check: Terms},
	)
}

// Validate runs every rule. It never stops at the first failure.
func (r *Registry) Validate(snap models.FormSnapshot, now time.Time) []models.ValidationOutcome {
	outcomes := make([]models.ValidationOutcome, 0, len(r.rules))
	for _, rule := range r.rules {
		outcomes = append(outcomes, rule.Check(snap, now))
	}
	return outcomes
}

// ValidateField runs the rule for one field. ok is false when the field has no rule.
func (r *Registry) ValidateField(id models.FieldID, snap models.FormSnapshot, now time.Time) (outcome models.ValidationOutcome, ok bool) {
	check, ok := r.index[id]
	if !ok {
		return models.ValidationOutcome{}, false
	}
	return check(snap, now), true
}

// Fields lists the validated fields in order.
func (r *Registry) Fields() []models.FieldID {
	ids := make([]models.FieldID, len(r.rules))
	for i, rule := range r.rules {
		ids[i] = rule.Field
	}
	return ids
}

var defaultRegistry = DefaultRegistry()

// Validate runs the default registry.
func Validate(snap models.FormSnapshot, now time.Time) []models.ValidationOutcome {
	return defaultRegistry.Validate(snap, now)
}

// ValidateField runs one rule of the default registry.
func ValidateField(id models.FieldID, snap models.FormSnapshot, now time.Time) (models.ValidationOutcome, bool) {
	return defaultRegistry.ValidateField(id, snap, now)
}
