package models

// ValidationOutcome is the verdict for one field. Message, when set,
// overrides the field's default error text.
type ValidationOutcome struct {
	FieldID FieldID `json:"field"`
	Valid   bool    `json:"valid"`
	Message string  `json:"message,omitempty"`
}

func Pass(id FieldID) ValidationOutcome {
	return ValidationOutcome{FieldID: id, Valid: true}
}

func Fail(id FieldID, message string) ValidationOutcome {
	return ValidationOutcome{FieldID: id, Valid: false, Message: message}
}

// SubmissionResult aggregates one submission attempt.
//
// Invariant: Accepted is true iff no outcome is invalid.
type SubmissionResult struct {
	Outcomes []ValidationOutcome `json:"outcomes"`
	Accepted bool                `json:"accepted"`
	// Warnings carries non-fatal problems raised after acceptance, such as a
	// persistence failure. They never flip Accepted.
	Warnings []string `json:"warnings,omitempty"`
}

// NewSubmissionResult derives Accepted from outcomes.
func NewSubmissionResult(outcomes []ValidationOutcome) SubmissionResult {
	accepted := true
	for _, o := range outcomes {
		if !o.Valid {
			accepted = false
			break
		}
	}
	return SubmissionResult{Outcomes: outcomes, Accepted: accepted}
}

// Invalid returns the failing outcomes in order.
func (r SubmissionResult) Invalid() []ValidationOutcome {
	var out []ValidationOutcome
	for _, o := range r.Outcomes {
		if !o.Valid {
			out = append(out, o)
		}
	}
	return out
}
