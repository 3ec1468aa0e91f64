package audit

import "time"

// Action names what happened to a form.
type Action string

const (
	ActionRegistrationAccepted Action = "registration_accepted"
	ActionRegistrationRejected Action = "registration_rejected"
	ActionRegistrationNotSaved Action = "registration_not_saved"
	ActionUploadRejected       Action = "upload_rejected"
)

// Event is emitted from the registration flow to capture key actions. It
// never carries field values.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	FormID    string    `json:"form_id"`
	// Fields lists the failing fields of a rejected submission.
	Fields    []string `json:"fields,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	ClientIP  string   `json:"client_ip,omitempty"`
	Device    string   `json:"device,omitempty"`
}
