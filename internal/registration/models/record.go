package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// RegistrationDateLayout renders timestamps with millisecond precision in UTC,
// e.g. 2024-06-15T09:30:00.000Z.
const RegistrationDateLayout = "2006-01-02T15:04:05.000Z07:00"

const registrationDateKey = "registrationDate"

// RegistrationRecord is one accepted registration. Records are appended to
// the store and never modified afterwards.
type RegistrationRecord struct {
	Fields           map[string]string
	RegistrationDate time.Time
}

// NewRegistrationRecord stamps fields with registeredAt, truncated to milliseconds.
func NewRegistrationRecord(fields map[string]string, registeredAt time.Time) RegistrationRecord {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return RegistrationRecord{
		Fields:           copied,
		RegistrationDate: registeredAt.UTC().Truncate(time.Millisecond),
	}
}

// MarshalJSON flattens field values next to registrationDate.
func (r RegistrationRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat[registrationDateKey] = r.RegistrationDate.UTC().Format(RegistrationDateLayout)
	return json.Marshal(flat)
}

func (r *RegistrationRecord) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	raw, ok := flat[registrationDateKey]
	if !ok {
		return fmt.Errorf("record missing %s", registrationDateKey)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", registrationDateKey, err)
	}
	delete(flat, registrationDateKey)
	r.Fields = flat
	r.RegistrationDate = ts.UTC()
	return nil
}
