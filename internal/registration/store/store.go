// Package store persists registration records as one JSON array per key,
// the shape a browser keeps in localStorage.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"regform/internal/registration/models"
	"regform/pkg/platform/sentinel"
)

// DefaultKey is where accepted registrations are kept.
const DefaultKey = "registrations"

// KV is a string-keyed blob store. Get returns sentinel.ErrNotFound for a
// missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// UpdateFunc receives the current value (nil when missing) and returns the
// replacement.
type UpdateFunc func(current []byte) ([]byte, error)

// Updater is a KV that can read-modify-write one key atomically.
type Updater interface {
	KV
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// Records reads and replaces the record list kept under a key.
type Records struct {
	kv KV
}

func NewRecords(kv KV) *Records {
	return &Records{kv: kv}
}

// Load returns the records under key; a missing key is an empty list.
func (r *Records) Load(ctx context.Context, key string) ([]models.RegistrationRecord, error) {
	raw, err := r.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return []models.RegistrationRecord{}, nil
		}
		return nil, err
	}
	return decode(raw)
}

// Save replaces the whole list under key.
func (r *Records) Save(ctx context.Context, key string, records []models.RegistrationRecord) error {
	raw, err := encode(records)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, key, raw)
}

// AtomicRecords adds a race-free Append on top of an Updater.
type AtomicRecords struct {
	*Records
	kv Updater
}

func NewAtomicRecords(kv Updater) *AtomicRecords {
	return &AtomicRecords{Records: NewRecords(kv), kv: kv}
}

// Append adds rec to the end of the list under key without losing
// concurrent appends.
func (r *AtomicRecords) Append(ctx context.Context, key string, rec models.RegistrationRecord) error {
	return r.kv.Update(ctx, key, func(current []byte) ([]byte, error) {
		records := []models.RegistrationRecord{}
		if current != nil {
			var err error
			if records, err = decode(current); err != nil {
				return nil, err
			}
		}
		return encode(append(records, rec))
	})
}

func decode(raw []byte) ([]models.RegistrationRecord, error) {
	records := []models.RegistrationRecord{}
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w: %w", sentinel.ErrInvalidState, err)
	}
	return records, nil
}

func encode(records []models.RegistrationRecord) ([]byte, error) {
	if records == nil {
		records = []models.RegistrationRecord{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return raw, nil
}
