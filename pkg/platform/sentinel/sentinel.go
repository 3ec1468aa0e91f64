package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Record stores and platform clients
// return these (optionally wrapped) so services can decide how loud to be.
//
//   - ErrNotFound: the key or entity does not exist
//   - ErrConflict: an optimistic write lost a race and may be retried
//   - ErrInvalidState: stored payload cannot be decoded into records
//   - ErrUnavailable: backend temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
