package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
// These represent factual states about stored resources, not validation
// failures:
//   - ErrNotFound: resource does not exist in the store
//   - ErrAlreadyExists: a live resource with the same key is present
//   - ErrConflict: concurrent modification detected at commit time
//   - ErrInvalidState: resource is in the wrong state for the operation
//   - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state")
	ErrUnavailable   = errors.New("unavailable")
)
