package pending

import "errors"

// Sentinel errors for the pending package.
var (
	// ErrDuplicateID means an id was registered while already pending. It
	// indicates a bug in id generation, not a runtime condition.
	ErrDuplicateID = errors.New("correlation id already registered")
	// ErrInvalidPair is returned for a pair whose ids are empty or equal.
	ErrInvalidPair = errors.New("invalid success/failure id pair")
	// ErrEmptyID is returned when registering an empty id.
	ErrEmptyID = errors.New("correlation id is empty")
	// ErrNilContinuation is returned when registering a nil continuation.
	ErrNilContinuation = errors.New("continuation is nil")
)
