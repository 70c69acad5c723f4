package native

import "errors"

// Sentinel errors for the native package.
var (
	// ErrNoTransport is returned by a Dispatcher built without a transport.
	ErrNoTransport = errors.New("no native transport configured")
	// ErrNilContinuation is returned for awaited calls without a continuation.
	ErrNilContinuation = errors.New("awaited native call needs a continuation")
	// ErrUnknownMode is returned for an invalid Setup mode.
	ErrUnknownMode = errors.New("unknown call mode")
)
