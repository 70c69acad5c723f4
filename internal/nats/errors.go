package nats

import "errors"

// Sentinel errors for the nats package.
var (
	ErrNotConnected     = errors.New("NATS is not connected")
	ErrCallRejected     = errors.New("native host rejected call")
	ErrMalformedMessage = errors.New("malformed bridge message")
)
