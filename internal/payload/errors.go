package payload

import (
	"errors"
	"fmt"
)

// Sentinel errors for the payload package.
var (
	// ErrMalformedJSON is returned when a blob is not valid JSON.
	ErrMalformedJSON = errors.New("malformed JSON payload")
	// ErrWrongKind is returned when a value is read as a kind it does not hold.
	ErrWrongKind = errors.New("value has wrong kind")
	// ErrMissingKey is returned by Value.Get for an absent key.
	ErrMissingKey = errors.New("key not present")
	// ErrOutOfRange is returned when a number does not fit the target type.
	ErrOutOfRange = errors.New("number out of range")
	// ErrFractional is returned when a fractional number is read as an integer.
	ErrFractional = errors.New("number is not integral")
	// ErrUnsupportedType is returned for Go values or targets the codec cannot map.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrInvalidTarget is returned when Decode is given a nil or non-pointer target.
	ErrInvalidTarget = errors.New("decode target must be a non-nil pointer")
	// ErrMalformedEnvelope is returned when an envelope lacks a correlation id,
	// a response, or one side of a success/failure pair.
	ErrMalformedEnvelope = errors.New("malformed callback envelope")
	// ErrAmbiguousChannel is returned when a pair envelope arrives on an entry
	// point that does not say which side of the pair it answers.
	ErrAmbiguousChannel = errors.New("pair envelope delivered without a channel")
)

// DecodeError reports where in a payload decoding failed.
type DecodeError struct {
	// Path is the dotted path to the failing field, empty for the root.
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return "payload: " + e.Err.Error()
	}
	return fmt.Sprintf("payload: %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErr(path string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Path: path, Err: err}
}
