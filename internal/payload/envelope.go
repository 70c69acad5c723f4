package payload

import (
	"fmt"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
)

// Envelope keys used by the legacy callback format.
const (
	KeyDelegateID = "delegate_id"
	KeyResponse   = "response"
	KeySuccess    = "success"
	KeyFailure    = "failure"
)

// Channel says which native callback entry point delivered an envelope.
type Channel int

const (
	// ChannelAuto is used by entry points that carry a single id; the
	// registry knows which side of a pair that id belongs to.
	ChannelAuto Channel = iota
	// ChannelSuccess is the success entry point of a success/failure call.
	ChannelSuccess
	// ChannelFailure is the failure entry point of a success/failure call.
	ChannelFailure
)

func (c Channel) String() string {
	switch c {
	case ChannelSuccess:
		return "success"
	case ChannelFailure:
		return "failure"
	default:
		return "auto"
	}
}

// Envelope is a callback message from the native layer: a correlation id
// (or success/failure pair) and a response blob.
type Envelope struct {
	// ID is set when the envelope carries a single correlation id.
	ID correlation.ID

	// Pair is set when delegate_id holds both sides of a success/failure call.
	Pair *correlation.Pair

	// Response is the response blob. Structured responses are re-encoded as
	// JSON so callers always decode from a string.
	Response string
}

// Target returns the id this envelope resolves when delivered on ch.
func (e Envelope) Target(ch Channel) (correlation.ID, error) {
	if e.Pair == nil {
		return e.ID, nil
	}
	switch ch {
	case ChannelSuccess:
		return e.Pair.Success, nil
	case ChannelFailure:
		return e.Pair.Failure, nil
	default:
		return "", ErrAmbiguousChannel
	}
}

// ParseEnvelope decodes the legacy {"delegate_id": ..., "response": ...}
// shape. delegate_id may be a plain id, a number (hash-style ids), an object
// {"success","failure"} or that object encoded as a JSON string. Both keys
// are required, and a pair must name both sides.
func ParseEnvelope(blob string) (Envelope, error) {
	root, err := Parse(blob)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if root.Kind() != KindMap {
		return Envelope{}, fmt.Errorf("%w: top level is %s", ErrMalformedEnvelope, root.Kind())
	}

	rawID, err := root.Get(KeyDelegateID)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	rawResponse, err := root.Get(KeyResponse)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var env Envelope
	switch rawID.Kind() {
	case KindString:
		s, _ := rawID.Str()
		if trimmedPrefix(s, '{') {
			nested, err := rawID.Nested()
			if err != nil {
				return Envelope{}, fmt.Errorf("%w: delegate_id: %v", ErrMalformedEnvelope, err)
			}
			pair, err := parsePair(nested)
			if err != nil {
				return Envelope{}, err
			}
			env.Pair = &pair
		} else {
			env.ID = correlation.ID(s)
		}
	case KindNumber:
		s, _ := rawID.scalarString()
		env.ID = correlation.ID(s)
	case KindMap:
		pair, err := parsePair(rawID)
		if err != nil {
			return Envelope{}, err
		}
		env.Pair = &pair
	default:
		return Envelope{}, fmt.Errorf("%w: delegate_id is %s", ErrMalformedEnvelope, rawID.Kind())
	}
	if env.Pair == nil && env.ID == "" {
		return Envelope{}, fmt.Errorf("%w: empty delegate_id", ErrMalformedEnvelope)
	}

	switch rawResponse.Kind() {
	case KindString:
		env.Response, _ = rawResponse.Str()
	case KindNull:
		env.Response = ""
	default:
		env.Response = rawResponse.String()
	}
	return env, nil
}

func parsePair(v Value) (correlation.Pair, error) {
	if v.Kind() != KindMap {
		return correlation.Pair{}, fmt.Errorf("%w: delegate_id pair is %s", ErrMalformedEnvelope, v.Kind())
	}
	success, err := pairSide(v, KeySuccess)
	if err != nil {
		return correlation.Pair{}, err
	}
	failure, err := pairSide(v, KeyFailure)
	if err != nil {
		return correlation.Pair{}, err
	}
	return correlation.Pair{Success: success, Failure: failure}, nil
}

func pairSide(v Value, key string) (correlation.ID, error) {
	side, err := v.Get(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	s, err := side.scalarString()
	if err != nil || s == "" {
		return "", fmt.Errorf("%w: %s id is empty or not a scalar", ErrMalformedEnvelope, key)
	}
	return correlation.ID(s), nil
}

// EncodeEnvelope renders env in the legacy format, with a pair encoded as a
// JSON string the way native layers send it.
func EncodeEnvelope(env Envelope) string {
	id := StringValue(env.ID.String())
	if env.Pair != nil {
		pair := MapValue(map[string]Value{
			KeySuccess: StringValue(env.Pair.Success.String()),
			KeyFailure: StringValue(env.Pair.Failure.String()),
		})
		id = StringValue(pair.String())
	}
	return MapValue(map[string]Value{
		KeyDelegateID: id,
		KeyResponse:   StringValue(env.Response),
	}).String()
}
