package nats

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/payload"
)

// Callback kinds on the callbacks subject.
const (
	kindEnvelope = "envelope"
	kindResponse = "response"
	kindEvent    = "event"
)

// callback is one message from the host to the bridge.
type callback struct {
	Kind     string
	Channel  payload.Channel
	Blob     string
	ID       correlation.ID
	Response string
	Event    string
	Args     []string
}

func marshal(m map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func unmarshal(data []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return s.AsMap(), nil
}

// encodeCall renders c as a protobuf Struct. Arguments go through the
// payload codec so only JSON-like values reach the wire.
func encodeCall(c native.Call) ([]byte, error) {
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := payload.FromNative(a)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		args[i] = v.Interface()
	}

	m := map[string]any{
		"method": c.Method,
		"args":   args,
	}
	if c.ID != "" {
		m["id"] = c.ID.String()
	}
	if c.Pair != nil {
		m["pair"] = map[string]any{
			payload.KeySuccess: c.Pair.Success.String(),
			payload.KeyFailure: c.Pair.Failure.String(),
		}
	}
	return marshal(m)
}

func decodeCall(data []byte) (native.Call, error) {
	m, err := unmarshal(data)
	if err != nil {
		return native.Call{}, err
	}

	var c native.Call
	var ok bool
	if c.Method, ok = m["method"].(string); !ok || c.Method == "" {
		return c, fmt.Errorf("%w: call without method", ErrMalformedMessage)
	}
	if args, ok := m["args"].([]any); ok {
		c.Args = args
	}
	if id, ok := m["id"].(string); ok {
		c.ID = correlation.ID(id)
	}
	if pair, ok := m["pair"].(map[string]any); ok {
		success, _ := pair[payload.KeySuccess].(string)
		failure, _ := pair[payload.KeyFailure].(string)
		if success == "" || failure == "" {
			return c, fmt.Errorf("%w: incomplete pair", ErrMalformedMessage)
		}
		c.Pair = &correlation.Pair{Success: correlation.ID(success), Failure: correlation.ID(failure)}
	}
	return c, nil
}

func encodeCallback(cb callback) ([]byte, error) {
	m := map[string]any{"kind": cb.Kind}
	switch cb.Kind {
	case kindEnvelope:
		m["channel"] = int64(cb.Channel)
		m["blob"] = cb.Blob
	case kindResponse:
		m["id"] = cb.ID.String()
		m["response"] = cb.Response
	case kindEvent:
		args := make([]any, len(cb.Args))
		for i, a := range cb.Args {
			args[i] = a
		}
		m["event"] = cb.Event
		m["args"] = args
	default:
		return nil, fmt.Errorf("%w: unknown callback kind %q", ErrMalformedMessage, cb.Kind)
	}
	return marshal(m)
}

func decodeCallback(data []byte) (callback, error) {
	m, err := unmarshal(data)
	if err != nil {
		return callback{}, err
	}

	cb := callback{}
	cb.Kind, _ = m["kind"].(string)
	switch cb.Kind {
	case kindEnvelope:
		ch, _ := m["channel"].(float64)
		cb.Channel = payload.Channel(int(ch))
		cb.Blob, _ = m["blob"].(string)
	case kindResponse:
		id, _ := m["id"].(string)
		if id == "" {
			return cb, fmt.Errorf("%w: response without id", ErrMalformedMessage)
		}
		cb.ID = correlation.ID(id)
		cb.Response, _ = m["response"].(string)
	case kindEvent:
		cb.Event, _ = m["event"].(string)
		if cb.Event == "" {
			return cb, fmt.Errorf("%w: event without name", ErrMalformedMessage)
		}
		raw, _ := m["args"].([]any)
		for _, a := range raw {
			s, _ := a.(string)
			cb.Args = append(cb.Args, s)
		}
	default:
		return cb, fmt.Errorf("%w: unknown callback kind %q", ErrMalformedMessage, cb.Kind)
	}
	return cb, nil
}

// encodeAck is the host's reply to a call: empty on acceptance, the
// refusal otherwise.
func encodeAck(err error) []byte {
	m := map[string]any{}
	if err != nil {
		m["error"] = err.Error()
	}
	data, merr := marshal(m)
	if merr != nil {
		return nil
	}
	return data
}

func decodeAck(data []byte) error {
	m, err := unmarshal(data)
	if err != nil {
		return err
	}
	if msg, ok := m["error"].(string); ok && msg != "" {
		return fmt.Errorf("%w: %s", ErrCallRejected, msg)
	}
	return nil
}

func encodeDecision(display bool) []byte {
	data, _ := marshal(map[string]any{"display": display})
	return data
}

func decodeDecision(data []byte) (bool, error) {
	m, err := unmarshal(data)
	if err != nil {
		return true, err
	}
	display, ok := m["display"].(bool)
	if !ok {
		return true, fmt.Errorf("%w: decision without display flag", ErrMalformedMessage)
	}
	return display, nil
}
