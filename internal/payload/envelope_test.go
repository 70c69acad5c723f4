package payload

import (
	"errors"
	"testing"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name         string
		blob         string
		wantID       correlation.ID
		wantPair     *correlation.Pair
		wantResponse string
	}{
		{
			name:         "single id with string response",
			blob:         `{"delegate_id":"abc","response":"{\"color\":\"blue\"}"}`,
			wantID:       "abc",
			wantResponse: `{"color":"blue"}`,
		},
		{
			name:         "empty response",
			blob:         `{"delegate_id":"abc","response":""}`,
			wantID:       "abc",
			wantResponse: "",
		},
		{
			name:         "numeric hash id",
			blob:         `{"delegate_id":-12345,"response":"true"}`,
			wantID:       "-12345",
			wantResponse: "true",
		},
		{
			name:         "pair encoded as string",
			blob:         `{"delegate_id":"{\"success\":\"s1\",\"failure\":\"f1\"}","response":"ok"}`,
			wantPair:     &correlation.Pair{Success: "s1", Failure: "f1"},
			wantResponse: "ok",
		},
		{
			name:         "pair as object with structured response",
			blob:         `{"delegate_id":{"success":"s1","failure":"f1"},"response":{"b":1,"a":2}}`,
			wantPair:     &correlation.Pair{Success: "s1", Failure: "f1"},
			wantResponse: `{"a":2,"b":1}`,
		},
		{
			name:   "null response",
			blob:   `{"delegate_id":"abc","response":null}`,
			wantID: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope(tt.blob)
			if err != nil {
				t.Fatalf("ParseEnvelope: %v", err)
			}
			if env.ID != tt.wantID {
				t.Errorf("expected id %q, got %q", tt.wantID, env.ID)
			}
			if (env.Pair == nil) != (tt.wantPair == nil) || (env.Pair != nil && *env.Pair != *tt.wantPair) {
				t.Errorf("expected pair %v, got %v", tt.wantPair, env.Pair)
			}
			if env.Response != tt.wantResponse {
				t.Errorf("expected response %q, got %q", tt.wantResponse, env.Response)
			}
		})
	}
}

func TestParseEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "not json", blob: `nope`},
		{name: "not an object", blob: `["abc"]`},
		{name: "missing delegate_id", blob: `{"response":""}`},
		{name: "missing response", blob: `{"delegate_id":"abc"}`},
		{name: "empty delegate_id", blob: `{"delegate_id":"","response":""}`},
		{name: "pair missing failure", blob: `{"delegate_id":"{\"success\":\"s1\"}","response":""}`},
		{name: "pair missing success", blob: `{"delegate_id":{"failure":"f1"},"response":""}`},
		{name: "pair with empty side", blob: `{"delegate_id":{"success":"","failure":"f1"},"response":""}`},
		{name: "broken pair string", blob: `{"delegate_id":"{\"success\":","response":""}`},
		{name: "bool delegate_id", blob: `{"delegate_id":true,"response":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope(tt.blob)
			if !errors.Is(err, ErrMalformedEnvelope) {
				t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
			}
		})
	}
}

func TestEnvelope_Target(t *testing.T) {
	single := Envelope{ID: "x"}
	for _, ch := range []Channel{ChannelAuto, ChannelSuccess, ChannelFailure} {
		if id, err := single.Target(ch); err != nil || id != "x" {
			t.Errorf("single id on %s: got %q %v", ch, id, err)
		}
	}

	pair := Envelope{Pair: &correlation.Pair{Success: "s", Failure: "f"}}
	if id, _ := pair.Target(ChannelSuccess); id != "s" {
		t.Errorf("expected s, got %q", id)
	}
	if id, _ := pair.Target(ChannelFailure); id != "f" {
		t.Errorf("expected f, got %q", id)
	}
	if _, err := pair.Target(ChannelAuto); !errors.Is(err, ErrAmbiguousChannel) {
		t.Errorf("expected ErrAmbiguousChannel, got %v", err)
	}
}

func TestEncodeEnvelope_RoundTripsThroughParser(t *testing.T) {
	blob := EncodeEnvelope(Envelope{
		Pair:     &correlation.Pair{Success: "s1", Failure: "f1"},
		Response: `{"id":"n"}`,
	})
	env, err := ParseEnvelope(blob)
	if err != nil {
		t.Fatalf("ParseEnvelope(%s): %v", blob, err)
	}
	if env.Pair == nil || env.Pair.Failure != "f1" || env.Response != `{"id":"n"}` {
		t.Fatalf("unexpected %+v", env)
	}
}
