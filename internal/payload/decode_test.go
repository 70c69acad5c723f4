package payload

import (
	"errors"
	"reflect"
	"testing"
)

type permissionEvent struct {
	Permission bool `json:"permission"`
}

type subscriptionState struct {
	ID      string `json:"id"`
	Token   string `json:"token"`
	OptedIn bool   `json:"optedIn"`
}

type subscriptionChanged struct {
	Current  subscriptionState  `json:"current"`
	Previous *subscriptionState `json:"previous"`
}

type notification struct {
	NotificationID string            `json:"notificationId"`
	Title          string            `json:"title"`
	Priority       int8              `json:"priority"`
	Badge          uint16            `json:"badgeIncrement"`
	AdditionalData map[string]any    `json:"additionalData"`
	Buttons        []button          `json:"actionButtons"`
	Raw            Value             `json:"rawPayload"`
	Extras         map[string]string `json:"extras"`
	ignored        string
}

type button struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type base struct {
	ID string `json:"id"`
}

type withEmbedded struct {
	base
	Name string `json:"name"`
}

func TestDecode_NestedJSONString(t *testing.T) {
	// Same event, once with a native object, once with a JSON string.
	blobs := []string{
		`{"current":{"id":"s1","token":"t","optedIn":true},"previous":{"id":"s0","optedIn":false}}`,
		`{"current":"{\"id\":\"s1\",\"token\":\"t\",\"optedIn\":true}","previous":"{\"id\":\"s0\",\"optedIn\":false}"}`,
	}

	for _, blob := range blobs {
		var ev subscriptionChanged
		if err := Decode(blob, &ev); err != nil {
			t.Fatalf("Decode(%s): %v", blob, err)
		}
		if ev.Current.ID != "s1" || !ev.Current.OptedIn || ev.Current.Token != "t" {
			t.Errorf("unexpected current %+v", ev.Current)
		}
		if ev.Previous == nil || ev.Previous.ID != "s0" || ev.Previous.OptedIn {
			t.Errorf("unexpected previous %+v", ev.Previous)
		}
	}
}

func TestDecode_MissingKeysAreZero(t *testing.T) {
	var ev subscriptionChanged
	if err := Decode(`{"current":{"id":"s1"}}`, &ev); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.Previous != nil {
		t.Errorf("expected nil previous, got %+v", ev.Previous)
	}
	if ev.Current.Token != "" || ev.Current.OptedIn {
		t.Errorf("expected zero fields, got %+v", ev.Current)
	}
}

func TestDecode_StringBool(t *testing.T) {
	var ev permissionEvent
	if err := Decode(`{"permission":"true"}`, &ev); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ev.Permission {
		t.Fatal("expected permission true")
	}
}

func TestDecode_Notification(t *testing.T) {
	blob := `{
		"notificationId": "n-1",
		"title": "Hello",
		"priority": 5,
		"badgeIncrement": 2.0,
		"additionalData": {"k": "v", "n": 1},
		"actionButtons": "[{\"id\":\"b1\",\"text\":\"Open\"}]",
		"rawPayload": {"aps": {"alert": "x"}},
		"extras": {"count": 3, "flag": false},
		"ignored": "x"
	}`

	var n notification
	if err := Decode(blob, &n); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if n.NotificationID != "n-1" || n.Title != "Hello" || n.Priority != 5 || n.Badge != 2 {
		t.Errorf("unexpected scalars %+v", n)
	}
	if !reflect.DeepEqual(n.AdditionalData, map[string]any{"k": "v", "n": int64(1)}) {
		t.Errorf("unexpected additional data %#v", n.AdditionalData)
	}
	if len(n.Buttons) != 1 || n.Buttons[0].Text != "Open" {
		t.Errorf("unexpected buttons %+v", n.Buttons)
	}
	if !n.Raw.Has("aps") {
		t.Errorf("raw payload not kept: %s", n.Raw)
	}
	if n.Extras["count"] != "3" || n.Extras["flag"] != "false" {
		t.Errorf("unexpected extras %v", n.Extras)
	}
	if n.ignored != "" {
		t.Error("unexported field must not be filled")
	}
}

func TestDecode_CheckedConversions(t *testing.T) {
	tests := []struct {
		name string
		blob string
		want error
	}{
		{name: "fraction into int", blob: `{"priority": 1.5}`, want: ErrFractional},
		{name: "overflow int8", blob: `{"priority": 300}`, want: ErrOutOfRange},
		{name: "negative into uint", blob: `{"badgeIncrement": -1}`, want: ErrOutOfRange},
		{name: "overflow uint16", blob: `{"badgeIncrement": 70000}`, want: ErrOutOfRange},
		{name: "bool into int", blob: `{"priority": true}`, want: ErrWrongKind},
		{name: "plain string into int", blob: `{"priority": "high"}`, want: ErrWrongKind},
		{name: "array into map", blob: `{"extras": [1]}`, want: ErrWrongKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n notification
			err := Decode(tt.blob, &n)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Path == "" {
				t.Fatalf("expected a DecodeError with a path, got %v", err)
			}
		})
	}
}

func TestDecode_TopLevelTargets(t *testing.T) {
	var tags map[string]string
	if err := Decode(`{"color":"blue"}`, &tags); err != nil {
		t.Fatalf("Decode map: %v", err)
	}
	if !reflect.DeepEqual(tags, map[string]string{"color": "blue"}) {
		t.Errorf("unexpected tags %v", tags)
	}

	var ok bool
	if err := Decode(`true`, &ok); err != nil || !ok {
		t.Errorf("Decode bool: %v %v", ok, err)
	}

	var anything any
	if err := Decode(`[1,"a"]`, &anything); err != nil {
		t.Fatalf("Decode any: %v", err)
	}
	if !reflect.DeepEqual(anything, []any{int64(1), "a"}) {
		t.Errorf("unexpected any %#v", anything)
	}
}

func TestDecode_EmbeddedStruct(t *testing.T) {
	var w withEmbedded
	if err := Decode(`{"id":"x","name":"y"}`, &w); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if w.ID != "x" || w.Name != "y" {
		t.Fatalf("unexpected %+v", w)
	}
}

func TestDecode_CaseInsensitiveFallback(t *testing.T) {
	var s subscriptionState
	if err := Decode(`{"ID":"x","OptedIn":true}`, &s); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.ID != "x" || !s.OptedIn {
		t.Fatalf("unexpected %+v", s)
	}
}

func TestDecodeValue_InvalidTarget(t *testing.T) {
	var s subscriptionState
	for _, target := range []any{nil, s, (*subscriptionState)(nil)} {
		if err := DecodeValue(Null(), target); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("target %T: expected ErrInvalidTarget, got %v", target, err)
		}
	}
}
