package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/payload"
	"github.com/SebastienMelki/pushbridge/internal/pending"
)

// Legacy is the delegate-style API. Each call is answered by a
// {"delegate_id","response"} envelope; calls with a success and a failure
// handler are correlated by an id pair and exactly one handler runs. A nil
// handler issues the call without waiting for an answer. Handlers run on the
// main thread; a response that cannot be decoded is reported to the error
// callbacks and the handler is not called.
type Legacy struct {
	b *Bridge
}

// SetEmail sets the user's email. authHash may be empty.
func (l *Legacy) SetEmail(ctx context.Context, email, authHash string, onSuccess func(), onFailure func(map[string]any)) error {
	if email == "" {
		return fmt.Errorf("%w: email is empty", ErrInvalidArgument)
	}
	return l.pair(ctx, native.MethodLegacySetEmail, ignoreResponse(onSuccess), onFailure, email, authHash)
}

// LogoutEmail removes the user's email.
func (l *Legacy) LogoutEmail(ctx context.Context, onSuccess func(), onFailure func(map[string]any)) error {
	return l.pair(ctx, native.MethodLegacyLogoutEmail, ignoreResponse(onSuccess), onFailure)
}

// SetSMSNumber sets the user's SMS number. authHash may be empty.
func (l *Legacy) SetSMSNumber(ctx context.Context, number, authHash string, onSuccess func(map[string]any), onFailure func(map[string]any)) error {
	if number == "" {
		return fmt.Errorf("%w: sms number is empty", ErrInvalidArgument)
	}
	return l.pair(ctx, native.MethodLegacySetSMSNumber, l.mapResponse(native.MethodLegacySetSMSNumber, onSuccess), onFailure, number, authHash)
}

// PostNotification sends a notification described by options.
func (l *Legacy) PostNotification(ctx context.Context, options map[string]any, onSuccess func(map[string]any), onFailure func(map[string]any)) error {
	if len(options) == 0 {
		return fmt.Errorf("%w: notification options are empty", ErrInvalidArgument)
	}
	return l.pair(ctx, native.MethodLegacyPostNotification, l.mapResponse(native.MethodLegacyPostNotification, onSuccess), onFailure, options)
}

// GetTags returns the user's tags through handler.
func (l *Legacy) GetTags(ctx context.Context, handler func(map[string]string)) error {
	if handler == nil {
		return fmt.Errorf("%w: handler is nil", ErrInvalidArgument)
	}
	return l.single(ctx, native.MethodLegacyGetTags, func(resp string) {
		tags, err := decodeStringMap(resp)
		if err != nil {
			l.b.decodeFailed(native.MethodLegacyGetTags, err)
			return
		}
		handler(tags)
	})
}

// SetExternalUserID sets the external user id. handler receives the per
// channel results.
func (l *Legacy) SetExternalUserID(ctx context.Context, externalID string, handler func(map[string]any)) error {
	var onResponse func(string)
	if handler != nil {
		onResponse = l.mapResponse(native.MethodLegacySetExternalUserID, handler)
	}
	return l.single(ctx, native.MethodLegacySetExternalUserID, onResponse, externalID)
}

// IDsAvailable reports the device's user id and push token through handler.
func (l *Legacy) IDsAvailable(ctx context.Context, handler func(userID, pushToken string)) error {
	if handler == nil {
		return fmt.Errorf("%w: handler is nil", ErrInvalidArgument)
	}
	return l.single(ctx, native.MethodLegacyIDsAvailable, func(resp string) {
		var ids struct {
			UserID    string `json:"userId"`
			PushToken string `json:"pushToken"`
		}
		if err := payload.Decode(resp, &ids); err != nil {
			l.b.decodeFailed(native.MethodLegacyIDsAvailable, err)
			return
		}
		handler(ids.UserID, ids.PushToken)
	})
}

// SendOutcome records an outcome. handler, if set, receives the recorded
// event.
func (l *Legacy) SendOutcome(ctx context.Context, name string, handler func(OutcomeEvent)) error {
	return l.outcome(ctx, native.MethodLegacySendOutcome, name, handler)
}

// SendUniqueOutcome records an outcome once per attributed notification.
func (l *Legacy) SendUniqueOutcome(ctx context.Context, name string, handler func(OutcomeEvent)) error {
	return l.outcome(ctx, native.MethodLegacySendUniqueOutcome, name, handler)
}

// SendOutcomeWithValue records an outcome carrying a value.
func (l *Legacy) SendOutcomeWithValue(ctx context.Context, name string, value float64, handler func(OutcomeEvent)) error {
	return l.outcome(ctx, native.MethodLegacySendOutcomeValue, name, handler, value)
}

func (l *Legacy) outcome(ctx context.Context, method, name string, handler func(OutcomeEvent), extra ...any) error {
	if name == "" {
		return fmt.Errorf("%w: outcome name is empty", ErrInvalidArgument)
	}
	var onResponse func(string)
	if handler != nil {
		onResponse = func(resp string) {
			ev, err := decodeOutcome(resp)
			if err != nil {
				l.b.decodeFailed(method, err)
				return
			}
			handler(ev)
		}
	}
	return l.single(ctx, method, onResponse, append([]any{name}, extra...)...)
}

// single issues a call answered on one delegate id.
func (l *Legacy) single(ctx context.Context, method string, onResponse func(string), args ...any) error {
	if onResponse == nil {
		return l.b.fire(ctx, method, args...)
	}
	if l.b.closed.Load() {
		return ErrClosed
	}
	_, err := l.b.native.Await(ctx, method, func(r pending.Result) {
		onResponse(r.Response)
	}, args...)
	if err != nil {
		l.b.callFailed(method, err)
	}
	return err
}

// pair issues a call answered on a success or a failure delegate id.
func (l *Legacy) pair(ctx context.Context, method string, onSuccess func(string), onFailure func(map[string]any), args ...any) error {
	if onSuccess == nil && onFailure == nil {
		return l.b.fire(ctx, method, args...)
	}
	if l.b.closed.Load() {
		return ErrClosed
	}
	_, err := l.b.native.AwaitPair(ctx, method, func(r pending.Result) {
		if !r.Failed {
			if onSuccess != nil {
				onSuccess(r.Response)
			}
			return
		}
		if onFailure == nil {
			return
		}
		m, err := decodeMap(r.Response)
		if err != nil {
			l.b.decodeFailed(method, err)
			return
		}
		onFailure(m)
	}, args...)
	if err != nil {
		l.b.callFailed(method, err)
	}
	return err
}

func (l *Legacy) mapResponse(method string, handler func(map[string]any)) func(string) {
	if handler == nil {
		return nil
	}
	return func(resp string) {
		m, err := decodeMap(resp)
		if err != nil {
			l.b.decodeFailed(method, err)
			return
		}
		handler(m)
	}
}

func ignoreResponse(fn func()) func(string) {
	if fn == nil {
		return nil
	}
	return func(string) { fn() }
}

// decodeOutcome decodes a SendOutcome response. An empty response is an
// unattributed, unnamed event.
func decodeOutcome(resp string) (OutcomeEvent, error) {
	if strings.TrimSpace(resp) == "" {
		return outcomeFromValue(payload.Null())
	}
	v, err := payload.Parse(resp)
	if err != nil {
		return OutcomeEvent{}, err
	}
	return outcomeFromValue(v)
}
