package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/SebastienMelki/pushbridge/internal/observer"
	"github.com/SebastienMelki/pushbridge/internal/payload"
	"github.com/SebastienMelki/pushbridge/internal/pending"
)

// fire issues a call that expects no callback.
func (b *Bridge) fire(ctx context.Context, method string, args ...any) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if err := b.native.Fire(ctx, method, args...); err != nil {
		b.callFailed(method, err)
		return err
	}
	return nil
}

// call issues method and returns a Future completed with the decoded
// response. A refused call returns an already failed Future.
func call[T any](b *Bridge, ctx context.Context, method string, decode func(string) (T, error), args ...any) *Future[T] {
	if b.closed.Load() {
		return failedFuture[T](ErrClosed)
	}

	f := newFuture[T](b.main.Post)
	f.abandoned = b.shutdown
	id, err := b.native.Await(ctx, method, func(r pending.Result) {
		var zero T
		if r.Failed {
			f.complete(zero, fmt.Errorf("%w: %s", ErrNativeFailure, method))
			return
		}
		v, err := decode(r.Response)
		if err != nil {
			b.decodeFailed(method, err)
			f.complete(zero, fmt.Errorf("%w: %s: %w", ErrDecode, method, err))
			return
		}
		f.complete(v, nil)
	}, args...)
	if err != nil {
		b.callFailed(method, err)
		return failedFuture[T](err)
	}
	f.setCancel(func() bool { return b.native.Cancel(id) })
	return f
}

func (b *Bridge) callFailed(method string, err error) {
	b.report(newCriticalError(ErrCodeNativeCallFailed, fmt.Sprintf("native call %s failed", method), err))
}

func (b *Bridge) decodeFailed(target string, err error) {
	b.metrics.DecodeFailure(context.Background(), target)
	b.report(newWarningError(ErrCodeDecodeFailed, fmt.Sprintf("could not decode %s payload", target), err))
}

func decodeString(resp string) (string, error) {
	return resp, nil
}

// decodeJSON decodes a JSON response into T. Booleans and numbers may also
// arrive quoted.
func decodeJSON[T any](resp string) (T, error) {
	var v T
	err := payload.Decode(resp, &v)
	return v, err
}

// decodeMap decodes a JSON object response. An empty response is an empty
// map.
func decodeMap(resp string) (map[string]any, error) {
	if strings.TrimSpace(resp) == "" {
		return map[string]any{}, nil
	}
	v, err := payload.Parse(resp)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return map[string]any{}, nil
	}
	if _, err := v.Map(); err != nil {
		return nil, err
	}
	return v.Interface().(map[string]any), nil
}

// decodeStringMap decodes a JSON object of scalars, such as tags. An empty
// response is an empty map.
func decodeStringMap(resp string) (map[string]string, error) {
	if strings.TrimSpace(resp) == "" {
		return map[string]string{}, nil
	}
	v, err := payload.Parse(resp)
	if err != nil {
		return nil, err
	}
	if v.IsNull() {
		return map[string]string{}, nil
	}
	return v.StringMap()
}

// Subscription is a handle to an observer registration.
type Subscription struct {
	once        sync.Once
	unsubscribe func() error
	err         error
}

// Unsubscribe removes the handler. Only the first call has any effect.
func (s *Subscription) Unsubscribe() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() { s.err = s.unsubscribe() })
	return s.err
}

func subscribe[T any](b *Bridge, reg *observer.Registry[T], stream string, fn func(T)) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: handler is nil", ErrInvalidArgument)
	}
	s := observer.Stream(stream)
	tok, err := reg.Subscribe(s, fn)
	if err != nil {
		return nil, err
	}
	return &Subscription{unsubscribe: func() error { return reg.Unsubscribe(s, tok) }}, nil
}

// publish delivers ev to the subscribers of stream on the main thread.
func publish[T any](b *Bridge, reg *observer.Registry[T], stream string, ev T) {
	s := observer.Stream(stream)
	if reg.Count(s) == 0 {
		return
	}
	b.post(func() { reg.Publish(s, ev) })
}
