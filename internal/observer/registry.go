// Package observer manages long-lived, multi-subscriber event streams whose
// native counterpart must be attached while anyone is listening.
//
// The native observer for a stream is attached when the first handler
// subscribes and detached when the last one leaves. Attach and detach can call
// back into the bridge synchronously, so they never run while the subscriber
// map is locked.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SebastienMelki/pushbridge/internal/observability"
)

// Sentinel errors for the observer package.
var (
	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = errors.New("observer handler is nil")
)

// Stream names a native event stream, e.g. "permission" or "userState".
type Stream string

// Token identifies one subscription. The zero Token is never issued.
type Token uint64

// Attacher installs and removes the native observer behind a stream.
type Attacher interface {
	Attach(stream Stream) error
	Detach(stream Stream) error
}

// AttacherFunc adapts a pair of functions to Attacher. Either may be nil.
type AttacherFunc struct {
	OnAttach func(Stream) error
	OnDetach func(Stream) error
}

// Attach calls f.OnAttach.
func (f AttacherFunc) Attach(s Stream) error {
	if f.OnAttach == nil {
		return nil
	}
	return f.OnAttach(s)
}

// Detach calls f.OnDetach.
func (f AttacherFunc) Detach(s Stream) error {
	if f.OnDetach == nil {
		return nil
	}
	return f.OnDetach(s)
}

type subscription[T any] struct {
	token   Token
	handler func(T)
}

// Registry holds the subscribers of every stream carrying events of type T.
type Registry[T any] struct {
	// attachMu serialises attach/detach transitions so a stream is never
	// attached twice or detached while a new subscriber is attaching.
	// attached records the native side and is guarded by attachMu; it can
	// outlive the subscribers when a detach fails.
	attachMu sync.Mutex
	attached map[Stream]bool

	mu   sync.Mutex
	subs map[Stream][]subscription[T]
	next Token

	attacher Attacher
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewRegistry creates a Registry. attacher may be nil for streams without a
// native counterpart.
func NewRegistry[T any](attacher Attacher, logger *slog.Logger, metrics *observability.Metrics) *Registry[T] {
	if attacher == nil {
		attacher = AttacherFunc{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[T]{
		subs:     make(map[Stream][]subscription[T]),
		attached: make(map[Stream]bool),
		attacher: attacher,
		logger:   logger.With("component", "observer"),
		metrics:  metrics,
	}
}

// Subscribe adds handler to stream. The native observer is attached if it is
// not already; if attaching fails the subscription is rolled back and the
// error returned.
func (r *Registry[T]) Subscribe(stream Stream, handler func(T)) (Token, error) {
	if handler == nil {
		return 0, ErrNilHandler
	}

	r.attachMu.Lock()
	defer r.attachMu.Unlock()

	r.mu.Lock()
	r.next++
	tok := r.next
	r.subs[stream] = append(r.subs[stream], subscription[T]{token: tok, handler: handler})
	r.mu.Unlock()

	if r.attached[stream] {
		return tok, nil
	}

	if err := r.attacher.Attach(stream); err != nil {
		r.mu.Lock()
		r.removeLocked(stream, tok)
		r.mu.Unlock()
		return 0, fmt.Errorf("attach %s observer: %w", stream, err)
	}

	r.attached[stream] = true
	r.metrics.ObserverTransition(context.Background(), string(stream), true)
	r.logger.Debug("native observer attached", "stream", stream)
	return tok, nil
}

// Unsubscribe removes the subscription identified by tok. Removing the last
// subscriber detaches the native observer. If the detach fails the
// subscription stays removed, the stream stays attached and the error is
// returned; the next subscriber reuses the attachment and the next removal of
// a last subscriber retries the detach. Unknown tokens are ignored.
func (r *Registry[T]) Unsubscribe(stream Stream, tok Token) error {
	r.attachMu.Lock()
	defer r.attachMu.Unlock()

	r.mu.Lock()
	removed := r.removeLocked(stream, tok)
	last := removed && len(r.subs[stream]) == 0
	r.mu.Unlock()

	if !last || !r.attached[stream] {
		return nil
	}

	if err := r.attacher.Detach(stream); err != nil {
		return fmt.Errorf("detach %s observer: %w", stream, err)
	}

	delete(r.attached, stream)
	r.metrics.ObserverTransition(context.Background(), string(stream), false)
	r.logger.Debug("native observer detached", "stream", stream)
	return nil
}

func (r *Registry[T]) removeLocked(stream Stream, tok Token) bool {
	subs := r.subs[stream]
	for i, s := range subs {
		if s.token != tok {
			continue
		}
		subs = append(subs[:i:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(r.subs, stream)
		} else {
			r.subs[stream] = subs
		}
		return true
	}
	return false
}

// Publish calls every handler subscribed to stream, in subscription order.
// Handlers subscribed or removed during Publish do not affect this delivery.
func (r *Registry[T]) Publish(stream Stream, event T) int {
	r.mu.Lock()
	snapshot := r.subs[stream]
	r.mu.Unlock()

	for _, s := range snapshot {
		s.handler(event)
	}
	return len(snapshot)
}

// Count returns the number of subscribers on stream.
func (r *Registry[T]) Count(stream Stream) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[stream])
}
