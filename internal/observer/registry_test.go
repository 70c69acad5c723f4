package observer

import (
	"errors"
	"sync"
	"testing"
)

// mockAttacher records attach/detach transitions.
type mockAttacher struct {
	mu        sync.Mutex
	attached  map[Stream]int
	detached  map[Stream]int
	attachErr error
	detachErr error

	// onAttach runs inside Attach, to simulate a native layer that calls
	// back into the registry synchronously.
	onAttach func(Stream)
}

func newMockAttacher() *mockAttacher {
	return &mockAttacher{
		attached: map[Stream]int{},
		detached: map[Stream]int{},
	}
}

func (m *mockAttacher) Attach(s Stream) error {
	if m.onAttach != nil {
		m.onAttach(s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attachErr != nil {
		return m.attachErr
	}
	m.attached[s]++
	return nil
}

func (m *mockAttacher) Detach(s Stream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detachErr != nil {
		return m.detachErr
	}
	m.detached[s]++
	return nil
}

func (m *mockAttacher) counts(s Stream) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached[s], m.detached[s]
}

const permission Stream = "permission"

func TestSubscribe_AttachesOnFirstOnly(t *testing.T) {
	a := newMockAttacher()
	r := NewRegistry[bool](a, nil, nil)

	t1, err := r.Subscribe(permission, func(bool) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t2, err := r.Subscribe(permission, func(bool) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if t1 == t2 || t1 == 0 || t2 == 0 {
		t.Fatalf("tokens must be distinct and non-zero: %d %d", t1, t2)
	}

	if att, det := a.counts(permission); att != 1 || det != 0 {
		t.Fatalf("expected 1 attach 0 detach, got %d %d", att, det)
	}

	if err := r.Unsubscribe(permission, t1); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if _, det := a.counts(permission); det != 0 {
		t.Fatal("detached while a subscriber remained")
	}

	if err := r.Unsubscribe(permission, t2); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if att, det := a.counts(permission); att != 1 || det != 1 {
		t.Fatalf("expected 1 attach 1 detach, got %d %d", att, det)
	}

	// Unknown and repeated tokens are no-ops.
	if err := r.Unsubscribe(permission, t2); err != nil {
		t.Fatalf("repeat Unsubscribe: %v", err)
	}
	if _, det := a.counts(permission); det != 1 {
		t.Fatal("repeat Unsubscribe detached again")
	}
}

func TestSubscribe_ReattachAfterEmpty(t *testing.T) {
	a := newMockAttacher()
	r := NewRegistry[bool](a, nil, nil)

	for i := 0; i < 3; i++ {
		tok, err := r.Subscribe(permission, func(bool) {})
		if err != nil {
			t.Fatal(err)
		}
		if err := r.Unsubscribe(permission, tok); err != nil {
			t.Fatal(err)
		}
	}
	if att, det := a.counts(permission); att != 3 || det != 3 {
		t.Fatalf("expected 3/3 transitions, got %d/%d", att, det)
	}
}

func TestSubscribe_AttachFailureRollsBack(t *testing.T) {
	a := newMockAttacher()
	a.attachErr = errors.New("native unavailable")
	r := NewRegistry[bool](a, nil, nil)

	if _, err := r.Subscribe(permission, func(bool) {}); err == nil {
		t.Fatal("expected attach error")
	}
	if r.Count(permission) != 0 {
		t.Fatalf("failed subscribe left %d subscribers", r.Count(permission))
	}

	a.mu.Lock()
	a.attachErr = nil
	a.mu.Unlock()

	if _, err := r.Subscribe(permission, func(bool) {}); err != nil {
		t.Fatalf("Subscribe after recovery: %v", err)
	}
	if att, _ := a.counts(permission); att != 1 {
		t.Fatalf("expected 1 successful attach, got %d", att)
	}
}

func TestUnsubscribe_DetachFailureKeepsAttachment(t *testing.T) {
	a := newMockAttacher()
	r := NewRegistry[bool](a, nil, nil)

	tok, err := r.Subscribe(permission, func(bool) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	busy := errors.New("native busy")
	a.mu.Lock()
	a.detachErr = busy
	a.mu.Unlock()
	if err := r.Unsubscribe(permission, tok); !errors.Is(err, busy) {
		t.Fatalf("Unsubscribe error = %v, want %v", err, busy)
	}
	if r.Count(permission) != 0 {
		t.Fatalf("Count = %d, want 0", r.Count(permission))
	}

	// Native is still attached, so the next subscriber must not attach again.
	tok, err = r.Subscribe(permission, func(bool) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if att, _ := a.counts(permission); att != 1 {
		t.Fatalf("attaches = %d, want 1", att)
	}

	a.mu.Lock()
	a.detachErr = nil
	a.mu.Unlock()
	if err := r.Unsubscribe(permission, tok); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if att, det := a.counts(permission); att != 1 || det != 1 {
		t.Fatalf("expected 1 attach 1 detach, got %d %d", att, det)
	}

	// Fully detached: a new subscriber attaches again.
	if _, err := r.Subscribe(permission, func(bool) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if att, _ := a.counts(permission); att != 2 {
		t.Fatalf("attaches = %d, want 2", att)
	}
}

func TestSubscribe_NilHandler(t *testing.T) {
	r := NewRegistry[bool](nil, nil, nil)
	if _, err := r.Subscribe(permission, nil); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
}

func TestPublish_OrderAndSnapshot(t *testing.T) {
	r := NewRegistry[int](nil, nil, nil)

	var got []string
	var late Token
	_, _ = r.Subscribe(permission, func(v int) {
		got = append(got, "a")
		// Subscribing during Publish must not affect this delivery.
		late, _ = r.Subscribe(permission, func(int) { got = append(got, "late") })
	})
	_, _ = r.Subscribe(permission, func(v int) { got = append(got, "b") })

	if n := r.Publish(permission, 1); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected delivery order %v", got)
	}
	if late == 0 {
		t.Fatal("subscribe from inside a handler failed")
	}
	if r.Count(permission) != 3 {
		t.Fatalf("expected 3 subscribers, got %d", r.Count(permission))
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	r := NewRegistry[int](nil, nil, nil)
	if n := r.Publish("nothing", 1); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
}

func TestAttach_ReentrantCallbackDoesNotDeadlock(t *testing.T) {
	a := newMockAttacher()
	r := NewRegistry[bool](a, nil, nil)

	// The native layer emits the current state synchronously on attach.
	var delivered bool
	a.onAttach = func(s Stream) {
		r.Publish(s, true)
	}

	if _, err := r.Subscribe(permission, func(v bool) { delivered = v }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !delivered {
		t.Fatal("synchronous event during attach was not delivered")
	}
}

func TestRegistry_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	a := newMockAttacher()
	r := NewRegistry[bool](a, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := r.Subscribe(permission, func(bool) {})
			if err != nil {
				t.Error(err)
				return
			}
			r.Publish(permission, true)
			if err := r.Unsubscribe(permission, tok); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	att, det := a.counts(permission)
	if att != det {
		t.Fatalf("attach/detach unbalanced: %d/%d", att, det)
	}
	if r.Count(permission) != 0 {
		t.Fatalf("expected no subscribers, got %d", r.Count(permission))
	}
}
