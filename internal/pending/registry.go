// Package pending holds the continuations of native calls that have been
// issued but not yet answered.
//
// An entry is created before its native call is issued and consumed exactly
// once when the native layer calls back with its id. Calls that terminate on
// one of two channels (success or failure) register a single entry reachable
// by both wire ids; resolving either removes both. Entries whose callback never
// arrives stay in the registry (orphaned); the registry never expires them on
// its own.
package pending

import (
	"sort"
	"sync"
	"time"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
)

// Result is what a native callback delivers to a waiting call.
type Result struct {
	// Failed is true when the callback arrived on the failure channel of a pair.
	Failed bool

	// Response is the raw response blob, decoded later by the caller.
	Response string
}

// Continuation is invoked once with the result of a native call.
type Continuation func(Result)

// Pending describes an outstanding entry for diagnostics.
type Pending struct {
	ID        correlation.ID
	Pair      *correlation.Pair
	Method    string
	CreatedAt time.Time
}

// entry is one outstanding call. Pair calls have two wire ids pointing at the
// same entry.
type entry struct {
	id        correlation.ID
	pair      *correlation.Pair
	method    string
	cont      Continuation
	createdAt time.Time
}

// slot maps one wire id to its entry.
type slot struct {
	entry   *entry
	failure bool
}

// Registry maps wire correlation ids to continuations.
// It is safe for concurrent use by multiple goroutines.
type Registry struct {
	mu    sync.Mutex
	slots map[correlation.ID]slot
	count int

	clock func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		slots: make(map[correlation.ID]slot),
		clock: time.Now,
	}
}

// Register stores cont under id. Registering an id that is already pending
// returns ErrDuplicateID.
func (r *Registry) Register(id correlation.ID, method string, cont Continuation) error {
	if id == "" {
		return ErrEmptyID
	}
	if cont == nil {
		return ErrNilContinuation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[id]; exists {
		return ErrDuplicateID
	}

	e := &entry{id: id, method: method, cont: cont, createdAt: r.clock()}
	r.slots[id] = slot{entry: e}
	r.count++
	return nil
}

// RegisterPair stores cont under both ids of pair. Whichever id resolves
// first consumes the entry and removes the other id as well.
func (r *Registry) RegisterPair(pair correlation.Pair, method string, cont Continuation) error {
	if pair.Success == "" || pair.Failure == "" || pair.Success == pair.Failure {
		return ErrInvalidPair
	}
	if cont == nil {
		return ErrNilContinuation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.slots[pair.Success]; exists {
		return ErrDuplicateID
	}
	if _, exists := r.slots[pair.Failure]; exists {
		return ErrDuplicateID
	}

	p := pair
	e := &entry{id: pair.Success, pair: &p, method: method, cont: cont, createdAt: r.clock()}
	r.slots[pair.Success] = slot{entry: e}
	r.slots[pair.Failure] = slot{entry: e, failure: true}
	r.count++
	return nil
}

// Resolution is an entry removed from the registry by Take.
type Resolution struct {
	Continuation Continuation
	Method       string

	// Failed is true when the id taken was the failure side of a pair.
	Failed bool

	// IDs lists every wire id the entry was reachable by.
	IDs []correlation.ID
}

// Take removes the entry reachable by id, together with every other wire id
// of the same entry, and returns it. ok is false when id is unknown, which
// covers duplicate and late deliveries.
func (r *Registry) Take(id correlation.ID) (Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.slots[id]
	if !exists {
		return Resolution{}, false
	}
	r.removeLocked(s.entry)

	res := Resolution{
		Continuation: s.entry.cont,
		Method:       s.entry.method,
		Failed:       s.failure,
		IDs:          []correlation.ID{s.entry.id},
	}
	if s.entry.pair != nil {
		res.IDs = []correlation.ID{s.entry.pair.Success, s.entry.pair.Failure}
	}
	return res, true
}

// Resolve is Take without the bookkeeping: it returns the continuation and
// whether id was the failure side of a pair.
func (r *Registry) Resolve(id correlation.ID) (cont Continuation, failed bool, ok bool) {
	res, ok := r.Take(id)
	if !ok {
		return nil, false, false
	}
	return res.Continuation, res.Failed, true
}

// Cancel removes the entry reachable by id without resolving it. A later
// native callback for it becomes a no-op. Reports whether an entry existed.
func (r *Registry) Cancel(id correlation.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.slots[id]
	if !exists {
		return false
	}
	r.removeLocked(s.entry)
	return true
}

// Contains reports whether id is currently pending.
func (r *Registry) Contains(id correlation.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.slots[id]
	return exists
}

// Len returns the number of pending calls. A pair counts once.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Orphans returns the calls that have been pending for longer than age,
// oldest first. Nothing is removed.
func (r *Registry) Orphans(age time.Duration) []Pending {
	r.mu.Lock()
	cutoff := r.clock().Add(-age)
	var out []Pending
	for id, s := range r.slots {
		// Report each entry once, under its primary id.
		if id != s.entry.id {
			continue
		}
		if s.entry.createdAt.After(cutoff) {
			continue
		}
		out = append(out, Pending{
			ID:        s.entry.id,
			Pair:      s.entry.pair,
			Method:    s.entry.method,
			CreatedAt: s.entry.createdAt,
		})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// removeLocked deletes every wire id of e. Caller must hold r.mu.
func (r *Registry) removeLocked(e *entry) {
	delete(r.slots, e.id)
	if e.pair != nil {
		delete(r.slots, e.pair.Success)
		delete(r.slots, e.pair.Failure)
	}
	r.count--
}
