package pending

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
)

func noop(Result) {}

func TestRegister_ResolveOnce(t *testing.T) {
	r := NewRegistry()

	var calls int
	if err := r.Register("a", "getTags", func(res Result) {
		calls++
		if res.Response != `{"color":"blue"}` {
			t.Errorf("unexpected response %q", res.Response)
		}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cont, failed, ok := r.Resolve("a")
	if !ok {
		t.Fatal("expected first Resolve to find the entry")
	}
	if failed {
		t.Error("single-id entry should not resolve as failure")
	}
	cont(Result{Response: `{"color":"blue"}`})

	if _, _, ok := r.Resolve("a"); ok {
		t.Fatal("second Resolve of the same id must be a no-op")
	}
	if calls != 1 {
		t.Fatalf("expected continuation to run once, ran %d times", calls)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegister_Errors(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("a", "m", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name string
		id   correlation.ID
		cont Continuation
		want error
	}{
		{name: "duplicate", id: "a", cont: noop, want: ErrDuplicateID},
		{name: "empty id", id: "", cont: noop, want: ErrEmptyID},
		{name: "nil continuation", id: "b", cont: nil, want: ErrNilContinuation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.id, "m", tt.cont)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if r.Len() != 1 {
		t.Fatalf("failed registrations must not change Len, got %d", r.Len())
	}
}

func TestResolve_UnknownID(t *testing.T) {
	r := NewRegistry()
	if _, _, ok := r.Resolve("missing"); ok {
		t.Fatal("unknown id should not resolve")
	}
}

func TestRegisterPair_ResolveRemovesBothIDs(t *testing.T) {
	tests := []struct {
		name       string
		resolve    correlation.ID
		wantFailed bool
	}{
		{name: "success first", resolve: "s", wantFailed: false},
		{name: "failure first", resolve: "f", wantFailed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			pair := correlation.Pair{Success: "s", Failure: "f"}
			if err := r.RegisterPair(pair, "setEmail", noop); err != nil {
				t.Fatalf("RegisterPair: %v", err)
			}
			if r.Len() != 1 {
				t.Fatalf("a pair should count once, got %d", r.Len())
			}

			_, failed, ok := r.Resolve(tt.resolve)
			if !ok {
				t.Fatal("expected pair to resolve")
			}
			if failed != tt.wantFailed {
				t.Fatalf("expected failed=%v, got %v", tt.wantFailed, failed)
			}

			if r.Contains("s") || r.Contains("f") {
				t.Fatal("both wire ids must be removed after resolution")
			}
			if _, _, ok := r.Resolve("s"); ok {
				t.Fatal("late success callback must be a no-op")
			}
			if _, _, ok := r.Resolve("f"); ok {
				t.Fatal("late failure callback must be a no-op")
			}
		})
	}
}

func TestRegisterPair_Invalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("taken", "m", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name string
		pair correlation.Pair
		want error
	}{
		{name: "same ids", pair: correlation.Pair{Success: "x", Failure: "x"}, want: ErrInvalidPair},
		{name: "missing failure", pair: correlation.Pair{Success: "x"}, want: ErrInvalidPair},
		{name: "missing success", pair: correlation.Pair{Failure: "x"}, want: ErrInvalidPair},
		{name: "success taken", pair: correlation.Pair{Success: "taken", Failure: "y"}, want: ErrDuplicateID},
		{name: "failure taken", pair: correlation.Pair{Success: "y", Failure: "taken"}, want: ErrDuplicateID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.RegisterPair(tt.pair, "m", noop)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	// A rejected pair must not leave half an entry behind.
	if r.Contains("y") {
		t.Fatal("rejected pair left an id registered")
	}
}

func TestCancel(t *testing.T) {
	r := NewRegistry()
	pair := correlation.Pair{Success: "s", Failure: "f"}
	if err := r.RegisterPair(pair, "m", noop); err != nil {
		t.Fatalf("RegisterPair: %v", err)
	}

	if !r.Cancel("f") {
		t.Fatal("expected Cancel to report an existing entry")
	}
	if r.Contains("s") {
		t.Fatal("cancelling one side must remove the other")
	}
	if r.Cancel("s") {
		t.Fatal("second Cancel should report nothing removed")
	}
}

func TestOrphans(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1000, 0)
	r.clock = func() time.Time { return now }

	if err := r.Register("old", "getTags", noop); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Minute)
	if err := r.RegisterPair(correlation.Pair{Success: "s", Failure: "f"}, "setEmail", noop); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Minute)
	if err := r.Register("fresh", "sendOutcome", noop); err != nil {
		t.Fatal(err)
	}

	orphans := r.Orphans(30 * time.Second)
	if len(orphans) != 2 {
		t.Fatalf("expected 2 orphans, got %d", len(orphans))
	}
	if orphans[0].ID != "old" || orphans[0].Method != "getTags" {
		t.Errorf("unexpected first orphan %+v", orphans[0])
	}
	if orphans[1].Pair == nil || orphans[1].Pair.Failure != "f" {
		t.Errorf("expected pair orphan second, got %+v", orphans[1])
	}
	if r.Len() != 3 {
		t.Fatalf("Orphans must not remove entries, Len=%d", r.Len())
	}
}

func TestRegistry_ConcurrentResolveDeliversOnce(t *testing.T) {
	r := NewRegistry()
	const n = 200

	for i := 0; i < n; i++ {
		pair := correlation.Pair{
			Success: correlation.ID(fmt.Sprintf("s%d", i)),
			Failure: correlation.ID(fmt.Sprintf("f%d", i)),
		}
		if err := r.RegisterPair(pair, "m", noop); err != nil {
			t.Fatal(err)
		}
	}

	var resolved atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		for _, prefix := range []string{"s", "f", "s", "f"} {
			wg.Add(1)
			go func(id correlation.ID) {
				defer wg.Done()
				if _, _, ok := r.Resolve(id); ok {
					resolved.Add(1)
				}
			}(correlation.ID(fmt.Sprintf("%s%d", prefix, i)))
		}
	}
	wg.Wait()

	if got := resolved.Load(); got != n {
		t.Fatalf("expected exactly %d resolutions, got %d", n, got)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_SatisfiesOutstanding(t *testing.T) {
	r := NewRegistry()
	g := correlation.NewHashGenerator(r)
	id := g.NewID()
	if err := r.Register(id, "m", noop); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		if g.NewID() == id {
			t.Fatal("generator reissued an outstanding id")
		}
	}
}

func TestTake_ReportsAllWireIDs(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterPair(correlation.Pair{Success: "s", Failure: "f"}, "postNotification", noop); err != nil {
		t.Fatal(err)
	}

	res, ok := r.Take("f")
	if !ok {
		t.Fatal("expected Take to find the pair")
	}
	if !res.Failed || res.Method != "postNotification" {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if len(res.IDs) != 2 || res.IDs[0] != "s" || res.IDs[1] != "f" {
		t.Fatalf("expected both wire ids, got %v", res.IDs)
	}
}
