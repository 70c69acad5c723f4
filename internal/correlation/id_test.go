package correlation

import (
	"errors"
	"sync"
	"testing"
)

// fakeOutstanding reports a fixed set of ids as outstanding.
type fakeOutstanding struct {
	mu  sync.Mutex
	ids map[ID]bool
}

func (f *fakeOutstanding) Contains(id ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[id]
}

func (f *fakeOutstanding) add(id ID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[id] = true
}

func TestUUIDGenerator_Unique(t *testing.T) {
	g := UUIDGenerator{}
	seen := make(map[ID]bool)
	for i := 0; i < 10000; i++ {
		id := g.NewID()
		if len(id) != 36 {
			t.Fatalf("id length = %d, want 36 (UUID format)", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %s after %d draws", id, i)
		}
		seen[id] = true
	}
}

func TestHashGenerator_AvoidsOutstanding(t *testing.T) {
	outstanding := &fakeOutstanding{ids: make(map[ID]bool)}
	g := NewHashGenerator(outstanding)

	for i := 0; i < 5000; i++ {
		id := g.NewID()
		if outstanding.Contains(id) {
			t.Fatalf("generator returned outstanding id %s", id)
		}
		n, err := ParseHash(id)
		if err != nil {
			t.Fatalf("ParseHash(%s): %v", id, err)
		}
		if n == 0 {
			t.Fatal("generator returned zero id")
		}
		outstanding.add(id)
	}
}

func TestHashGenerator_ConcurrentUse(t *testing.T) {
	outstanding := &fakeOutstanding{ids: make(map[ID]bool)}
	g := NewHashGenerator(outstanding)

	var mu sync.Mutex
	dupes := 0
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := g.NewID()
				mu.Lock()
				if outstanding.Contains(id) {
					dupes++
				}
				outstanding.add(id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if dupes != 0 {
		t.Fatalf("got %d ids that collided with outstanding ones", dupes)
	}
}

func TestParseHash(t *testing.T) {
	tests := []struct {
		name    string
		id      ID
		want    int32
		wantErr bool
	}{
		{name: "positive", id: "12345", want: 12345},
		{name: "negative", id: "-987", want: -987},
		{name: "max int32", id: "2147483647", want: 2147483647},
		{name: "overflow", id: "2147483648", wantErr: true},
		{name: "guid", id: "6f1c1f4e-2b8a-4c1e-9d2f-0d8b6a1e4c55", wantErr: true},
		{name: "empty", id: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHash(tt.id)
			if tt.wantErr {
				if !errors.Is(err, ErrNotNumeric) {
					t.Fatalf("err = %v, want ErrNotNumeric", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHash: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseHash = %d, want %d", got, tt.want)
			}
			if FromHash(got) != tt.id {
				t.Errorf("FromHash(%d) = %s, want %s", got, FromHash(got), tt.id)
			}
		})
	}
}

// constGenerator returns ids from a fixed sequence.
type constGenerator struct {
	ids []ID
	i   int
}

func (c *constGenerator) NewID() ID {
	id := c.ids[c.i%len(c.ids)]
	c.i++
	return id
}

func TestNewPair_Distinct(t *testing.T) {
	g := &constGenerator{ids: []ID{"a", "a", "b"}}
	pair := NewPair(g)
	if pair.Success != "a" || pair.Failure != "b" {
		t.Fatalf("pair = %+v, want {a b}", pair)
	}
}
