// Package correlation generates the opaque identifiers that pair an outbound
// native call with the callback that eventually answers it.
//
// Two styles exist because the two native platforms carry ids differently:
// Android-style bridges pass a string GUID through JNI, iOS-style bridges pass
// an int32 through an exported C function. Both are rendered as ID strings
// inside the bridge so a single registry can hold either.
package correlation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// ID is an opaque correlation token. It is never reused while a request
// carrying it is still pending.
type ID string

// String returns the wire form of the id.
func (id ID) String() string {
	return string(id)
}

// Pair is the success/failure id pair used by calls that terminate on one of
// two native callback channels.
type Pair struct {
	Success ID `json:"success"`
	Failure ID `json:"failure"`
}

// Generator produces fresh correlation ids.
type Generator interface {
	NewID() ID
}

// Colliding is implemented by generators whose id space is small enough
// that a fresh id can still be taken by the time it is registered. Callers
// regenerate when registration reports a duplicate.
type Colliding interface {
	Generator
	MayCollide() bool
}

// Outstanding reports whether an id is currently held by a pending request.
// The pending registry implements it.
type Outstanding interface {
	Contains(id ID) bool
}

// ErrNotNumeric is returned when a numeric (hash-style) id cannot be parsed.
var ErrNotNumeric = errors.New("correlation id is not numeric")

// UUIDGenerator issues random UUID v4 strings. Collisions are treated as
// impossible, so it never consults the registry.
type UUIDGenerator struct{}

// NewID returns a new UUID-based id.
func (UUIDGenerator) NewID() ID {
	return ID(uuid.NewString())
}

// HashGenerator issues non-zero int32 ids for platforms whose exported
// callback signatures only carry an integer. The id space is small enough that
// collisions with outstanding requests must be checked and regenerated.
type HashGenerator struct {
	mu          sync.Mutex
	outstanding Outstanding
	rnd         *rand.Rand
}

// NewHashGenerator creates a HashGenerator that checks new ids against
// outstanding. A nil outstanding disables the collision check.
func NewHashGenerator(outstanding Outstanding) *HashGenerator {
	return &HashGenerator{
		outstanding: outstanding,
		rnd:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NewID returns a decimal int32 id that is not currently outstanding.
func (g *HashGenerator) NewID() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		n := g.rnd.Int32()
		if n == 0 {
			continue
		}
		// Native hash codes can be negative; mirror that range.
		if g.rnd.IntN(2) == 0 {
			n = -n
		}
		id := FromHash(n)
		if g.outstanding != nil && g.outstanding.Contains(id) {
			continue
		}
		return id
	}
}

// MayCollide reports true: the outstanding check and the registration of
// the id are not atomic.
func (g *HashGenerator) MayCollide() bool { return true }

var _ Colliding = (*HashGenerator)(nil)

// FromHash renders a native int32 hash code as an ID.
func FromHash(n int32) ID {
	return ID(strconv.FormatInt(int64(n), 10))
}

// ParseHash converts a hash-style ID back to the int32 a native function
// expects.
func ParseHash(id ID) (int32, error) {
	n, err := strconv.ParseInt(string(id), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, string(id))
	}
	return int32(n), nil
}

// NewPair draws two ids from g. The ids are guaranteed to differ.
func NewPair(g Generator) Pair {
	success := g.NewID()
	failure := g.NewID()
	for failure == success {
		failure = g.NewID()
	}
	return Pair{Success: success, Failure: failure}
}
