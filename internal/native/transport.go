// Package native issues one-way calls into the native push SDK and routes its
// out-of-band callbacks back to the calls that are waiting for them.
package native

import (
	"context"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
	"github.com/SebastienMelki/pushbridge/internal/payload"
)

// Call is one invocation of a native SDK method.
type Call struct {
	// Method is the native method selector, e.g. "getTags".
	Method string `json:"method"`

	// Args are the positional arguments, limited to JSON-like values.
	Args []any `json:"args,omitempty"`

	// ID is set for calls answered on a single callback channel.
	ID correlation.ID `json:"id,omitempty"`

	// Pair is set for calls answered on a success or a failure channel.
	Pair *correlation.Pair `json:"pair,omitempty"`
}

// Awaited reports whether the call expects a callback.
func (c Call) Awaited() bool {
	return c.ID != "" || c.Pair != nil
}

// Transport carries calls into the native layer. Call must not wait for the
// native result; results arrive later through the bound Receiver, possibly
// before Call returns and on any goroutine.
type Transport interface {
	Call(ctx context.Context, call Call) error
	Bind(r Receiver)
}

// Receiver is the set of callback entry points the native layer invokes.
// Implementations must be safe for concurrent use.
type Receiver interface {
	// DeliverEnvelope receives a legacy {"delegate_id","response"} blob on
	// the given channel.
	DeliverEnvelope(ch payload.Channel, blob string)

	// DeliverResponse receives the response for a single correlation id.
	DeliverResponse(id correlation.ID, response string)

	// DeliverEvent receives an observer event. The return value tells the
	// native layer whether to proceed with its default behaviour (for
	// example displaying a notification).
	DeliverEvent(event string, args []string) bool
}

// Scheduler runs continuations on the main thread.
type Scheduler interface {
	Post(fn func()) error
}
