// Package dedup remembers recently resolved correlation ids so that a
// callback for an id that is no longer pending can be classified as a
// duplicate delivery rather than an unknown id.
package dedup

import "context"

// ResolvedSet tracks resolved correlation ids over a sliding window.
// Implementations must be safe for concurrent use.
type ResolvedSet interface {
	// MarkResolved records that id was consumed by a callback.
	MarkResolved(id string)

	// WasResolved reports whether id was probably resolved within the
	// window. False positives are possible; false negatives are not.
	WasResolved(id string) bool

	// Start begins background rotation until ctx ends or Stop is called.
	Start(ctx context.Context)

	// Stop ends background rotation and waits for it.
	Stop()
}
