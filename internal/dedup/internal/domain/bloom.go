// Package domain holds the sliding-window bloom filter that remembers which
// correlation ids have already been resolved.
package domain

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// WindowedSet is a sliding-window set backed by two bloom filters. Keys are
// added to the current filter and looked up in both; Rotate retires the
// previous filter, so a key stays visible for between one and two rotation
// periods.
//
// Membership is probabilistic: Test may report a key that was never added,
// never the reverse.
type WindowedSet struct {
	mu       sync.RWMutex
	current  *bloom.BloomFilter
	previous *bloom.BloomFilter

	window   time.Duration
	capacity uint
	fpRate   float64
}

// NewWindowedSet creates a WindowedSet sized for capacity keys per window at
// the given false positive rate.
func NewWindowedSet(window time.Duration, capacity uint, fpRate float64) *WindowedSet {
	return &WindowedSet{
		current:  bloom.NewWithEstimates(capacity, fpRate),
		previous: bloom.NewWithEstimates(capacity, fpRate),
		window:   window,
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// Add records key.
func (s *WindowedSet) Add(key string) {
	s.mu.Lock()
	s.current.AddString(key)
	s.mu.Unlock()
}

// Test reports whether key was probably added within the window.
func (s *WindowedSet) Test(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.TestString(key) || s.previous.TestString(key)
}

// Rotate makes the current filter the previous one and starts a fresh
// current filter. Call it every window/2.
func (s *WindowedSet) Rotate() {
	fresh := bloom.NewWithEstimates(s.capacity, s.fpRate)
	s.mu.Lock()
	s.previous = s.current
	s.current = fresh
	s.mu.Unlock()
}

// Window returns the configured window.
func (s *WindowedSet) Window() time.Duration {
	return s.window
}
