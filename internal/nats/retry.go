package nats

import (
	"math"
	"math/rand"
	"time"
)

// Backoff schedules retries with exponential delays, a cap and jitter.
type Backoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int

	// Jitter is the proportion of randomness applied to the delay (0.0 to 1.0).
	Jitter float64
}

// NewBackoff builds a Backoff from cfg.
func NewBackoff(cfg RetryConfig) *Backoff {
	return &Backoff{
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		MaxRetries: cfg.MaxRetries,
		Jitter:     cfg.Jitter,
	}
}

// NextDelay returns the delay before retry attempt (0-indexed), or 0 when
// no retries are left.
func (b *Backoff) NextDelay(attempt int) time.Duration {
	if attempt >= b.MaxRetries {
		return 0
	}

	delay := float64(b.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	if b.Jitter > 0 {
		//nolint:gosec // jitter only
		delay += delay * b.Jitter * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
