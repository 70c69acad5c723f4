package observability

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LogThrottle limits how often a repetitive warning is logged. Callers check
// Allow before logging and include the suppressed count in the entry.
type LogThrottle struct {
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// NewLogThrottle allows burst entries at once and then one per interval.
func NewLogThrottle(interval time.Duration, burst int) *LogThrottle {
	if burst < 1 {
		burst = 1
	}
	return &LogThrottle{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Allow reports whether an entry may be logged now and, if so, how many
// entries were suppressed since the last one allowed. A nil LogThrottle
// allows everything.
func (t *LogThrottle) Allow() (bool, int64) {
	if t == nil {
		return true, 0
	}
	if !t.limiter.Allow() {
		t.suppressed.Add(1)
		return false, 0
	}
	return true, t.suppressed.Swap(0)
}
