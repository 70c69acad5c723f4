package bridge

import (
	"context"
	"fmt"
	"math"

	"github.com/SebastienMelki/pushbridge/internal/native"
)

// Session records outcomes attributed to the current session.
type Session struct {
	b *Bridge
}

func (s *Session) AddOutcome(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: outcome name is empty", ErrInvalidArgument)
	}
	return s.b.fire(ctx, native.MethodSessionAddOutcome, name)
}

// AddUniqueOutcome records name at most once per attributed notification.
func (s *Session) AddUniqueOutcome(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: outcome name is empty", ErrInvalidArgument)
	}
	return s.b.fire(ctx, native.MethodSessionAddUniqueOutcome, name)
}

func (s *Session) AddOutcomeWithValue(ctx context.Context, name string, value float64) error {
	if name == "" {
		return fmt.Errorf("%w: outcome name is empty", ErrInvalidArgument)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: outcome value %v is not finite", ErrInvalidArgument, value)
	}
	return s.b.fire(ctx, native.MethodSessionAddOutcomeWithValue, name, value)
}
