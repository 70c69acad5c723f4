package bridge

import (
	"context"

	"github.com/SebastienMelki/pushbridge/internal/native"
)

// Location controls location sharing with the native SDK.
type Location struct {
	b *Bridge
}

func (l *Location) SetShared(ctx context.Context, shared bool) error {
	return l.b.fire(ctx, native.MethodLocationSetShared, shared)
}

// IsShared reports whether location is shared.
func (l *Location) IsShared(ctx context.Context) *Future[bool] {
	return call(l.b, ctx, native.MethodLocationGetShared, decodeJSON[bool])
}

// RequestPermission prompts for location permission.
func (l *Location) RequestPermission(ctx context.Context) error {
	return l.b.fire(ctx, native.MethodLocationRequestPermission)
}
