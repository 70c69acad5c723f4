package bridge

import (
	"context"
	"fmt"

	"github.com/SebastienMelki/pushbridge/internal/native"
)

// Debug sets the native SDK's log and alert levels.
type Debug struct {
	b *Bridge
}

// SetLogLevel sets the level logged to the device console.
func (d *Debug) SetLogLevel(ctx context.Context, level LogLevel) error {
	if !level.valid() {
		return fmt.Errorf("%w: log level %d", ErrInvalidArgument, int(level))
	}
	return d.b.fire(ctx, native.MethodDebugSetLogLevel, int(level))
}

// SetAlertLevel sets the level shown as alerts.
func (d *Debug) SetAlertLevel(ctx context.Context, level LogLevel) error {
	if !level.valid() {
		return fmt.Errorf("%w: log level %d", ErrInvalidArgument, int(level))
	}
	return d.b.fire(ctx, native.MethodDebugSetAlertLevel, int(level))
}
