package bridge

import (
	"context"
	"fmt"

	"github.com/SebastienMelki/pushbridge/internal/native"
)

// LiveActivities associates iOS Live Activities with push tokens.
type LiveActivities struct {
	b *Bridge
}

// Enter registers token for activityID. The Future reports whether the
// native SDK accepted it.
func (l *LiveActivities) Enter(ctx context.Context, activityID, token string) *Future[bool] {
	if activityID == "" {
		return failedFuture[bool](fmt.Errorf("%w: activity id is empty", ErrInvalidArgument))
	}
	return call(l.b, ctx, native.MethodLiveActivityEnter, decodeJSON[bool], activityID, token)
}

// Exit unregisters activityID.
func (l *LiveActivities) Exit(ctx context.Context, activityID string) *Future[bool] {
	if activityID == "" {
		return failedFuture[bool](fmt.Errorf("%w: activity id is empty", ErrInvalidArgument))
	}
	return call(l.b, ctx, native.MethodLiveActivityExit, decodeJSON[bool], activityID)
}
