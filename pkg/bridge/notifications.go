package bridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/SebastienMelki/pushbridge/internal/native"
)

// Notifications manages push permission and received notifications.
type Notifications struct {
	b *Bridge
}

// Permission reports whether the app may display notifications.
func (n *Notifications) Permission(ctx context.Context) *Future[bool] {
	return call(n.b, ctx, native.MethodNotificationsPermission, decodeJSON[bool])
}

// PermissionNative reports the detailed platform permission status.
func (n *Notifications) PermissionNative(ctx context.Context) *Future[NotificationPermission] {
	return call(n.b, ctx, native.MethodNotificationsPermissionNative, decodeJSON[NotificationPermission])
}

// CanRequestPermission reports whether a permission prompt can be shown.
func (n *Notifications) CanRequestPermission(ctx context.Context) *Future[bool] {
	return call(n.b, ctx, native.MethodNotificationsCanRequest, decodeJSON[bool])
}

// RequestPermission prompts for push permission. With fallbackToSettings the
// user is sent to the settings app when the prompt cannot be shown. The
// Future completes with the resulting permission.
func (n *Notifications) RequestPermission(ctx context.Context, fallbackToSettings bool) *Future[bool] {
	return call(n.b, ctx, native.MethodNotificationsRequest, decodeJSON[bool], fallbackToSettings)
}

// ClearAll removes every notification shown by the app.
func (n *Notifications) ClearAll(ctx context.Context) error {
	return n.b.fire(ctx, native.MethodNotificationsClearAll)
}

// RemoveNotification removes one notification by its Android id.
func (n *Notifications) RemoveNotification(ctx context.Context, id int) error {
	return n.b.fire(ctx, native.MethodNotificationsRemove, id)
}

// RemoveGroupedNotifications removes every notification of group.
func (n *Notifications) RemoveGroupedNotifications(ctx context.Context, group string) error {
	if group == "" {
		return fmt.Errorf("%w: group is empty", ErrInvalidArgument)
	}
	return n.b.fire(ctx, native.MethodNotificationsRemoveGroup, group)
}

// OnPermissionChanged subscribes fn to permission changes.
func (n *Notifications) OnPermissionChanged(fn func(PermissionChangedEvent)) (*Subscription, error) {
	return subscribe(n.b, n.b.permission, native.EventPermissionChanged, fn)
}

// OnForegroundWillDisplay subscribes fn to notifications about to be shown
// while the app is in the foreground. The native thread waits for the
// handlers, so fn may call PreventDefault.
func (n *Notifications) OnForegroundWillDisplay(fn func(*WillDisplayEvent)) (*Subscription, error) {
	return subscribe(n.b, n.b.willDisplay, native.EventNotificationWillDisplay, fn)
}

// OnClicked subscribes fn to notification opens. Opens received before
// Initialize are delivered after it.
func (n *Notifications) OnClicked(fn func(NotificationClickEvent)) (*Subscription, error) {
	return subscribe(n.b, n.b.clicked, native.EventNotificationClicked, fn)
}

// WillDisplayEvent is delivered before a foreground notification is shown.
type WillDisplayEvent struct {
	Notification Notification

	b         *Bridge
	prevented atomic.Bool
}

// PreventDefault stops the notification from being displayed now. It can
// still be shown later with Display.
func (e *WillDisplayEvent) PreventDefault() {
	if e.prevented.Swap(true) {
		return
	}
	if err := e.b.fire(context.Background(), native.MethodNotificationsPrevent, e.Notification.NotificationID); err != nil {
		e.b.logger.Warn("prevent default not delivered",
			"notification_id", e.Notification.NotificationID, "error", err)
	}
}

// Prevented reports whether PreventDefault was called.
func (e *WillDisplayEvent) Prevented() bool {
	return e.prevented.Load()
}

// Display shows a notification whose display was prevented.
func (e *WillDisplayEvent) Display(ctx context.Context) error {
	return e.b.fire(ctx, native.MethodNotificationsDisplay, e.Notification.NotificationID)
}
