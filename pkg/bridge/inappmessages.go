package bridge

import (
	"context"

	"github.com/SebastienMelki/pushbridge/internal/native"
)

// InAppMessages manages in-app message triggers and lifecycle events.
type InAppMessages struct {
	b *Bridge
}

// SetPaused stops or resumes showing in-app messages.
func (m *InAppMessages) SetPaused(ctx context.Context, paused bool) error {
	return m.b.fire(ctx, native.MethodInAppSetPaused, paused)
}

// Paused reports whether in-app messages are paused.
func (m *InAppMessages) Paused(ctx context.Context) *Future[bool] {
	return call(m.b, ctx, native.MethodInAppGetPaused, decodeJSON[bool])
}

func (m *InAppMessages) AddTrigger(ctx context.Context, key, value string) error {
	return m.b.fire(ctx, native.MethodInAppAddTrigger, key, value)
}

func (m *InAppMessages) AddTriggers(ctx context.Context, triggers map[string]string) error {
	return m.b.fire(ctx, native.MethodInAppAddTriggers, triggers)
}

func (m *InAppMessages) RemoveTrigger(ctx context.Context, key string) error {
	return m.b.fire(ctx, native.MethodInAppRemoveTrigger, key)
}

func (m *InAppMessages) RemoveTriggers(ctx context.Context, keys []string) error {
	return m.b.fire(ctx, native.MethodInAppRemoveTriggers, keys)
}

func (m *InAppMessages) ClearTriggers(ctx context.Context) error {
	return m.b.fire(ctx, native.MethodInAppClearTriggers)
}

func (m *InAppMessages) OnWillDisplay(fn func(InAppMessageEvent)) (*Subscription, error) {
	return subscribe(m.b, m.b.inApp, native.EventInAppWillDisplay, fn)
}

func (m *InAppMessages) OnDidDisplay(fn func(InAppMessageEvent)) (*Subscription, error) {
	return subscribe(m.b, m.b.inApp, native.EventInAppDidDisplay, fn)
}

func (m *InAppMessages) OnWillDismiss(fn func(InAppMessageEvent)) (*Subscription, error) {
	return subscribe(m.b, m.b.inApp, native.EventInAppWillDismiss, fn)
}

func (m *InAppMessages) OnDidDismiss(fn func(InAppMessageEvent)) (*Subscription, error) {
	return subscribe(m.b, m.b.inApp, native.EventInAppDidDismiss, fn)
}

// OnClicked subscribes fn to clicks on in-app message elements.
func (m *InAppMessages) OnClicked(fn func(InAppMessageClickEvent)) (*Subscription, error) {
	return subscribe(m.b, m.b.inAppClicked, native.EventInAppClicked, fn)
}
