package bridge

import (
	"context"
	"fmt"

	"github.com/SebastienMelki/pushbridge/internal/native"
)

// User manages the current user's tags, aliases and subscriptions.
type User struct {
	b *Bridge

	PushSubscription *PushSubscription
}

// SetLanguage sets the user's language as an ISO 639-1 code.
func (u *User) SetLanguage(ctx context.Context, language string) error {
	return u.b.fire(ctx, native.MethodUserSetLanguage, language)
}

// AddTag sets one tag.
func (u *User) AddTag(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: tag key is empty", ErrInvalidArgument)
	}
	return u.b.fire(ctx, native.MethodUserAddTag, key, value)
}

// AddTags sets several tags at once.
func (u *User) AddTags(ctx context.Context, tags map[string]string) error {
	return u.b.fire(ctx, native.MethodUserAddTags, tags)
}

// RemoveTag deletes one tag.
func (u *User) RemoveTag(ctx context.Context, key string) error {
	return u.b.fire(ctx, native.MethodUserRemoveTag, key)
}

// RemoveTags deletes several tags.
func (u *User) RemoveTags(ctx context.Context, keys []string) error {
	return u.b.fire(ctx, native.MethodUserRemoveTags, keys)
}

// GetTags returns the user's tags.
func (u *User) GetTags(ctx context.Context) *Future[map[string]string] {
	return call(u.b, ctx, native.MethodUserGetTags, decodeStringMap)
}

// AddAlias sets an alias label to id.
func (u *User) AddAlias(ctx context.Context, label, id string) error {
	if label == "" {
		return fmt.Errorf("%w: alias label is empty", ErrInvalidArgument)
	}
	return u.b.fire(ctx, native.MethodUserAddAlias, label, id)
}

// AddAliases sets several aliases at once.
func (u *User) AddAliases(ctx context.Context, aliases map[string]string) error {
	return u.b.fire(ctx, native.MethodUserAddAliases, aliases)
}

// RemoveAlias deletes one alias.
func (u *User) RemoveAlias(ctx context.Context, label string) error {
	return u.b.fire(ctx, native.MethodUserRemoveAlias, label)
}

// RemoveAliases deletes several aliases.
func (u *User) RemoveAliases(ctx context.Context, labels []string) error {
	return u.b.fire(ctx, native.MethodUserRemoveAliases, labels)
}

// AddEmail adds an email subscription.
func (u *User) AddEmail(ctx context.Context, email string) error {
	return u.b.fire(ctx, native.MethodUserAddEmail, email)
}

// RemoveEmail removes an email subscription.
func (u *User) RemoveEmail(ctx context.Context, email string) error {
	return u.b.fire(ctx, native.MethodUserRemoveEmail, email)
}

// AddSms adds an SMS subscription.
func (u *User) AddSms(ctx context.Context, number string) error {
	return u.b.fire(ctx, native.MethodUserAddSms, number)
}

// RemoveSms removes an SMS subscription.
func (u *User) RemoveSms(ctx context.Context, number string) error {
	return u.b.fire(ctx, native.MethodUserRemoveSms, number)
}

// OneSignalID returns the user's OneSignal id, empty until it is known.
func (u *User) OneSignalID(ctx context.Context) *Future[string] {
	return call(u.b, ctx, native.MethodUserGetOneSignalID, decodeString)
}

// ExternalID returns the external id set by Login.
func (u *User) ExternalID(ctx context.Context) *Future[string] {
	return call(u.b, ctx, native.MethodUserGetExternalID, decodeString)
}

// OnStateChanged subscribes fn to changes of the user's ids.
func (u *User) OnStateChanged(fn func(UserStateChangedEvent)) (*Subscription, error) {
	return subscribe(u.b, u.b.userState, native.EventUserStateChanged, fn)
}

// PushSubscription manages the device's push subscription.
type PushSubscription struct {
	b *Bridge
}

// ID returns the subscription id.
func (p *PushSubscription) ID(ctx context.Context) *Future[string] {
	return call(p.b, ctx, native.MethodPushSubscriptionID, decodeString)
}

// Token returns the platform push token.
func (p *PushSubscription) Token(ctx context.Context) *Future[string] {
	return call(p.b, ctx, native.MethodPushSubscriptionToken, decodeString)
}

// OptedIn reports whether the subscription receives push.
func (p *PushSubscription) OptedIn(ctx context.Context) *Future[bool] {
	return call(p.b, ctx, native.MethodPushSubscriptionOptedIn, decodeJSON[bool])
}

// OptIn enables push on this subscription.
func (p *PushSubscription) OptIn(ctx context.Context) error {
	return p.b.fire(ctx, native.MethodPushSubscriptionOptIn)
}

// OptOut disables push on this subscription.
func (p *PushSubscription) OptOut(ctx context.Context) error {
	return p.b.fire(ctx, native.MethodPushSubscriptionOptOut)
}

// OnChanged subscribes fn to subscription changes.
func (p *PushSubscription) OnChanged(fn func(PushSubscriptionChangedEvent)) (*Subscription, error) {
	return subscribe(p.b, p.b.pushSub, native.EventPushSubscriptionChanged, fn)
}
