package simulator

import (
	"fmt"
	"strconv"

	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/payload"
	"github.com/SebastienMelki/pushbridge/internal/storage"
)

// Native permission statuses, matching the bridge's NotificationPermission.
const (
	permissionNotDetermined = 0
	permissionDenied        = 1
	permissionAuthorized    = 2
)

func (n *Native) buildHandlers() map[string]handler {
	table := map[string]func(native.Call, args) error{
		native.MethodInitialize:          n.initialize,
		native.MethodLogin:               n.login,
		native.MethodLoginWithJWT:        n.login,
		native.MethodLogout:              n.logout,
		native.MethodSetConsentRequired:  n.setFlag(func(s *state, v bool) { s.consentRequired = v }),
		native.MethodSetConsentGiven:     n.setFlag(func(s *state, v bool) { s.consentGiven = v }),
		native.MethodSetLaunchURLsInApp:  n.setFlag(func(s *state, v bool) { s.launchInApp = v }),
		native.MethodGetNativeSDKVersion: func(c native.Call, _ args) error { return n.respond(c, n.cfg.Version) },
		native.MethodAddObserver:         n.observe(true),
		native.MethodRemoveObserver:      n.observe(false),

		native.MethodNotificationsPermission:       n.getPermission,
		native.MethodNotificationsPermissionNative: n.getPermissionNative,
		native.MethodNotificationsCanRequest:       n.canRequestPermission,
		native.MethodNotificationsRequest:          n.requestPermission,
		native.MethodNotificationsClearAll:         n.clearAll,
		native.MethodNotificationsRemove:           n.removeNotification,
		native.MethodNotificationsRemoveGroup:      n.removeGroup,
		native.MethodNotificationsPrevent:          n.preventDefault,
		native.MethodNotificationsDisplay:          n.display,

		native.MethodUserSetLanguage:    n.setLanguage,
		native.MethodUserAddTag:         n.addPair(n.db.SetTags),
		native.MethodUserAddTags:        n.addMap(n.db.SetTags),
		native.MethodUserRemoveTag:      n.removeKey(n.db.RemoveTags),
		native.MethodUserRemoveTags:     n.removeKeys(n.db.RemoveTags),
		native.MethodUserGetTags:        n.getTags,
		native.MethodUserAddAlias:       n.addPair(n.db.SetAliases),
		native.MethodUserAddAliases:     n.addMap(n.db.SetAliases),
		native.MethodUserRemoveAlias:    n.removeKey(n.db.RemoveAliases),
		native.MethodUserRemoveAliases:  n.removeKeys(n.db.RemoveAliases),
		native.MethodUserAddEmail:       n.addSubscription(storage.KindEmail),
		native.MethodUserRemoveEmail:    n.removeSubscription(storage.KindEmail),
		native.MethodUserAddSms:         n.addSubscription(storage.KindSMS),
		native.MethodUserRemoveSms:      n.removeSubscription(storage.KindSMS),
		native.MethodUserGetOneSignalID: n.getter(func(s *state) any { return s.onesignalID }),
		native.MethodUserGetExternalID:  n.getter(func(s *state) any { return s.externalID }),

		native.MethodPushSubscriptionID:         n.getter(func(s *state) any { return s.subscription.ID }),
		native.MethodPushSubscriptionToken:      n.getter(func(s *state) any { return s.subscription.Token }),
		native.MethodPushSubscriptionOptedIn:    n.getter(func(s *state) any { return s.subscription.OptedIn }),
		native.MethodPushSubscriptionOptIn:      n.setOptedIn(true),
		native.MethodPushSubscriptionOptOut:     n.setOptedIn(false),
		native.MethodInAppSetPaused:             n.setFlag(func(s *state, v bool) { s.paused = v }),
		native.MethodInAppGetPaused:             n.getter(func(s *state) any { return s.paused }),
		native.MethodInAppAddTrigger:            n.addPair(n.db.SetTriggers),
		native.MethodInAppAddTriggers:           n.addMap(n.db.SetTriggers),
		native.MethodInAppRemoveTrigger:         n.removeKey(n.db.RemoveTriggers),
		native.MethodInAppRemoveTriggers:        n.removeKeys(n.db.RemoveTriggers),
		native.MethodInAppClearTriggers:         func(native.Call, args) error { return n.db.ClearTriggers() },
		native.MethodLiveActivityEnter:          n.enterActivity,
		native.MethodLiveActivityExit:           n.exitActivity,
		native.MethodSessionAddOutcome:          n.sessionOutcome(false, false),
		native.MethodSessionAddUniqueOutcome:    n.sessionOutcome(true, false),
		native.MethodSessionAddOutcomeWithValue: n.sessionOutcome(false, true),
		native.MethodLocationSetShared:          n.setFlag(func(s *state, v bool) { s.locationShared = v }),
		native.MethodLocationGetShared:          n.getter(func(s *state) any { return s.locationShared }),
		native.MethodLocationRequestPermission:  func(native.Call, args) error { return nil },
		native.MethodDebugSetLogLevel:           n.setLevel(func(s *state, v int) { s.logLevel = v }),
		native.MethodDebugSetAlertLevel:         n.setLevel(func(s *state, v int) { s.alertLevel = v }),

		native.MethodLegacySetEmail:          n.legacySetEmail,
		native.MethodLegacyLogoutEmail:       n.legacyLogoutEmail,
		native.MethodLegacySetSMSNumber:      n.legacySetSMSNumber,
		native.MethodLegacyPostNotification:  n.legacyPostNotification,
		native.MethodLegacyGetTags:           n.legacyGetTags,
		native.MethodLegacySetExternalUserID: n.legacySetExternalUserID,
		native.MethodLegacyIDsAvailable:      n.legacyIDsAvailable,
		native.MethodLegacySendOutcome:       n.legacyOutcome(false, false),
		native.MethodLegacySendUniqueOutcome: n.legacyOutcome(true, false),
		native.MethodLegacySendOutcomeValue:  n.legacyOutcome(false, true),
	}

	handlers := make(map[string]handler, len(table))
	for method, fn := range table {
		handlers[method] = func(c native.Call) error {
			a, err := callArgs(c)
			if err != nil {
				return err
			}
			return fn(c, a)
		}
	}
	return handlers
}

// respond answers a single-id call with x. Strings are sent raw, everything
// else as JSON.
func (n *Native) respond(c native.Call, x any) error {
	if c.ID == "" {
		return nil
	}
	resp, ok := x.(string)
	if !ok {
		v, err := payload.FromNative(x)
		if err != nil {
			return fmt.Errorf("encode %s response: %w", c.Method, err)
		}
		resp = v.String()
	}
	if r := n.recv(); r != nil {
		r.DeliverResponse(c.ID, resp)
	}
	return nil
}

// emit delivers an event to the receiver if the bridge observes it.
func (n *Native) emit(event string, args ...string) bool {
	n.mu.Lock()
	observed := n.state.observers[event]
	n.mu.Unlock()
	if !observed {
		return true
	}
	return n.deliver(event, args...)
}

func (n *Native) deliver(event string, args ...string) bool {
	r := n.recv()
	if r == nil {
		return true
	}
	return r.DeliverEvent(event, args)
}

func encode(x any) string {
	v, err := payload.FromNative(x)
	if err != nil {
		return "null"
	}
	return v.String()
}

func (n *Native) initialize(_ native.Call, a args) error {
	appID, err := a.str(0)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.state.appID = appID
	n.mu.Unlock()
	n.persist(keyAppID, appID)
	n.logger.Info("native SDK initialized", "app_id", appID, "version", n.cfg.Version)
	return nil
}

func (n *Native) login(_ native.Call, a args) error {
	externalID, err := a.str(0)
	if err != nil {
		return err
	}
	n.switchUser(externalID)
	return nil
}

func (n *Native) logout(native.Call, args) error {
	n.switchUser("")
	return nil
}

// switchUser moves the device to another user. A new user gets a fresh
// onesignal id; logging in as the current user is a no-op.
func (n *Native) switchUser(externalID string) {
	n.mu.Lock()
	if externalID != "" && externalID == n.state.externalID {
		n.mu.Unlock()
		return
	}
	n.state.externalID = externalID
	n.state.onesignalID = newID()
	current := map[string]any{
		"onesignalId": n.state.onesignalID,
		"externalId":  n.state.externalID,
	}
	n.mu.Unlock()

	n.persist(keyExternalID, externalID)
	n.persist(keyOneSignalID, current["onesignalId"].(string))
	n.emit(native.EventUserStateChanged, encode(map[string]any{"current": current}))
}

func (n *Native) setFlag(set func(*state, bool)) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		v, err := a.boolean(0)
		if err != nil {
			return err
		}
		n.mu.Lock()
		set(&n.state, v)
		n.mu.Unlock()
		return nil
	}
}

func (n *Native) setLevel(set func(*state, int)) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		v, err := a.integer(0)
		if err != nil {
			return err
		}
		n.mu.Lock()
		set(&n.state, int(v))
		n.mu.Unlock()
		return nil
	}
}

func (n *Native) getter(get func(*state) any) func(native.Call, args) error {
	return func(c native.Call, _ args) error {
		n.mu.Lock()
		v := get(&n.state)
		n.mu.Unlock()
		return n.respond(c, v)
	}
}

func (n *Native) observe(attach bool) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		stream, err := a.str(0)
		if err != nil {
			return err
		}
		n.mu.Lock()
		if attach {
			n.state.observers[stream] = true
		} else {
			delete(n.state.observers, stream)
		}
		n.mu.Unlock()
		return nil
	}
}

func (n *Native) getPermission(c native.Call, _ args) error {
	n.mu.Lock()
	granted := n.state.permission
	n.mu.Unlock()
	return n.respond(c, granted)
}

func (n *Native) getPermissionNative(c native.Call, _ args) error {
	n.mu.Lock()
	status := permissionNotDetermined
	switch {
	case n.state.permission:
		status = permissionAuthorized
	case n.state.permissionAsked:
		status = permissionDenied
	}
	n.mu.Unlock()
	return n.respond(c, status)
}

func (n *Native) canRequestPermission(c native.Call, _ args) error {
	n.mu.Lock()
	asked := n.state.permissionAsked
	n.mu.Unlock()
	return n.respond(c, !asked)
}

// requestPermission resolves the prompt immediately with the configured
// answer. A grant also opts the push subscription in.
func (n *Native) requestPermission(c native.Call, _ args) error {
	granted := !n.cfg.DenyPermission

	n.mu.Lock()
	changed := n.state.permission != granted
	n.state.permission = granted
	n.state.permissionAsked = true
	n.mu.Unlock()
	n.persist(keyPermission, strconv.FormatBool(granted))

	if changed {
		n.emit(native.EventPermissionChanged, strconv.FormatBool(granted))
	}
	if granted {
		n.updateOptedIn(true)
	}
	return n.respond(c, granted)
}

func (n *Native) setOptedIn(optedIn bool) func(native.Call, args) error {
	return func(native.Call, args) error {
		n.updateOptedIn(optedIn)
		return nil
	}
}

func (n *Native) updateOptedIn(optedIn bool) {
	n.mu.Lock()
	previous := n.state.subscription
	n.state.subscription.OptedIn = optedIn
	current := n.state.subscription
	n.mu.Unlock()
	if previous == current {
		return
	}

	n.persist(keyOptedIn, strconv.FormatBool(optedIn))
	n.emit(native.EventPushSubscriptionChanged, encode(map[string]any{
		"previous": previous.native(),
		"current":  current.native(),
	}))
}

func (n *Native) clearAll(native.Call, args) error {
	n.mu.Lock()
	n.state.removed = append(n.state.removed, n.state.displayed...)
	n.state.displayed = nil
	n.mu.Unlock()
	return nil
}

func (n *Native) removeNotification(_ native.Call, a args) error {
	id, err := a.integer(0)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.state.removed = append(n.state.removed, strconv.FormatInt(id, 10))
	n.mu.Unlock()
	return nil
}

func (n *Native) removeGroup(_ native.Call, a args) error {
	group, err := a.str(0)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.state.removed = append(n.state.removed, "group:"+group)
	n.mu.Unlock()
	return nil
}

func (n *Native) preventDefault(_ native.Call, a args) error {
	id, err := a.str(0)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.state.prevented[id] = true
	n.mu.Unlock()
	return nil
}

func (n *Native) display(_ native.Call, a args) error {
	id, err := a.str(0)
	if err != nil {
		return err
	}
	n.mu.Lock()
	delete(n.state.prevented, id)
	n.state.displayed = append(n.state.displayed, id)
	n.mu.Unlock()
	return nil
}

func (n *Native) setLanguage(_ native.Call, a args) error {
	lang, err := a.str(0)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.state.language = lang
	n.mu.Unlock()
	n.persist(keyLanguage, lang)
	return nil
}

func (n *Native) addPair(put func(map[string]string) error) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		key, err := a.str(0)
		if err != nil {
			return err
		}
		value, err := a.scalar(1)
		if err != nil {
			return err
		}
		return put(map[string]string{key: value})
	}
}

func (n *Native) addMap(put func(map[string]string) error) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		entries, err := a.stringMap(0)
		if err != nil {
			return err
		}
		return put(entries)
	}
}

func (n *Native) removeKey(del func([]string) error) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		key, err := a.str(0)
		if err != nil {
			return err
		}
		return del([]string{key})
	}
}

func (n *Native) removeKeys(del func([]string) error) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		keys, err := a.strings(0)
		if err != nil {
			return err
		}
		return del(keys)
	}
}

func (n *Native) getTags(c native.Call, _ args) error {
	tags, err := n.db.Tags()
	if err != nil {
		return err
	}
	return n.respond(c, tags)
}

func (n *Native) addSubscription(kind string) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		address, err := a.str(0)
		if err != nil {
			return err
		}
		return n.db.AddSubscription(kind, address)
	}
}

func (n *Native) removeSubscription(kind string) func(native.Call, args) error {
	return func(_ native.Call, a args) error {
		address, err := a.str(0)
		if err != nil {
			return err
		}
		_, err = n.db.RemoveSubscription(kind, address)
		return err
	}
}

func (n *Native) enterActivity(c native.Call, a args) error {
	activityID, err := a.str(0)
	if err != nil {
		return err
	}
	token, err := a.str(1)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.state.activities[activityID] = token
	n.mu.Unlock()
	return n.respond(c, true)
}

func (n *Native) exitActivity(c native.Call, a args) error {
	activityID, err := a.str(0)
	if err != nil {
		return err
	}
	n.mu.Lock()
	_, ok := n.state.activities[activityID]
	delete(n.state.activities, activityID)
	n.mu.Unlock()
	return n.respond(c, ok)
}

func (n *Native) sessionOutcome(unique, withValue bool) func(native.Call, args) error {
	return func(c native.Call, a args) error {
		_, _, err := n.recordOutcome(a, unique, withValue)
		return err
	}
}

// recordOutcome stores the outcome named by the first argument. It reports
// whether it was stored; a repeated unique outcome is not.
func (n *Native) recordOutcome(a args, unique, withValue bool) (storage.Outcome, bool, error) {
	name, err := a.str(0)
	if err != nil {
		return storage.Outcome{}, false, err
	}
	o := storage.Outcome{Name: name, Unique: unique, CreatedAt: n.now()}
	if withValue {
		if o.Value, err = a.float(1); err != nil {
			return o, false, err
		}
	}
	stored, err := n.db.RecordOutcome(o)
	return o, stored, err
}
