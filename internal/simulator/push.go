package simulator

import (
	"errors"
	"fmt"

	"github.com/SebastienMelki/pushbridge/internal/native"
)

// ErrUnknownNotification is returned when opening a notification that was
// never received.
var ErrUnknownNotification = errors.New("unknown notification")

// Notification is a push notification arriving at the device.
type Notification struct {
	ID             string
	Title          string
	Body           string
	LaunchURL      string
	AdditionalData map[string]any
}

func (p Notification) native() map[string]any {
	m := map[string]any{
		"notificationId": p.ID,
		"title":          p.Title,
		"body":           p.Body,
	}
	if p.LaunchURL != "" {
		m["launchURL"] = p.LaunchURL
	}
	if p.AdditionalData != nil {
		m["additionalData"] = p.AdditionalData
	}
	raw := make(map[string]any, len(m))
	for k, v := range m {
		raw[k] = v
	}
	m["rawPayload"] = encode(raw)
	return m
}

// ReceiveNotification simulates a notification arriving while the app is in
// the foreground. It blocks until will-display handlers have run and reports
// whether the notification was displayed.
func (n *Native) ReceiveNotification(p Notification) bool {
	if p.ID == "" {
		p.ID = newID()
	}
	blob := encode(p.native())

	n.mu.Lock()
	n.state.received[p.ID] = blob
	n.mu.Unlock()

	if !n.emit(native.EventNotificationWillDisplay, blob) {
		n.mu.Lock()
		n.state.prevented[p.ID] = true
		n.mu.Unlock()
		n.logger.Debug("notification display prevented", "notification_id", p.ID)
		return false
	}

	n.mu.Lock()
	n.state.displayed = append(n.state.displayed, p.ID)
	n.mu.Unlock()
	return true
}

// Open simulates the user tapping a received notification, or one of its
// action buttons when actionID is set. Later outcomes are attributed to it.
// Click events are delivered whether or not an observer is attached.
func (n *Native) Open(notificationID, actionID, url string) error {
	n.mu.Lock()
	blob, ok := n.state.received[notificationID]
	if ok {
		n.state.opened = notificationID
	}
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNotification, notificationID)
	}

	n.deliver(native.EventNotificationClicked, blob, actionID, url)
	return nil
}

// InAppMessage is an in-app message shown by the simulator.
type InAppMessage struct {
	ID string
}

// ShowInAppMessage displays an in-app message unless messages are paused.
// It reports whether the message was shown.
func (n *Native) ShowInAppMessage(m InAppMessage) bool {
	n.mu.Lock()
	paused := n.state.paused
	n.mu.Unlock()
	if paused {
		return false
	}

	msg := encode(map[string]any{"messageId": m.ID})
	n.emit(native.EventInAppWillDisplay, msg)
	n.emit(native.EventInAppDidDisplay, msg)
	return true
}

// ClickInAppMessage simulates a click inside an in-app message. A closing
// click also dismisses the message.
func (n *Native) ClickInAppMessage(m InAppMessage, actionID, url string, closing bool) {
	msg := map[string]any{"messageId": m.ID}
	n.emit(native.EventInAppClicked, encode(map[string]any{
		"message": msg,
		"result": map[string]any{
			"actionId":       actionID,
			"url":            url,
			"closingMessage": closing,
		},
	}))
	if closing {
		n.emit(native.EventInAppWillDismiss, encode(msg))
		n.emit(native.EventInAppDidDismiss, encode(msg))
	}
}
