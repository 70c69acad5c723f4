package bridge

import (
	"context"
	"strconv"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/observer"
	"github.com/SebastienMelki/pushbridge/internal/payload"
)

// DeliverEnvelope receives a legacy delegate envelope on channel ch.
func (b *Bridge) DeliverEnvelope(ch payload.Channel, blob string) {
	b.native.HandleEnvelope(ch, blob)
}

// DeliverResponse receives the response for the call waiting on id.
func (b *Bridge) DeliverResponse(id correlation.ID, response string) {
	b.native.Resolve(id, response)
}

// OnBooleanResponse receives a boolean answer for a hash-style id.
func (b *Bridge) OnBooleanResponse(hash int32, response bool) {
	b.native.Resolve(correlation.FromHash(hash), strconv.FormatBool(response))
}

// OnStringResponse receives a string answer for a hash-style id.
func (b *Bridge) OnStringResponse(hash int32, response string) {
	b.native.Resolve(correlation.FromHash(hash), response)
}

// DeliverEvent receives an observer event from the native layer. It returns
// false only when a foreground will-display handler prevented the default
// display.
func (b *Bridge) DeliverEvent(event string, args []string) bool {
	b.metrics.NativeEvent(context.Background(), event)

	switch event {
	case native.EventPermissionChanged:
		granted, err := strconv.ParseBool(arg(args, 0))
		if err != nil {
			b.decodeFailed(event, err)
			return true
		}
		publish(b, b.permission, event, PermissionChangedEvent{Permission: granted})

	case native.EventNotificationWillDisplay:
		return b.deliverWillDisplay(arg(args, 0))

	case native.EventNotificationClicked:
		n, err := decodeNotification(arg(args, 0))
		if err != nil {
			b.decodeFailed(event, err)
			return true
		}
		ev := NotificationClickEvent{
			Notification: n,
			Result:       NotificationClickResult{ActionID: arg(args, 1), URL: arg(args, 2)},
		}
		b.whenInitialized(func() { publish(b, b.clicked, event, ev) })

	case native.EventUserStateChanged:
		var ev UserStateChangedEvent
		v, err := payload.Parse(arg(args, 0))
		if err == nil {
			if v.Has("current") {
				err = payload.DecodeValue(v, &ev)
			} else {
				err = payload.DecodeValue(v, &ev.Current)
			}
		}
		if err != nil {
			b.decodeFailed(event, err)
			return true
		}
		publish(b, b.userState, event, ev)

	case native.EventPushSubscriptionChanged:
		ev, err := decodePushSubscriptionChanged(args)
		if err != nil {
			b.decodeFailed(event, err)
			return true
		}
		publish(b, b.pushSub, event, ev)

	case native.EventInAppWillDisplay, native.EventInAppDidDisplay,
		native.EventInAppWillDismiss, native.EventInAppDidDismiss:
		publish(b, b.inApp, event, InAppMessageEvent{Message: decodeInAppMessage(arg(args, 0))})

	case native.EventInAppClicked:
		ev, err := decodeInAppClick(args)
		if err != nil {
			b.decodeFailed(event, err)
			return true
		}
		publish(b, b.inAppClicked, event, ev)

	default:
		b.logger.Debug("unknown native event ignored", "event", event)
	}
	return true
}

// deliverWillDisplay runs the will-display handlers on the main thread and
// blocks the native caller until they return, so a handler can prevent the
// default display.
func (b *Bridge) deliverWillDisplay(blob string) bool {
	n, err := decodeNotification(blob)
	if err != nil {
		b.decodeFailed(native.EventNotificationWillDisplay, err)
		return true
	}

	ev := &WillDisplayEvent{Notification: n, b: b}
	stream := native.EventNotificationWillDisplay
	if b.willDisplay.Count(observer.Stream(stream)) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.willDisplayTimeout())
	defer cancel()
	if err := b.main.Send(ctx, func() { b.willDisplay.Publish(observer.Stream(stream), ev) }); err != nil {
		b.logger.Warn("will-display handlers did not run, displaying",
			"notification_id", n.NotificationID, "error", err)
		return true
	}
	return !ev.Prevented()
}

func decodePushSubscriptionChanged(args []string) (PushSubscriptionChangedEvent, error) {
	var ev PushSubscriptionChangedEvent
	if len(args) >= 2 {
		if err := payload.Decode(args[0], &ev.Current); err != nil {
			return ev, err
		}
		if err := payload.Decode(args[1], &ev.Previous); err != nil {
			return ev, err
		}
		return ev, nil
	}
	err := payload.Decode(arg(args, 0), &ev)
	return ev, err
}

// decodeInAppMessage accepts either a bare message id or a message object.
func decodeInAppMessage(raw string) InAppMessage {
	if v, err := payload.Parse(raw); err == nil && v.Kind() == payload.KindMap {
		var m InAppMessage
		if payload.DecodeValue(v, &m) == nil {
			return m
		}
	}
	return InAppMessage{MessageID: raw}
}

// decodeInAppClick accepts a {"message","result"} object, or a bare result
// optionally followed by the message id.
func decodeInAppClick(args []string) (InAppMessageClickEvent, error) {
	var ev InAppMessageClickEvent
	v, err := payload.Parse(arg(args, 0))
	if err != nil {
		return ev, err
	}
	if v.Has("result") {
		err = payload.DecodeValue(v, &ev)
		return ev, err
	}
	if err := payload.DecodeValue(v, &ev.Result); err != nil {
		return ev, err
	}
	ev.Message = InAppMessage{MessageID: arg(args, 1)}
	return ev, nil
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
