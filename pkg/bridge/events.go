package bridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SebastienMelki/pushbridge/internal/payload"
)

// NotificationPermission is the push permission status of the device.
type NotificationPermission int

const (
	// PermissionNotDetermined means the user has not chosen yet.
	PermissionNotDetermined NotificationPermission = iota
	// PermissionDenied means the app may not post notifications.
	PermissionDenied
	// PermissionAuthorized means the app may post notifications.
	PermissionAuthorized
	// PermissionProvisional means notifications go directly to history.
	PermissionProvisional
	// PermissionEphemeral is a temporary grant used by App Clips.
	PermissionEphemeral
)

func (p NotificationPermission) String() string {
	switch p {
	case PermissionNotDetermined:
		return "not_determined"
	case PermissionDenied:
		return "denied"
	case PermissionAuthorized:
		return "authorized"
	case PermissionProvisional:
		return "provisional"
	case PermissionEphemeral:
		return "ephemeral"
	default:
		return fmt.Sprintf("permission(%d)", int(p))
	}
}

// LogLevel controls native SDK logging and alerting.
type LogLevel int

// Native log levels, from quietest to noisiest.
const (
	LogNone LogLevel = iota
	LogFatal
	LogError
	LogWarn
	LogInfo
	LogDebug
	LogVerbose
)

func (l LogLevel) valid() bool {
	return l >= LogNone && l <= LogVerbose
}

// ActionButton is a button shown on a notification.
type ActionButton struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Icon string `json:"icon"`
}

// BackgroundImageLayout is the Android custom background of a notification.
type BackgroundImageLayout struct {
	Image          string `json:"image"`
	TitleTextColor string `json:"titleTextColor"`
	BodyTextColor  string `json:"bodyTextColor"`
}

// NotificationBase holds the fields shared by a notification and the
// notifications grouped under it. Platform specific fields are zero on the
// other platform.
type NotificationBase struct {
	NotificationID string         `json:"notificationId"`
	TemplateName   string         `json:"templateName"`
	TemplateID     string         `json:"templateId"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	LaunchURL      string         `json:"launchURL"`
	Sound          string         `json:"sound"`
	CollapseID     string         `json:"collapseId"`
	AdditionalData map[string]any `json:"additionalData"`
	ActionButtons  []ActionButton `json:"actionButtons"`

	// RawPayload is the JSON payload as received from the push service.
	RawPayload string `json:"rawPayload"`

	// Android
	AndroidNotificationID int                    `json:"androidNotificationId"`
	SmallIcon             string                 `json:"smallIcon"`
	LargeIcon             string                 `json:"largeIcon"`
	BigPicture            string                 `json:"bigPicture"`
	SmallIconAccentColor  string                 `json:"smallIconAccentColor"`
	LedColor              string                 `json:"ledColor"`
	LockScreenVisibility  int                    `json:"lockScreenVisibility"`
	GroupKey              string                 `json:"groupKey"`
	GroupMessage          string                 `json:"groupMessage"`
	FromProjectNumber     string                 `json:"fromProjectNumber"`
	Priority              int                    `json:"priority"`
	BackgroundImageLayout *BackgroundImageLayout `json:"backgroundImageLayout"`

	// iOS
	Subtitle          string         `json:"subtitle"`
	ContentAvailable  bool           `json:"contentAvailable"`
	MutableContent    bool           `json:"mutableContent"`
	Category          string         `json:"category"`
	Badge             int            `json:"badge"`
	BadgeIncrement    int            `json:"badgeIncrement"`
	ThreadID          string         `json:"threadId"`
	RelevanceScore    float64        `json:"relevanceScore"`
	InterruptionLevel string         `json:"interruptionLevel"`
	Attachments       map[string]any `json:"attachments"`
}

// Notification is a received push notification.
type Notification struct {
	NotificationBase
	GroupedNotifications []NotificationBase `json:"groupedNotifications"`
}

// decodeNotification parses a notification blob. A structured rawPayload is
// kept as its JSON text.
func decodeNotification(blob string) (Notification, error) {
	var n Notification
	v, err := payload.Parse(blob)
	if err != nil {
		return n, err
	}
	if raw, err := v.Get("rawPayload"); err == nil && raw.Kind() == payload.KindMap {
		m, _ := v.Map()
		fields := make(map[string]payload.Value, len(m))
		for k, item := range m {
			fields[k] = item
		}
		fields["rawPayload"] = payload.StringValue(raw.String())
		v = payload.MapValue(fields)
	}
	if err := payload.DecodeValue(v, &n); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// PermissionChangedEvent reports a change of the push permission.
type PermissionChangedEvent struct {
	Permission bool
}

// NotificationClickResult describes what the user tapped.
type NotificationClickResult struct {
	ActionID string `json:"actionId"`
	URL      string `json:"url"`
}

// NotificationClickEvent is delivered when a notification is opened.
type NotificationClickEvent struct {
	Notification Notification
	Result       NotificationClickResult
}

// UserState identifies the current user.
type UserState struct {
	OneSignalID string `json:"onesignalId"`
	ExternalID  string `json:"externalId"`
}

// UserStateChangedEvent is delivered when the user's ids change.
type UserStateChangedEvent struct {
	Current UserState `json:"current"`
}

// PushSubscriptionState is the state of the device's push subscription.
type PushSubscriptionState struct {
	ID      string `json:"id"`
	Token   string `json:"token"`
	OptedIn bool   `json:"optedIn"`
}

// PushSubscriptionChangedEvent carries the state before and after a change.
type PushSubscriptionChangedEvent struct {
	Previous PushSubscriptionState `json:"previous"`
	Current  PushSubscriptionState `json:"current"`
}

// InAppMessage identifies an in-app message.
type InAppMessage struct {
	MessageID string `json:"messageId"`
}

// InAppMessageEvent is delivered through the in-app message lifecycle.
type InAppMessageEvent struct {
	Message InAppMessage
}

// InAppMessageClickResult describes an action taken on an in-app message.
type InAppMessageClickResult struct {
	ActionID       string `json:"actionId"`
	URL            string `json:"url"`
	ClosingMessage bool   `json:"closingMessage"`
}

// InAppMessageClickEvent is delivered when an in-app message element is
// clicked.
type InAppMessageClickEvent struct {
	Message InAppMessage            `json:"message"`
	Result  InAppMessageClickResult `json:"result"`
}

// OutcomeSession is the attribution of an outcome.
type OutcomeSession int

// Outcome attributions.
const (
	SessionDirect OutcomeSession = iota
	SessionIndirect
	SessionUnattributed
	SessionDisabled
)

func parseOutcomeSession(s string) OutcomeSession {
	switch strings.ToLower(s) {
	case "direct":
		return SessionDirect
	case "indirect":
		return SessionIndirect
	case "unattributed":
		return SessionUnattributed
	default:
		return SessionDisabled
	}
}

// OutcomeEvent is the outcome reported back by the legacy SendOutcome call.
type OutcomeEvent struct {
	Session         OutcomeSession
	NotificationIDs []string
	Name            string
	Timestamp       int64
	Weight          float64
}

// outcomeFromValue builds an OutcomeEvent from the native dictionary. The
// name travels under "id"; notification_ids is either one string or a list.
func outcomeFromValue(v payload.Value) (OutcomeEvent, error) {
	out := OutcomeEvent{Session: SessionDisabled, NotificationIDs: []string{}}
	if v.IsNull() {
		return out, nil
	}
	if _, err := v.Map(); err != nil {
		return out, err
	}

	if s, err := v.Get("session"); err == nil && !s.IsNull() {
		str, err := s.Str()
		if err != nil {
			return out, fmt.Errorf("session: %w", err)
		}
		out.Session = parseOutcomeSession(str)
	}

	if ids, err := v.Get("notification_ids"); err == nil && !ids.IsNull() {
		switch ids.Kind() {
		case payload.KindString:
			s, _ := ids.Str()
			out.NotificationIDs = []string{s}
		case payload.KindArray:
			items, _ := ids.Array()
			for _, item := range items {
				if s, err := item.Str(); err == nil {
					out.NotificationIDs = append(out.NotificationIDs, s)
				} else {
					out.NotificationIDs = append(out.NotificationIDs, item.String())
				}
			}
		}
	}

	if name, err := v.Get("id"); err == nil && !name.IsNull() {
		s, err := name.Str()
		if err != nil {
			return out, fmt.Errorf("id: %w", err)
		}
		out.Name = s
	}

	if ts, err := v.Get("timestamp"); err == nil && !ts.IsNull() {
		n, err := ts.Int64()
		if err != nil {
			return out, fmt.Errorf("timestamp: %w", err)
		}
		out.Timestamp = n
	}

	if w, err := v.Get("weight"); err == nil && !w.IsNull() {
		f, err := w.Float64()
		if err != nil {
			s, serr := w.Str()
			if serr != nil {
				return out, fmt.Errorf("weight: %w", err)
			}
			if f, err = strconv.ParseFloat(s, 64); err != nil {
				return out, fmt.Errorf("weight: %w", err)
			}
		}
		out.Weight = f
	}

	return out, nil
}
