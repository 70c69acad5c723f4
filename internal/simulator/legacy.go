package simulator

import (
	"strings"
	"unicode"

	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/payload"
	"github.com/SebastienMelki/pushbridge/internal/storage"
)

// reply answers a delegate call with an envelope. Pair calls go out on the
// success or failure entry point, single-id calls on the untyped one.
func (n *Native) reply(c native.Call, ok bool, response any) error {
	resp, isString := response.(string)
	if !isString {
		resp = encode(response)
	}

	env := payload.Envelope{ID: c.ID, Pair: c.Pair, Response: resp}
	ch := payload.ChannelAuto
	switch {
	case c.Pair != nil && ok:
		ch = payload.ChannelSuccess
	case c.Pair != nil:
		ch = payload.ChannelFailure
	case c.ID == "":
		return nil
	}

	if r := n.recv(); r != nil {
		r.DeliverEnvelope(ch, payload.EncodeEnvelope(env))
	}
	return nil
}

func failure(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func (n *Native) legacySetEmail(c native.Call, a args) error {
	email, err := a.str(0)
	if err != nil {
		return err
	}
	if !strings.Contains(email, "@") {
		return n.reply(c, false, failure("invalid email address"))
	}
	if err := n.db.AddSubscription(storage.KindEmail, email); err != nil {
		return n.reply(c, false, failure(err.Error()))
	}
	return n.reply(c, true, "")
}

func (n *Native) legacyLogoutEmail(c native.Call, _ args) error {
	emails, err := n.db.Subscriptions(storage.KindEmail)
	if err != nil {
		return n.reply(c, false, failure(err.Error()))
	}
	if len(emails) == 0 {
		return n.reply(c, false, failure("no email set"))
	}
	for _, e := range emails {
		if _, err := n.db.RemoveSubscription(storage.KindEmail, e); err != nil {
			return n.reply(c, false, failure(err.Error()))
		}
	}
	return n.reply(c, true, "")
}

func validNumber(number string) bool {
	digits := strings.TrimPrefix(number, "+")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (n *Native) legacySetSMSNumber(c native.Call, a args) error {
	number, err := a.str(0)
	if err != nil {
		return err
	}
	if !validNumber(number) {
		return n.reply(c, false, failure("invalid sms number"))
	}
	if err := n.db.AddSubscription(storage.KindSMS, number); err != nil {
		return n.reply(c, false, failure(err.Error()))
	}
	return n.reply(c, true, map[string]any{"sms_number": number, "success": true})
}

func (n *Native) legacyPostNotification(c native.Call, a args) error {
	options, err := a.at(0)
	if err != nil {
		return err
	}
	if options.Kind() != payload.KindMap || !options.Has("contents") {
		return n.reply(c, false, failure("notification contents are required"))
	}
	return n.reply(c, true, map[string]any{"id": newID(), "recipients": 1})
}

func (n *Native) legacyGetTags(c native.Call, _ args) error {
	tags, err := n.db.Tags()
	if err != nil {
		return err
	}
	return n.reply(c, true, tags)
}

func (n *Native) legacySetExternalUserID(c native.Call, a args) error {
	externalID, err := a.str(0)
	if err != nil {
		return err
	}
	n.switchUser(externalID)

	results := map[string]any{"push": map[string]any{"success": true}}
	emails, err := n.db.Subscriptions(storage.KindEmail)
	if err != nil {
		return err
	}
	if len(emails) > 0 {
		results["email"] = map[string]any{"success": true}
	}
	return n.reply(c, true, results)
}

func (n *Native) legacyIDsAvailable(c native.Call, _ args) error {
	n.mu.Lock()
	sub := n.state.subscription
	n.mu.Unlock()
	return n.reply(c, true, map[string]any{"userId": sub.ID, "pushToken": sub.Token})
}

// legacyOutcome records an outcome and answers with the outcome event. A
// repeated unique outcome answers null.
func (n *Native) legacyOutcome(unique, withValue bool) func(native.Call, args) error {
	return func(c native.Call, a args) error {
		o, stored, err := n.recordOutcome(a, unique, withValue)
		if err != nil {
			return err
		}
		if !stored {
			return n.reply(c, true, "null")
		}

		n.mu.Lock()
		opened := n.state.opened
		n.mu.Unlock()

		ev := map[string]any{
			"id":               o.Name,
			"session":          "unattributed",
			"notification_ids": []string{},
			"timestamp":        o.CreatedAt.Unix(),
			"weight":           o.Value,
		}
		if opened != "" {
			ev["session"] = "direct"
			ev["notification_ids"] = []string{opened}
		}
		return n.reply(c, true, ev)
	}
}
