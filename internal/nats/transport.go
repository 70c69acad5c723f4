package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/observability"
)

// Transport is the bridge side of the NATS link. Each call is a request on
// <prefix>.calls.<method>, acknowledged by the host once the native layer
// has accepted it; callbacks arrive on <prefix>.callbacks and interceptable
// events as requests on <prefix>.intercept.
type Transport struct {
	conn     *nats.Conn
	subjects SubjectConfig
	backoff  *Backoff
	metrics  *observability.Metrics
	logger   *slog.Logger
	throttle *observability.LogThrottle

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewTransport creates a bridge-side transport over conn.
func NewTransport(conn *nats.Conn, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		conn:     conn,
		subjects: cfg.Subjects.withDefaults(),
		backoff:  NewBackoff(cfg.Retry),
		metrics:  metrics,
		logger:   logger.With("component", "nats-transport"),
		throttle: observability.NewLogThrottle(time.Second, 5),
	}
}

// Call sends c to the native host and waits for it to be accepted. Calls are
// retried with backoff while no host is subscribed.
func (t *Transport) Call(ctx context.Context, c native.Call) error {
	data, err := encodeCall(c)
	if err != nil {
		return fmt.Errorf("encode call %s: %w", c.Method, err)
	}
	subject := t.subjects.call(c.Method)

	for attempt := 0; ; attempt++ {
		err = t.request(ctx, subject, data)
		if err == nil || !retryable(err) {
			return err
		}

		delay := t.backoff.NextDelay(attempt)
		if delay == 0 {
			return err
		}
		t.logger.Debug("native host unavailable, retrying",
			"method", c.Method, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (t *Transport) request(ctx context.Context, subject string, data []byte) error {
	if !t.conn.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, t.subjects.CallTimeout)
	defer cancel()

	t.metrics.NATSPublished(ctx, subject)
	msg, err := t.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("call %s: %w", subject, err)
	}
	return decodeAck(msg.Data)
}

func retryable(err error) bool {
	return errors.Is(err, nats.ErrNoResponders) || errors.Is(err, ErrNotConnected)
}

// Bind subscribes r to the callback subjects. A later Bind replaces the
// earlier receiver.
func (t *Transport) Bind(r native.Receiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unsubscribeLocked()

	callbacks, err := t.conn.Subscribe(t.subjects.callbacks(), func(msg *nats.Msg) {
		t.metrics.NATSReceived(context.Background(), msg.Subject)
		cb, err := decodeCallback(msg.Data)
		if err != nil {
			t.dropped(err)
			return
		}
		switch cb.Kind {
		case kindEnvelope:
			r.DeliverEnvelope(cb.Channel, cb.Blob)
		case kindResponse:
			r.DeliverResponse(cb.ID, cb.Response)
		case kindEvent:
			r.DeliverEvent(cb.Event, cb.Args)
		}
	})
	if err != nil {
		t.logger.Error("failed to subscribe to callbacks", "subject", t.subjects.callbacks(), "error", err)
		return
	}

	intercept, err := t.conn.Subscribe(t.subjects.intercept(), func(msg *nats.Msg) {
		t.metrics.NATSReceived(context.Background(), msg.Subject)
		cb, err := decodeCallback(msg.Data)
		display := true
		if err == nil && cb.Kind != kindEvent {
			err = fmt.Errorf("%w: intercept of kind %q", ErrMalformedMessage, cb.Kind)
		}
		if err != nil {
			t.dropped(err)
		} else {
			display = r.DeliverEvent(cb.Event, cb.Args)
		}
		if err := msg.Respond(encodeDecision(display)); err != nil {
			t.logger.Warn("failed to answer intercept request", "event", cb.Event, "error", err)
		}
	})
	if err != nil {
		callbacks.Unsubscribe()
		t.logger.Error("failed to subscribe to intercepts", "subject", t.subjects.intercept(), "error", err)
		return
	}

	t.subs = []*nats.Subscription{callbacks, intercept}
	if err := t.conn.Flush(); err != nil {
		t.logger.Warn("failed to flush subscriptions", "error", err)
	}
}

func (t *Transport) dropped(err error) {
	if ok, suppressed := t.throttle.Allow(); ok {
		t.logger.Warn("dropping malformed NATS message", "error", err, "suppressed", suppressed)
	}
}

// Close unsubscribes the bound receiver. The connection stays open.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unsubscribeLocked()
	return nil
}

func (t *Transport) unsubscribeLocked() {
	for _, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil {
			t.logger.Debug("unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
	t.subs = nil
}
