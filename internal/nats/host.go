package nats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/observability"
	"github.com/SebastienMelki/pushbridge/internal/payload"
)

// Host is the native side of the NATS link. It feeds calls from the bridge
// into a native.Transport and forwards that transport's callbacks back.
type Host struct {
	conn     *nats.Conn
	target   native.Transport
	subjects SubjectConfig
	metrics  *observability.Metrics
	logger   *slog.Logger

	// Events whose return value matters are sent as requests.
	intercepted map[string]bool

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewHost creates a host serving target over conn.
func NewHost(conn *nats.Conn, target native.Transport, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		conn:     conn,
		target:   target,
		subjects: cfg.Subjects.withDefaults(),
		metrics:  metrics,
		logger:   logger.With("component", "nats-host"),
		intercepted: map[string]bool{
			native.EventNotificationWillDisplay: true,
		},
	}
}

// Start binds the host as target's receiver and subscribes to calls.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sub != nil {
		return nil
	}

	h.target.Bind(h)
	sub, err := h.conn.Subscribe(h.subjects.calls(), func(msg *nats.Msg) {
		h.serve(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", h.subjects.calls(), err)
	}
	if err := h.conn.Flush(); err != nil {
		sub.Unsubscribe()
		return fmt.Errorf("flush subscription: %w", err)
	}
	h.sub = sub
	h.logger.Info("native host serving", "subject", h.subjects.calls())
	return nil
}

func (h *Host) serve(ctx context.Context, msg *nats.Msg) {
	h.metrics.NATSReceived(ctx, msg.Subject)
	c, err := decodeCall(msg.Data)
	if err == nil {
		err = h.target.Call(ctx, c)
	}
	if err != nil {
		h.logger.Warn("call refused", "subject", msg.Subject, "error", err)
	}
	if msg.Reply == "" {
		return
	}
	if rerr := msg.Respond(encodeAck(err)); rerr != nil {
		h.logger.Warn("failed to acknowledge call", "subject", msg.Subject, "error", rerr)
	}
}

// Stop unsubscribes from calls.
func (h *Host) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sub == nil {
		return nil
	}
	err := h.sub.Unsubscribe()
	h.sub = nil
	return err
}

// DeliverEnvelope forwards a legacy envelope to the bridge.
func (h *Host) DeliverEnvelope(ch payload.Channel, blob string) {
	h.publish(callback{Kind: kindEnvelope, Channel: ch, Blob: blob})
}

// DeliverResponse forwards a response to the bridge.
func (h *Host) DeliverResponse(id correlation.ID, response string) {
	h.publish(callback{Kind: kindResponse, ID: id, Response: response})
}

// DeliverEvent forwards an event. Interceptable events wait for the
// bridge's decision; if none arrives in time the default behaviour runs.
func (h *Host) DeliverEvent(event string, args []string) bool {
	cb := callback{Kind: kindEvent, Event: event, Args: args}
	if !h.intercepted[event] {
		h.publish(cb)
		return true
	}

	data, err := encodeCallback(cb)
	if err != nil {
		h.logger.Error("failed to encode event", "event", event, "error", err)
		return true
	}
	h.metrics.NATSPublished(context.Background(), h.subjects.intercept())
	msg, err := h.conn.Request(h.subjects.intercept(), data, h.subjects.InterceptTimeout)
	if err != nil {
		h.logger.Warn("no decision for event, proceeding", "event", event, "error", err)
		return true
	}
	display, err := decodeDecision(msg.Data)
	if err != nil {
		h.logger.Warn("bad decision for event, proceeding", "event", event, "error", err)
		return true
	}
	return display
}

func (h *Host) publish(cb callback) {
	data, err := encodeCallback(cb)
	if err != nil {
		h.logger.Error("failed to encode callback", "kind", cb.Kind, "error", err)
		return
	}
	if err := h.conn.Publish(h.subjects.callbacks(), data); err != nil {
		h.logger.Error("failed to publish callback", "kind", cb.Kind, "error", err)
		return
	}
	h.metrics.NATSPublished(context.Background(), h.subjects.callbacks())
}
