package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments used by the bridge and its hosts.
// Instruments are created once at startup and shared with the dispatchers,
// registries and transports.
//
// A nil *Metrics is valid; every recording method is a no-op on it, so
// library users that do not export metrics need not construct one.
type Metrics struct {
	// HTTP metrics (host admin endpoints)
	HTTPRequestDuration otelmetric.Float64Histogram
	HTTPRequestTotal    otelmetric.Int64Counter
	HTTPRequestErrors   otelmetric.Int64Counter

	// Native call metrics
	CallsIssued   otelmetric.Int64Counter
	CallsRefused  otelmetric.Int64Counter
	CallsResolved otelmetric.Int64Counter
	PendingDepth  otelmetric.Int64UpDownCounter

	// Inbound callback metrics
	StaleDeliveries    otelmetric.Int64Counter
	MalformedEnvelopes otelmetric.Int64Counter
	DecodeFailures     otelmetric.Int64Counter
	NativeEvents       otelmetric.Int64Counter

	// Main-thread metrics
	QueueDepth    otelmetric.Int64UpDownCounter
	HandlerPanics otelmetric.Int64Counter
	PumpDuration  otelmetric.Float64Histogram

	// Observer metrics
	ObserverAttached otelmetric.Int64Counter
	ObserverDetached otelmetric.Int64Counter

	// NATS transport metrics
	NATSMessagesPublished otelmetric.Int64Counter
	NATSMessagesReceived  otelmetric.Int64Counter
}

// NewMetrics creates all metric instruments from the given Meter.
// Each instrument is created with a descriptive name, unit, and description
// following OpenTelemetry semantic conventions.
func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	// HTTP metrics
	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestTotal, err = meter.Int64Counter(
		"http.request.total",
		otelmetric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestErrors, err = meter.Int64Counter(
		"http.request.errors",
		otelmetric.WithDescription("HTTP request errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, err
	}

	// Native call metrics
	m.CallsIssued, err = meter.Int64Counter(
		"bridge.calls.issued",
		otelmetric.WithDescription("Native calls issued, by method and mode"),
	)
	if err != nil {
		return nil, err
	}

	m.CallsRefused, err = meter.Int64Counter(
		"bridge.calls.refused",
		otelmetric.WithDescription("Native calls the transport refused to issue"),
	)
	if err != nil {
		return nil, err
	}

	m.CallsResolved, err = meter.Int64Counter(
		"bridge.calls.resolved",
		otelmetric.WithDescription("Pending calls resolved by a native callback, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.PendingDepth, err = meter.Int64UpDownCounter(
		"bridge.pending.depth",
		otelmetric.WithDescription("Calls waiting for a native callback"),
	)
	if err != nil {
		return nil, err
	}

	// Inbound callback metrics
	m.StaleDeliveries, err = meter.Int64Counter(
		"bridge.deliveries.stale",
		otelmetric.WithDescription("Callbacks for ids that are no longer pending, by kind (duplicate, unknown)"),
	)
	if err != nil {
		return nil, err
	}

	m.MalformedEnvelopes, err = meter.Int64Counter(
		"bridge.envelopes.malformed",
		otelmetric.WithDescription("Callback envelopes dropped as malformed"),
	)
	if err != nil {
		return nil, err
	}

	m.DecodeFailures, err = meter.Int64Counter(
		"bridge.decode.failures",
		otelmetric.WithDescription("Response payloads that failed to decode, by target"),
	)
	if err != nil {
		return nil, err
	}

	m.NativeEvents, err = meter.Int64Counter(
		"bridge.events.received",
		otelmetric.WithDescription("Observer events received from the native layer, by event"),
	)
	if err != nil {
		return nil, err
	}

	// Main-thread metrics
	m.QueueDepth, err = meter.Int64UpDownCounter(
		"mainthread.queue.depth",
		otelmetric.WithDescription("Tasks waiting for the next main-thread pump"),
	)
	if err != nil {
		return nil, err
	}

	m.HandlerPanics, err = meter.Int64Counter(
		"mainthread.handler.panics",
		otelmetric.WithDescription("Main-thread tasks that panicked and were recovered"),
	)
	if err != nil {
		return nil, err
	}

	m.PumpDuration, err = meter.Float64Histogram(
		"mainthread.pump.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Main-thread pump duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	// Observer metrics
	m.ObserverAttached, err = meter.Int64Counter(
		"observer.attached",
		otelmetric.WithDescription("Native observer attachments, by stream"),
	)
	if err != nil {
		return nil, err
	}

	m.ObserverDetached, err = meter.Int64Counter(
		"observer.detached",
		otelmetric.WithDescription("Native observer detachments, by stream"),
	)
	if err != nil {
		return nil, err
	}

	// NATS transport metrics
	m.NATSMessagesPublished, err = meter.Int64Counter(
		"nats.messages.published",
		otelmetric.WithDescription("NATS messages published by the bridge transport"),
	)
	if err != nil {
		return nil, err
	}

	m.NATSMessagesReceived, err = meter.Int64Counter(
		"nats.messages.received",
		otelmetric.WithDescription("NATS messages received by the bridge transport"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// CallIssued records a native call leaving the bridge.
func (m *Metrics) CallIssued(ctx context.Context, method, mode string) {
	if m == nil {
		return
	}
	m.CallsIssued.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("method", method),
		attribute.String("mode", mode),
	))
}

// CallRefused records a native call the transport would not issue.
func (m *Metrics) CallRefused(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.CallsRefused.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("method", method)))
}

// CallResolved records a pending call consumed by its callback.
func (m *Metrics) CallResolved(ctx context.Context, failed bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	m.CallsResolved.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

// PendingChanged adjusts the pending-call gauge by delta.
func (m *Metrics) PendingChanged(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.PendingDepth.Add(ctx, delta)
}

// StaleDelivery records a callback for an id that is not pending. kind is
// "duplicate" or "unknown".
func (m *Metrics) StaleDelivery(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.StaleDeliveries.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", kind)))
}

// MalformedEnvelope records a dropped envelope.
func (m *Metrics) MalformedEnvelope(ctx context.Context) {
	if m == nil {
		return
	}
	m.MalformedEnvelopes.Add(ctx, 1)
}

// DecodeFailure records a payload that did not fit its target.
func (m *Metrics) DecodeFailure(ctx context.Context, target string) {
	if m == nil {
		return
	}
	m.DecodeFailures.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("target", target)))
}

// NativeEvent records an observer event arriving from native code.
func (m *Metrics) NativeEvent(ctx context.Context, event string) {
	if m == nil {
		return
	}
	m.NativeEvents.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("event", event)))
}

// QueueChanged adjusts the main-thread queue gauge by delta.
func (m *Metrics) QueueChanged(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.QueueDepth.Add(ctx, delta)
}

// HandlerPanic records a recovered main-thread panic.
func (m *Metrics) HandlerPanic(ctx context.Context) {
	if m == nil {
		return
	}
	m.HandlerPanics.Add(ctx, 1)
}

// Pumped records how long one main-thread pump took.
func (m *Metrics) Pumped(ctx context.Context, ms float64) {
	if m == nil {
		return
	}
	m.PumpDuration.Record(ctx, ms)
}

// ObserverTransition records a native attach (attached=true) or detach.
func (m *Metrics) ObserverTransition(ctx context.Context, stream string, attached bool) {
	if m == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("stream", stream))
	if attached {
		m.ObserverAttached.Add(ctx, 1, attrs)
		return
	}
	m.ObserverDetached.Add(ctx, 1, attrs)
}

// NATSPublished records an outbound NATS message on subject.
func (m *Metrics) NATSPublished(ctx context.Context, subject string) {
	if m == nil {
		return
	}
	m.NATSMessagesPublished.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("subject", subject)))
}

// NATSReceived records an inbound NATS message on subject.
func (m *Metrics) NATSReceived(ctx context.Context, subject string) {
	if m == nil {
		return
	}
	m.NATSMessagesReceived.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("subject", subject)))
}
