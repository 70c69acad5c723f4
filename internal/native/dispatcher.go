package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
	"github.com/SebastienMelki/pushbridge/internal/dedup"
	"github.com/SebastienMelki/pushbridge/internal/observability"
	"github.com/SebastienMelki/pushbridge/internal/payload"
	"github.com/SebastienMelki/pushbridge/internal/pending"
)

// Mode selects how a call is correlated.
type Mode int

const (
	// Fire issues the call with no callback.
	Fire Mode = iota
	// Await correlates a single callback by one id.
	Await
	// AwaitPair correlates a success or failure callback by an id pair.
	AwaitPair
)

func (m Mode) String() string {
	switch m {
	case Fire:
		return "fire"
	case Await:
		return "await"
	case AwaitPair:
		return "await_pair"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Setup describes the correlation of one call.
type Setup struct {
	Mode         Mode
	Continuation pending.Continuation
}

// Issued identifies the correlation of a call that was issued.
type Issued struct {
	ID   correlation.ID
	Pair *correlation.Pair
}

// Config holds the collaborators of a Dispatcher. Transport, Registry, IDs
// and Scheduler are required.
type Config struct {
	Transport Transport
	Registry  *pending.Registry
	IDs       correlation.Generator
	Scheduler Scheduler

	// Resolved, if set, remembers resolved ids so late deliveries can be
	// told apart from ids that were never issued.
	Resolved dedup.ResolvedSet

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Dispatcher issues native calls and resolves their callbacks.
type Dispatcher struct {
	transport Transport
	registry  *pending.Registry
	ids       correlation.Generator
	scheduler Scheduler
	resolved  dedup.ResolvedSet

	logger   *slog.Logger
	metrics  *observability.Metrics
	throttle *observability.LogThrottle
}

// NewDispatcher creates a Dispatcher from cfg.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = pending.NewRegistry()
	}
	ids := cfg.IDs
	if ids == nil {
		ids = correlation.UUIDGenerator{}
	}
	return &Dispatcher{
		transport: cfg.Transport,
		registry:  registry,
		ids:       ids,
		scheduler: cfg.Scheduler,
		resolved:  cfg.Resolved,
		logger:    logger.With("component", "native"),
		metrics:   cfg.Metrics,
		throttle:  observability.NewLogThrottle(time.Second, 10),
	}
}

// Invoke issues method with args. Awaited calls register their continuation
// before the transport is called, so a callback that arrives while Call is
// still running finds it. If the transport refuses the call the registration
// is withdrawn and the error returned.
func (d *Dispatcher) Invoke(ctx context.Context, method string, args []any, setup Setup) (Issued, error) {
	if d.transport == nil {
		return Issued{}, ErrNoTransport
	}

	call := Call{Method: method, Args: args}
	var issued Issued

	switch setup.Mode {
	case Fire:
	case Await, AwaitPair:
		if setup.Continuation == nil {
			return Issued{}, ErrNilContinuation
		}
		var err error
		if issued, err = d.register(method, setup); err != nil {
			return Issued{}, err
		}
		call.ID, call.Pair = issued.ID, issued.Pair
	default:
		return Issued{}, fmt.Errorf("%w: %d", ErrUnknownMode, setup.Mode)
	}

	if call.Awaited() {
		d.metrics.PendingChanged(ctx, 1)
	}

	if err := d.transport.Call(ctx, call); err != nil {
		if call.Awaited() {
			d.cancel(ctx, issued)
		}
		d.metrics.CallRefused(ctx, method)
		return Issued{}, fmt.Errorf("native call %s: %w", method, err)
	}

	d.metrics.CallIssued(ctx, method, setup.Mode.String())
	d.logger.Debug("native call issued", "method", method, "mode", setup.Mode, "id", issued.ID)
	return issued, nil
}

// maxIDAttempts bounds regeneration for generators that may collide.
const maxIDAttempts = 8

// register draws ids until the registry accepts them. Generators that may
// collide get maxIDAttempts draws; for the others a duplicate is returned as
// is.
func (d *Dispatcher) register(method string, setup Setup) (Issued, error) {
	attempts := 1
	if c, ok := d.ids.(correlation.Colliding); ok && c.MayCollide() {
		attempts = maxIDAttempts
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if setup.Mode == AwaitPair {
			pair := correlation.NewPair(d.ids)
			if err = d.registry.RegisterPair(pair, method, setup.Continuation); err == nil {
				return Issued{Pair: &pair}, nil
			}
		} else {
			id := d.ids.NewID()
			if err = d.registry.Register(id, method, setup.Continuation); err == nil {
				return Issued{ID: id}, nil
			}
		}
		if !errors.Is(err, pending.ErrDuplicateID) {
			break
		}
		d.logger.Debug("correlation id taken, regenerating", "method", method, "attempt", attempt)
	}
	return Issued{}, fmt.Errorf("register %s: %w", method, err)
}

// Fire issues a call that expects no callback.
func (d *Dispatcher) Fire(ctx context.Context, method string, args ...any) error {
	_, err := d.Invoke(ctx, method, args, Setup{Mode: Fire})
	return err
}

// Await issues a call answered by a single callback.
func (d *Dispatcher) Await(ctx context.Context, method string, cont pending.Continuation, args ...any) (correlation.ID, error) {
	issued, err := d.Invoke(ctx, method, args, Setup{Mode: Await, Continuation: cont})
	return issued.ID, err
}

// AwaitPair issues a call answered on either a success or a failure channel.
func (d *Dispatcher) AwaitPair(ctx context.Context, method string, cont pending.Continuation, args ...any) (correlation.Pair, error) {
	issued, err := d.Invoke(ctx, method, args, Setup{Mode: AwaitPair, Continuation: cont})
	if err != nil {
		return correlation.Pair{}, err
	}
	return *issued.Pair, nil
}

// Cancel withdraws a pending call. Its callback, if it ever arrives, is
// dropped. Reports whether the call was still pending.
func (d *Dispatcher) Cancel(id correlation.ID) bool {
	if !d.registry.Cancel(id) {
		return false
	}
	d.metrics.PendingChanged(context.Background(), -1)
	return true
}

func (d *Dispatcher) cancel(ctx context.Context, issued Issued) {
	id := issued.ID
	if issued.Pair != nil {
		id = issued.Pair.Success
	}
	if d.registry.Cancel(id) {
		d.metrics.PendingChanged(ctx, -1)
	}
}

// Resolve hands response to the call waiting on id. The continuation runs on
// the scheduler. Unknown ids are dropped and reported false.
func (d *Dispatcher) Resolve(id correlation.ID, response string) bool {
	ctx := context.Background()

	res, ok := d.registry.Take(id)
	if !ok {
		kind := dedup.Classify(d.resolved, id.String())
		d.metrics.StaleDelivery(ctx, kind)
		if allow, suppressed := d.throttle.Allow(); allow {
			d.logger.Debug("callback for id that is not pending dropped",
				"id", id, "kind", kind, "suppressed", suppressed)
		}
		return false
	}

	if d.resolved != nil {
		for _, wireID := range res.IDs {
			d.resolved.MarkResolved(wireID.String())
		}
	}
	d.metrics.PendingChanged(ctx, -1)
	d.metrics.CallResolved(ctx, res.Failed)

	result := pending.Result{Failed: res.Failed, Response: response}
	cont := res.Continuation
	if err := d.scheduler.Post(func() { cont(result) }); err != nil {
		d.logger.Warn("continuation dropped", "method", res.Method, "id", id, "error", err)
	}
	return true
}

// ResolveEnvelope resolves the id env targets on channel ch.
func (d *Dispatcher) ResolveEnvelope(ch payload.Channel, env payload.Envelope) (bool, error) {
	id, err := env.Target(ch)
	if err != nil {
		return false, err
	}
	return d.Resolve(id, env.Response), nil
}

// HandleEnvelope parses a raw envelope and resolves it. Malformed envelopes
// are logged, counted and dropped; they never reach a continuation.
func (d *Dispatcher) HandleEnvelope(ch payload.Channel, blob string) bool {
	env, err := payload.ParseEnvelope(blob)
	if err == nil {
		var ok bool
		ok, err = d.ResolveEnvelope(ch, env)
		if err == nil {
			return ok
		}
	}

	d.metrics.MalformedEnvelope(context.Background())
	if allow, suppressed := d.throttle.Allow(); allow {
		d.logger.Warn("malformed callback envelope dropped",
			"channel", ch, "error", err, "suppressed", suppressed)
	}
	return false
}

// Pending returns the number of calls waiting for a callback.
func (d *Dispatcher) Pending() int {
	return d.registry.Len()
}

// Orphans lists calls pending for longer than age.
func (d *Dispatcher) Orphans(age time.Duration) []pending.Pending {
	return d.registry.Orphans(age)
}
