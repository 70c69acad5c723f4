// Package mainthread marshals work from native callback threads onto the
// single logical thread that owns user-visible state.
//
// Native callbacks arrive on arbitrary goroutines. They never run user code
// directly; they Post (or Send) closures that the host drains by calling
// Pump from its update loop, or by letting Run drive Pump on a ticker.
package mainthread

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SebastienMelki/pushbridge/internal/observability"
)

// Sentinel errors for the mainthread package.
var (
	// ErrClosed is returned for work submitted after Close.
	ErrClosed = errors.New("main-thread dispatcher closed")
	// ErrTaskPanicked is returned by Send when its task panicked.
	ErrTaskPanicked = errors.New("main-thread task panicked")
	// ErrNilTask is returned for a nil task.
	ErrNilTask = errors.New("main-thread task is nil")
)

type task struct {
	fn func()

	// done is non-nil for Send tasks and is closed once fn has run.
	done     chan struct{}
	panicked bool

	mu        sync.Mutex
	abandoned bool
}

// Dispatcher is a FIFO queue of tasks drained on the main thread.
// Post and Send are safe for concurrent use; Pump must only be called from
// the main thread.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []*task
	closed bool

	// wake has capacity one and is signalled whenever the queue goes from
	// empty to non-empty, so Run can pump without waiting for the next tick.
	wake chan struct{}

	// closedCh is closed by Close to release blocked Send callers.
	closedCh chan struct{}

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Dispatcher. A nil logger uses slog.Default(); metrics may be
// nil.
func New(logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		wake:     make(chan struct{}, 1),
		closedCh: make(chan struct{}),
		logger:   logger.With("component", "mainthread"),
		metrics:  metrics,
	}
}

// Post queues fn to run on the next Pump. It never blocks.
func (d *Dispatcher) Post(fn func()) error {
	if fn == nil {
		return ErrNilTask
	}
	return d.enqueue(&task{fn: fn})
}

// Send queues fn and blocks until it has run on the main thread. It returns
// ctx.Err() if ctx ends first, in which case fn is skipped if it has not
// started. Send must not be called from the main thread itself.
func (d *Dispatcher) Send(ctx context.Context, fn func()) error {
	if fn == nil {
		return ErrNilTask
	}

	t := &task{fn: fn, done: make(chan struct{})}
	if err := d.enqueue(t); err != nil {
		return err
	}

	select {
	case <-t.done:
		if t.panicked {
			return ErrTaskPanicked
		}
		return nil
	case <-ctx.Done():
		if t.abandon() {
			return ctx.Err()
		}
		// Already running; wait for it so the caller sees its effects.
		<-t.done
		if t.panicked {
			return ErrTaskPanicked
		}
		return nil
	case <-d.closedCh:
		if t.abandon() {
			return ErrClosed
		}
		<-t.done
		return nil
	}
}

// abandon marks t as not to be run. It reports false if t already started.
func (t *task) abandon() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		select {
		case <-t.done:
			return false
		default:
		}
	}
	if t.fn == nil {
		return false
	}
	t.abandoned = true
	return true
}

// claim reports whether t should run and prevents later abandonment.
func (t *task) claim() (func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.abandoned {
		return nil, false
	}
	fn := t.fn
	t.fn = nil
	return fn, true
}

func (d *Dispatcher) enqueue(t *task) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.queue = append(d.queue, t)
	first := len(d.queue) == 1
	d.mu.Unlock()

	d.metrics.QueueChanged(context.Background(), 1)
	if first {
		select {
		case d.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pump runs the tasks that were queued when it was called, in FIFO order.
// Tasks queued while pumping wait for the next Pump. A panicking task is
// recovered and logged; the remaining tasks still run. It returns the number
// of tasks run.
func (d *Dispatcher) Pump() int {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	start := time.Now()
	ran := 0
	for _, t := range batch {
		fn, ok := t.claim()
		if ok {
			t.panicked = d.run(fn)
			ran++
		}
		if t.done != nil {
			close(t.done)
		}
	}

	ctx := context.Background()
	d.metrics.QueueChanged(ctx, -int64(len(batch)))
	d.metrics.Pumped(ctx, float64(time.Since(start).Microseconds())/1000)
	return ran
}

func (d *Dispatcher) run(fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			d.metrics.HandlerPanic(context.Background())
			d.logger.Error("main-thread task panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
	return false
}

// Len returns the number of queued tasks.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run pumps every interval, and as soon as work arrives, until ctx is
// cancelled or Close is called. The goroutine calling Run becomes the main
// thread. Remaining work is pumped once before returning.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("mainthread: interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("main-thread loop started", "interval", interval)
	defer d.logger.Info("main-thread loop stopped")

	for {
		select {
		case <-ctx.Done():
			d.Pump()
			return ctx.Err()
		case <-d.closedCh:
			d.Pump()
			return nil
		case <-d.wake:
			d.Pump()
		case <-ticker.C:
			d.Pump()
		}
	}
}

// Close rejects new work and releases blocked Send callers whose tasks have
// not started. Already queued Post tasks remain for a final Pump. Close is
// idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.closedCh)
}
