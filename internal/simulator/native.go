// Package simulator is an in-process stand-in for the native push SDK. It
// implements native.Transport: calls are queued to a single native worker
// goroutine, the way the platform SDKs serialise work, and answers reach the
// bridge from that goroutine through the bound Receiver. State is persisted
// with internal/storage so it survives restarts.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/storage"
)

// Sentinel errors for the simulator package.
var (
	ErrClosed        = errors.New("simulated native SDK closed")
	ErrUnknownMethod = errors.New("unknown native method")
	ErrNoDB          = errors.New("simulator needs a database")
	ErrQueueFull     = errors.New("native call queue full")
)

// DefaultVersion is the native SDK version reported by default.
const DefaultVersion = "5.2.4"

// Config configures the simulated SDK.
type Config struct {
	// Version is reported by getNativeSDKVersion (default: DefaultVersion).
	Version string

	// DenyPermission makes permission prompts fail.
	DenyPermission bool

	// QueueSize bounds the call queue (default: 256).
	QueueSize int
}

type handler func(c native.Call) error

// Native is the simulated native SDK.
type Native struct {
	cfg    Config
	db     *storage.DB
	logger *slog.Logger

	now      func() time.Time
	handlers map[string]handler
	calls    chan native.Call
	done     chan struct{}
	wg       sync.WaitGroup

	closeOnce sync.Once

	mu       sync.Mutex
	receiver native.Receiver
	state    state
}

// state is the in-memory part of the SDK state. Durable fields are written
// through to the database.
type state struct {
	appID           string
	onesignalID     string
	externalID      string
	subscription    subscription
	permission      bool
	permissionAsked bool
	paused          bool
	locationShared  bool
	consentRequired bool
	consentGiven    bool
	launchInApp     bool
	logLevel        int
	alertLevel      int
	language        string

	observers  map[string]bool
	activities map[string]string
	prevented  map[string]bool
	displayed  []string
	removed    []string
	received   map[string]string
	opened     string
}

// New creates a simulated SDK persisting to db and starts its native worker.
func New(db *storage.DB, cfg Config, logger *slog.Logger) (*Native, error) {
	if db == nil {
		return nil, ErrNoDB
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	n := &Native{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "simulator"),
		now:    time.Now,
		calls:  make(chan native.Call, cfg.QueueSize),
		done:   make(chan struct{}),
		state: state{
			observers:  make(map[string]bool),
			activities: make(map[string]string),
			prevented:  make(map[string]bool),
			received:   make(map[string]string),
		},
	}
	if err := n.loadDevice(); err != nil {
		return nil, err
	}
	n.handlers = n.buildHandlers()

	n.wg.Add(1)
	go n.worker()
	return n, nil
}

// Bind installs the receiver that gets every answer and event.
func (n *Native) Bind(r native.Receiver) {
	n.mu.Lock()
	n.receiver = r
	n.mu.Unlock()
}

// Call queues c for the native worker. Unknown methods are refused.
func (n *Native) Call(ctx context.Context, c native.Call) error {
	if _, ok := n.handlers[c.Method]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, c.Method)
	}
	select {
	case <-n.done:
		return ErrClosed
	default:
	}

	select {
	case n.calls <- c:
		return nil
	case <-n.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (n *Native) worker() {
	defer n.wg.Done()
	for {
		select {
		case c := <-n.calls:
			n.handle(c)
		case <-n.done:
			return
		}
	}
}

func (n *Native) handle(c native.Call) {
	h := n.handlers[c.Method]
	if err := h(c); err != nil {
		// A native SDK that cannot serve a call never answers it.
		n.logger.Warn("native call failed", "method", c.Method, "id", c.ID, "error", err)
		return
	}
	n.logger.Debug("native call handled", "method", c.Method, "id", c.ID)
}

// Close stops the native worker. Queued calls are dropped.
func (n *Native) Close() error {
	n.closeOnce.Do(func() {
		close(n.done)
		n.wg.Wait()
	})
	return nil
}

func (n *Native) recv() native.Receiver {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.receiver
}

// Snapshot is a read-only view of the simulated SDK state.
type Snapshot struct {
	AppID          string
	OneSignalID    string
	ExternalID     string
	SubscriptionID string
	PushToken      string
	OptedIn        bool
	Permission     bool
	Paused         bool
	LocationShared bool
	ConsentGiven   bool
	LogLevel       int
	Language       string
	Observers      []string
	Activities     []string
	Prevented      []string
	Displayed      []string
	Removed        []string
}

// Snapshot returns the current state.
func (n *Native) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := n.state
	return Snapshot{
		AppID:          s.appID,
		OneSignalID:    s.onesignalID,
		ExternalID:     s.externalID,
		SubscriptionID: s.subscription.ID,
		PushToken:      s.subscription.Token,
		OptedIn:        s.subscription.OptedIn,
		Permission:     s.permission,
		Paused:         s.paused,
		LocationShared: s.locationShared,
		ConsentGiven:   s.consentGiven,
		LogLevel:       s.logLevel,
		Language:       s.language,
		Observers:      sortedKeys(s.observers),
		Activities:     sortedKeys(s.activities),
		Prevented:      sortedKeys(s.prevented),
		Displayed:      append([]string(nil), s.displayed...),
		Removed:        append([]string(nil), s.removed...),
	}
}

func newID() string {
	return uuid.New().String()
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
