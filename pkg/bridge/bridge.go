// Package bridge is the managed-side API of the native push SDK bridge.
//
// A Bridge owns every piece of correlation state: the pending-call registry,
// the id generator, the main-thread queue and the observer registries. There
// are no package globals; create one Bridge per native SDK instance, bind it
// to a transport and drain its main-thread queue with Pump or Run.
//
// Usage:
//
//	b, err := bridge.New(transport, bridge.Config{})
//	if err != nil { ... }
//	defer b.Close()
//	go b.Run(ctx, 16*time.Millisecond)
//	_ = b.Initialize(ctx, "app-id")
//	tags, err := b.User.GetTags(ctx).Await(ctx)
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
	"github.com/SebastienMelki/pushbridge/internal/dedup"
	"github.com/SebastienMelki/pushbridge/internal/mainthread"
	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/observability"
	"github.com/SebastienMelki/pushbridge/internal/observer"
	"github.com/SebastienMelki/pushbridge/internal/pending"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics instruments. Metrics are off by default.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(b *Bridge) { b.metrics = metrics }
}

// PendingCall describes a call still waiting for its callback.
type PendingCall struct {
	ID     string
	Method string
	Since  time.Time
}

// Bridge is the root object of the managed API. It implements
// native.Receiver; the transport delivers every callback to it.
type Bridge struct {
	cfg        Config
	constraint *semver.Constraints

	transport native.Transport
	registry  *pending.Registry
	main      *mainthread.Dispatcher
	native    *native.Dispatcher
	resolved  *dedup.Module
	stopDedup context.CancelFunc

	logger       *slog.Logger
	metrics      *observability.Metrics
	errCallbacks errorCallbacks

	initMu      sync.Mutex
	initialized bool
	deferred    []func()

	closed   atomic.Bool
	shutdown chan struct{}

	permission   *observer.Registry[PermissionChangedEvent]
	willDisplay  *observer.Registry[*WillDisplayEvent]
	clicked      *observer.Registry[NotificationClickEvent]
	userState    *observer.Registry[UserStateChangedEvent]
	pushSub      *observer.Registry[PushSubscriptionChangedEvent]
	inApp        *observer.Registry[InAppMessageEvent]
	inAppClicked *observer.Registry[InAppMessageClickEvent]

	Notifications  *Notifications
	User           *User
	InAppMessages  *InAppMessages
	LiveActivities *LiveActivities
	Session        *Session
	Location       *Location
	Debug          *Debug
	Legacy         *Legacy
}

var _ native.Receiver = (*Bridge)(nil)

// New creates a Bridge bound to transport. cfg is validated and defaulted.
func New(transport native.Transport, cfg Config, opts ...Option) (*Bridge, error) {
	if transport == nil {
		return nil, ErrNoTransport
	}
	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	constraint, err := semver.NewConstraint(cfg.NativeVersionConstraint)
	if err != nil {
		return nil, fmt.Errorf("native version constraint: %w", err)
	}

	b := &Bridge{
		cfg:        cfg,
		constraint: constraint,
		transport:  transport,
		registry:   pending.NewRegistry(),
		logger:     slog.Default(),
		shutdown:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if cfg.DebugMode {
		b.logger.Debug("bridge debug mode enabled")
	}

	var ids correlation.Generator = correlation.UUIDGenerator{}
	if cfg.IDStyle == IDStyleHash {
		ids = correlation.NewHashGenerator(b.registry)
	}

	b.main = mainthread.New(b.logger, b.metrics)
	b.resolved = dedup.New(dedup.Config{
		Window:   cfg.dedupWindow(),
		Capacity: uint(cfg.DedupCapacity),
	}, b.logger)
	b.native = native.NewDispatcher(native.Config{
		Transport: transport,
		Registry:  b.registry,
		IDs:       ids,
		Scheduler: b.main,
		Resolved:  b.resolved,
		Logger:    b.logger,
		Metrics:   b.metrics,
	})

	attacher := observer.AttacherFunc{
		OnAttach: func(s observer.Stream) error {
			return b.native.Fire(context.Background(), native.MethodAddObserver, string(s))
		},
		OnDetach: func(s observer.Stream) error {
			return b.native.Fire(context.Background(), native.MethodRemoveObserver, string(s))
		},
	}
	b.permission = observer.NewRegistry[PermissionChangedEvent](attacher, b.logger, b.metrics)
	b.willDisplay = observer.NewRegistry[*WillDisplayEvent](attacher, b.logger, b.metrics)
	b.clicked = observer.NewRegistry[NotificationClickEvent](attacher, b.logger, b.metrics)
	b.userState = observer.NewRegistry[UserStateChangedEvent](attacher, b.logger, b.metrics)
	b.pushSub = observer.NewRegistry[PushSubscriptionChangedEvent](attacher, b.logger, b.metrics)
	b.inApp = observer.NewRegistry[InAppMessageEvent](attacher, b.logger, b.metrics)
	b.inAppClicked = observer.NewRegistry[InAppMessageClickEvent](attacher, b.logger, b.metrics)

	b.Notifications = &Notifications{b: b}
	b.User = &User{b: b, PushSubscription: &PushSubscription{b: b}}
	b.InAppMessages = &InAppMessages{b: b}
	b.LiveActivities = &LiveActivities{b: b}
	b.Session = &Session{b: b}
	b.Location = &Location{b: b}
	b.Debug = &Debug{b: b}
	b.Legacy = &Legacy{b: b}

	ctx, cancel := context.WithCancel(context.Background())
	b.stopDedup = cancel
	b.resolved.Start(ctx)

	transport.Bind(b)
	return b, nil
}

// Initialize starts the native SDK with appID. Notification clicks received
// before Initialize are delivered once it has run. The native SDK version is
// checked asynchronously; a mismatch is reported to the error callbacks.
func (b *Bridge) Initialize(ctx context.Context, appID string) error {
	if appID == "" {
		return ErrEmptyAppID
	}
	if err := b.fire(ctx, native.MethodInitialize, appID); err != nil {
		return err
	}

	// Replay under initMu so a click arriving now queues behind the
	// deferred ones.
	b.initMu.Lock()
	deferred := b.deferred
	b.deferred = nil
	for _, fn := range deferred {
		fn()
	}
	b.initialized = true
	b.initMu.Unlock()

	if !b.cfg.SkipVersionCheck {
		b.NativeVersion(ctx).OnComplete(b.checkNativeVersion)
	}
	b.logger.Info("bridge initialized", "app_id", appID, "deferred_clicks", len(deferred))
	return nil
}

// Initialized reports whether Initialize has run.
func (b *Bridge) Initialized() bool {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	return b.initialized
}

// whenInitialized runs fn now if Initialize has run and otherwise holds it
// until Initialize. Held functions must not take initMu.
func (b *Bridge) whenInitialized(fn func()) {
	b.initMu.Lock()
	if !b.initialized {
		b.deferred = append(b.deferred, fn)
		b.initMu.Unlock()
		return
	}
	b.initMu.Unlock()
	fn()
}

// NativeVersion asks the native layer for its SDK version string.
func (b *Bridge) NativeVersion(ctx context.Context) *Future[string] {
	return call(b, ctx, native.MethodGetNativeSDKVersion, decodeString)
}

func (b *Bridge) checkNativeVersion(raw string, err error) {
	if err != nil {
		b.report(newWarningError(ErrCodeNativeCallFailed, "native SDK version unavailable", err))
		return
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		b.report(newWarningError(ErrCodeInvalidVersion,
			fmt.Sprintf("native SDK version %q is not a semantic version", raw), err))
		return
	}
	if !b.constraint.Check(v) {
		b.report(newWarningError(ErrCodeUnsupportedNative,
			fmt.Sprintf("native SDK %s does not satisfy %s", v, b.cfg.NativeVersionConstraint), nil))
		return
	}
	b.logger.Debug("native SDK version supported", "version", v.String())
}

// Login switches the current user to externalID.
func (b *Bridge) Login(ctx context.Context, externalID string) error {
	if externalID == "" {
		return fmt.Errorf("%w: external id is empty", ErrInvalidArgument)
	}
	return b.fire(ctx, native.MethodLogin, externalID)
}

// LoginWithJWT switches the current user and supplies its JWT bearer token.
func (b *Bridge) LoginWithJWT(ctx context.Context, externalID, jwt string) error {
	if externalID == "" {
		return fmt.Errorf("%w: external id is empty", ErrInvalidArgument)
	}
	return b.fire(ctx, native.MethodLoginWithJWT, externalID, jwt)
}

// Logout reverts to an anonymous user.
func (b *Bridge) Logout(ctx context.Context) error {
	return b.fire(ctx, native.MethodLogout)
}

// SetConsentRequired sets whether data collection waits for consent.
func (b *Bridge) SetConsentRequired(ctx context.Context, required bool) error {
	return b.fire(ctx, native.MethodSetConsentRequired, required)
}

// SetConsentGiven records the user's privacy consent.
func (b *Bridge) SetConsentGiven(ctx context.Context, given bool) error {
	return b.fire(ctx, native.MethodSetConsentGiven, given)
}

// SetLaunchURLsInApp sets whether launch URLs open in an in-app browser.
func (b *Bridge) SetLaunchURLsInApp(ctx context.Context, inApp bool) error {
	return b.fire(ctx, native.MethodSetLaunchURLsInApp, inApp)
}

// Pump runs the queued main-thread work and returns how many tasks ran. It
// must be called from the host's main thread.
func (b *Bridge) Pump() int {
	return b.main.Pump()
}

// Run pumps the main-thread queue every interval, and whenever work arrives,
// until ctx ends. The goroutine calling Run becomes the main thread.
func (b *Bridge) Run(ctx context.Context, interval time.Duration) error {
	return b.main.Run(ctx, interval)
}

// PendingCalls returns the number of calls waiting for a callback.
func (b *Bridge) PendingCalls() int {
	return b.native.Pending()
}

// Orphans lists calls that have waited longer than age. The bridge never
// expires calls itself.
func (b *Bridge) Orphans(age time.Duration) []PendingCall {
	entries := b.native.Orphans(age)
	out := make([]PendingCall, 0, len(entries))
	for _, e := range entries {
		out = append(out, PendingCall{ID: e.ID.String(), Method: e.Method, Since: e.CreatedAt})
	}
	return out
}

// Close stops the bridge. Queued main-thread work is discarded, blocked
// native threads are released and later calls fail with ErrClosed.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.main.Close()
	close(b.shutdown)
	b.stopDedup()
	b.resolved.Stop()
	b.logger.Info("bridge closed", "pending_calls", b.native.Pending())
	return nil
}

// post queues fn on the main thread.
func (b *Bridge) post(fn func()) {
	if err := b.main.Post(fn); err != nil {
		b.logger.Warn("main-thread task dropped", "error", err)
	}
}
