package nats

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/SebastienMelki/pushbridge/internal/correlation"
	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/payload"
	"github.com/SebastienMelki/pushbridge/internal/simulator"
	"github.com/SebastienMelki/pushbridge/internal/storage"
	"github.com/SebastienMelki/pushbridge/pkg/bridge"
)

// startTestServer starts an in-process NATS server and returns a client URL.
func startTestServer(t *testing.T) string {
	t.Helper()

	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("server failed to start")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func testConfig(url string) Config {
	return Config{
		URL:           url,
		Name:          "test",
		MaxReconnects: 1,
		ReconnectWait: 10 * time.Millisecond,
		Timeout:       time.Second,
		Subjects: SubjectConfig{
			Prefix:           "test",
			CallTimeout:      time.Second,
			InterceptTimeout: 2 * time.Second,
		},
		Retry: RetryConfig{BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, MaxRetries: 2},
	}
}

func connect(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// fakeNative is a native.Transport that records calls.
type fakeNative struct {
	calls    chan native.Call
	err      error
	receiver native.Receiver
	bound    chan struct{}
}

func newFakeNative() *fakeNative {
	return &fakeNative{calls: make(chan native.Call, 16), bound: make(chan struct{})}
}

func (f *fakeNative) Call(_ context.Context, c native.Call) error {
	if f.err != nil {
		return f.err
	}
	f.calls <- c
	return nil
}

func (f *fakeNative) Bind(r native.Receiver) {
	f.receiver = r
	close(f.bound)
}

// recorder is a native.Receiver fed by the bridge-side transport.
type recorder struct {
	responses chan string
	envelopes chan payload.Channel
	events    chan string
	display   bool
}

func newRecorder() *recorder {
	return &recorder{
		responses: make(chan string, 16),
		envelopes: make(chan payload.Channel, 16),
		events:    make(chan string, 16),
	}
}

func (r *recorder) DeliverEnvelope(ch payload.Channel, _ string) { r.envelopes <- ch }
func (r *recorder) DeliverResponse(id correlation.ID, resp string) {
	r.responses <- id.String() + "=" + resp
}
func (r *recorder) DeliverEvent(name string, _ []string) bool {
	r.events <- name
	return r.display
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
		var zero T
		return zero
	}
}

func TestWire_CallKeepsCorrelation(t *testing.T) {
	pair := correlation.Pair{Success: "s-1", Failure: "f-1"}
	data, err := encodeCall(native.Call{
		Method: native.MethodLegacySetEmail,
		Args:   []any{"a@b.c", map[string]string{"k": "v"}, 7},
		Pair:   &pair,
	})
	if err != nil {
		t.Fatalf("encodeCall: %v", err)
	}
	c, err := decodeCall(data)
	if err != nil {
		t.Fatalf("decodeCall: %v", err)
	}
	if c.Method != native.MethodLegacySetEmail || c.Pair == nil || *c.Pair != pair {
		t.Errorf("decoded call = %+v", c)
	}
	if len(c.Args) != 3 || c.Args[0] != "a@b.c" || c.Args[2] != float64(7) {
		t.Errorf("decoded args = %#v", c.Args)
	}
}

func TestWire_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data func() []byte
	}{
		{"not protobuf", func() []byte { return []byte{0xff, 0xff, 0xff} }},
		{"no method", func() []byte { d, _ := marshal(map[string]any{"args": []any{}}); return d }},
		{"half pair", func() []byte {
			d, _ := marshal(map[string]any{"method": "x", "pair": map[string]any{"success": "s"}})
			return d
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeCall(tt.data()); !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("decodeCall error = %v, want %v", err, ErrMalformedMessage)
			}
		})
	}
}

func TestBackoff_NextDelay(t *testing.T) {
	b := &Backoff{BaseDelay: 10 * time.Millisecond, MaxDelay: 30 * time.Millisecond, MaxRetries: 3}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 0}
	for attempt, w := range want {
		if got := b.NextDelay(attempt); got != w {
			t.Errorf("NextDelay(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestTransport_CallAndCallbacks(t *testing.T) {
	cfg := testConfig(startTestServer(t))
	fake := newFakeNative()
	host := NewHost(connect(t, cfg).Conn(), fake, cfg, nil, nil)
	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer host.Stop()

	tr := NewTransport(connect(t, cfg).Conn(), cfg, nil, nil)
	defer tr.Close()
	r := newRecorder()
	tr.Bind(r)

	if err := tr.Call(context.Background(), native.Call{Method: native.MethodUserGetTags, ID: "id-1"}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	got := waitFor(t, fake.calls)
	if got.Method != native.MethodUserGetTags || got.ID != "id-1" {
		t.Errorf("host received %+v", got)
	}

	<-fake.bound
	fake.receiver.DeliverResponse("id-1", `{"a":"b"}`)
	if resp := waitFor(t, r.responses); resp != `id-1={"a":"b"}` {
		t.Errorf("response = %q", resp)
	}
	fake.receiver.DeliverEnvelope(payload.ChannelFailure, "{}")
	if ch := waitFor(t, r.envelopes); ch != payload.ChannelFailure {
		t.Errorf("envelope channel = %v", ch)
	}
}

func TestTransport_RefusalReachesCaller(t *testing.T) {
	cfg := testConfig(startTestServer(t))
	fake := newFakeNative()
	fake.err = errors.New("queue full")
	host := NewHost(connect(t, cfg).Conn(), fake, cfg, nil, nil)
	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer host.Stop()

	tr := NewTransport(connect(t, cfg).Conn(), cfg, nil, nil)
	err := tr.Call(context.Background(), native.Call{Method: native.MethodLogout})
	if !errors.Is(err, ErrCallRejected) {
		t.Errorf("Call error = %v, want %v", err, ErrCallRejected)
	}
}

func TestTransport_NoHost(t *testing.T) {
	cfg := testConfig(startTestServer(t))
	tr := NewTransport(connect(t, cfg).Conn(), cfg, nil, nil)
	err := tr.Call(context.Background(), native.Call{Method: native.MethodLogout})
	if !errors.Is(err, nats.ErrNoResponders) {
		t.Errorf("Call error = %v, want %v", err, nats.ErrNoResponders)
	}
}

func TestHost_InterceptDecision(t *testing.T) {
	cfg := testConfig(startTestServer(t))
	fake := newFakeNative()
	host := NewHost(connect(t, cfg).Conn(), fake, cfg, nil, nil)
	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer host.Stop()
	<-fake.bound

	// Nobody listening: the default behaviour runs.
	if !fake.receiver.DeliverEvent(native.EventNotificationWillDisplay, []string{"{}"}) {
		t.Error("unanswered intercept did not default to display")
	}

	tr := NewTransport(connect(t, cfg).Conn(), cfg, nil, nil)
	defer tr.Close()
	r := newRecorder()
	tr.Bind(r)

	if fake.receiver.DeliverEvent(native.EventNotificationWillDisplay, []string{"{}"}) {
		t.Error("bridge decision to prevent was ignored")
	}
	if ev := waitFor(t, r.events); ev != native.EventNotificationWillDisplay {
		t.Errorf("event = %s", ev)
	}
}

// newRemoteStack wires a bridge to a simulator through NATS.
func newRemoteStack(t *testing.T) (*bridge.Bridge, *simulator.Native) {
	t.Helper()
	cfg := testConfig(startTestServer(t))

	db, err := storage.NewDB(filepath.Join(t.TempDir(), "native.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	sim, err := simulator.New(db, simulator.Config{}, nil)
	if err != nil {
		t.Fatalf("simulator.New: %v", err)
	}
	host, err := connect(t, cfg).Serve(context.Background(), sim, nil)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}

	tr := connect(t, cfg).Transport(nil)
	b, err := bridge.New(tr, bridge.Config{})
	if err != nil {
		t.Fatalf("bridge.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = b.Run(ctx, time.Millisecond)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
		tr.Close()
		host.Stop()
		sim.Close()
		db.Close()
	})
	return b, sim
}

func TestRemote_EndToEnd(t *testing.T) {
	b, sim := newRemoteStack(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Initialize(ctx, "app-id"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := b.User.AddTag(ctx, "tier", "gold"); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	tags, err := b.User.GetTags(ctx).Await(ctx)
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if tags["tier"] != "gold" {
		t.Errorf("tags = %v", tags)
	}

	failed := make(chan map[string]any, 1)
	err = b.Legacy.SetEmail(ctx, "nope", "", func() { t.Error("invalid email succeeded") },
		func(resp map[string]any) { failed <- resp })
	if err != nil {
		t.Fatalf("SetEmail: %v", err)
	}
	select {
	case resp := <-failed:
		if resp["error"] == nil {
			t.Errorf("failure response = %v", resp)
		}
	case <-ctx.Done():
		t.Fatal("SetEmail failure never delivered")
	}

	if _, err := b.Notifications.OnForegroundWillDisplay(func(ev *bridge.WillDisplayEvent) {
		ev.PreventDefault()
	}); err != nil {
		t.Fatalf("OnForegroundWillDisplay: %v", err)
	}
	if _, err := b.NativeVersion(ctx).Await(ctx); err != nil {
		t.Fatalf("NativeVersion: %v", err)
	}
	if sim.ReceiveNotification(simulator.Notification{ID: "n1"}) {
		t.Error("notification displayed despite PreventDefault over NATS")
	}
}
