package transport

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// published is one message sent through a fakeConn.
type published struct {
	topic   string
	payload []byte
	qos     byte
}

type fakeSub struct {
	qos     byte
	handler MessageHandler
}

// fakeConn is an in-memory Conn. ConnectAsync runs OnConnect inline.
type fakeConn struct {
	mu         sync.Mutex
	opts       ConnOptions
	connected  bool
	closed     bool
	connectErr error
	publishErr error
	published  []published
	subs       map[string]fakeSub

	// closeGate, when set, blocks Close until it is closed.
	closeGate chan struct{}
	// onPublish runs after every successful publish, outside the lock.
	onPublish func(topic string, payload []byte)
}

func newFakeConn() *fakeConn {
	return &fakeConn{subs: make(map[string]fakeSub)}
}

func (f *fakeConn) dialer() Dialer {
	return func(opts ConnOptions) (Conn, error) {
		f.mu.Lock()
		f.opts = opts
		f.mu.Unlock()
		return f, nil
	}
}

func (f *fakeConn) ConnectAsync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return err
	}
	f.connected = true
	onConnect := f.opts.OnConnect
	f.mu.Unlock()

	if onConnect != nil {
		onConnect()
	}
	return nil
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeConn) Publish(topic string, payload []byte, qos byte, _ bool) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return errors.New("fake: not connected")
	}
	if f.publishErr != nil {
		err := f.publishErr
		f.mu.Unlock()
		return err
	}
	f.published = append(f.published, published{topic: topic, payload: payload, qos: qos})
	hook := f.onPublish
	f.mu.Unlock()

	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (f *fakeConn) Subscribe(topic string, qos byte, handler MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.New("fake: not connected")
	}
	f.subs[topic] = fakeSub{qos: qos, handler: handler}
	return nil
}

func (f *fakeConn) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	gate := f.closeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closed = true
	return nil
}

// drop simulates a broker-side disconnect.
func (f *fakeConn) drop(err error) {
	f.mu.Lock()
	f.connected = false
	lost := f.opts.OnConnectionLost
	f.mu.Unlock()
	if lost != nil {
		lost(err)
	}
}

// deliver routes an inbound message to the first matching subscription.
func (f *fakeConn) deliver(topic string, payload []byte) error {
	f.mu.Lock()
	var handler MessageHandler
	for filter, sub := range f.subs {
		if filterMatches(filter, topic) {
			handler = sub.handler
			break
		}
	}
	f.mu.Unlock()
	if handler == nil {
		return errors.New("fake: no subscription for " + topic)
	}
	return handler(topic, payload)
}

func (f *fakeConn) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]published, len(f.published))
	copy(out, f.published)
	return out
}

func (f *fakeConn) subscription(topic string) (fakeSub, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[topic]
	return s, ok
}

// =============================================================================
// Helpers
// =============================================================================

func testIdentity() auth.Identity {
	return auth.Identity{ProductKey: "PK1", DeviceID: "DEV1", DeviceSecret: "secret"}
}

func testSessionConfig(conn *fakeConn) SessionConfig {
	return SessionConfig{
		BrokerURL:      "ssl://broker.example.com",
		Port:           "8883",
		Identity:       testIdentity(),
		RequestTimeout: time.Second,
		Workers:        2,
		Dialer:         conn.dialer(),
	}
}

// connectedSession opens and connects a session over a fresh fakeConn.
func connectedSession(t *testing.T, mutate func(*SessionConfig)) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	cfg := testSessionConfig(conn)
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s, conn
}

// replyTo makes conn answer every up/request with a response built by fn.
func replyTo(conn *fakeConn, fn func(req map[string]any) (code, data string)) {
	conn.onPublish = func(topic string, payload []byte) {
		if tsl.ExtractMessageID(topic) != "request" {
			return
		}
		basic, req, err := tsl.DecodeRequest(payload)
		if err != nil {
			return
		}
		code, data := fn(map[string]any{"method": req.Method, "params": req.Params})
		body, _ := tsl.EncodeResponse(basic, tsl.Response{Code: code, Message: "ok", Data: data})
		respTopic := "/sys/PK1/DEV1/up/response/" + basic.TraceID
		go func() { _ = conn.deliver(respTopic, body) }()
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// filterMatches supports a trailing single-level wildcard, which is all the
// session subscribes with.
func filterMatches(filter, topic string) bool {
	if prefix, ok := strings.CutSuffix(filter, "+"); ok {
		rest, found := strings.CutPrefix(topic, prefix)
		return found && rest != "" && !strings.Contains(rest, "/")
	}
	return filter == topic
}
