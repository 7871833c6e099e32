package iot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/transport"
)

type sentMessage struct {
	topic   string
	payload []byte
}

// fakeBroker hands out in-memory Conns and records everything published
// through any of them.
type fakeBroker struct {
	mu         sync.Mutex
	dials      int
	connectErr error
	closeGate  chan struct{}
	sent       []sentMessage
	conns      []*fakeConn
}

func (b *fakeBroker) dial(opts transport.ConnOptions) (transport.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	c := &fakeConn{broker: b, opts: opts, subs: make(map[string]transport.MessageHandler)}
	b.conns = append(b.conns, c)
	return c, nil
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) messages() []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sentMessage, len(b.sent))
	copy(out, b.sent)
	return out
}

func (b *fakeBroker) last() *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[len(b.conns)-1]
}

type fakeConn struct {
	broker    *fakeBroker
	opts      transport.ConnOptions
	mu        sync.Mutex
	connected bool
	subs      map[string]transport.MessageHandler
}

func (c *fakeConn) ConnectAsync(ctx context.Context) error {
	c.broker.mu.Lock()
	err := c.broker.connectErr
	c.broker.mu.Unlock()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	if c.opts.OnConnect != nil {
		c.opts.OnConnect()
	}
	return nil
}

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) Publish(topic string, payload []byte, _ byte, _ bool) error {
	if !c.IsConnected() {
		return errors.New("fake: not connected")
	}
	c.broker.mu.Lock()
	c.broker.sent = append(c.broker.sent, sentMessage{topic: topic, payload: payload})
	c.broker.mu.Unlock()
	return nil
}

func (c *fakeConn) Subscribe(topic string, _ byte, h transport.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = h
	return nil
}

func (c *fakeConn) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, topic)
	return nil
}

func (c *fakeConn) Close() error {
	c.broker.mu.Lock()
	gate := c.broker.closeGate
	c.broker.mu.Unlock()
	if gate != nil {
		<-gate
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) deliver(topic string, payload []byte) error {
	c.mu.Lock()
	var h transport.MessageHandler
	for filter, handler := range c.subs {
		if filterMatches(filter, topic) {
			h = handler
			break
		}
	}
	c.mu.Unlock()
	if h == nil {
		return errors.New("fake: no subscriber for " + topic)
	}
	return h(topic, payload)
}

// =============================================================================
// Helpers
// =============================================================================

var testIdentity = auth.Identity{ProductKey: "PK1", DeviceID: "DEV1", DeviceSecret: "secret"}

func fixedAuth(calls *int) auth.Authenticator {
	return auth.AuthenticatorFunc(func(ctx context.Context, _ auth.RegisterConfig) (auth.Identity, error) {
		if calls != nil {
			*calls++
		}
		return testIdentity, ctx.Err()
	})
}

func fastLifecycle() Lifecycle {
	l := DefaultLifecycle()
	l.DisconnectGrace = 0
	l.TeardownPoll = 2 * time.Millisecond
	l.TeardownTimeout = 2 * time.Second
	l.RequestTimeout = time.Second
	return l
}

func testBuilder(b *fakeBroker) *Builder {
	return NewBuilder().
		WithBrokerURL("ssl://broker.example.com").
		WithDeviceName("test-device").
		WithRegisterConfig(auth.RegisterConfig{ProductKey: "PK1", DeviceID: "DEV1", ProductSecret: "secret"}).
		WithAuthenticator(fixedAuth(nil)).
		WithDialer(b.dial).
		WithLifecycle(fastLifecycle())
}

func newTestManager(t *testing.T, b *fakeBroker) *Manager {
	t.Helper()
	m, err := testBuilder(b).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

// connectedManager returns a manager that has registered, initialised and
// connected over b.
func connectedManager(t *testing.T, b *fakeBroker) (*Manager, *Client) {
	t.Helper()
	m := newTestManager(t, b)
	ctx := context.Background()
	if _, err := m.Register(ctx); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	desc, err := m.InitTransport("")
	if err != nil {
		t.Fatalf("InitTransport() error = %v", err)
	}
	if err := m.ConnectAsync(ctx); err != nil {
		t.Fatalf("ConnectAsync() error = %v", err)
	}
	return m, desc.Client
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
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
