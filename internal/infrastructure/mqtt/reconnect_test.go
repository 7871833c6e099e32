package mqtt

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/transport"
)

// flakyBroker accepts one MQTT session, drops it straight after CONNACK and
// hangs up on every later connection.
type flakyBroker struct {
	ln    net.Listener
	dials atomic.Int32
}

func newFlakyBroker(t *testing.T) *flakyBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := &flakyBroker{ln: ln}
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck // test cleanup
	go b.serve()
	return b
}

func (b *flakyBroker) port() string {
	return strconv.Itoa(b.ln.Addr().(*net.TCPAddr).Port)
}

func (b *flakyBroker) serve() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		if b.dials.Add(1) == 1 {
			if readPacket(conn) == nil {
				conn.Write([]byte{0x20, 0x02, 0x00, 0x00}) //nolint:errcheck // CONNACK, accepted
			}
		}
		conn.Close() //nolint:errcheck // dropping the session is the point
	}
}

// readPacket consumes one MQTT control packet.
func readPacket(r io.Reader) error {
	header := make([]byte, 1)
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}
	var length, shift int
	for {
		b := make([]byte, 1)
		if _, err := io.ReadFull(r, b); err != nil {
			return err
		}
		length |= int(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			break
		}
		shift += 7
	}
	_, err := io.CopyN(io.Discard, r, int64(length))
	return err
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClose_StopsReconnect(t *testing.T) {
	broker := newFlakyBroker(t)
	lost := make(chan struct{}, 1)
	c, err := New(transport.ConnOptions{
		BrokerURL:    "127.0.0.1",
		Port:         broker.port(),
		ClientID:     "DEV1",
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 20 * time.Millisecond,
		OnConnectionLost: func(error) {
			select {
			case lost <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.ConnectAsync(ctx); err != nil {
		t.Fatalf("ConnectAsync() error = %v", err)
	}
	select {
	case <-lost:
	case <-time.After(5 * time.Second):
		t.Fatal("connection loss not reported")
	}
	waitUntil(t, "a reconnect attempt", func() bool { return broker.dials.Load() >= 2 })

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	after := broker.dials.Load()
	time.Sleep(300 * time.Millisecond)

	// One dial may already have been in flight when Close ran.
	if n := broker.dials.Load(); n > after+1 {
		t.Errorf("dials after Close() = %d, want at most %d", n, after+1)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
