package transport

import (
	"context"
	"time"
)

// Logger is the logging surface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler receives one inbound message. A returned error is logged
// by the Conn and does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Conn is the MQTT connection a Session drives. Implementations must be
// safe for concurrent use.
type Conn interface {
	// ConnectAsync starts the connection and returns once the first attempt
	// has succeeded or failed. Later drops are recovered by the Conn.
	ConnectAsync(ctx context.Context) error
	IsConnected() bool
	Publish(topic string, payload []byte, qos byte, retained bool) error
	// Subscribe registers handler for topic. Subscriptions are restored
	// by the Conn after a reconnect.
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Unsubscribe(topic string) error
	Close() error
}

// TLSConfig selects one-way TLS against a CA certificate.
type TLSConfig struct {
	CACertPath   string
	VerifyServer bool
}

// ConnOptions is everything a Dialer needs to build a Conn.
type ConnOptions struct {
	// BrokerURL may omit the scheme; Port is applied when the URL has none.
	BrokerURL string
	Port      string

	ClientID string
	Username string
	Password string

	// TLS is nil for plain TCP.
	TLS *TLSConfig

	KeepAlive    time.Duration
	CleanSession bool
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// OnConnect runs after every successful (re)connect, on its own goroutine.
	OnConnect func()
	// OnConnectionLost runs when an established connection drops.
	OnConnectionLost func(err error)

	Logger Logger
}

// Dialer builds an unconnected Conn.
type Dialer func(opts ConnOptions) (Conn, error)
