package iot

import (
	"time"

	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/transport"
)

// DefaultPort is the broker port used when none is configured.
const DefaultPort = "8883"

// ConnectionConfig is where and as what a Manager connects.
type ConnectionConfig struct {
	BrokerURL  string
	Port       string
	DeviceName string
	Protocol   Protocol
	Register   auth.RegisterConfig
}

// Lifecycle tunes connection and teardown timing.
type Lifecycle struct {
	// DisconnectGrace is slept before teardown so in-flight publishes land.
	DisconnectGrace time.Duration
	// TeardownPoll is the drain polling interval.
	TeardownPoll time.Duration
	// TeardownTimeout bounds the drain. Zero waits forever.
	TeardownTimeout time.Duration
	// RequestTimeout bounds synchronous calls.
	RequestTimeout time.Duration
	// Workers bounds concurrent downlink handlers.
	Workers int

	KeepAlive    time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// DefaultLifecycle returns the production timings.
func DefaultLifecycle() Lifecycle {
	return Lifecycle{
		DisconnectGrace: time.Second,
		TeardownPoll:    100 * time.Millisecond,
		TeardownTimeout: 30 * time.Second,
		RequestTimeout:  transport.DefaultRequestTimeout,
		Workers:         transport.DefaultWorkers,
		KeepAlive:       transport.DefaultKeepAlive,
		ReconnectMin:    2 * time.Second,
		ReconnectMax:    60 * time.Second,
	}
}

func (l Lifecycle) pollInterval() time.Duration {
	if l.TeardownPoll <= 0 {
		return 100 * time.Millisecond
	}
	return l.TeardownPoll
}

// Logger is the logging surface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger = transport.Logger
