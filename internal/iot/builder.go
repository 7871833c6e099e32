package iot

import (
	"log/slog"

	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/ciot-device-core/internal/transport"
)

// Builder assembles a Manager.
//
//	m, err := iot.NewBuilder().
//	    WithBrokerURL("iot-broker.seewo.com").
//	    WithDeviceName("hall-panel").
//	    WithRegisterConfig(reg).
//	    WithAuthenticator(auth.NewHTTPRegistrar()).
//	    Build()
type Builder struct {
	cfg       ConnectionConfig
	lifecycle Lifecycle
	auth      auth.Authenticator
	dialer    transport.Dialer
	logger    Logger
	msgLog    transport.MessageLogSink
	onState   func(connected bool)
}

// NewBuilder returns a Builder with MQTT on port 8883, the default
// lifecycle, the paho dialer and static registration.
func NewBuilder() *Builder {
	return &Builder{
		cfg:       ConnectionConfig{Port: DefaultPort, Protocol: ProtocolMQTT},
		lifecycle: DefaultLifecycle(),
		auth:      auth.Static{},
		dialer:    mqtt.Dial,
	}
}

// WithBrokerURL sets the broker address. A missing scheme is filled in from
// the TLS setting when the transport is opened.
func (b *Builder) WithBrokerURL(url string) *Builder {
	b.cfg.BrokerURL = url
	return b
}

// WithPort sets the broker port used when the URL carries none.
func (b *Builder) WithPort(port string) *Builder {
	b.cfg.Port = port
	return b
}

// WithDeviceName sets the display name reported to the platform.
func (b *Builder) WithDeviceName(n string) *Builder {
	b.cfg.DeviceName = n
	return b
}

// WithProtocol selects the transport. Only ProtocolMQTT can be opened.
func (b *Builder) WithProtocol(p Protocol) *Builder {
	b.cfg.Protocol = p
	return b
}

// WithRegisterConfig sets the parameters handed to the Authenticator.
func (b *Builder) WithRegisterConfig(rc auth.RegisterConfig) *Builder {
	b.cfg.Register = rc
	return b
}

// WithAuthenticator replaces the default static registration.
func (b *Builder) WithAuthenticator(a auth.Authenticator) *Builder {
	b.auth = a
	return b
}

// WithDialer replaces the paho dialer, mainly for tests.
func (b *Builder) WithDialer(d transport.Dialer) *Builder {
	b.dialer = d
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(l Logger) *Builder {
	b.logger = l
	return b
}

// WithLifecycle sets teardown, request and reconnect timing.
func (b *Builder) WithLifecycle(l Lifecycle) *Builder {
	b.lifecycle = l
	return b
}

// WithMessageLog sets the sink for message trace records.
func (b *Builder) WithMessageLog(s transport.MessageLogSink) *Builder { b.msgLog = s; return b }

// WithConnectStateHandler is called on every transport connect and loss.
func (b *Builder) WithConnectStateHandler(fn func(connected bool)) *Builder {
	b.onState = fn
	return b
}

func (b *Builder) validate() error {
	var missing []string
	if b.cfg.BrokerURL == "" {
		missing = append(missing, "broker_url")
	}
	if b.cfg.DeviceName == "" {
		missing = append(missing, "device_name")
	}
	if b.cfg.Register.ProductKey == "" {
		missing = append(missing, "register.product_key")
	}
	if b.auth == nil {
		missing = append(missing, "authenticator")
	}
	if b.dialer == nil {
		missing = append(missing, "dialer")
	}
	if len(missing) > 0 {
		return &configError{fields: missing}
	}
	return nil
}

func (b *Builder) resolvedLogger() Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

func (b *Builder) resolvedConfig() ConnectionConfig {
	cfg := b.cfg
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	return cfg
}

// Build validates the configuration and returns a fresh Manager.
func (b *Builder) Build() (*Manager, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:       b.resolvedConfig(),
		lifecycle: b.lifecycle,
		auth:      b.auth,
		dialer:    b.dialer,
		logger:    b.resolvedLogger(),
		msgLog:    b.msgLog,
		onState:   b.onState,
		state:     StateUnregistered,
		handle:    transport.NewHandle(),
		callbacks: transport.NewCallbacks(),
	}, nil
}

// ApplyTo overwrites m's configuration under its write lock. The lifecycle
// state, identity and open transport are kept; new settings apply from the
// next Register or transport open.
func (b *Builder) ApplyTo(m *Manager) error {
	if err := b.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = b.resolvedConfig()
	m.lifecycle = b.lifecycle
	m.auth = b.auth
	m.dialer = b.dialer
	m.logger = b.resolvedLogger()
	m.msgLog = b.msgLog
	m.onState = b.onState
	return nil
}
