package iot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/transport"
)

// TransportDescriptor is returned by InitTransport.
type TransportDescriptor struct {
	Protocol Protocol
	Identity auth.Identity
	Client   *Client
}

// Manager drives one device through register, connect and disconnect.
//
// Register, InitTransport, ConnectAsync and Disconnect hold the write lock
// for their whole duration. Queries and every Client call hold the read
// lock, so no facade call observes a half-finished transition.
type Manager struct {
	mu sync.RWMutex

	cfg       ConnectionConfig
	lifecycle Lifecycle
	auth      auth.Authenticator
	dialer    transport.Dialer
	logger    Logger
	msgLog    transport.MessageLogSink
	onState   func(connected bool)

	state       State
	identity    auth.Identity
	tls         *TLSOption
	initialized bool
	handle      *transport.Handle
	callbacks   *transport.Callbacks

	clientOnce sync.Once
	client     *Client
}

// Register obtains a device identity from the authenticator.
func (m *Manager) Register(ctx context.Context) (auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "register"
	if m.state == StateConnected || m.state == StateConnecting || !m.identity.IsZero() {
		return auth.Identity{}, illegal(op, "you need disconnect first")
	}
	if m.state != StateUnregistered {
		return auth.Identity{}, illegal(op, "teardown incomplete, disconnect again")
	}

	id, err := m.auth.Register(ctx, m.cfg.Register)
	if err == nil {
		err = id.Validate()
	}
	if err != nil {
		m.logger.Error("device registration failed",
			"product_key", m.cfg.Register.ProductKey,
			"error", err,
		)
		return auth.Identity{}, &Error{Kind: KindRegister, Op: op, Err: err}
	}

	m.identity = id
	m.state = StateRegistered
	m.logger.Info("device registered", "product_key", id.ProductKey, "device_id", id.DeviceID)
	return id, nil
}

// InitTransport opens the transport for the registered identity. An empty
// caCertPath connects without TLS.
func (m *Manager) InitTransport(caCertPath string) (*TransportDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "init transport"
	if m.identity.IsZero() {
		return nil, illegal(op, "you need register first")
	}
	if m.state == StateConnected || m.state == StateConnecting {
		return nil, illegal(op, "you need disconnect first")
	}
	if m.handle.State() == transport.PointActive {
		return nil, illegal(op, "transport already initialised")
	}

	tls := TLSOptionFor(caCertPath)
	switch m.cfg.Protocol {
	case ProtocolMQTT:
		if err := m.openHandle(tls); err != nil {
			m.logger.Error("opening transport failed", "error", err)
			return nil, transportErr(op, err)
		}
	case ProtocolCOAP, ProtocolHTTP, ProtocolWebSocket:
		return nil, &Error{Kind: KindUnsupportedProtocol, Op: op, Msg: m.cfg.Protocol.String()}
	default:
		return nil, &Error{Kind: KindUnsupportedProtocol, Op: op, Msg: m.cfg.Protocol.String()}
	}

	m.tls = tls
	m.initialized = true
	m.logger.Info("transport initialised",
		"protocol", m.cfg.Protocol.String(),
		"tls", tls != nil,
	)
	return &TransportDescriptor{
		Protocol: m.cfg.Protocol,
		Identity: m.identity,
		Client:   m.facade(),
	}, nil
}

func (m *Manager) openHandle(tls *TLSOption) error {
	return m.handle.Open(transport.SessionConfig{
		BrokerURL:      m.cfg.BrokerURL,
		Port:           m.cfg.Port,
		Identity:       m.identity,
		TLS:            tls.transport(),
		KeepAlive:      m.lifecycle.KeepAlive,
		ReconnectMin:   m.lifecycle.ReconnectMin,
		ReconnectMax:   m.lifecycle.ReconnectMax,
		RequestTimeout: m.lifecycle.RequestTimeout,
		Workers:        m.lifecycle.Workers,
		Dialer:         m.dialer,
		Callbacks:      m.callbacks,
		OnConnectState: m.onState,
		Logger:         m.logger,
		MessageLog:     m.msgLog,
	})
}

// ConnectAsync makes the first connection attempt. Later drops are
// recovered by the transport without changing the lifecycle state.
func (m *Manager) ConnectAsync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "connect"
	switch {
	case m.state == StateConnected:
		return illegal(op, "already connected")
	case m.identity.IsZero():
		return illegal(op, "you need register first")
	case !m.initialized:
		return illegal(op, "you need init transport first")
	case m.state == StateDisconnected:
		return illegal(op, "teardown incomplete, disconnect again")
	}

	if m.handle.State() != transport.PointActive {
		if err := m.openHandle(m.tls); err != nil {
			m.logger.Error("reopening transport failed", "error", err)
			return transportErr(op, err)
		}
	}

	prev := m.state
	m.state = StateConnecting
	if err := m.handle.Connect(ctx); err != nil {
		m.state = prev
		m.logger.Error("connect failed",
			"broker", m.cfg.BrokerURL,
			"device_id", m.identity.DeviceID,
			"error", err,
		)
		return transportErr(op, err)
	}

	m.state = StateConnected
	m.logger.Info("connected", "broker", m.cfg.BrokerURL, "device_id", m.identity.DeviceID)
	return nil
}

// Disconnect tears the transport down and clears the identity.
func (m *Manager) Disconnect(ctx context.Context) error {
	return m.disconnect(ctx, false)
}

// DisconnectPreserveIdentity tears the transport down and keeps the
// identity so ConnectAsync can be called again without registering.
func (m *Manager) DisconnectPreserveIdentity(ctx context.Context) error {
	return m.disconnect(ctx, true)
}

func (m *Manager) disconnect(ctx context.Context, preserveIdentity bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "disconnect"
	switch m.state {
	case StateConnected, StateConnecting, StateDisconnected:
	default:
		return illegal(op, "you need register and connect first")
	}

	if m.state != StateDisconnected {
		if err := sleepCtx(ctx, m.lifecycle.DisconnectGrace); err != nil {
			return m.abortTeardown(op, err)
		}
	}

	m.state = StateDisconnecting
	if !preserveIdentity {
		m.identity = auth.Identity{}
	}
	m.handle.Release()

	if err := m.awaitDrain(ctx); err != nil {
		return m.abortTeardown(op, err)
	}
	if err := m.handle.ReleasePtr(); err != nil {
		m.logger.Warn("transport drain reported error", "error", err)
	}
	m.handle.ResetState()

	if m.identity.IsZero() {
		m.state = StateUnregistered
		m.initialized = false
	} else {
		m.state = StateRegistered
	}
	m.logger.Info("disconnected", "preserve_identity", preserveIdentity, "state", m.state.String())
	return nil
}

var errDrainDeadline = errors.New("handle still live at deadline")

// awaitDrain polls the handle until it is no longer live.
func (m *Manager) awaitDrain(ctx context.Context) error {
	var deadline <-chan time.Time
	if m.lifecycle.TeardownTimeout > 0 {
		timer := time.NewTimer(m.lifecycle.TeardownTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(m.lifecycle.pollInterval())
	defer ticker.Stop()

	for m.handle.CheckPointEnable() {
		select {
		case <-ticker.C:
		case <-deadline:
			return fmt.Errorf("%w after %v", errDrainDeadline, m.lifecycle.TeardownTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Manager) abortTeardown(op string, cause error) error {
	m.state = StateDisconnected
	m.logger.Warn("teardown incomplete", "error", cause)
	return &Error{Kind: KindTeardownTimeout, Op: op, Err: cause}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the manager is Connected and the transport up.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateConnected && m.handle.IsConnected()
}

// DeviceAuth returns the current identity, if any.
func (m *Manager) DeviceAuth() (auth.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity, !m.identity.IsZero()
}

// Config returns the connection config.
func (m *Manager) Config() ConnectionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Client returns the facade, or nil before the first InitTransport.
func (m *Manager) Client() *Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// facade builds the Client once. Caller holds the write lock.
func (m *Manager) facade() *Client {
	m.clientOnce.Do(func() {
		m.client = &Client{m: m}
	})
	return m.client
}
