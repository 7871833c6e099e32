package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/ciot-device-core/internal/auth"
	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// Session defaults.
const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultWorkers        = 4
	DefaultKeepAlive      = 30 * time.Second

	// qosReliable is used for TSL traffic; custom topics use qosExactlyOnce.
	qosReliable    byte = 1
	qosExactlyOnce byte = 2
)

// Failure messages reported in tsl.Response.Message.
const (
	msgNotConnected      = "IoT platform is not connected"
	msgSerializeFail     = "Serialize fail"
	msgPublishFail       = "Failed to publish"
	msgRequestDecodeFail = "Request deserialization failed"
	msgNotSupported      = "Method not supported or callback not set"
	msgConfigDecodeFail  = "Config params deserialize failed"
	msgConfigNoCallback  = "Config callback not set"
	msgUpgradeDecodeFail = "Upgrade params deserialize failed"
	msgUpgradeNoCallback = "Upgrade callback not set"
	msgSessionClosed     = "Session closed"
)

// SessionConfig is everything needed to open a Session.
type SessionConfig struct {
	BrokerURL string
	Port      string
	Identity  auth.Identity
	TLS       *TLSConfig

	KeepAlive      time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
	RequestTimeout time.Duration
	// Workers bounds concurrent inbound message handling.
	Workers int

	Dialer    Dialer
	Callbacks *Callbacks
	// OnConnectState is told about every connect and connection loss.
	OnConnectState func(connected bool)

	Logger     Logger
	MessageLog MessageLogSink
}

// Session speaks TSL over one Conn for one device identity.
type Session struct {
	cfg       SessionConfig
	conn      Conn
	sessionID string
	callbacks *Callbacks
	pending   *pendingCalls
	logger    Logger

	// pool tracks dispatch workers; slots bounds how many run at once.
	pool  *errgroup.Group
	slots chan struct{}

	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}
}

// NewSession validates cfg and dials an unconnected Conn.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("%w: broker url is required", ErrInvalidSession)
	}
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidSession)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.Callbacks == nil {
		cfg.Callbacks = NewCallbacks()
	}

	s := &Session{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		callbacks: cfg.Callbacks,
		pending:   newPendingCalls(),
		logger:    cfg.Logger,
		pool:      new(errgroup.Group),
		slots:     make(chan struct{}, cfg.Workers),
		done:      make(chan struct{}),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	username, password, err := auth.MQTTCredentials(cfg.Identity, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	conn, err := cfg.Dialer(ConnOptions{
		BrokerURL:        cfg.BrokerURL,
		Port:             cfg.Port,
		ClientID:         cfg.Identity.DeviceID,
		Username:         username,
		Password:         password,
		TLS:              cfg.TLS,
		KeepAlive:        cfg.KeepAlive,
		CleanSession:     false,
		ReconnectMin:     cfg.ReconnectMin,
		ReconnectMax:     cfg.ReconnectMax,
		OnConnect:        s.onConnected,
		OnConnectionLost: s.onConnectionLost,
		Logger:           s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return s, nil
}

// Identity returns the identity the session authenticates as.
func (s *Session) Identity() auth.Identity { return s.cfg.Identity }

// Connect makes the first connection attempt.
func (s *Session) Connect(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.conn.ConnectAsync(ctx)
}

// IsConnected reports whether the Conn is up and the session not closed.
func (s *Session) IsConnected() bool {
	return !s.isClosed() && s.conn.IsConnected()
}

// Shutdown stops intake, closes the Conn and fails all pending
// synchronous calls. It does not wait for handlers already running: they
// may call back into the facade, which is locked for the whole teardown.
// Such handlers see ErrSessionClosed or ErrNotConnected and their replies
// are dropped. Later calls are no-ops.
func (s *Session) Shutdown() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.closeMu.Unlock()

	err := s.conn.Close()
	s.pending.failAll(tsl.Failure(tsl.ErrorNotConnected, msgSessionClosed))
	go func() {
		_ = s.pool.Wait()
		s.logger.Debug("dispatch workers finished", "session_id", s.sessionID)
	}()
	return err
}

func (s *Session) isClosed() bool {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	return s.closed
}

func (s *Session) onConnected() {
	id := s.cfg.Identity
	for _, filter := range []string{
		tsl.RPCRequestFilter(id.ProductKey, id.DeviceID),
		tsl.UpResponseFilter(id.ProductKey, id.DeviceID),
	} {
		if err := s.conn.Subscribe(filter, qosReliable, s.onMessage); err != nil {
			s.logger.Error("tsl subscribe failed", "topic", filter, "error", err)
		}
	}
	for _, topic := range s.callbacks.Topics() {
		if err := s.conn.Subscribe(topic, qosExactlyOnce, s.onMessage); err != nil {
			s.logger.Warn("custom subscribe failed", "topic", topic, "error", err)
		}
	}

	s.logger.Info("iot platform connected", "device_id", id.DeviceID, "session_id", s.sessionID)
	s.record(LogDevice, tsl.Basic{TraceID: s.sessionID, DeviceID: id.DeviceID}, "online", tsl.ErrorSuccess, "connected", "")
	if s.cfg.OnConnectState != nil {
		s.cfg.OnConnectState(true)
	}
}

func (s *Session) onConnectionLost(err error) {
	id := s.cfg.Identity
	s.logger.Warn("iot platform connection lost", "device_id", id.DeviceID, "error", err)
	s.record(LogDevice, tsl.Basic{TraceID: s.sessionID, DeviceID: id.DeviceID}, "offline", tsl.ErrorMQTTExcept, fmt.Sprint(err), "")
	if s.cfg.OnConnectState != nil {
		s.cfg.OnConnectState(false)
	}
}

// SubscribeCustom registers h for an exact topic. While offline the
// subscription is deferred to the next connect.
func (s *Session) SubscribeCustom(topic string, h TopicHandler) error {
	s.callbacks.SetTopic(topic, h)
	if !s.IsConnected() {
		return nil
	}
	return s.conn.Subscribe(topic, qosExactlyOnce, s.onMessage)
}

// UnsubscribeCustom removes the handler for topic.
func (s *Session) UnsubscribeCustom(topic string) error {
	s.callbacks.SetTopic(topic, nil)
	if !s.IsConnected() {
		return nil
	}
	return s.conn.Unsubscribe(topic)
}

// PostProperty reports property values.
func (s *Session) PostProperty(basic tsl.Basic, req tsl.Request) error {
	return s.publishUp(basic, req, tsl.UpMethodPropertyPost)
}

// PostEvent reports an event. The method is prefixed with thing.event.
func (s *Session) PostEvent(basic tsl.Basic, req tsl.Request) error {
	return s.publishUp(basic, req, tsl.UpMethodEventPost)
}

// PublishMessage publishes raw bytes to an arbitrary topic.
func (s *Session) PublishMessage(topic string, payload []byte, qos byte, retained bool) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	if err := s.conn.Publish(topic, payload, qos, retained); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishCustom publishes params verbatim to topic at QoS 1. traceID is
// used for the message log only.
func (s *Session) PublishCustom(topic, traceID, params string) error {
	basic := tsl.Basic{TraceID: traceID}
	if !s.IsConnected() {
		s.record(LogUp, basic, topic, tsl.ErrorNotConnected, msgNotConnected, params)
		return ErrNotConnected
	}
	if err := s.conn.Publish(topic, []byte(params), qosReliable, false); err != nil {
		s.record(LogUp, basic, topic, tsl.ErrorPublishFail, err.Error(), params)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	s.record(LogUp, basic, topic, tsl.ErrorSuccess, "", params)
	return nil
}

// GetProperty asks the cloud for property values and waits for the reply.
func (s *Session) GetProperty(ctx context.Context, basic tsl.Basic, req tsl.Request) (tsl.Response, error) {
	return s.call(ctx, basic, req, tsl.UpMethodPropertyGet)
}

// CallService invokes a cloud service and waits for the reply.
func (s *Session) CallService(ctx context.Context, basic tsl.Basic, req tsl.Request) (tsl.Response, error) {
	return s.call(ctx, basic, req, tsl.UpMethodService)
}

// PostDeviceVersion reports the firmware version.
func (s *Session) PostDeviceVersion(version string) error {
	return s.postInfo(tsl.UpMethodBasicPost, map[string]string{"version": version})
}

// PostDeviceName reports the device display name.
func (s *Session) PostDeviceName(name string) error {
	return s.postInfo(tsl.UpMethodBasicPost, map[string]string{"deviceName": name})
}

// PostConfigVersion reports the configuration versions the device holds.
func (s *Session) PostConfigVersion(keys []tsl.ConfigKey) error {
	if keys == nil {
		keys = []tsl.ConfigKey{}
	}
	return s.postInfo(tsl.UpMethodConfigPost, keys)
}

// SubConnect reports a sub-device online through this gateway.
func (s *Session) SubConnect(basic tsl.Basic, sub auth.Identity) error {
	return s.postSub(basic, tsl.UpMethodSubConnect, sub)
}

// SubDisconnect reports a sub-device offline.
func (s *Session) SubDisconnect(basic tsl.Basic, sub auth.Identity) error {
	return s.postSub(basic, tsl.UpMethodSubDisconnect, sub)
}

// AddSubDevice binds a sub-device to this gateway.
func (s *Session) AddSubDevice(basic tsl.Basic, sub auth.Identity) error {
	return s.postSub(basic, tsl.UpMethodSubAdd, sub)
}

// DeleteSubDevice unbinds a sub-device.
func (s *Session) DeleteSubDevice(basic tsl.Basic, sub auth.Identity) error {
	return s.postSub(basic, tsl.UpMethodSubDel, sub)
}

// GetSubDevices lists the sub-devices bound to this gateway.
func (s *Session) GetSubDevices(ctx context.Context, basic tsl.Basic) ([]auth.Identity, tsl.Response, error) {
	res, err := s.call(ctx, basic, tsl.Request{Method: tsl.UpMethodSubGet, Params: "{}"}, tsl.UpMethodSubGet)
	if err != nil || !res.OK() {
		return nil, res, err
	}
	if res.Data == "" || res.Data == "null" {
		return []auth.Identity{}, res, nil
	}
	var subs []auth.Identity
	if err := json.Unmarshal([]byte(res.Data), &subs); err != nil {
		return nil, res, fmt.Errorf("%w: sub-device list: %w", tsl.ErrMalformed, err)
	}
	return subs, res, nil
}

func (s *Session) postInfo(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}
	return s.publishUp(tsl.Basic{}, tsl.Request{Method: method, Params: string(raw)}, method)
}

func (s *Session) postSub(basic tsl.Basic, method string, sub auth.Identity) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}
	return s.publishUp(basic, tsl.Request{Method: method, Params: string(raw)}, method)
}

// publishUp encodes and publishes an uplink request. The pending call for
// the trace ID, if any, is registered by the caller before this runs.
func (s *Session) publishUp(basic tsl.Basic, req tsl.Request, prefix string) error {
	basic, req = s.prepare(basic, req, prefix)
	if !s.IsConnected() {
		s.record(LogUp, basic, req.Method, tsl.ErrorNotConnected, msgNotConnected, req.Params)
		return ErrNotConnected
	}

	payload, err := tsl.EncodeUp(basic, req)
	if err != nil {
		s.record(LogUp, basic, req.Method, tsl.ErrorSerializeFail, msgSerializeFail, req.Params)
		return err
	}

	topic := tsl.UpRequestTopic(s.cfg.Identity.ProductKey, basic.DeviceID)
	if err := s.conn.Publish(topic, payload, qosReliable, false); err != nil {
		s.record(LogUp, basic, req.Method, tsl.ErrorPublishFail, err.Error(), req.Params)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	s.record(LogUp, basic, req.Method, tsl.ErrorSuccess, "", req.Params)
	return nil
}

func (s *Session) prepare(basic tsl.Basic, req tsl.Request, prefix string) (tsl.Basic, tsl.Request) {
	req.Method = tsl.WithPrefix(prefix, req.Method)
	if basic.DeviceID == "" {
		basic.DeviceID = s.cfg.Identity.DeviceID
	}
	if basic.TraceID == "" {
		basic.TraceID = tsl.NewTraceID()
	}
	return basic, req
}

// call publishes a request under a fresh trace ID and waits for the
// matching up/response.
func (s *Session) call(ctx context.Context, basic tsl.Basic, req tsl.Request, prefix string) (tsl.Response, error) {
	if !s.IsConnected() {
		return tsl.Failure(tsl.ErrorNotConnected, msgNotConnected), ErrNotConnected
	}

	basic.TraceID = tsl.NewTraceID()
	reply, ok := s.pending.add(basic.TraceID)
	if !ok {
		return tsl.Failure(tsl.ErrorNotConnected, msgSessionClosed), ErrSessionClosed
	}

	if err := s.publishUp(basic, req, prefix); err != nil {
		s.pending.remove(basic.TraceID)
		switch {
		case errors.Is(err, ErrNotConnected):
			return tsl.Failure(tsl.ErrorNotConnected, msgNotConnected), err
		case errors.Is(err, ErrPublishFailed):
			return tsl.Failure(tsl.ErrorPublishFail, msgPublishFail), err
		default:
			return tsl.Failure(tsl.ErrorSerializeFail, msgSerializeFail), err
		}
	}

	timer := time.NewTimer(s.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case res := <-reply:
		if s.isClosed() {
			return res, ErrSessionClosed
		}
		return res, nil
	case <-timer.C:
		s.pending.remove(basic.TraceID)
		return tsl.Failure(tsl.ErrorTimeout, "Request timeout: "+basic.TraceID), ErrTimeout
	case <-ctx.Done():
		s.pending.remove(basic.TraceID)
		return tsl.Failure(tsl.ErrorTimeout, "Request timeout: "+basic.TraceID), ctx.Err()
	}
}

func (s *Session) record(typ LogType, basic tsl.Basic, method string, code tsl.ErrorCode, message, content string) {
	if s.cfg.MessageLog == nil {
		return
	}
	deviceID := basic.DeviceID
	if deviceID == "" {
		deviceID = s.cfg.Identity.DeviceID
	}
	s.cfg.MessageLog.WriteMessageLog(MessageLog{
		Timestamp:  time.Now(),
		Module:     ModuleSDK,
		DeviceID:   deviceID,
		ProductKey: s.cfg.Identity.ProductKey,
		Code:       DeviceCode(code),
		Message:    message,
		TraceID:    basic.TraceID,
		Method:     method,
		Content:    content,
		Type:       typ,
	})
}
