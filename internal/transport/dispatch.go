package transport

import (
	"fmt"
	"strings"

	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// onMessage is the MessageHandler for every subscription. It hands the
// message to a dispatch worker and blocks while all workers are busy,
// until the session shuts down.
func (s *Session) onMessage(topic string, payload []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	select {
	case s.slots <- struct{}{}:
	case <-s.done:
		return ErrSessionClosed
	}

	s.pool.Go(func() error {
		defer func() { <-s.slots }()
		if s.isClosed() {
			return nil
		}
		s.route(topic, payload)
		return nil
	})
	return nil
}

func (s *Session) route(topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in message handler", "topic", topic, "panic", fmt.Sprint(r))
		}
	}()

	switch {
	case tsl.IsRPCRequest(topic):
		s.handleDownRequest(topic, payload)
	case tsl.IsUpResponse(topic):
		s.handleUpResponse(topic, payload)
	default:
		s.handleCustom(topic, payload)
	}
}

// handleDownRequest answers a cloud request on the matching rpc/response
// topic. Every request gets exactly one reply.
func (s *Session) handleDownRequest(topic string, payload []byte) {
	basic, req, err := tsl.DecodeRequest(payload)
	var res tsl.Response
	if err != nil {
		s.logger.Warn("undecodable request", "topic", topic, "error", err)
		res = tsl.Failure(tsl.ErrorDeserializeFail, msgRequestDecodeFail)
	} else {
		basic.DeviceID = tsl.ExtractDeviceID(topic)
		s.record(LogDown, basic, req.Method, tsl.ErrorSuccess, "", req.Params)
		res = s.dispatchRequest(basic, req)
	}

	deviceID, messageID := basic.DeviceID, tsl.ExtractMessageID(topic)
	if addr, ok := tsl.ParseAddress(topic); ok && addr.Kind == tsl.KindRPCRequest {
		deviceID, messageID = addr.DeviceID, addr.MessageID
	}
	if deviceID == "" {
		deviceID = s.cfg.Identity.DeviceID
	}
	replyTopic := tsl.DownResponseTopic(s.cfg.Identity.ProductKey, deviceID, messageID)

	body, err := tsl.EncodeResponse(basic, res)
	if err != nil {
		s.logger.Error("encoding reply failed", "topic", replyTopic, "error", err)
		return
	}
	if err := s.publishReply(replyTopic, body); err != nil {
		s.logger.Warn("publishing reply failed", "topic", replyTopic, "trace_id", basic.TraceID, "error", err)
		s.record(LogUp, basic, req.Method, tsl.ErrorPublishFail, err.Error(), res.Data)
		return
	}
	s.record(LogUp, basic, req.Method, tsl.ErrorSuccess, res.Message, res.Data)
}

// publishReply sends a downlink reply unless the session has shut down
// while the handler ran.
func (s *Session) publishReply(topic string, body []byte) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.conn.Publish(topic, body, qosReliable, false)
}

func (s *Session) dispatchRequest(basic tsl.Basic, req tsl.Request) tsl.Response {
	h := s.callbacks.snapshot()

	switch {
	case tsl.IsTheMethod(tsl.DownMethodPropertySet, req.Method):
		if h.propertySet != nil {
			return normalize(h.propertySet(basic, req))
		}
	case tsl.IsTheMethod(tsl.DownMethodPropertyGet, req.Method):
		if h.propertyGet != nil {
			return normalize(h.propertyGet(basic, req))
		}
	case tsl.IsTheMethod(tsl.DownServiceConfigPush, req.Method):
		return s.applyConfig(h.config, req)
	case tsl.IsTheMethod(tsl.DownServiceUpgrade, req.Method):
		return s.startUpgrade(h.upgrade, req)
	case strings.HasPrefix(req.Method, tsl.DownMethodService):
		if h.service != nil {
			return normalize(h.service(basic, req))
		}
	}
	return tsl.Failure(tsl.ErrorMethodNotSupport, msgNotSupported)
}

func (s *Session) applyConfig(h ConfigHandler, req tsl.Request) tsl.Response {
	if h == nil {
		return tsl.Failure(tsl.ErrorMethodNotSupport, msgConfigNoCallback)
	}
	items, err := tsl.DecodeConfigItems(req.Params)
	if err != nil {
		return tsl.Failure(tsl.ErrorDeserializeFail, msgConfigDecodeFail)
	}
	if err := h(items); err != nil {
		return tsl.Response{Code: tsl.CodeFailed, Message: err.Error(), Data: "null"}
	}
	return tsl.Success("")
}

func (s *Session) startUpgrade(h UpgradeHandler, req tsl.Request) tsl.Response {
	if h == nil {
		return tsl.Failure(tsl.ErrorMethodNotSupport, msgUpgradeNoCallback)
	}
	update, err := tsl.DecodeUpdate(req.Params)
	if err != nil {
		return tsl.Failure(tsl.ErrorDeserializeFail, msgUpgradeDecodeFail)
	}
	if err := h(update.VersionCode); err != nil {
		return tsl.Response{Code: tsl.CodeFailed, Message: err.Error(), Data: "null"}
	}
	return tsl.Success("")
}

// handleUpResponse completes the synchronous call waiting on the trace ID.
// Replies nobody is waiting for are dropped.
func (s *Session) handleUpResponse(topic string, payload []byte) {
	basic, res, err := tsl.DecodeResponse(payload)
	if err != nil {
		s.logger.Warn("undecodable response", "topic", topic, "error", err)
		return
	}
	basic.DeviceID = tsl.ExtractDeviceID(topic)

	code := tsl.ErrorSuccess
	if !res.OK() {
		code = tsl.ErrorMethodNotMatch
	}
	s.record(LogDown, basic, "response", code, res.Message, res.Data)

	if !s.pending.complete(basic.TraceID, res) {
		s.logger.Debug("response without pending call", "trace_id", basic.TraceID)
	}
}

func (s *Session) handleCustom(topic string, payload []byte) {
	h := s.callbacks.Topic(topic)
	if h == nil {
		s.logger.Debug("no handler for topic", "topic", topic)
		return
	}
	h(topic, payload)
}

// normalize turns a zero Response into success.
func normalize(res tsl.Response) tsl.Response {
	if res.Code == "" {
		return tsl.Success(res.Data)
	}
	return res
}
