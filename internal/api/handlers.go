package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ciot-device-core/internal/iot"
	"github.com/nerrad567/ciot-device-core/internal/transport"
	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	State         string `json:"state"`
	Connected     bool   `json:"connected"`
	ProductKey    string `json:"product_key,omitempty"`
	DeviceID      string `json:"device_id,omitempty"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// UplinkRequest is the body of the property and event endpoints.
type UplinkRequest struct {
	TraceID string          `json:"trace_id,omitempty"`
	Params  json.RawMessage `json:"params"`
}

// UplinkResponse acknowledges an accepted uplink.
type UplinkResponse struct {
	TraceID string `json:"trace_id"`
}

// handleHealth returns the server health status. The agent is degraded,
// not down, while the broker is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	connected := s.status.IsConnected()
	if !connected {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"connected": connected,
		"version":   s.version,
	})
}

// handleStatus returns the lifecycle state and the registered identity
// without its secret.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		State:         s.status.State().String(),
		Connected:     s.status.IsConnected(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if id, ok := s.status.DeviceAuth(); ok {
		resp.ProductKey = id.ProductKey
		resp.DeviceID = id.DeviceID
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePostProperty reports properties through thing.property.post.
func (s *Server) handlePostProperty(w http.ResponseWriter, r *http.Request) {
	basic, req, ok := decodeUplink(w, r)
	if !ok {
		return
	}
	if err := s.publisher.PostProperty(basic, req); err != nil {
		s.writeUplinkError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, UplinkResponse{TraceID: basic.TraceID})
}

// handlePostEvent reports the event named by the identifier path segment.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	identifier := strings.TrimSpace(chi.URLParam(r, "identifier"))
	if identifier == "" {
		writeBadRequest(w, "event identifier is required")
		return
	}
	basic, req, ok := decodeUplink(w, r)
	if !ok {
		return
	}
	req.Method = identifier
	if err := s.publisher.PostEvent(basic, req); err != nil {
		s.writeUplinkError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, UplinkResponse{TraceID: basic.TraceID})
}

// decodeUplink parses an UplinkRequest. It writes the error response and
// returns false when the body is unusable.
func decodeUplink(w http.ResponseWriter, r *http.Request) (tsl.Basic, tsl.Request, bool) {
	var body UplinkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return tsl.Basic{}, tsl.Request{}, false
	}
	if len(body.Params) == 0 || !json.Valid(body.Params) {
		writeBadRequest(w, "params must be a JSON value")
		return tsl.Basic{}, tsl.Request{}, false
	}

	traceID := body.TraceID
	if traceID == "" {
		traceID = tsl.NewTraceID()
	}
	return tsl.Basic{TraceID: traceID}, tsl.Request{Params: string(body.Params)}, true
}

func (s *Server) writeUplinkError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, iot.ErrNotConnected), errors.Is(err, transport.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "device is not connected")
	case errors.Is(err, tsl.ErrInvalidParams):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error("uplink failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "uplink failed")
	}
}
