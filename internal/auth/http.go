package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// Registration protocol constants.
const (
	// registerProtocolVersion is the request schema version the platform expects.
	registerProtocolVersion = "1.1.3"

	// defaultRegisterTimeout bounds a single registration round trip.
	defaultRegisterTimeout = 15 * time.Second

	// maxRegisterResponseSize caps the response body read.
	maxRegisterResponseSize = 64 << 10

	headerSign    = "x-auth-sign"
	headerTraceID = "x-auth-traceID"
	headerTS      = "x-auth-ts"
	contentType   = "application/json;charset=UTF-8"
)

// Logger is the logging surface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type registerIdentity struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

type registerRequest struct {
	ProductKey string             `json:"productKey"`
	Version    string             `json:"version"`
	Identities []registerIdentity `json:"identities"`
}

type registerResponse struct {
	Code    *string   `json:"code"`
	Message *string   `json:"message"`
	Data    *Identity `json:"data"`
}

// HTTPRegistrar registers devices through the platform's HTTP endpoint.
type HTTPRegistrar struct {
	client *http.Client
	logger Logger
	now    func() time.Time
}

// HTTPOption configures an HTTPRegistrar.
type HTTPOption func(*HTTPRegistrar)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRegistrar) { r.client = c }
}

// WithLogger sets a logger for registration outcomes.
func WithLogger(l Logger) HTTPOption {
	return func(r *HTTPRegistrar) { r.logger = l }
}

// WithClock overrides the timestamp source for the x-auth-ts header.
func WithClock(now func() time.Time) HTTPOption {
	return func(r *HTTPRegistrar) { r.now = now }
}

// NewHTTPRegistrar creates a registrar with a bounded default client.
func NewHTTPRegistrar(opts ...HTTPOption) *HTTPRegistrar {
	r := &HTTPRegistrar{
		client: &http.Client{Timeout: defaultRegisterTimeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register posts the device identifiers and returns the issued identity.
//
// The body is signed with the product secret and sent with a fresh trace
// ID and millisecond timestamp. A response whose code is not "000000", or
// whose data lacks a device ID or secret, fails with ErrRejected.
func (r *HTTPRegistrar) Register(ctx context.Context, cfg RegisterConfig) (Identity, error) {
	if len(cfg.Identifiers) == 0 {
		return Identity{}, &FieldError{Fields: []string{"identifiers"}}
	}
	if cfg.ProductKey == "" {
		return Identity{}, &FieldError{Fields: []string{"product_key"}}
	}
	if cfg.URL == "" {
		return Identity{}, &FieldError{Fields: []string{"url"}}
	}

	body, err := packRegisterRequest(cfg)
	if err != nil {
		return Identity{}, err
	}
	sign, err := Sign(cfg.ProductSecret, string(body))
	if err != nil {
		return Identity{}, fmt.Errorf("signing register request: %w", err)
	}

	traceID := tsl.NewTraceID()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Identity{}, fmt.Errorf("building register request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(headerSign, sign)
	req.Header.Set(headerTraceID, traceID)
	req.Header.Set(headerTS, strconv.FormatInt(r.now().UnixMilli(), 10))

	resp, err := r.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("posting register request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRegisterResponseSize))
	if err != nil {
		return Identity{}, fmt.Errorf("reading register response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Identity{}, fmt.Errorf("%w: http status %d", ErrRejected, resp.StatusCode)
	}

	id, err := parseRegisterResponse(raw, cfg.ProductKey)
	if err != nil {
		r.warn("device registration failed",
			"trace_id", traceID,
			"env", DetectEnv(cfg.URL).String(),
			"error", err,
		)
		return Identity{}, err
	}

	if r.logger != nil {
		r.logger.Info("device registered",
			"trace_id", traceID,
			"env", DetectEnv(cfg.URL).String(),
			"device_id", id.DeviceID,
		)
	}
	return id, nil
}

func (r *HTTPRegistrar) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

// packRegisterRequest encodes the request with identifier types sorted so
// the signed body is deterministic.
func packRegisterRequest(cfg RegisterConfig) ([]byte, error) {
	types := make([]string, 0, len(cfg.Identifiers))
	for t := range cfg.Identifiers {
		types = append(types, t)
	}
	sort.Strings(types)

	req := registerRequest{
		ProductKey: cfg.ProductKey,
		Version:    registerProtocolVersion,
		Identities: make([]registerIdentity, 0, len(types)),
	}
	for _, t := range types {
		values := cfg.Identifiers[t]
		if values == nil {
			values = []string{}
		}
		req.Identities = append(req.Identities, registerIdentity{Type: t, Values: values})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding register request: %w", err)
	}
	return body, nil
}

func parseRegisterResponse(raw []byte, productKey string) (Identity, error) {
	var resp registerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Identity{}, fmt.Errorf("%w: decoding response: %w", ErrRejected, err)
	}
	if resp.Code == nil || resp.Message == nil || resp.Data == nil {
		return Identity{}, fmt.Errorf("%w: response missing code, message or data", ErrRejected)
	}
	if *resp.Code != tsl.CodeSucceed {
		return Identity{}, fmt.Errorf("%w: code %s: %s", ErrRejected, *resp.Code, *resp.Message)
	}

	id := *resp.Data
	if id.ProductKey == "" {
		id.ProductKey = productKey
	}
	if strings.TrimSpace(id.DeviceID) == "" || id.DeviceSecret == "" {
		return Identity{}, fmt.Errorf("%w: response data missing device credentials", ErrRejected)
	}
	return id, nil
}
