package tsl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Codec errors.
var (
	// ErrEmptyPayload is returned when there is nothing to decode.
	ErrEmptyPayload = errors.New("tsl: empty payload")

	// ErrMalformed is returned when a payload is not the expected JSON shape.
	ErrMalformed = errors.New("tsl: malformed payload")

	// ErrInvalidParams is returned when request params are not valid JSON.
	ErrInvalidParams = errors.New("tsl: params must be valid JSON")
)

const emptyObject = "{}"

type upEnvelope struct {
	Version string          `json:"version"`
	TraceID string          `json:"traceId"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type responseEnvelope struct {
	Version string          `json:"version"`
	TraceID string          `json:"traceId"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// EncodeUp serialises a device → cloud request.
//
// Empty params are sent as {}. Params that are not valid JSON fail with
// ErrInvalidParams.
func EncodeUp(basic Basic, req Request) ([]byte, error) {
	params := json.RawMessage(emptyObject)
	if req.Params != "" {
		if !json.Valid([]byte(req.Params)) {
			return nil, fmt.Errorf("%w: method %s", ErrInvalidParams, req.Method)
		}
		params = json.RawMessage(req.Params)
	}

	return marshal(upEnvelope{
		Version: versionOrDefault(basic.Version),
		TraceID: basic.TraceID,
		Method:  req.Method,
		Params:  params,
	})
}

// EncodeResponse serialises a reply to a cloud request.
//
// Data that is valid JSON is embedded as-is; anything else is sent as a
// JSON string. Empty data and the literal "null" are omitted.
func EncodeResponse(basic Basic, res Response) ([]byte, error) {
	env := responseEnvelope{
		Version: versionOrDefault(basic.Version),
		TraceID: basic.TraceID,
		Code:    res.Code,
		Message: res.Message,
	}

	if res.Data != "" && res.Data != "null" {
		if json.Valid([]byte(res.Data)) {
			env.Data = json.RawMessage(res.Data)
		} else {
			quoted, err := json.Marshal(res.Data)
			if err != nil {
				return nil, fmt.Errorf("encoding response data: %w", err)
			}
			env.Data = quoted
		}
	}

	return marshal(env)
}

// DecodeRequest parses a request envelope.
//
// Object and array params are kept as raw JSON, string params are unquoted,
// and missing params decode as {}.
func DecodeRequest(payload []byte) (Basic, Request, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return Basic{}, Request{}, err
	}

	basic := Basic{
		Version: rawText(fields[TagVersion]),
		TraceID: rawText(fields[TagTraceID]),
	}
	req := Request{
		Method: rawText(fields[TagMethod]),
		Params: emptyObject,
	}
	if raw, ok := fields[TagParams]; ok {
		req.Params = rawText(raw)
	}
	return basic, req, nil
}

// DecodeResponse parses a response envelope. A missing code decodes as
// ErrorDeserializeFail.
func DecodeResponse(payload []byte) (Basic, Response, error) {
	fields, err := decodeObject(payload)
	if err != nil {
		return Basic{}, Response{}, err
	}

	basic := Basic{
		Version: rawText(fields[TagVersion]),
		TraceID: rawText(fields[TagTraceID]),
	}
	res := Response{
		Code:    ErrorDeserializeFail.String(),
		Message: rawText(fields[TagMessage]),
		Data:    rawText(fields[TagData]),
	}
	if raw, ok := fields[TagCode]; ok {
		res.Code = rawText(raw)
	}
	return basic, res, nil
}

// DecodeConfigItems parses the params of a configPush request: a JSON
// array of {key, version, values}. Non-object elements are skipped.
func DecodeConfigItems(params string) ([]ConfigItem, error) {
	if params == "" {
		return nil, ErrEmptyPayload
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(params), &elems); err != nil {
		return nil, fmt.Errorf("%w: config items: %w", ErrMalformed, err)
	}

	items := make([]ConfigItem, 0, len(elems))
	for _, elem := range elems {
		var obj map[string]json.RawMessage
		if json.Unmarshal(elem, &obj) != nil || obj == nil {
			continue
		}

		item := ConfigItem{Values: emptyObject}
		item.Key.Key = rawText(obj["key"])
		if raw, ok := obj["version"]; ok {
			if err := json.Unmarshal(raw, &item.Key.Version); err != nil {
				return nil, fmt.Errorf("%w: config version: %w", ErrMalformed, err)
			}
		}
		if raw, ok := obj["values"]; ok {
			item.Values = string(bytes.TrimSpace(raw))
		}
		items = append(items, item)
	}
	return items, nil
}

// DecodeUpdate parses the params of an upgrade request.
func DecodeUpdate(params string) (Update, error) {
	fields, err := decodeObject([]byte(params))
	if err != nil {
		return Update{}, err
	}
	return Update{
		VersionCode: rawText(fields["versionCode"]),
		PolicyTag:   rawText(fields["policyTag"]),
		AppKey:      rawText(fields["appKey"]),
	}, nil
}

func decodeObject(payload []byte) (map[string]json.RawMessage, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, ErrEmptyPayload
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return fields, nil
}

// rawText flattens a JSON value: strings are unquoted, null is empty, and
// everything else is returned as its JSON text.
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

func versionOrDefault(v string) string {
	if v == "" {
		return envelopeVersion
	}
	return v
}

// marshal encodes v without HTML escaping and without a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
