package tsl

import "strconv"

// Response codes carried in Response.Code.
const (
	CodeSucceed = "000000"
	CodeFailed  = "999999"
)

// Basic is the envelope shared by every TSL message.
type Basic struct {
	Version  string
	TraceID  string
	DeviceID string
}

// Request is a method invocation. Params holds raw JSON.
type Request struct {
	Method string
	Params string
}

// Response is the reply to a Request. Data holds raw JSON or plain text.
type Response struct {
	Code    string
	Message string
	Data    string
}

// OK reports whether the response carries the success code.
func (r Response) OK() bool {
	return r.Code == CodeSucceed
}

// Success builds a successful response.
func Success(data string) Response {
	return Response{Code: CodeSucceed, Message: "success", Data: data}
}

// Failure builds a response from an error code.
func Failure(code ErrorCode, message string) Response {
	return Response{Code: code.String(), Message: message, Data: "null"}
}

// ConfigKey identifies one configuration entry and its version.
type ConfigKey struct {
	Key     string `json:"key"`
	Version int    `json:"version"`
}

// ConfigItem is one entry of a configPush request. Values is raw JSON.
type ConfigItem struct {
	Key    ConfigKey `json:"key"`
	Values string    `json:"values"`
}

// Update is the parameter set of an upgrade request.
type Update struct {
	VersionCode string `json:"versionCode"`
	PolicyTag   string `json:"policyTag"`
	AppKey      string `json:"appKey"`
}

// ErrorCode is the numeric status the SDK reports in responses and logs.
type ErrorCode int

// Error codes.
const (
	ErrorSuccess          ErrorCode = 0
	ErrorSerializeFail    ErrorCode = 1
	ErrorPublishFail      ErrorCode = 2
	ErrorMethodNotMatch   ErrorCode = 3
	ErrorTimeout          ErrorCode = 4
	ErrorDeserializeFail  ErrorCode = 5
	ErrorMethodNotSupport ErrorCode = 6
	ErrorTopicError       ErrorCode = 7
	ErrorNotConnected     ErrorCode = 8
	ErrorMQTTExcept       ErrorCode = 9
	ErrorRegisterFailed   ErrorCode = 10
	ErrorReconnectTimeout ErrorCode = 11
	ErrorStart            ErrorCode = 170000
)

// String returns the decimal form used on the wire.
func (c ErrorCode) String() string {
	return strconv.Itoa(int(c))
}

// Description returns a short human-readable explanation.
func (c ErrorCode) Description() string {
	switch c {
	case ErrorSuccess:
		return "success"
	case ErrorSerializeFail:
		return "serialize fail"
	case ErrorPublishFail:
		return "publish fail"
	case ErrorMethodNotMatch:
		return "method not match"
	case ErrorTimeout:
		return "timeout"
	case ErrorDeserializeFail:
		return "deserialize fail"
	case ErrorMethodNotSupport:
		return "method not support"
	case ErrorTopicError:
		return "topic error"
	case ErrorNotConnected:
		return "iot is not connected"
	case ErrorMQTTExcept:
		return "mqtt exception"
	case ErrorRegisterFailed:
		return "register failed"
	case ErrorReconnectTimeout:
		return "reconnect timeout"
	case ErrorStart:
		return "start"
	default:
		return "unknown error"
	}
}
