package transport

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/ciot-device-core/internal/tsl"
)

// LogType classifies a MessageLog record.
type LogType int

// Log types.
const (
	// LogDevice records device behaviour such as going on or offline.
	LogDevice LogType = 1
	// LogUp records a device to cloud message.
	LogUp LogType = 2
	// LogDown records a cloud to device message.
	LogDown LogType = 3
)

// String returns the log type name.
func (t LogType) String() string {
	switch t {
	case LogDevice:
		return "device"
	case LogUp:
		return "up"
	case LogDown:
		return "down"
	default:
		return "unknown"
	}
}

// Device-side log codes occupy 171000..179999.
const (
	ModuleSDK     = "iotSDK"
	deviceCodeMin = 171000
	deviceCodeMax = 179999
)

// MessageLog is one full-link trace record of a TSL message.
type MessageLog struct {
	Timestamp  time.Time
	Module     string
	DeviceID   string
	ProductKey string
	Code       string
	Message    string
	TraceID    string
	Method     string
	Content    string
	Type       LogType
}

// TimestampMicros returns the timestamp as microseconds since the epoch.
func (l MessageLog) TimestampMicros() int64 {
	return l.Timestamp.UnixMicro()
}

// Valid reports whether the required fields are present.
func (l MessageLog) Valid() bool {
	return l.Code != "" && l.TraceID != "" && l.Method != ""
}

// MessageLogSink receives MessageLog records. Implementations must not block.
type MessageLogSink interface {
	WriteMessageLog(MessageLog)
}

// MessageLogFunc adapts a function to MessageLogSink.
type MessageLogFunc func(MessageLog)

// WriteMessageLog calls f.
func (f MessageLogFunc) WriteMessageLog(l MessageLog) { f(l) }

// MultiSink fans records out to every non-nil sink.
type MultiSink []MessageLogSink

// WriteMessageLog implements MessageLogSink.
func (m MultiSink) WriteMessageLog(l MessageLog) {
	for _, s := range m {
		if s != nil {
			s.WriteMessageLog(l)
		}
	}
}

// DeviceCode maps an SDK error code into the device-side log range.
// ErrorSuccess maps to tsl.CodeSucceed.
func DeviceCode(code tsl.ErrorCode) string {
	if code == tsl.ErrorSuccess {
		return tsl.CodeSucceed
	}
	return strconv.Itoa(deviceCodeMin + int(code))
}

// ValidateDeviceCode checks that an error log code is in the device range.
func ValidateDeviceCode(code string) error {
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil //nolint:nilerr // non-numeric codes are passed through
	}
	if n != 0 && (n < deviceCodeMin || n > deviceCodeMax) {
		return fmt.Errorf("transport: device log code %s outside %d-%d", code, deviceCodeMin, deviceCodeMax)
	}
	return nil
}
