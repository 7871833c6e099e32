package influxdb

import "errors"

// Sentinel errors for the message-log sink.
var (
	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed is returned when the initial ping fails.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when the sink is disabled in config.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
