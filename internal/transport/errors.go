package transport

import "errors"

// Transport errors.
var (
	// ErrNotConnected is returned by uplink calls while the Conn is down.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrPublishFailed wraps a Conn publish failure.
	ErrPublishFailed = errors.New("transport: publish failed")

	// ErrTimeout is returned when a synchronous call gets no reply in time.
	ErrTimeout = errors.New("transport: request timed out")

	// ErrSessionClosed is returned once Shutdown has begun.
	ErrSessionClosed = errors.New("transport: session closed")

	// ErrInvalidSession is returned by NewSession for an unusable config.
	ErrInvalidSession = errors.New("transport: invalid session config")

	// ErrPointDisabled is returned when the handle has no active session.
	ErrPointDisabled = errors.New("transport: point disabled")

	// ErrNotDrained is returned by ReleasePtr before the drain has finished.
	ErrNotDrained = errors.New("transport: point not drained")

	// ErrAlreadyOpen is returned by Open while a session is active or draining.
	ErrAlreadyOpen = errors.New("transport: point already open")
)
