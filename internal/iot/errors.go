package iot

import (
	"errors"
	"fmt"
)

// Kind classifies an *Error.
type Kind int

// Error kinds.
const (
	KindIllegalBehavior Kind = iota + 1
	KindUnsupportedProtocol
	KindRegister
	KindTransport
	KindTeardownTimeout
	KindNotConnected
	KindNotUsable
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	// ErrIllegalBehavior is returned for an operation called in the wrong state.
	ErrIllegalBehavior = errors.New("iot: illegal behavior")

	// ErrUnsupportedProtocol is returned by InitTransport for anything but MQTT.
	ErrUnsupportedProtocol = errors.New("iot: unsupported protocol")

	// ErrRegisterFailed is returned when the authenticator yields no identity.
	ErrRegisterFailed = errors.New("iot: register failed")

	// ErrTransport is returned when the transport cannot be opened or connected.
	ErrTransport = errors.New("iot: transport error")

	// ErrTeardownTimeout is returned when the handle does not drain in time.
	ErrTeardownTimeout = errors.New("iot: teardown timed out")

	// ErrNotConnected is returned by facade calls outside the Connected state.
	ErrNotConnected = errors.New("iot: not connected")

	// ErrNotUsable is returned by callback registration without a live point.
	ErrNotUsable = errors.New("iot: transport not usable")

	// ErrInvalidConfig is returned by Builder for an incomplete configuration.
	ErrInvalidConfig = errors.New("iot: invalid connection config")
)

var kindSentinels = map[Kind]error{
	KindIllegalBehavior:     ErrIllegalBehavior,
	KindUnsupportedProtocol: ErrUnsupportedProtocol,
	KindRegister:            ErrRegisterFailed,
	KindTransport:           ErrTransport,
	KindTeardownTimeout:     ErrTeardownTimeout,
	KindNotConnected:        ErrNotConnected,
	KindNotUsable:           ErrNotUsable,
}

// Error is returned by Manager and Client operations.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "connect".
	Op string
	// Msg is a short human-readable reason. Optional.
	Msg string
	// Err is the underlying cause. Optional.
	Err error
}

// Error formats the kind, operation, reason and cause.
func (e *Error) Error() string {
	s := kindSentinels[e.Kind].Error() + ": " + e.Op
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func illegal(op, msg string) error {
	return &Error{Kind: KindIllegalBehavior, Op: op, Msg: msg}
}

func notConnected(op string) error {
	return &Error{Kind: KindNotConnected, Op: op}
}

func transportErr(op string, err error) error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// configError lists the missing builder fields.
type configError struct {
	fields []string
}

func (e *configError) Error() string {
	return fmt.Sprintf("%s: missing %v", ErrInvalidConfig, e.fields)
}

func (e *configError) Is(target error) bool { return target == ErrInvalidConfig }
