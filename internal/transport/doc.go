// Package transport owns the device's MQTT point: the Session that speaks
// TSL over a Conn, and the Handle that creates and tears it down.
//
// # Session
//
// A Session authenticates as one device identity. The MQTT client ID is
// the device ID, the username is "{deviceId}_{sessionId}" with a fresh
// session ID per Session, and the password is the device ID signed with
// the device secret.
//
// On every (re)connect it subscribes to the device's rpc/request and
// up/response filters at QoS 1, and to each registered custom topic at
// QoS 2. Inbound messages are handled on a bounded worker pool:
//
//	rpc/request/{mid}  → Callbacks, reply on rpc/response/{mid}
//	up/response/{mid}  → completes the synchronous call with that trace ID
//	anything else      → exact-topic custom handler
//
// Synchronous calls (GetProperty, CallService, GetSubDevices) register a
// pending entry under a new trace ID before publishing and wait up to the
// request timeout for the matching reply.
//
// # Handle
//
// Teardown is two-phase. Release starts Session.Shutdown on a goroutine;
// CheckPointEnable stays true until it finishes; ReleasePtr then drops the
// session. Callers poll CheckPointEnable with their own deadline.
//
// # Message log
//
// When a MessageLogSink is configured every up, down and connection event
// is recorded with a device-side code: "000000" for success, otherwise
// 171000 plus the tsl.ErrorCode.
package transport
