package iot

// State is the connection lifecycle state of a Manager.
//
//	Unregistered --Register--> Registered --ConnectAsync--> Connecting --> Connected
//	Connected --Disconnect--> Disconnecting --> Unregistered | Registered
//	Disconnecting --teardown timeout--> Disconnected --Disconnect--> ...
type State int

// Lifecycle states.
const (
	StateUnregistered State = iota
	StateRegistered
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
