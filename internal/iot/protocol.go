package iot

import (
	"fmt"
	"strings"
)

// Protocol is the transport a Manager opens.
type Protocol int

// Protocols. Only ProtocolMQTT is implemented.
const (
	ProtocolMQTT Protocol = iota
	ProtocolCOAP
	ProtocolHTTP
	ProtocolWebSocket
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolMQTT:
		return "mqtt"
	case ProtocolCOAP:
		return "coap"
	case ProtocolHTTP:
		return "http"
	case ProtocolWebSocket:
		return "websocket"
	default:
		return fmt.Sprintf("protocol(%d)", int(p))
	}
}

// ParseProtocol resolves a protocol name, case-insensitively.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mqtt", "":
		return ProtocolMQTT, nil
	case "coap":
		return ProtocolCOAP, nil
	case "http":
		return ProtocolHTTP, nil
	case "websocket", "ws":
		return ProtocolWebSocket, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, s)
	}
}
