package tsl

import (
	"errors"
	"fmt"
	"strings"
)

// TopicKind selects the suffix of a platform topic.
type TopicKind int

// Topic kinds.
const (
	KindUnknown TopicKind = iota
	KindRPCRequest
	KindRPCResponse
	KindUpRequest
	KindUpResponse
)

// String returns the topic path fragment for the kind.
func (k TopicKind) String() string {
	switch k {
	case KindRPCRequest:
		return "rpc/request"
	case KindRPCResponse:
		return "rpc/response"
	case KindUpRequest:
		return "up/request"
	case KindUpResponse:
		return "up/response"
	default:
		return "unknown"
	}
}

// direction returns the flow implied by the kind.
func (k TopicKind) direction() Direction {
	switch k {
	case KindRPCRequest, KindRPCResponse:
		return DirectionDown
	case KindUpRequest, KindUpResponse:
		return DirectionUp
	default:
		return DirectionUnknown
	}
}

const (
	topicRoot = "/sys/"

	rpcRequestSegment = "/rpc/request/"
	upResponseSegment = "/up/response/"

	// Subscription templates recognised by MatchTopic.
	rpcRequestTemplate = "/sys/+/+/rpc/request/"
	upResponseTemplate = "/sys/+/+/up/response/"

	singleLevelWildcard = "+"
)

// ErrTopicMismatch is returned when a direction and topic kind disagree.
var ErrTopicMismatch = errors.New("tsl: direction does not match topic kind")

// Address is the decoded form of a platform topic.
type Address struct {
	ProductKey string
	DeviceID   string
	Direction  Direction
	Category   Category
	Kind       TopicKind
	MessageID  string
}

// BuildTopic encodes a platform topic.
//
// messageID is appended for every kind except KindUpRequest. Passing "+"
// yields a subscription filter.
func BuildTopic(dir Direction, kind TopicKind, productKey, deviceID, messageID string) (string, error) {
	if kind.direction() == DirectionUnknown {
		return "", fmt.Errorf("%w: kind %v", ErrTopicMismatch, kind)
	}
	if dir != kind.direction() {
		return "", fmt.Errorf("%w: %v with %v", ErrTopicMismatch, dir, kind)
	}

	base := topicRoot + productKey + "/" + deviceID + "/" + kind.String()
	if kind == KindUpRequest {
		return base, nil
	}
	return base + "/" + messageID, nil
}

// platformTopic builds a topic for a kind whose direction is fixed, so
// BuildTopic cannot fail.
func platformTopic(kind TopicKind, productKey, deviceID, messageID string) string {
	t, _ := BuildTopic(kind.direction(), kind, productKey, deviceID, messageID)
	return t
}

// DownResponseTopic is the reply topic for a cloud request.
func DownResponseTopic(productKey, deviceID, messageID string) string {
	return platformTopic(KindRPCResponse, productKey, deviceID, messageID)
}

// UpRequestTopic is the topic for device-initiated requests.
func UpRequestTopic(productKey, deviceID string) string {
	return platformTopic(KindUpRequest, productKey, deviceID, "")
}

// RPCRequestFilter subscribes to every cloud request for a device.
func RPCRequestFilter(productKey, deviceID string) string {
	return platformTopic(KindRPCRequest, productKey, deviceID, singleLevelWildcard)
}

// UpResponseFilter subscribes to every reply to a device request.
func UpResponseFilter(productKey, deviceID string) string {
	return platformTopic(KindUpResponse, productKey, deviceID, singleLevelWildcard)
}

// MatchTopic reports whether topic is accepted by filter.
//
// Only filters starting with "/sys/+/+/rpc/request/" or
// "/sys/+/+/up/response/" are wildcards, and they match any topic
// containing the corresponding segment. Everything else is exact equality.
func MatchTopic(filter, topic string) bool {
	if strings.ContainsAny(filter, "+#") {
		if strings.HasPrefix(filter, rpcRequestTemplate) && strings.Contains(topic, rpcRequestSegment) {
			return true
		}
		if strings.HasPrefix(filter, upResponseTemplate) && strings.Contains(topic, upResponseSegment) {
			return true
		}
	}
	return filter == topic
}

// IsRPCRequest reports whether topic carries a cloud request for any
// device.
func IsRPCRequest(topic string) bool {
	return MatchTopic(rpcRequestTemplate+singleLevelWildcard, topic)
}

// IsUpResponse reports whether topic carries a reply to a device request.
func IsUpResponse(topic string) bool {
	return MatchTopic(upResponseTemplate+singleLevelWildcard, topic)
}

// ExtractDeviceID returns the fourth slash-separated segment of topic
// ("/sys/{pk}/{did}/..."), or "" when the topic is shorter.
func ExtractDeviceID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) > 3 {
		return parts[3]
	}
	return ""
}

// ExtractMessageID returns the text after the last slash, or "" when topic
// has none.
func ExtractMessageID(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i != -1 {
		return topic[i+1:]
	}
	return ""
}

// ParseAddress decodes a platform topic.
//
// Topics outside the /sys/ tree decode as CategoryCustom with ok=true.
// Category is left unknown for platform topics; it depends on the method in
// the payload.
func ParseAddress(topic string) (Address, bool) {
	if !strings.HasPrefix(topic, topicRoot) {
		if topic == "" {
			return Address{}, false
		}
		return Address{Category: CategoryCustom}, true
	}

	parts := strings.Split(strings.TrimPrefix(topic, topicRoot), "/")
	if len(parts) < 4 {
		return Address{}, false
	}

	addr := Address{ProductKey: parts[0], DeviceID: parts[1]}
	switch parts[2] + "/" + parts[3] {
	case KindRPCRequest.String():
		addr.Kind = KindRPCRequest
	case KindRPCResponse.String():
		addr.Kind = KindRPCResponse
	case KindUpRequest.String():
		addr.Kind = KindUpRequest
	case KindUpResponse.String():
		addr.Kind = KindUpResponse
	default:
		return Address{}, false
	}
	addr.Direction = addr.Kind.direction()

	if addr.Kind == KindUpRequest {
		if len(parts) != 4 {
			return Address{}, false
		}
		return addr, true
	}
	if len(parts) != 5 {
		return Address{}, false
	}
	addr.MessageID = parts[4]
	return addr, true
}

// Topic re-encodes the address. Custom addresses have no platform topic.
func (a Address) Topic() (string, error) {
	return BuildTopic(a.Direction, a.Kind, a.ProductKey, a.DeviceID, a.MessageID)
}
