package tsl

import "strings"

// Category groups TSL methods and topics by protocol function.
type Category int

// Categories recognised by the router.
const (
	CategoryUnknown Category = iota
	CategoryProperty
	CategoryService
	CategoryEvent
	CategoryGateway
	CategoryCustom
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategoryProperty:
		return "property"
	case CategoryService:
		return "service"
	case CategoryEvent:
		return "event"
	case CategoryGateway:
		return "gateway"
	case CategoryCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Direction is the flow of a TSL message relative to the device.
type Direction int

// Directions. DirectionBoth marks method names shared by uplink and
// downlink calls.
const (
	DirectionUnknown Direction = iota
	DirectionUp
	DirectionDown
	DirectionBoth
)

// String returns the lowercase direction name.
func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	case DirectionBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Category  Category
	Direction Direction
}

// Classify maps a method name to its category and direction.
//
// Matching is case-sensitive prefix/equality with no normalisation. The
// service prefix and "thing.property.get" classify as DirectionBoth.
func Classify(method string) Classification {
	switch {
	case strings.HasPrefix(method, DownMethodPropertySet):
		return Classification{CategoryProperty, DirectionDown}
	case strings.HasPrefix(method, DownMethodPropertyGet):
		return Classification{CategoryProperty, DirectionBoth}
	case strings.HasPrefix(method, UpMethodPropertyPost):
		return Classification{CategoryProperty, DirectionUp}
	case strings.HasPrefix(method, DownMethodService):
		return Classification{CategoryService, DirectionBoth}
	case strings.HasPrefix(method, UpMethodEventPost):
		return Classification{CategoryEvent, DirectionUp}
	case strings.HasPrefix(method, gatewayPrefix):
		return Classification{CategoryGateway, DirectionUp}
	default:
		return Classification{CategoryUnknown, DirectionUnknown}
	}
}

// IsDownMethod reports whether method can be sent by the cloud to the device.
func IsDownMethod(method string) bool {
	return strings.HasPrefix(method, DownMethodPropertySet) ||
		strings.HasPrefix(method, DownMethodPropertyGet) ||
		strings.HasPrefix(method, DownMethodService)
}

// IsUpMethod reports whether method can be sent by the device to the cloud.
func IsUpMethod(method string) bool {
	if strings.HasPrefix(method, UpMethodPropertyPost) ||
		strings.HasPrefix(method, UpMethodPropertyGet) ||
		strings.HasPrefix(method, UpMethodService) ||
		strings.HasPrefix(method, UpMethodSubGet) {
		return true
	}
	switch method {
	case UpMethodSubAdd, UpMethodSubDel, UpMethodSubConnect, UpMethodSubDisconnect,
		UpMethodBasicPost, UpMethodConfigPost:
		return true
	}
	return false
}

// IsGatewayMethod reports whether method manages gateway sub-devices.
func IsGatewayMethod(method string) bool {
	switch method {
	case UpMethodSubGet, UpMethodSubAdd, UpMethodSubDel, UpMethodSubConnect, UpMethodSubDisconnect:
		return true
	}
	return false
}

// IsPropertyMethod reports whether method is one of the property methods.
func IsPropertyMethod(method string) bool {
	switch method {
	case DownMethodPropertySet, DownMethodPropertyGet, UpMethodPropertyPost:
		return true
	}
	return false
}

// IsServiceMethod reports whether method carries the service prefix.
func IsServiceMethod(method string) bool {
	return strings.HasPrefix(method, DownMethodService)
}

// IsEventMethod reports whether method carries the event prefix.
func IsEventMethod(method string) bool {
	return strings.HasPrefix(method, UpMethodEventPost)
}

// IsTheMethod reports whether method names full.
//
// A full name ending in "." matches any method with that prefix. Otherwise
// method must equal full, or equal the identifier after its last dot
// ("thing.service.reboot" matches "reboot").
func IsTheMethod(full, method string) bool {
	if strings.HasSuffix(full, ".") && strings.HasPrefix(method, full) {
		return true
	}
	if full == method {
		return true
	}
	if i := strings.LastIndexByte(full, '.'); i != -1 && i < len(full)-1 {
		return full[i+1:] == method
	}
	return false
}

// WithPrefix returns method with prefix prepended unless already present.
func WithPrefix(prefix, method string) string {
	if strings.HasPrefix(method, prefix) {
		return method
	}
	return prefix + method
}
