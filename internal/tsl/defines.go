package tsl

// DefaultVersion is the TSL protocol version reported by the device.
const DefaultVersion = "1.0.1"

// envelopeVersion is written when a Basic carries no version.
const envelopeVersion = "1.0"

// JSON keys used in TSL envelopes.
const (
	TagProductKey    = "productKey"
	TagProductSecret = "productSecret"
	TagDeviceID      = "deviceId"
	TagDeviceSecret  = "deviceSecret"
	TagCode          = "code"
	TagMessage       = "message"
	TagVersion       = "version"
	TagTraceID       = "traceId"
	TagMethod        = "method"
	TagData          = "data"
	TagParams        = "params"
)

// Downlink methods (cloud → device).
const (
	DownMethodPropertySet = "thing.property.set"
	DownMethodPropertyGet = "thing.property.get"
	DownMethodService     = "thing.service."
	DownServiceConfigPush = "thing.service.configPush"
	DownServiceUpgrade    = "thing.service.upgrade"
)

// Uplink methods (device → cloud).
const (
	UpMethodPropertyPost = "thing.property.post"
	UpMethodPropertyGet  = "thing.property.get"
	UpMethodService      = "thing.service."
	UpMethodEventPost    = "thing.event."
)

// Gateway methods for sub-device management.
const (
	UpMethodSubGet        = "thing.sub.get"
	UpMethodSubAdd        = "thing.sub.add"
	UpMethodSubDel        = "thing.sub.del"
	UpMethodSubConnect    = "thing.sub.connect"
	UpMethodSubDisconnect = "thing.sub.disconnect"

	gatewayPrefix = "thing.sub."
)

// Standard device information methods.
const (
	UpMethodBasicPost  = "thing.event.basic.post"
	UpMethodConfigPost = "thing.event.config.post"
)
