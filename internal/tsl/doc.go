// Package tsl implements the Thing Specification Language routing layer.
//
// TSL is the JSON request/response protocol the device speaks with the IoT
// platform over MQTT. This package is pure: it classifies method names,
// builds and parses topic strings, and encodes/decodes payloads. It performs
// no I/O and holds no state.
//
// # Topics
//
// Every platform topic follows the fixed template:
//
//	/sys/{productKey}/{deviceId}/{suffix}
//
// where suffix is one of:
//
//	rpc/request/{messageId}   cloud → device request
//	rpc/response/{messageId}  device → cloud reply to a request
//	up/request                device → cloud request
//	up/response/{messageId}   cloud → device reply to an up request
//
// # Matching
//
// MatchTopic is deliberately narrow. Only the two subscription templates
// "/sys/+/+/rpc/request/" and "/sys/+/+/up/response/" are treated as
// wildcards; every other filter, including ones containing + or #, is
// compared by exact string equality.
//
// # Method direction
//
// The "thing.service." prefix is shared by uplink service calls and downlink
// service invocations, and "thing.property.get" names both an uplink query
// and a downlink request. Classify reports DirectionBoth for these; callers
// resolve direction from the entry point they came through.
package tsl
