// Package auth provides device identity and registration for the IoT agent.
//
// A device needs an Identity (product key, device ID, device secret) before
// it can open an MQTT session. Identities come from an Authenticator:
//
//   - Static: builds the identity directly from RegisterConfig. Used when
//     the device was provisioned out of band.
//   - HTTPRegistrar: dynamic registration against the platform's register
//     endpoint, signing the request with the product secret.
//   - Cached: wraps another Authenticator and persists the issued identity
//     in SQLite so restarts do not re-register.
//
// # Signing
//
// The platform authenticates both the register request and the MQTT
// password with an uppercase hex HMAC-MD5. See Sign.
//
// # Security
//
// Device and product secrets are never logged. Store implementations keep
// the device secret in the database file, which Open creates with 0600
// permissions.
package auth
