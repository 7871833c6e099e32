package auth

import (
	"context"
	"errors"
	"strings"
)

// Identity is the credential set issued to a device.
type Identity struct {
	ProductKey   string `json:"productKey"`
	DeviceID     string `json:"deviceId"`
	DeviceSecret string `json:"deviceSecret"`
}

// IsZero reports whether no identity has been issued.
func (i Identity) IsZero() bool {
	return i == Identity{}
}

// Validate checks that the identity can authenticate an MQTT session.
func (i Identity) Validate() error {
	var missing []string
	if i.ProductKey == "" {
		missing = append(missing, TagProductKey)
	}
	if i.DeviceID == "" {
		missing = append(missing, TagDeviceID)
	}
	if i.DeviceSecret == "" {
		missing = append(missing, TagDeviceSecret)
	}
	if len(missing) > 0 {
		return &FieldError{Fields: missing}
	}
	return nil
}

// JSON keys of an identity.
const (
	TagProductKey   = "productKey"
	TagDeviceID     = "deviceId"
	TagDeviceSecret = "deviceSecret"
)

// RegisterConfig holds the parameters for obtaining an identity.
type RegisterConfig struct {
	// URL is the dynamic registration endpoint. Unused by Static.
	URL string `yaml:"url"`

	ProductKey    string `yaml:"product_key"`
	ProductSecret string `yaml:"product_secret"`

	// DeviceID is the pre-provisioned device ID. Unused by HTTPRegistrar.
	DeviceID string `yaml:"device_id"`

	// Identifiers maps an identifier type (e.g. "sn", "mac") to its values.
	// HTTPRegistrar requires at least one.
	Identifiers map[string][]string `yaml:"identifiers"`
}

// Authenticator obtains a device identity.
type Authenticator interface {
	Register(ctx context.Context, cfg RegisterConfig) (Identity, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, cfg RegisterConfig) (Identity, error)

// Register calls f.
func (f AuthenticatorFunc) Register(ctx context.Context, cfg RegisterConfig) (Identity, error) {
	return f(ctx, cfg)
}

// Domain-specific errors for registration.
var (
	// ErrInvalidConfig is returned when RegisterConfig lacks required fields.
	ErrInvalidConfig = errors.New("auth: invalid register config")

	// ErrRejected is returned when the platform refuses a registration.
	ErrRejected = errors.New("auth: registration rejected")

	// ErrIdentityNotFound is returned by a Store with no saved identity.
	ErrIdentityNotFound = errors.New("auth: identity not found")
)

// FieldError names the fields missing from a config or identity.
type FieldError struct {
	Fields []string
}

// Error implements error.
func (e *FieldError) Error() string {
	return "auth: missing " + strings.Join(e.Fields, ", ")
}

// Is matches ErrInvalidConfig.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidConfig
}
