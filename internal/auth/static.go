package auth

import "context"

// Static issues an identity straight from RegisterConfig. It makes no
// network calls.
//
// DeviceSecret is the secret provisioned for the device. When empty the
// product secret is used in its place.
type Static struct {
	DeviceSecret string
}

// Register implements Authenticator.
func (s Static) Register(ctx context.Context, cfg RegisterConfig) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	secret := s.DeviceSecret
	if secret == "" {
		secret = cfg.ProductSecret
	}

	var missing []string
	if cfg.ProductKey == "" {
		missing = append(missing, "product_key")
	}
	if cfg.DeviceID == "" {
		missing = append(missing, "device_id")
	}
	if secret == "" {
		missing = append(missing, "product_secret")
	}
	if len(missing) > 0 {
		return Identity{}, &FieldError{Fields: missing}
	}

	return Identity{
		ProductKey:   cfg.ProductKey,
		DeviceID:     cfg.DeviceID,
		DeviceSecret: secret,
	}, nil
}
