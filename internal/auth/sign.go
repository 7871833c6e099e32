package auth

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // HMAC-MD5 is mandated by the platform protocol
	"encoding/hex"
	"errors"
	"strings"
)

// ErrEmptySignInput is returned when Sign is given an empty key or message.
var ErrEmptySignInput = errors.New("auth: sign key and message must not be empty")

// Sign returns the uppercase hex HMAC-MD5 of message keyed by key.
func Sign(key, message string) (string, error) {
	if key == "" || message == "" {
		return "", ErrEmptySignInput
	}
	mac := hmac.New(md5.New, []byte(key))
	mac.Write([]byte(message)) //nolint:errcheck // hash.Hash.Write never fails
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil))), nil
}

// MQTTCredentials derives the broker username and password for an identity.
// The username binds the device to one session; the password is the device
// ID signed with the device secret.
func MQTTCredentials(id Identity, sessionID string) (username, password string, err error) {
	password, err = Sign(id.DeviceSecret, id.DeviceID)
	if err != nil {
		return "", "", err
	}
	return id.DeviceID + "_" + sessionID, password, nil
}
