package iot

import "github.com/nerrad567/ciot-device-core/internal/transport"

// TLSOption describes the TLS material for a connection.
//
// Only one-way TLS against CACertPath is applied today; the client
// certificate fields are carried for providers that support mutual TLS.
type TLSOption struct {
	CACertPath   string
	ClientCert   string
	ClientKey    string
	KeyPassword  string
	CipherSuites []string
	VerifyServer bool
}

// TLSOptionFor returns nil for an empty path, otherwise a verifying option
// trusting the CA at path.
func TLSOptionFor(caCertPath string) *TLSOption {
	if caCertPath == "" {
		return nil
	}
	return &TLSOption{CACertPath: caCertPath, VerifyServer: true}
}

func (o *TLSOption) transport() *transport.TLSConfig {
	if o == nil {
		return nil
	}
	return &transport.TLSConfig{CACertPath: o.CACertPath, VerifyServer: o.VerifyServer}
}
