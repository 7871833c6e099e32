package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ciot-device-core/internal/transport"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connect attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds publish, subscribe and unsubscribe acknowledgements.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	defaultKeepAlive    = 30 * time.Second
	defaultReconnectMin = 2 * time.Second
	defaultReconnectMax = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// brokerAddress normalizes a configured broker URL for paho. A missing
// scheme becomes ssl:// when TLS is on and tcp:// otherwise, and port is
// applied when the URL carries none.
func brokerAddress(raw, port string, useTLS bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidBroker)
	}
	if !strings.Contains(raw, "://") {
		scheme := "tcp"
		if useTLS {
			scheme = "ssl"
		}
		raw = scheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBroker, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidBroker, raw)
	}
	if u.Port() == "" && port != "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u.String(), nil
}

// loadTLSConfig builds a client TLS config trusting only the CA in cfg.
func loadTLSConfig(cfg *transport.TLSConfig) (*tls.Config, error) {
	pem, err := os.ReadFile(cfg.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCACert, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no PEM certificate in %s", ErrInvalidCACert, cfg.CACertPath)
	}
	return &tls.Config{
		RootCAs:            pool,
		MinVersion:         tlsMinVersion,
		InsecureSkipVerify: !cfg.VerifyServer, //nolint:gosec // only when the caller disables verification
	}, nil
}

// buildClientOptions creates paho options from opts.
//
// The first connect attempt is not retried so its failure reaches the
// caller; once connected, paho reconnects with backoff between
// ReconnectMin and ReconnectMax.
func buildClientOptions(opts transport.ConnOptions) (*pahomqtt.ClientOptions, error) {
	broker, err := brokerAddress(opts.BrokerURL, opts.Port, opts.TLS != nil)
	if err != nil {
		return nil, err
	}

	po := pahomqtt.NewClientOptions()
	po.AddBroker(broker)
	po.SetClientID(opts.ClientID)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	po.SetCleanSession(opts.CleanSession)
	po.SetOrderMatters(false)

	po.SetAutoReconnect(true)
	po.SetConnectRetry(false)
	po.SetConnectTimeout(defaultConnectTimeout)
	po.SetConnectRetryInterval(orDefault(opts.ReconnectMin, defaultReconnectMin))
	po.SetMaxReconnectInterval(orDefault(opts.ReconnectMax, defaultReconnectMax))
	po.SetKeepAlive(orDefault(opts.KeepAlive, defaultKeepAlive))

	if opts.TLS != nil {
		tlsCfg, err := loadTLSConfig(opts.TLS)
		if err != nil {
			return nil, err
		}
		po.SetTLSConfig(tlsCfg)
	}
	return po, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
