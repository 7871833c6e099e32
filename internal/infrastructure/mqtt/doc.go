// Package mqtt provides the production transport.Conn on top of
// eclipse/paho.mqtt.golang.
//
// This package manages:
//   - Broker address normalization (scheme and default port)
//   - One-way TLS trusting a single CA file
//   - Auto-reconnect with backoff once the first connect has succeeded
//   - Publish, subscribe and unsubscribe with acknowledgement timeouts
//   - Restoring tracked subscriptions on every reconnect
//
// Topic layout and payloads belong to the tsl package; this package moves
// bytes only.
//
// # Usage
//
//	conn, err := mqtt.Dial(transport.ConnOptions{
//	    BrokerURL: "iot-broker.seewo.com",
//	    Port:      "8883",
//	    ClientID:  id.DeviceID,
//	    TLS:       &transport.TLSConfig{CACertPath: "/etc/ciot/ca.pem", VerifyServer: true},
//	})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	if err := conn.ConnectAsync(ctx); err != nil {
//	    return err
//	}
package mqtt
