// Package iot is the device-side entry point to the IoT platform.
//
// A Manager owns the connection lifecycle of one device:
//
//	m, err := iot.NewBuilder().
//	    WithBrokerURL(cfg.Broker.URL).
//	    WithDeviceName(cfg.Device.Name).
//	    WithRegisterConfig(reg).
//	    WithAuthenticator(auth.NewHTTPRegistrar()).
//	    Build()
//
//	id, err := m.Register(ctx)
//	desc, err := m.InitTransport(caCertPath)
//	desc.Client.SetPropertySetCallback(onSet)
//	err = m.ConnectAsync(ctx)
//	...
//	err = m.Disconnect(ctx)
//
// # Locking
//
// Lifecycle operations take the manager's write lock for their whole
// duration, including the disconnect grace period and the drain wait.
// Client calls take the read lock, so they either complete before a
// transition starts or see its final state.
//
// # Teardown
//
// Disconnect sleeps DisconnectGrace, releases the transport point, and
// polls it every TeardownPoll until it has drained. If TeardownTimeout
// passes (or ctx ends) first, the manager is left Disconnected and returns
// ErrTeardownTimeout; calling Disconnect again resumes the wait.
//
// # Errors
//
// Every failure is an *Error carrying a Kind, the operation name and an
// optional cause. Match with errors.Is against the Err* sentinels or the
// cause.
package iot
