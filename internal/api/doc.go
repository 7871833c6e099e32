// Package api implements the local HTTP status API of the device agent.
//
// This package provides:
//   - Health and connection status endpoints
//   - Property and event uplink endpoints for local producers
//   - Prometheus metrics fed by the TSL message log
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Architecture
//
// The server reads the connection manager through a narrow StatusProvider
// and forwards uplink requests through a Publisher, usually the manager's
// iot.Client. Metrics is a transport.MessageLogSink, so every message the
// session records shows up as a counter.
//
// # Security
//
// The API binds to 127.0.0.1 by default and has no authentication. It never
// returns device or product secrets.
package api
