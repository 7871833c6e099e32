// Package logging provides structured logging for the device agent.
//
// It wraps log/slog with JSON or text output, level filtering and the
// default fields service=ciotd and version on every record.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("connected", "broker", url)
//
// Never log device secrets, product secrets or MQTT passwords.
package logging
