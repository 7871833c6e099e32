// Package influxdb stores the device's message trace in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. A connected Client
// is a transport.MessageLogSink: every up, down and connection record the
// session emits becomes one point in the iot_message_log measurement.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	m, err := iot.NewBuilder().WithMessageLog(client). ... .Build()
//
// # Schema
//
//	iot_message_log  tags: module, product_key, device_id, log_type, code
//	                 fields: timestamp_us, trace_id, method, message, content
//	iot_connection_state  tags: device_id  fields: connected
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); async
// failures go to the SetOnError callback. Connect and HealthCheck return
// errors directly.
package influxdb
