package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/ciot-device-core/internal/transport"
)

// Measurement names.
const (
	MeasurementMessageLog      = "iot_message_log"
	MeasurementConnectionState = "iot_connection_state"
)

var _ transport.MessageLogSink = (*Client)(nil)

// WriteMessageLog records one TSL message trace. Records missing a code,
// trace ID or method are dropped. Non-blocking.
func (c *Client) WriteMessageLog(l transport.MessageLog) {
	if !c.IsConnected() || !l.Valid() {
		return
	}
	c.writeAPI.WritePoint(messageLogPoint(l))
}

// WriteConnectionState records a transport connect or loss.
func (c *Client) WriteConnectionState(deviceID string, connected bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(connectionStatePoint(deviceID, connected, time.Now()))
}

// messageLogPoint maps a record onto a point. Low-cardinality attributes
// are tags; the rest are fields.
func messageLogPoint(l transport.MessageLog) *write.Point {
	module := l.Module
	if module == "" {
		module = transport.ModuleSDK
	}
	ts := l.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementMessageLog,
		map[string]string{
			"module":      module,
			"product_key": l.ProductKey,
			"device_id":   l.DeviceID,
			"log_type":    strconv.Itoa(int(l.Type)),
			"code":        l.Code,
		},
		map[string]interface{}{
			"timestamp_us": ts.UnixMicro(),
			"trace_id":     l.TraceID,
			"method":       l.Method,
			"message":      l.Message,
			"content":      l.Content,
		},
		ts,
	)
}

func connectionStatePoint(deviceID string, connected bool, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementConnectionState,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"connected": connected},
		ts,
	)
}
