package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementTelemetry = "servo_telemetry"
	MeasurementDispatch  = "command_dispatch"
)

// WriteTelemetry records the servo angles reported in one heartbeat.
// Nothing is written when neither angle is present.
//
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteTelemetry(deviceID string, servo1, servo2 *int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	if p := telemetryPoint(deviceID, servo1, servo2, at); p != nil {
		c.writeAPI.WritePoint(p)
	}
}

// WriteDispatch records the outcome of one command dispatch.
//
// transport is empty when the command failed before a transport was chosen.
func (c *Client) WriteDispatch(deviceID, kind, transport string, ok bool, latency time.Duration, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(dispatchPoint(deviceID, kind, transport, ok, latency, at))
}

func telemetryPoint(deviceID string, servo1, servo2 *int, at time.Time) *write.Point {
	fields := make(map[string]interface{}, 2)
	if servo1 != nil {
		fields["servo1"] = *servo1
	}
	if servo2 != nil {
		fields["servo2"] = *servo2
	}
	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint(MeasurementTelemetry, map[string]string{"device_id": deviceID}, fields, at)
}

func dispatchPoint(deviceID, kind, transport string, ok bool, latency time.Duration, at time.Time) *write.Point {
	if transport == "" {
		transport = "none"
	}
	return write.NewPoint(
		MeasurementDispatch,
		map[string]string{
			"device_id": deviceID,
			"kind":      kind,
			"transport": transport,
		},
		map[string]interface{}{
			"ok":         ok,
			"latency_ms": float64(latency) / float64(time.Millisecond),
		},
		at,
	)
}
