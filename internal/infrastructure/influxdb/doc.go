// Package influxdb writes hub time-series data to InfluxDB v2.
//
// Two measurements are recorded:
//   - servo_telemetry: servo angles from device heartbeats (tag device_id)
//   - command_dispatch: one point per dispatched command (tags device_id,
//     kind and transport; fields ok and latency_ms)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTelemetry("light_kitchen", &angle, nil, time.Now())
//
// Writes are non-blocking and batched per batch_size and flush_interval.
// Asynchronous write failures are reported through SetOnError.
package influxdb
