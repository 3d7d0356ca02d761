package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

func intPtr(v int) *int { return &v }

func TestTelemetryPoint(t *testing.T) {
	at := time.Unix(1, 0)

	tests := []struct {
		name   string
		servo1 *int
		servo2 *int
		want   string
	}{
		{"both", intPtr(45), intPtr(90), "servo_telemetry,device_id=lamp servo1=45i,servo2=90i 1000000000\n"},
		{"servo2 only", nil, intPtr(0), "servo_telemetry,device_id=lamp servo2=0i 1000000000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := telemetryPoint("lamp", tt.servo1, tt.servo2, at)
			if p == nil {
				t.Fatal("telemetryPoint() = nil")
			}
			if got := write.PointToLineProtocol(p, time.Nanosecond); got != tt.want {
				t.Errorf("line = %q, want %q", got, tt.want)
			}
		})
	}

	if p := telemetryPoint("lamp", nil, nil, at); p != nil {
		t.Errorf("telemetryPoint() without angles = %v, want nil", p)
	}
}

func TestDispatchPoint(t *testing.T) {
	at := time.Unix(1, 0)

	tests := []struct {
		name      string
		transport string
		ok        bool
		latency   time.Duration
		want      string
	}{
		{"live", "live", true, 12500 * time.Microsecond,
			"command_dispatch,device_id=lamp,kind=set_servo,transport=live latency_ms=12.5,ok=true 1000000000\n"},
		{"failed before transport", "", false, 0,
			"command_dispatch,device_id=lamp,kind=set_servo,transport=none latency_ms=0,ok=false 1000000000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := dispatchPoint("lamp", "set_servo", tt.transport, tt.ok, tt.latency, at)
			if got := write.PointToLineProtocol(p, time.Nanosecond); got != tt.want {
				t.Errorf("line = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrite_NotConnected(t *testing.T) {
	c := &Client{}

	// Must not touch the nil write API.
	c.WriteTelemetry("lamp", intPtr(1), nil, time.Now())
	c.WriteDispatch("lamp", "clear_leds", "live", true, time.Millisecond, time.Now())
	c.Flush()

	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}
