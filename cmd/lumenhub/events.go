package main

import (
	"time"

	"github.com/nerrad567/lumenhub-core/internal/command"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumenhub-core/internal/session"
)

// eventPublisher is the part of the MQTT client used for device events.
type eventPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
	Topics() mqtt.Topics
}

// metricsWriter is the part of the InfluxDB client used for device events.
type metricsWriter interface {
	WriteTelemetry(deviceID string, servo1, servo2 *int, at time.Time)
	WriteDispatch(deviceID, kind, transport string, ok bool, latency time.Duration, at time.Time)
}

// sessionLookup reports whether a device still has a session.
type sessionLookup interface {
	FindByDevice(deviceID string) (session.Session, bool)
}

type presenceEvent struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type telemetryEvent struct {
	Servo1    *int   `json:"servo1"`
	Servo2    *int   `json:"servo2"`
	Timestamp string `json:"timestamp"`
}

type commandResultEvent struct {
	Kind      string  `json:"kind"`
	Transport string  `json:"transport"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
}

// hubEvents fans session and dispatch events out to MQTT and InfluxDB.
// Either sink may be nil. It implements protocol.Observer and
// command.Observer.
type hubEvents struct {
	sessions  sessionLookup
	publisher eventPublisher
	metrics   metricsWriter
	log       *logging.Logger
	now       func() time.Time
}

func newHubEvents(sessions sessionLookup, log *logging.Logger) *hubEvents {
	return &hubEvents{
		sessions: sessions,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DeviceConnected publishes retained presence.
func (e *hubEvents) DeviceConnected(deviceID, connectionID string) {
	e.log.Debug("device connected", "device_id", deviceID, "connection_id", connectionID)
	e.publishPresence(deviceID, "connected")
}

// DeviceHeartbeat publishes and records the reported servo angles.
func (e *hubEvents) DeviceHeartbeat(s session.Session) {
	at := e.now()
	if e.metrics != nil {
		e.metrics.WriteTelemetry(s.DeviceID, s.Servo1Angle, s.Servo2Angle, at)
	}
	if e.publisher != nil {
		e.publish(e.publisher.Topics().DeviceTelemetry(s.DeviceID), telemetryEvent{
			Servo1:    s.Servo1Angle,
			Servo2:    s.Servo2Angle,
			Timestamp: at.Format(time.RFC3339Nano),
		}, false)
	}
}

// DeviceDisconnected publishes presence once the device's last session is gone.
func (e *hubEvents) DeviceDisconnected(deviceID, connectionID string) {
	e.log.Debug("device disconnected", "device_id", deviceID, "connection_id", connectionID)
	if _, ok := e.sessions.FindByDevice(deviceID); ok {
		return
	}
	e.publishPresence(deviceID, "disconnected")
}

// CommandDispatched publishes and records a dispatch outcome.
func (e *hubEvents) CommandDispatched(o command.Outcome) {
	at := e.now()
	if e.metrics != nil {
		e.metrics.WriteDispatch(o.DeviceID, string(o.Kind), string(o.Transport), o.Err == nil, o.Latency, at)
	}
	if e.publisher != nil {
		e.publishResult(o.DeviceID, string(o.Kind), string(o.Transport), o.Err, at)
	}
}

func (e *hubEvents) publishPresence(deviceID, status string) {
	if e.publisher == nil {
		return
	}
	e.publish(e.publisher.Topics().DevicePresence(deviceID), presenceEvent{
		Status:    status,
		Timestamp: e.now().Format(time.RFC3339Nano),
	}, true)
}

func (e *hubEvents) publishResult(deviceID, kind, transport string, err error, at time.Time) {
	ev := commandResultEvent{
		Kind:      kind,
		Transport: transport,
		Timestamp: at.Format(time.RFC3339Nano),
	}
	if err != nil {
		msg := err.Error()
		ev.Error = &msg
	}
	e.publish(e.publisher.Topics().CommandResult(deviceID), ev, false)
}

func (e *hubEvents) publish(topic string, v any, retained bool) {
	if err := e.publisher.PublishJSON(topic, v, retained); err != nil {
		e.log.Warn("publishing event failed", "topic", topic, "error", err)
	}
}
