package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/lumenhub-core/internal/device"
	"github.com/nerrad567/lumenhub-core/internal/protocol"
	"github.com/nerrad567/lumenhub-core/internal/session"
)

// Transport identifies how a command reached the device.
type Transport string

const (
	TransportNone     Transport = ""
	TransportLive     Transport = "live"
	TransportFallback Transport = "fallback"
)

// Directory is the part of the device directory the router needs.
type Directory interface {
	Get(ctx context.Context, id string) (*device.Device, error)
	SetStatus(ctx context.Context, id string, status device.Status) error
	SetCachedAngles(ctx context.Context, id string, servo1, servo2 *int) error
	SetCachedLed(ctx context.Context, id string, brightness *int, color *device.Color) error
	Touch(ctx context.Context, id string) error
}

// Sessions is the part of the session runtime the router needs.
type Sessions interface {
	FindByDevice(deviceID string) (session.Session, bool)
	Send(deviceID string, frame []byte) (session.Session, error)
}

// Result describes a delivered command.
type Result struct {
	DeviceID  string          `json:"device_id"`
	Kind      Kind            `json:"kind"`
	Transport Transport       `json:"transport"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// Outcome is reported to the Observer after every Dispatch, delivered or not.
type Outcome struct {
	DeviceID  string
	Kind      Kind
	Transport Transport
	Err       error
	Latency   time.Duration
}

// Observer receives dispatch outcomes. Calls are synchronous.
type Observer interface {
	CommandDispatched(o Outcome)
}

// Logger is the logging interface used by the router.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopObserver struct{}

func (noopObserver) CommandDispatched(Outcome) {}

// Router delivers commands to devices. A device with a live session gets
// the command as a frame on that session and nothing else; otherwise one
// direct HTTP request is made to its recorded address.
//
// Delivery is at most once. Live sends are fire-and-forget.
type Router struct {
	dir      Directory
	sessions Sessions
	client   *Client
	logger   Logger
	observer Observer
	now      func() time.Time
}

// NewRouter creates a router.
func NewRouter(dir Directory, sessions Sessions, client *Client) *Router {
	if client == nil {
		client = NewClient(DefaultFallbackTimeout)
	}
	return &Router{
		dir:      dir,
		sessions: sessions,
		client:   client,
		logger:   noopLogger{},
		observer: noopObserver{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetObserver sets the dispatch observer.
func (r *Router) SetObserver(o Observer) {
	r.observer = o
}

// Dispatch validates cmd and delivers it to deviceID. On success the
// directory cache is updated with the delivered state. On failure the
// returned Result still names the transport that was attempted.
func (r *Router) Dispatch(ctx context.Context, deviceID string, cmd Command) (Result, error) {
	start := r.now()
	res, err := r.dispatch(ctx, deviceID, cmd)

	kind := Kind("")
	if cmd != nil {
		kind = cmd.Kind()
	}
	r.observer.CommandDispatched(Outcome{
		DeviceID:  deviceID,
		Kind:      kind,
		Transport: res.Transport,
		Err:       err,
		Latency:   r.now().Sub(start),
	})
	return res, err
}

func (r *Router) dispatch(ctx context.Context, deviceID string, cmd Command) (Result, error) {
	d, err := r.lookup(ctx, deviceID)
	if err != nil {
		return Result{}, err
	}
	if cmd == nil {
		return Result{}, fmt.Errorf("%w: no command", ErrInvalidCommand)
	}
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{DeviceID: deviceID, Kind: cmd.Kind()}

	frame, err := protocol.Encode(cmd.Frame())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	s, err := r.sessions.Send(deviceID, frame)
	switch {
	case err == nil:
		res.Transport = TransportLive
		r.logger.Debug("command sent live",
			"device_id", deviceID, "kind", cmd.Kind(), "connection_id", s.ConnectionID)
	case errors.Is(err, session.ErrSessionNotFound):
		res.Transport = TransportFallback
		path, body := cmd.fallbackRequest()
		resp, err := r.client.Post(ctx, d.Address, path, body)
		if err != nil {
			return res, err
		}
		res.Response = resp
		r.logger.Debug("command sent direct",
			"device_id", deviceID, "kind", cmd.Kind(), "address", d.Address)
	default:
		res.Transport = TransportLive
		return res, fmt.Errorf("%w: %w", ErrDeviceUnreachable, err)
	}

	if err := cmd.record(ctx, r.dir, deviceID); err != nil {
		// The device has the command; only the cached copy is stale.
		r.logger.Warn("recording delivered command failed",
			"device_id", deviceID, "kind", cmd.Kind(), "error", err)
	}
	return res, nil
}

// ServoReading is the reported position of one servo.
type ServoReading struct {
	DeviceID  string    `json:"device_id"`
	Servo     int       `json:"servo"`
	Angle     *int      `json:"angle"`
	Transport Transport `json:"transport"`
}

// QueryServo reads a servo position without moving it. A live session
// answers from its last heartbeat, which may carry no angle yet;
// otherwise the device's status document is fetched. The directory cache
// is not written.
func (r *Router) QueryServo(ctx context.Context, deviceID string, servo int) (ServoReading, error) {
	d, err := r.lookup(ctx, deviceID)
	if err != nil {
		return ServoReading{}, err
	}
	if servo != 1 && servo != 2 {
		return ServoReading{}, fmt.Errorf("%w: servo must be 1 or 2, got %d", ErrInvalidCommand, servo)
	}

	reading := ServoReading{DeviceID: deviceID, Servo: servo}

	if s, ok := r.sessions.FindByDevice(deviceID); ok {
		reading.Transport = TransportLive
		reading.Angle = s.ServoAngle(servo)
		return reading, nil
	}

	doc, err := r.client.Status(ctx, d.Address)
	if err != nil {
		return reading, err
	}
	var status deviceStatus
	if err := json.Unmarshal(doc, &status); err != nil {
		return reading, fmt.Errorf("%w: decoding status: %w", ErrDeviceUnreachable, err)
	}
	reading.Transport = TransportFallback
	reading.Angle = status.angle(servo)
	return reading, nil
}

// deviceStatus is the subset of /api/status the hub reads.
type deviceStatus struct {
	Servo1 *struct {
		Angle *float64 `json:"angle"`
	} `json:"servo1"`
	Servo2 *struct {
		Angle *float64 `json:"angle"`
	} `json:"servo2"`
}

func (s deviceStatus) angle(servo int) *int {
	var a *float64
	switch {
	case servo == 1 && s.Servo1 != nil:
		a = s.Servo1.Angle
	case servo == 2 && s.Servo2 != nil:
		a = s.Servo2.Angle
	}
	if a == nil {
		return nil
	}
	v := int(math.Round(*a))
	return &v
}

// StatusCheck is the result of a status check.
type StatusCheck struct {
	DeviceID  string          `json:"device_id"`
	Status    device.Status   `json:"status"`
	Reachable bool            `json:"reachable"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// CheckStatus asks the device's web server for its status and records the
// answer as the directory status. An unreachable device is a normal
// result, not an error.
func (r *Router) CheckStatus(ctx context.Context, deviceID string) (StatusCheck, error) {
	d, err := r.lookup(ctx, deviceID)
	if err != nil {
		return StatusCheck{}, err
	}

	check := StatusCheck{DeviceID: deviceID, Status: device.StatusConnected, Reachable: true}
	data, err := r.client.Status(ctx, d.Address)
	if err != nil {
		check.Status = device.StatusDisconnected
		check.Reachable = false
		check.Error = "cannot reach device"
		r.logger.Debug("status check failed", "device_id", deviceID, "error", err)
	} else {
		check.Data = data
	}

	if err := r.dir.SetStatus(ctx, deviceID, check.Status); err != nil {
		r.logger.Warn("recording checked status failed", "device_id", deviceID, "error", err)
	}
	return check, nil
}

func (r *Router) lookup(ctx context.Context, deviceID string) (*device.Device, error) {
	d, err := r.dir.Get(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, deviceID, err)
		}
		return nil, fmt.Errorf("looking up device %s: %w", deviceID, err)
	}
	return d, nil
}
