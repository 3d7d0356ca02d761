package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/lumenhub-core/internal/device"
	"github.com/nerrad567/lumenhub-core/internal/session"
)

// State is a connection's position in the protocol state machine.
type State int

const (
	StateUnregistered State = iota
	StateRegistered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Directory is the part of the device directory the handler needs.
type Directory interface {
	Get(ctx context.Context, id string) (*device.Device, error)
	AutoRegister(ctx context.Context, id, address string) (*device.Device, bool, error)
	SetStatus(ctx context.Context, id string, status device.Status) error
}

// Observer is notified of session transitions. Calls are made on the
// connection's read goroutine and must not block.
type Observer interface {
	DeviceConnected(deviceID, connectionID string)
	DeviceHeartbeat(s session.Session)
	DeviceDisconnected(deviceID, connectionID string)
}

// Logger is the logging interface used by the handler.
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

func (noopObserver) DeviceConnected(string, string)    {}
func (noopObserver) DeviceHeartbeat(session.Session)   {}
func (noopObserver) DeviceDisconnected(string, string) {}

// Deps are the shared collaborators of every connection handler.
type Deps struct {
	Runtime   *session.Runtime
	Directory Directory
	Validator *Validator
	Observer  Observer
	Logger    Logger
}

// Handler runs the protocol for one connection:
//
//	Unregistered --register--> Registered --register--> Registered
//	     |                         |
//	     +---------close-----------+--> Closed
//
// Every failure is answered with an error frame or logged; none closes the
// connection.
type Handler struct {
	conn session.Conn
	deps Deps

	mu       sync.Mutex
	state    State
	deviceID string
}

// NewHandler creates a handler in the Unregistered state. No directory or
// runtime state changes until the first register frame.
func NewHandler(conn session.Conn, deps Deps) *Handler {
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Handler{conn: conn, deps: deps, state: StateUnregistered}
}

// State returns the current state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// DeviceID returns the device the connection last registered as, or "".
func (h *Handler) DeviceID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.deviceID
}

// HandleFrame processes one inbound frame and sends any reply on the
// connection. It returns the error that was reported to the device, if
// any, so callers can count or log it; the connection stays usable.
func (h *Handler) HandleFrame(ctx context.Context, raw []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateClosed {
		return nil
	}

	in, doc, err := Decode(raw)
	if err != nil {
		if errors.Is(err, ErrInvalidJSON) {
			h.reply(Error(CodeInvalidJSON))
		} else {
			h.reply(Error(CodeInvalidPayload))
		}
		h.deps.Logger.Debug("rejected frame", "connection_id", h.conn.ID(), "error", err)
		return err
	}

	if !h.deps.Validator.Known(in.Type) {
		h.reply(Error(CodeUnknownType))
		h.deps.Logger.Debug("unknown frame type", "connection_id", h.conn.ID(), "type", in.Type)
		return fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}

	if err := h.deps.Validator.Validate(in.Type, doc); err != nil {
		h.reply(Error(CodeInvalidPayload))
		h.deps.Logger.Debug("invalid frame", "connection_id", h.conn.ID(), "error", err)
		return err
	}
	if err := decodeInto(raw, &in); err != nil {
		h.reply(Error(CodeInvalidPayload))
		return err
	}

	switch in.Type {
	case TypeRegister:
		// The directory is stricter than the frame schema (byte length,
		// control characters). An ID it would refuse is never bound.
		if err := device.ValidateID(in.DeviceID); err != nil {
			h.reply(Error(CodeInvalidPayload))
			h.deps.Logger.Debug("invalid device id", "connection_id", h.conn.ID(), "error", err)
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		h.register(ctx, in.DeviceID)
		return nil
	default:
		return h.heartbeat(ctx, in)
	}
}

// register binds the connection to deviceID, creating a directory record
// on first contact.
func (h *Handler) register(ctx context.Context, deviceID string) {
	log := h.deps.Logger

	_, err := h.deps.Directory.Get(ctx, deviceID)
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		origin := h.conn.RemoteOrigin()
		if origin == "" {
			origin = device.UnknownAddress
		}
		if _, _, err := h.deps.Directory.AutoRegister(ctx, deviceID, origin); err != nil {
			log.Error("auto-registration failed", "device_id", deviceID, "error", err)
		}
	case err != nil:
		log.Error("directory lookup failed", "device_id", deviceID, "error", err)
	}

	h.deps.Runtime.Bind(h.conn, deviceID)
	if err := h.deps.Directory.SetStatus(ctx, deviceID, device.StatusConnected); err != nil {
		log.Warn("setting device connected failed", "device_id", deviceID, "error", err)
	}

	h.state = StateRegistered
	h.deviceID = deviceID
	h.reply(RegisterAck(deviceID))
	h.deps.Observer.DeviceConnected(deviceID, h.conn.ID())

	log.Info("device registered", "device_id", deviceID, "connection_id", h.conn.ID())
}

// heartbeat refreshes liveness. It is always acknowledged; before
// registration it changes nothing and reports ErrProtocolViolation.
func (h *Handler) heartbeat(ctx context.Context, in Inbound) error {
	defer h.reply(HeartbeatAck())

	servo1, servo2 := in.Angles()
	s, err := h.deps.Runtime.Touch(h.conn.ID(), servo1, servo2)
	if err != nil {
		violation := fmt.Errorf("%w: heartbeat before register", ErrProtocolViolation)
		h.deps.Logger.Warn("heartbeat ignored", "connection_id", h.conn.ID(), "error", violation)
		return violation
	}

	if err := h.deps.Directory.SetStatus(ctx, s.DeviceID, device.StatusConnected); err != nil {
		// A deleted record leaves a dangling session; that is not an error.
		if !errors.Is(err, device.ErrDeviceNotFound) {
			h.deps.Logger.Warn("refreshing device status failed", "device_id", s.DeviceID, "error", err)
		}
	}
	h.deps.Observer.DeviceHeartbeat(s)
	return nil
}

// Close ends the session. The directory status is left as it was, since
// the device may still answer direct requests. Safe to call more than once.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateClosed {
		return
	}
	h.state = StateClosed

	if s, ok := h.deps.Runtime.Unbind(h.conn.ID()); ok {
		h.deps.Observer.DeviceDisconnected(s.DeviceID, s.ConnectionID)
		h.deps.Logger.Info("device session closed", "device_id", s.DeviceID, "connection_id", s.ConnectionID)
	}
}

func (h *Handler) reply(frame any) {
	b, err := Encode(frame)
	if err != nil {
		h.deps.Logger.Error("encoding reply failed", "error", err)
		return
	}
	if err := h.conn.Send(b); err != nil {
		h.deps.Logger.Debug("reply not sent", "connection_id", h.conn.ID(), "error", err)
	}
}
