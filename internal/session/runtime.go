package session

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultLiveWindow is how recent a heartbeat must be for ListLive when
// the caller passes a non-positive window.
const DefaultLiveWindow = 30 * time.Second

// Conn is one live device connection as seen by the runtime.
// Implementations must be safe for concurrent Send calls.
type Conn interface {
	// ID is unique per open connection and never reused.
	ID() string

	// Send queues a frame for delivery. It must not block indefinitely.
	Send(frame []byte) error

	// RemoteOrigin is the peer's network host, or "" if unknown.
	RemoteOrigin() string
}

// Session is a snapshot of one connection bound to a device.
type Session struct {
	ConnectionID  string    `json:"connection_id"`
	DeviceID      string    `json:"device_id"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Servo1Angle   *int      `json:"servo1_angle,omitempty"`
	Servo2Angle   *int      `json:"servo2_angle,omitempty"`

	// BindSeq orders bindings; higher is more recent.
	BindSeq uint64 `json:"bind_seq"`
}

// ServoAngle returns the reported angle for servo 1 or 2.
func (s Session) ServoAngle(servo int) *int {
	switch servo {
	case 1:
		return s.Servo1Angle
	case 2:
		return s.Servo2Angle
	default:
		return nil
	}
}

type entry struct {
	conn    Conn
	session Session
}

// Runtime maps live connections to device identities.
//
// One session exists per connection ID. Several connections may claim the
// same device; lookups by device return the most recently bound one.
// Sessions are only removed by Unbind. All methods are safe for
// concurrent use.
type Runtime struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	seq      uint64
	now      func() time.Time
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock sets the time source. Tests use it to control heartbeats.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) {
		r.now = now
	}
}

// New creates an empty runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bind creates or replaces the session for conn. The device need not exist
// in the directory. Rebinding resets reported angles and moves the session
// to the front of the tie-break order.
func (r *Runtime) Bind(conn Conn, deviceID string) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	e := &entry{
		conn: conn,
		session: Session{
			ConnectionID:  conn.ID(),
			DeviceID:      deviceID,
			LastHeartbeat: r.now(),
			BindSeq:       r.seq,
		},
	}
	r.sessions[conn.ID()] = e
	return e.session.clone()
}

// Unbind removes the session for connectionID and returns it.
// It is a no-op when there is none.
func (r *Runtime) Unbind(connectionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, connectionID)
	return e.session.clone(), true
}

// Touch records a heartbeat. Non-nil angles overwrite the reported values.
//
// LastHeartbeat strictly increases: if the clock has not moved past the
// previous value it is advanced by one nanosecond.
func (r *Runtime) Touch(connectionID string, servo1, servo2 *int) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}

	now := r.now()
	if !now.After(e.session.LastHeartbeat) {
		now = e.session.LastHeartbeat.Add(time.Nanosecond)
	}
	e.session.LastHeartbeat = now
	if servo1 != nil {
		e.session.Servo1Angle = copyInt(servo1)
	}
	if servo2 != nil {
		e.session.Servo2Angle = copyInt(servo2)
	}
	return e.session.clone(), nil
}

// FindByDevice returns the most recently bound session for deviceID.
func (r *Runtime) FindByDevice(deviceID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e := r.findLocked(deviceID); e != nil {
		return e.session.clone(), true
	}
	return Session{}, false
}

// Send writes frame to the connection FindByDevice would return.
// It returns ErrSessionNotFound when the device has no session, and
// ErrSendFailed wrapping the transport error when the write fails.
func (r *Runtime) Send(deviceID string, frame []byte) (Session, error) {
	r.mu.RLock()
	e := r.findLocked(deviceID)
	var conn Conn
	var s Session
	if e != nil {
		conn = e.conn
		s = e.session.clone()
	}
	r.mu.RUnlock()

	if conn == nil {
		return Session{}, ErrSessionNotFound
	}
	if err := conn.Send(frame); err != nil {
		return s, fmt.Errorf("%w: connection %s: %w", ErrSendFailed, s.ConnectionID, err)
	}
	return s, nil
}

// ListLive returns sessions whose last heartbeat is no older than within,
// ordered by device ID then bind order. within <= 0 uses DefaultLiveWindow.
// Stale sessions are reported as absent but not removed.
func (r *Runtime) ListLive(within time.Duration) []Session {
	if within <= 0 {
		within = DefaultLiveWindow
	}

	r.mu.RLock()
	now := r.now()
	live := make([]Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		if now.Sub(e.session.LastHeartbeat) <= within {
			live = append(live, e.session.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(live, func(i, j int) bool {
		if live[i].DeviceID != live[j].DeviceID {
			return live[i].DeviceID < live[j].DeviceID
		}
		return live[i].BindSeq < live[j].BindSeq
	})
	return live
}

// Count returns the number of sessions, live or stale.
func (r *Runtime) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Runtime) findLocked(deviceID string) *entry {
	var best *entry
	for _, e := range r.sessions {
		if e.session.DeviceID != deviceID {
			continue
		}
		if best == nil || e.session.BindSeq > best.session.BindSeq {
			best = e
		}
	}
	return best
}

func (s Session) clone() Session {
	s.Servo1Angle = copyInt(s.Servo1Angle)
	s.Servo2Angle = copyInt(s.Servo2Angle)
	return s
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
