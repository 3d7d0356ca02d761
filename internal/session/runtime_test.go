package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	id      string
	origin  string
	mu      sync.Mutex
	frames  [][]byte
	sendErr error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, origin: "10.0.0.5"}
}

func (c *fakeConn) ID() string           { return c.id }
func (c *fakeConn) RemoteOrigin() string { return c.origin }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func intPtr(v int) *int { return &v }

// ─── Bind / FindByDevice ────────────────────────────────────────

func TestRuntime_BindThenFind(t *testing.T) {
	rt := New()
	conn := newFakeConn("c1")

	s := rt.Bind(conn, "lamp")
	if s.ConnectionID != "c1" || s.DeviceID != "lamp" {
		t.Errorf("Bind() = %+v, want c1/lamp", s)
	}

	got, ok := rt.FindByDevice("lamp")
	if !ok {
		t.Fatal("FindByDevice() ok = false after Bind()")
	}
	if got.ConnectionID != "c1" {
		t.Errorf("FindByDevice().ConnectionID = %q, want c1", got.ConnectionID)
	}

	if _, ok := rt.FindByDevice("other"); ok {
		t.Error("FindByDevice(other) ok = true, want false")
	}
}

func TestRuntime_FindByDeviceMostRecentlyBoundWins(t *testing.T) {
	rt := New()
	first, second, third := newFakeConn("c1"), newFakeConn("c2"), newFakeConn("c3")

	rt.Bind(first, "lamp")
	rt.Bind(second, "lamp")

	got, _ := rt.FindByDevice("lamp")
	if got.ConnectionID != "c2" {
		t.Fatalf("FindByDevice() = %q, want c2", got.ConnectionID)
	}

	// Rebinding an older connection makes it the newest.
	rt.Bind(first, "lamp")
	got, _ = rt.FindByDevice("lamp")
	if got.ConnectionID != "c1" {
		t.Errorf("after rebind FindByDevice() = %q, want c1", got.ConnectionID)
	}

	rt.Bind(third, "lamp")
	rt.Unbind("c3")
	got, _ = rt.FindByDevice("lamp")
	if got.ConnectionID != "c1" {
		t.Errorf("after unbinding newest FindByDevice() = %q, want c1", got.ConnectionID)
	}
}

func TestRuntime_RebindMovesDevice(t *testing.T) {
	rt := New()
	conn := newFakeConn("c1")

	rt.Bind(conn, "old")
	rt.Bind(conn, "new")

	if rt.Count() != 1 {
		t.Errorf("Count() = %d, want 1", rt.Count())
	}
	if _, ok := rt.FindByDevice("old"); ok {
		t.Error("FindByDevice(old) still resolves after rebind")
	}
	if _, ok := rt.FindByDevice("new"); !ok {
		t.Error("FindByDevice(new) ok = false")
	}
}

// ─── Unbind ─────────────────────────────────────────────────────

func TestRuntime_Unbind(t *testing.T) {
	rt := New()
	rt.Bind(newFakeConn("c1"), "lamp")

	s, ok := rt.Unbind("c1")
	if !ok || s.DeviceID != "lamp" {
		t.Errorf("Unbind() = %+v, %v; want lamp, true", s, ok)
	}
	if _, ok := rt.FindByDevice("lamp"); ok {
		t.Error("FindByDevice() ok = true after Unbind()")
	}
}

func TestRuntime_UnbindWithoutRegisterIsNoop(t *testing.T) {
	rt := New()

	if _, ok := rt.Unbind("never-registered"); ok {
		t.Error("Unbind() ok = true for unknown connection")
	}
	if rt.Count() != 0 {
		t.Errorf("Count() = %d, want 0", rt.Count())
	}
}

// ─── Touch ──────────────────────────────────────────────────────

func TestRuntime_TouchUpdatesAngles(t *testing.T) {
	clock := newFakeClock()
	rt := New(WithClock(clock.Now))
	rt.Bind(newFakeConn("c1"), "lamp")

	clock.Advance(time.Second)
	s, err := rt.Touch("c1", intPtr(45), nil)
	if err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if s.Servo1Angle == nil || *s.Servo1Angle != 45 {
		t.Errorf("Servo1Angle = %v, want 45", s.Servo1Angle)
	}
	if s.Servo2Angle != nil {
		t.Errorf("Servo2Angle = %v, want nil", *s.Servo2Angle)
	}

	s, _ = rt.Touch("c1", nil, intPtr(120))
	if *s.Servo1Angle != 45 || *s.Servo2Angle != 120 {
		t.Errorf("angles = %d/%d, want 45/120", *s.Servo1Angle, *s.Servo2Angle)
	}
}

func TestRuntime_TouchStrictlyAdvances(t *testing.T) {
	clock := newFakeClock()
	rt := New(WithClock(clock.Now))
	bound := rt.Bind(newFakeConn("c1"), "lamp")

	prev := bound.LastHeartbeat
	for i := 0; i < 5; i++ {
		// Clock frozen: each touch must still move forward.
		s, err := rt.Touch("c1", nil, nil)
		if err != nil {
			t.Fatalf("Touch() error = %v", err)
		}
		if !s.LastHeartbeat.After(prev) {
			t.Fatalf("Touch() #%d LastHeartbeat = %v, not after %v", i, s.LastHeartbeat, prev)
		}
		prev = s.LastHeartbeat
	}

	clock.Advance(time.Minute)
	s, _ := rt.Touch("c1", nil, nil)
	if !s.LastHeartbeat.Equal(clock.Now()) {
		t.Errorf("LastHeartbeat = %v, want clock time %v", s.LastHeartbeat, clock.Now())
	}
}

func TestRuntime_TouchUnknownConnection(t *testing.T) {
	rt := New()

	if _, err := rt.Touch("c1", intPtr(10), nil); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Touch() error = %v, want ErrSessionNotFound", err)
	}
	if rt.Count() != 0 {
		t.Error("Touch() on unknown connection created a session")
	}
}

func TestRuntime_ReturnedSessionIsCopy(t *testing.T) {
	rt := New()
	rt.Bind(newFakeConn("c1"), "lamp")
	s, _ := rt.Touch("c1", intPtr(10), nil)

	*s.Servo1Angle = 99

	again, _ := rt.FindByDevice("lamp")
	if *again.Servo1Angle != 10 {
		t.Errorf("Servo1Angle = %d, want 10", *again.Servo1Angle)
	}
}

// ─── ListLive ───────────────────────────────────────────────────

func TestRuntime_ListLiveWindow(t *testing.T) {
	clock := newFakeClock()
	rt := New(WithClock(clock.Now))

	rt.Bind(newFakeConn("stale"), "d-stale")
	clock.Advance(5 * time.Second)
	rt.Bind(newFakeConn("edge"), "d-edge")
	clock.Advance(25 * time.Second)
	rt.Bind(newFakeConn("fresh"), "d-fresh")
	clock.Advance(5 * time.Second)

	// stale: 35s old, edge: exactly 30s, fresh: 5s.
	live := rt.ListLive(30 * time.Second)
	if len(live) != 2 {
		t.Fatalf("ListLive() returned %d sessions, want 2: %+v", len(live), live)
	}
	if live[0].DeviceID != "d-edge" || live[1].DeviceID != "d-fresh" {
		t.Errorf("ListLive() = [%s %s], want [d-edge d-fresh]", live[0].DeviceID, live[1].DeviceID)
	}

	// Listing does not expire anything.
	if rt.Count() != 3 {
		t.Errorf("Count() = %d, want 3", rt.Count())
	}
	if _, ok := rt.FindByDevice("d-stale"); !ok {
		t.Error("stale session was removed by ListLive()")
	}
}

func TestRuntime_ListLiveDefaultWindow(t *testing.T) {
	clock := newFakeClock()
	rt := New(WithClock(clock.Now))
	rt.Bind(newFakeConn("c1"), "lamp")

	clock.Advance(DefaultLiveWindow)
	if got := len(rt.ListLive(0)); got != 1 {
		t.Errorf("ListLive(0) at window edge = %d, want 1", got)
	}

	clock.Advance(time.Millisecond)
	if got := len(rt.ListLive(-1)); got != 0 {
		t.Errorf("ListLive(-1) past window = %d, want 0", got)
	}
}

func TestRuntime_RegisterHeartbeatListLive(t *testing.T) {
	clock := newFakeClock()
	rt := New(WithClock(clock.Now))
	rt.Bind(newFakeConn("c1"), "d2")

	clock.Advance(time.Second)
	if _, err := rt.Touch("c1", intPtr(45), nil); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	live := rt.ListLive(DefaultLiveWindow)
	if len(live) != 1 || live[0].DeviceID != "d2" {
		t.Fatalf("ListLive() = %+v, want d2", live)
	}
	if live[0].Servo1Angle == nil || *live[0].Servo1Angle != 45 {
		t.Errorf("Servo1Angle = %v, want 45", live[0].Servo1Angle)
	}
}

// ─── Send ───────────────────────────────────────────────────────

func TestRuntime_Send(t *testing.T) {
	rt := New()
	older, newer := newFakeConn("c1"), newFakeConn("c2")
	rt.Bind(older, "lamp")
	rt.Bind(newer, "lamp")

	s, err := rt.Send("lamp", []byte(`{"type":"clear_leds"}`))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if s.ConnectionID != "c2" {
		t.Errorf("Send() via %q, want c2", s.ConnectionID)
	}
	if older.sent() != 0 || newer.sent() != 1 {
		t.Errorf("frames sent older=%d newer=%d, want 0/1", older.sent(), newer.sent())
	}
}

func TestRuntime_SendErrors(t *testing.T) {
	rt := New()

	if _, err := rt.Send("lamp", []byte("{}")); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Send() without session error = %v, want ErrSessionNotFound", err)
	}

	conn := newFakeConn("c1")
	conn.sendErr = errors.New("buffer full")
	rt.Bind(conn, "lamp")

	_, err := rt.Send("lamp", []byte("{}"))
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("Send() error = %v, want ErrSendFailed", err)
	}
}

func TestRuntime_ConcurrentAccess(t *testing.T) {
	rt := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", n)
			conn := newFakeConn(id)
			rt.Bind(conn, "lamp")
			_, _ = rt.Touch(id, intPtr(n), nil)
			_, _ = rt.Send("lamp", []byte("{}"))
			rt.ListLive(0)
			if n%2 == 0 {
				rt.Unbind(id)
			}
		}(i)
	}
	wg.Wait()

	if rt.Count() != 10 {
		t.Errorf("Count() = %d, want 10", rt.Count())
	}
}
