package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lumenhub-core/internal/command"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/mqtt"
)

// ─── Fakes ─────────────────────────────────────────────────────────

type fakeSubscriber struct {
	*fakePublisher

	mu           sync.Mutex
	handler      mqtt.MessageHandler
	subscribed   string
	unsubscribed string
	subErr       error
}

func (s *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return s.subErr
	}
	s.subscribed, s.handler = topic, handler
	return nil
}

func (s *fakeSubscriber) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = topic
	return nil
}

func (s *fakeSubscriber) getHandler() mqtt.MessageHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

type dispatched struct {
	deviceID string
	cmd      command.Command
}

// fakeDispatcher records calls. When block is set, each call waits on it.
type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
	err   error
	block chan struct{}
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, deviceID string, cmd command.Command) (command.Result, error) {
	d.mu.Lock()
	d.calls = append(d.calls, dispatched{deviceID, cmd})
	block, err := d.block, d.err
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return command.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return command.Result{}, err
	}
	return command.Result{DeviceID: deviceID, Kind: cmd.Kind(), Transport: command.TransportLive}, nil
}

func (d *fakeDispatcher) snapshot() []dispatched {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]dispatched(nil), d.calls...)
}

// waitCalls polls until the dispatcher has seen n calls.
func waitCalls(t *testing.T, d *fakeDispatcher, n int) []dispatched {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		calls := d.snapshot()
		if len(calls) >= n {
			return calls
		}
		if time.Now().After(deadline) {
			t.Fatalf("dispatcher saw %d calls, want %d", len(calls), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testIngress(router dispatcher) (*commandIngress, *fakePublisher) {
	e, pub, _ := testEvents(fakeSessions{})
	return newCommandIngress(context.Background(), mqtt.NewTopics("lumenhub"), router, e, logging.Discard()), pub
}

// ─── Handler Tests ─────────────────────────────────────────────────

func TestCommandIngress_Dispatch(t *testing.T) {
	router := &fakeDispatcher{}
	in, pub := testIngress(router)

	if err := in.handle("lumenhub/command/lamp", []byte(`{"type":"set_servo","servo":2,"angle":120}`)); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	in.wait()

	calls := router.snapshot()
	if len(calls) != 1 || calls[0].deviceID != "lamp" {
		t.Fatalf("dispatch calls = %+v", calls)
	}
	if got, ok := calls[0].cmd.(command.SetServoAngle); !ok || got.Servo != 2 || got.Angle != 120 {
		t.Errorf("command = %#v, want SetServoAngle{2, 120}", calls[0].cmd)
	}
	if n := len(pub.all()); n != 0 {
		t.Errorf("handler published %d results; dispatched outcomes belong to the observer", n)
	}
}

func TestCommandIngress_Rejected(t *testing.T) {
	router := &fakeDispatcher{}
	in, pub := testIngress(router)

	tests := []struct {
		name        string
		topic       string
		payload     string
		wantResults int
	}{
		{"bad topic", "lumenhub/command/a/b", `{"type":"clear_leds"}`, 0},
		{"bad json", "lumenhub/command/lamp", `{`, 1},
		{"invalid command", "lumenhub/command/lamp", `{"type":"set_led_color","r":300,"g":0,"b":0}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(pub.all())
			if err := in.handle(tt.topic, []byte(tt.payload)); err == nil {
				t.Error("handle() error = nil, want error")
			}
			if got := len(pub.all()) - before; got != tt.wantResults {
				t.Errorf("published %d results, want %d", got, tt.wantResults)
			}
		})
	}

	in.wait()
	if calls := router.snapshot(); len(calls) != 0 {
		t.Errorf("rejected messages reached the router: %+v", calls)
	}
}

func TestCommandIngress_SlowDispatchDoesNotBlock(t *testing.T) {
	router := &fakeDispatcher{block: make(chan struct{})}
	in, _ := testIngress(router)

	done := make(chan error, 2)
	go func() {
		done <- in.handle("lumenhub/command/porch", []byte(`{"type":"clear_leds"}`))
		done <- in.handle("lumenhub/command/lamp", []byte(`{"type":"clear_leds"}`))
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("handle() error = %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("handle() blocked behind a slow dispatch")
		}
	}

	// Both dispatches run while the first is still stalled.
	waitCalls(t, router, 2)

	close(router.block)
	in.wait()
}

func TestCommandIngress_Busy(t *testing.T) {
	router := &fakeDispatcher{block: make(chan struct{})}
	in, pub := testIngress(router)

	for i := 0; i < maxInflightCommands; i++ {
		if err := in.handle("lumenhub/command/lamp", []byte(`{"type":"clear_leds"}`)); err != nil {
			t.Fatalf("handle() #%d error = %v", i, err)
		}
	}
	err := in.handle("lumenhub/command/lamp", []byte(`{"type":"clear_leds"}`))
	if !errors.Is(err, errIngressBusy) {
		t.Errorf("handle() over limit error = %v, want errIngressBusy", err)
	}
	msgs := pub.all()
	if len(msgs) != 1 || msgs[0].payload["error"] != errIngressBusy.Error() || msgs[0].payload["kind"] != "clear_leds" {
		t.Errorf("published %+v, want one busy result", msgs)
	}

	close(router.block)
	in.wait()

	if err := in.handle("lumenhub/command/lamp", []byte(`{"type":"clear_leds"}`)); !errors.Is(err, errIngressStopped) {
		t.Errorf("handle() after wait error = %v, want errIngressStopped", err)
	}
}

func TestCommandIngress_DispatchErrorIsLogged(t *testing.T) {
	router := &fakeDispatcher{err: command.ErrDeviceUnreachable}
	in, _ := testIngress(router)

	if err := in.handle("lumenhub/command/lamp", []byte(`{"type":"clear_leds"}`)); err != nil {
		t.Errorf("handle() error = %v; dispatch failures are reported asynchronously", err)
	}
	in.wait()
	waitCalls(t, router, 1)
}

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestRunCommandIngress(t *testing.T) {
	e, _, _ := testEvents(fakeSessions{})
	sub := &fakeSubscriber{fakePublisher: &fakePublisher{}}
	router := &fakeDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runCommandIngress(ctx, sub, router, e, logging.Discard()) }()

	deadline := time.Now().Add(2 * time.Second)
	for sub.getHandler() == nil {
		if time.Now().After(deadline) {
			t.Fatal("ingress never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if sub.subscribed != "lumenhub/command/+" {
		t.Errorf("subscribed to %q, want lumenhub/command/+", sub.subscribed)
	}
	if err := sub.getHandler()("lumenhub/command/lamp", []byte(`{"type":"clear_leds"}`)); err != nil {
		t.Errorf("handler() error = %v", err)
	}
	waitCalls(t, router, 1)

	cancel()
	if err := <-done; err != nil {
		t.Errorf("runCommandIngress() error = %v", err)
	}
	if sub.unsubscribed != "lumenhub/command/+" {
		t.Errorf("unsubscribed = %q, want lumenhub/command/+", sub.unsubscribed)
	}
}

func TestRunCommandIngress_SubscribeFails(t *testing.T) {
	e, _, _ := testEvents(fakeSessions{})
	sub := &fakeSubscriber{fakePublisher: &fakePublisher{}, subErr: mqtt.ErrNotConnected}

	err := runCommandIngress(context.Background(), sub, &fakeDispatcher{}, e, logging.Discard())
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("runCommandIngress() error = %v, want ErrNotConnected", err)
	}
}
