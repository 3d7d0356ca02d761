package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/lumenhub-core/internal/command"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/logging"
	"github.com/nerrad567/lumenhub-core/internal/infrastructure/mqtt"
)

const (
	// commandQoS is the subscription QoS for inbound commands.
	commandQoS = 1

	// maxInflightCommands bounds concurrent MQTT-originated dispatches.
	maxInflightCommands = 16
)

var (
	// errIngressBusy rejects a command while maxInflightCommands are running.
	errIngressBusy = errors.New("command ingress busy")

	// errIngressStopped rejects messages delivered after shutdown began.
	errIngressStopped = errors.New("command ingress stopped")
)

// dispatcher is the part of the command router used by MQTT ingress.
type dispatcher interface {
	Dispatch(ctx context.Context, deviceID string, cmd command.Command) (command.Result, error)
}

// subscriber is the part of the MQTT client used by command ingress.
type subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Topics() mqtt.Topics
}

// commandIngress turns messages on <prefix>/command/{id} into dispatches.
//
// The MQTT handler only parses; each dispatch runs on its own goroutine so
// a slow fallback request or a result publish never holds up the client's
// message delivery.
type commandIngress struct {
	ctx     context.Context
	topics  mqtt.Topics
	router  dispatcher
	results *hubEvents
	log     *logging.Logger

	slots chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func newCommandIngress(ctx context.Context, topics mqtt.Topics, router dispatcher, results *hubEvents, log *logging.Logger) *commandIngress {
	return &commandIngress{
		ctx:     ctx,
		topics:  topics,
		router:  router,
		results: results,
		log:     log,
		slots:   make(chan struct{}, maxInflightCommands),
	}
}

// runCommandIngress dispatches commands until ctx is cancelled, then
// unsubscribes and waits for in-flight dispatches.
func runCommandIngress(ctx context.Context, sub subscriber, router dispatcher, results *hubEvents, log *logging.Logger) error {
	topics := sub.Topics()
	in := newCommandIngress(ctx, topics, router, results, log)

	if err := sub.Subscribe(topics.AllCommands(), commandQoS, in.handle); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	log.Info("MQTT command ingress started", "topic", topics.AllCommands())

	<-ctx.Done()

	if err := sub.Unsubscribe(topics.AllCommands()); err != nil {
		log.Debug("unsubscribing from commands", "error", err)
	}
	in.wait()
	return nil
}

// handle parses one command message and starts its dispatch. Outcomes of
// dispatched commands reach MQTT through the router's observer; messages
// rejected here are reported directly.
func (in *commandIngress) handle(topic string, payload []byte) error {
	deviceID, ok := in.topics.CommandDeviceID(topic)
	if !ok {
		return fmt.Errorf("not a command topic: %s", topic)
	}

	cmd, err := command.ParseRequest(payload)
	if err != nil {
		in.reject(deviceID, "", err)
		return fmt.Errorf("device %s: %w", deviceID, err)
	}

	in.mu.Lock()
	if in.stopped || in.ctx.Err() != nil {
		in.mu.Unlock()
		return fmt.Errorf("device %s: %w", deviceID, errIngressStopped)
	}
	select {
	case in.slots <- struct{}{}:
	default:
		in.mu.Unlock()
		in.reject(deviceID, string(cmd.Kind()), errIngressBusy)
		return fmt.Errorf("device %s: %w", deviceID, errIngressBusy)
	}
	in.wg.Add(1)
	in.mu.Unlock()

	go func() {
		defer func() {
			<-in.slots
			in.wg.Done()
		}()
		in.dispatch(deviceID, cmd)
	}()
	return nil
}

func (in *commandIngress) dispatch(deviceID string, cmd command.Command) {
	res, err := in.router.Dispatch(in.ctx, deviceID, cmd)
	if err != nil {
		in.log.Warn("MQTT command failed", "device_id", deviceID, "kind", cmd.Kind(), "error", err)
		return
	}
	in.log.Debug("MQTT command delivered", "device_id", deviceID, "kind", res.Kind, "transport", res.Transport)
}

func (in *commandIngress) reject(deviceID, kind string, err error) {
	if in.results.publisher != nil {
		in.results.publishResult(deviceID, kind, "", err, in.results.now())
	}
}

// wait stops accepting messages and blocks until every started dispatch
// has returned.
func (in *commandIngress) wait() {
	in.mu.Lock()
	in.stopped = true
	in.mu.Unlock()
	in.wg.Wait()
}
