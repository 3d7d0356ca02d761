package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every hub topic when none is configured.
const DefaultTopicPrefix = "lumenhub"

// Topics builds hub topic names under a prefix. The zero value uses
// DefaultTopicPrefix.
//
//	topics := mqtt.NewTopics("lumenhub")
//	topics.DevicePresence("light_kitchen")
//	// Returns: "lumenhub/device/light_kitchen/presence"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix.
func NewTopics(prefix string) Topics {
	return Topics{prefix: strings.TrimSuffix(prefix, "/")}
}

// Prefix returns the topic root in use.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// =============================================================================
// Device Events
// =============================================================================

// DevicePresence returns the retained connected/disconnected topic.
//
// Example: lumenhub/device/light_kitchen/presence
func (t Topics) DevicePresence(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/presence", t.Prefix(), deviceID)
}

// DeviceTelemetry returns the topic for heartbeat servo readings.
//
// Example: lumenhub/device/light_kitchen/telemetry
func (t Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/telemetry", t.Prefix(), deviceID)
}

// CommandResult returns the topic for dispatch outcomes.
//
// Example: lumenhub/device/light_kitchen/command/result
func (t Topics) CommandResult(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/command/result", t.Prefix(), deviceID)
}

// =============================================================================
// Command Ingress
// =============================================================================

// Command returns the topic a command for deviceID is published on.
//
// Example: lumenhub/command/light_kitchen
func (t Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix(), deviceID)
}

// AllCommands matches every command topic.
func (t Topics) AllCommands() string {
	return t.Prefix() + "/command/+"
}

// CommandDeviceID extracts the device ID from a command topic. ok is false
// when topic is not a command topic under this prefix.
func (t Topics) CommandDeviceID(topic string) (deviceID string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix()+"/command/")
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// =============================================================================
// System
// =============================================================================

// SystemStatus returns the hub's online/offline topic, also used for the LWT.
//
// Example: lumenhub/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}
