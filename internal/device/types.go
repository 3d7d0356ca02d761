package device

import "time"

// Status is the directory's view of whether a device is reachable.
// It is set by session transitions and status checks, never by callers.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusConnected || s == StatusDisconnected
}

// UnknownAddress is stored when a device's network origin could not be determined.
const UnknownAddress = "unknown"

// Defaults applied to new records.
const (
	DefaultBrightness = 128
	maxChannel        = 255
	maxAngle          = 180
)

// DefaultColor is white.
var DefaultColor = Color{R: maxChannel, G: maxChannel, B: maxChannel}

// Color is an RGB triple, each channel 0-255.
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Device is a smart light known to the hub.
//
// The servo and LED fields cache the last command successfully delivered,
// not live telemetry. Live angles reported over the device channel are
// held by the session runtime.
type Device struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Status  Status `json:"status"`

	// AutoRegistered is true when the record was created by first contact
	// on the device channel rather than through the API.
	AutoRegistered bool `json:"auto_registered"`

	Servo1Angle *int  `json:"servo1_angle,omitempty"`
	Servo2Angle *int  `json:"servo2_angle,omitempty"`
	Brightness  int   `json:"brightness"`
	Color       Color `json:"color"`

	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DeepCopy returns an independent copy. Pointer fields are cloned so the
// registry cache cannot be mutated through a returned record.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	cpy.Servo1Angle = copyInt(d.Servo1Angle)
	cpy.Servo2Angle = copyInt(d.Servo2Angle)
	if d.LastHeartbeat != nil {
		t := *d.LastHeartbeat
		cpy.LastHeartbeat = &t
	}
	return &cpy
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
