package protocol

import (
	"encoding/json"
	"fmt"
	"math"
)

// Inbound frame types.
const (
	TypeRegister  = "register"
	TypeHeartbeat = "heartbeat"
)

// Outbound frame types.
const (
	TypeAck              = "ack"
	TypeError            = "error"
	TypeSetServo         = "set_servo"
	TypeSetLedColor      = "set_led_color"
	TypeSetLedBrightness = "set_led_brightness"
	TypeClearLeds        = "clear_leds"
)

// Error codes carried in error frames.
const (
	CodeInvalidJSON    = "invalid_json"
	CodeUnknownType    = "unknown_type"
	CodeInvalidPayload = "invalid_payload"
)

// AngleReport is a servo position inside a heartbeat.
type AngleReport struct {
	Angle float64 `json:"angle"`
}

// Inbound is any frame a device may send.
type Inbound struct {
	Type     string       `json:"type"`
	DeviceID string       `json:"deviceId,omitempty"`
	Servo1   *AngleReport `json:"servo1,omitempty"`
	Servo2   *AngleReport `json:"servo2,omitempty"`
}

// Angles returns the heartbeat's servo angles rounded to whole degrees.
func (in Inbound) Angles() (servo1, servo2 *int) {
	return roundAngle(in.Servo1), roundAngle(in.Servo2)
}

func roundAngle(r *AngleReport) *int {
	if r == nil {
		return nil
	}
	v := int(math.Round(r.Angle))
	return &v
}

// AckFrame acknowledges a register or heartbeat.
type AckFrame struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	DeviceID string `json:"deviceId,omitempty"`
}

// ErrorFrame reports a rejected inbound frame.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// SetServoFrame moves servo ID (1 or 2) to Angle degrees.
type SetServoFrame struct {
	Type  string `json:"type"`
	ID    int    `json:"id"`
	Angle int    `json:"angle"`
}

// SetLedColorFrame sets the LED colour.
type SetLedColorFrame struct {
	Type string `json:"type"`
	R    int    `json:"r"`
	G    int    `json:"g"`
	B    int    `json:"b"`
}

// SetLedBrightnessFrame sets LED brightness on the device's 0-255 scale.
type SetLedBrightnessFrame struct {
	Type       string `json:"type"`
	Brightness int    `json:"brightness"`
}

// ClearLedsFrame turns the LEDs off.
type ClearLedsFrame struct {
	Type string `json:"type"`
}

// RegisterAck builds the reply to a successful register.
func RegisterAck(deviceID string) AckFrame {
	return AckFrame{Type: TypeAck, Action: TypeRegister, DeviceID: deviceID}
}

// HeartbeatAck builds the reply to any heartbeat.
func HeartbeatAck() AckFrame {
	return AckFrame{Type: TypeAck, Action: TypeHeartbeat}
}

// Error builds an error frame with the given code.
func Error(code string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Error: code}
}

// Encode marshals a frame. Frames are plain structs so this only fails
// for values that are not frames.
func Encode(frame any) ([]byte, error) {
	b, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return b, nil
}

// Decode parses raw into an Inbound and the generic document used for
// schema validation.
func Decode(raw []byte) (Inbound, any, error) {
	doc, err := unmarshalDoc(raw)
	if err != nil {
		return Inbound{}, nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Inbound{}, doc, fmt.Errorf("%w: frame is not an object", ErrInvalidPayload)
	}

	var in Inbound
	if t, ok := obj["type"].(string); ok {
		in.Type = t
	}
	return in, doc, nil
}

// decodeInto fills in from raw once the shape is known to be valid.
func decodeInto(raw []byte, in *Inbound) error {
	if err := json.Unmarshal(raw, in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}
