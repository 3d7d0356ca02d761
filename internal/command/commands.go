package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/lumenhub-core/internal/device"
	"github.com/nerrad567/lumenhub-core/internal/protocol"
)

// Kind names a command. Values match the frame type sent to the device.
type Kind string

const (
	KindSetServo         Kind = protocol.TypeSetServo
	KindSetLedColor      Kind = protocol.TypeSetLedColor
	KindSetLedBrightness Kind = protocol.TypeSetLedBrightness
	KindClearLeds        Kind = protocol.TypeClearLeds
)

// Command is an imperative request for one device.
type Command interface {
	Kind() Kind

	// Validate reports range errors wrapped in ErrInvalidCommand.
	Validate() error

	// Frame is the message pushed over the live channel.
	Frame() any

	// fallbackRequest is the path and body of the direct HTTP request.
	fallbackRequest() (path string, body any)

	// record writes the delivered state into the directory cache.
	record(ctx context.Context, dir Directory, deviceID string) error
}

// SetServoAngle moves servo 1 or 2 to Angle degrees.
type SetServoAngle struct {
	Servo int
	Angle int
}

func (c SetServoAngle) Kind() Kind { return KindSetServo }

func (c SetServoAngle) Validate() error {
	if c.Servo != 1 && c.Servo != 2 {
		return fmt.Errorf("%w: servo must be 1 or 2, got %d", ErrInvalidCommand, c.Servo)
	}
	if err := device.ValidateAngle(c.Angle); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return nil
}

func (c SetServoAngle) Frame() any {
	return protocol.SetServoFrame{Type: protocol.TypeSetServo, ID: c.Servo, Angle: c.Angle}
}

func (c SetServoAngle) fallbackRequest() (string, any) {
	return fmt.Sprintf("/api/servo%d", c.Servo), map[string]int{"angle": c.Angle}
}

func (c SetServoAngle) record(ctx context.Context, dir Directory, deviceID string) error {
	angle := c.Angle
	if c.Servo == 1 {
		return dir.SetCachedAngles(ctx, deviceID, &angle, nil)
	}
	return dir.SetCachedAngles(ctx, deviceID, nil, &angle)
}

// SetLedColor sets the LED colour.
type SetLedColor struct {
	R, G, B int
}

func (c SetLedColor) Kind() Kind { return KindSetLedColor }

func (c SetLedColor) Validate() error {
	if err := device.ValidateColor(device.Color{R: c.R, G: c.G, B: c.B}); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return nil
}

func (c SetLedColor) Frame() any {
	return protocol.SetLedColorFrame{Type: protocol.TypeSetLedColor, R: c.R, G: c.G, B: c.B}
}

func (c SetLedColor) fallbackRequest() (string, any) { return ledPath, c.Frame() }

func (c SetLedColor) record(ctx context.Context, dir Directory, deviceID string) error {
	return dir.SetCachedLed(ctx, deviceID, nil, &device.Color{R: c.R, G: c.G, B: c.B})
}

// SetLedBrightness sets LED brightness on the device's 0-255 scale.
type SetLedBrightness struct {
	Brightness int
}

func (c SetLedBrightness) Kind() Kind { return KindSetLedBrightness }

func (c SetLedBrightness) Validate() error {
	if err := device.ValidateChannel("brightness", c.Brightness); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return nil
}

func (c SetLedBrightness) Frame() any {
	return protocol.SetLedBrightnessFrame{Type: protocol.TypeSetLedBrightness, Brightness: c.Brightness}
}

func (c SetLedBrightness) fallbackRequest() (string, any) { return ledPath, c.Frame() }

func (c SetLedBrightness) record(ctx context.Context, dir Directory, deviceID string) error {
	b := c.Brightness
	return dir.SetCachedLed(ctx, deviceID, &b, nil)
}

// ClearLeds turns the LEDs off. The cached colour and brightness are kept
// so a later command can restore them.
type ClearLeds struct{}

func (ClearLeds) Kind() Kind      { return KindClearLeds }
func (ClearLeds) Validate() error { return nil }

func (ClearLeds) Frame() any {
	return protocol.ClearLedsFrame{Type: protocol.TypeClearLeds}
}

func (c ClearLeds) fallbackRequest() (string, any) { return ledPath, c.Frame() }

func (ClearLeds) record(ctx context.Context, dir Directory, deviceID string) error {
	return dir.Touch(ctx, deviceID)
}

const ledPath = "/api/led"

// Request is the wire form of a command accepted by the HTTP API and the
// MQTT command topic. Which fields are required depends on Type.
type Request struct {
	Type       string `json:"type"`
	Servo      *int   `json:"servo,omitempty"`
	Angle      *int   `json:"angle,omitempty"`
	R          *int   `json:"r,omitempty"`
	G          *int   `json:"g,omitempty"`
	B          *int   `json:"b,omitempty"`
	Brightness *int   `json:"brightness,omitempty"`
}

// ParseRequest decodes and converts a JSON command body.
func ParseRequest(raw []byte) (Command, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return req.Command()
}

// Command converts the request into a validated Command.
func (r Request) Command() (Command, error) {
	var cmd Command
	switch Kind(r.Type) {
	case KindSetServo:
		if r.Servo == nil || r.Angle == nil {
			return nil, fmt.Errorf("%w: servo and angle are required", ErrInvalidCommand)
		}
		cmd = SetServoAngle{Servo: *r.Servo, Angle: *r.Angle}
	case KindSetLedColor:
		if r.R == nil || r.G == nil || r.B == nil {
			return nil, fmt.Errorf("%w: r, g and b are required", ErrInvalidCommand)
		}
		cmd = SetLedColor{R: *r.R, G: *r.G, B: *r.B}
	case KindSetLedBrightness:
		if r.Brightness == nil {
			return nil, fmt.Errorf("%w: brightness is required", ErrInvalidCommand)
		}
		cmd = SetLedBrightness{Brightness: *r.Brightness}
	case KindClearLeds:
		cmd = ClearLeds{}
	case "":
		return nil, fmt.Errorf("%w: type is required", ErrInvalidCommand)
	default:
		return nil, fmt.Errorf("%w: unknown command type %q", ErrInvalidCommand, r.Type)
	}

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}
