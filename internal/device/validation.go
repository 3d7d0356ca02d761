package device

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const (
	maxIDLength      = 128
	maxNameLength    = 100
	maxAddressLength = 255

	// autoNameIDChars is how much of an ID without '_' appears in a generated name.
	autoNameIDChars = 8
)

// invalid wraps a specific validation error under ErrInvalidDevice.
func invalid(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidDevice, kind, fmt.Sprintf(format, args...))
}

// ValidateID checks a device identity.
//
// IDs appear in URL paths and MQTT topics, so whitespace, control
// characters, '/', '+' and '#' are rejected.
func ValidateID(id string) error {
	if id == "" {
		return invalid(ErrInvalidID, "id cannot be empty")
	}
	if len(id) > maxIDLength {
		return invalid(ErrInvalidID, "id exceeds %d characters", maxIDLength)
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune("/+#", r) {
			return invalid(ErrInvalidID, "id contains %q", r)
		}
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return invalid(ErrInvalidName, "name cannot be empty")
	}
	if len(name) > maxNameLength {
		return invalid(ErrInvalidName, "name exceeds %d characters", maxNameLength)
	}
	return nil
}

// ValidateAddress checks a fallback address: a host or host:port with no
// scheme or path. UnknownAddress is accepted.
func ValidateAddress(addr string) error {
	if addr == "" {
		return invalid(ErrInvalidAddress, "address cannot be empty")
	}
	if addr == UnknownAddress {
		return nil
	}
	if len(addr) > maxAddressLength {
		return invalid(ErrInvalidAddress, "address exceeds %d characters", maxAddressLength)
	}
	if strings.ContainsAny(addr, "/?# \t") {
		return invalid(ErrInvalidAddress, "address must be host or host:port")
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" {
			return invalid(ErrInvalidAddress, "address has empty host")
		}
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return invalid(ErrInvalidAddress, "port %q out of range", port)
		}
	}
	return nil
}

// ValidateAngle checks a servo angle.
func ValidateAngle(angle int) error {
	if angle < 0 || angle > maxAngle {
		return invalid(ErrInvalidState, "angle %d outside 0-%d", angle, maxAngle)
	}
	return nil
}

// ValidateChannel checks a brightness or colour channel value.
func ValidateChannel(name string, v int) error {
	if v < 0 || v > maxChannel {
		return invalid(ErrInvalidState, "%s %d outside 0-%d", name, v, maxChannel)
	}
	return nil
}

// ValidateColor checks every channel of c.
func ValidateColor(c Color) error {
	for _, ch := range []struct {
		name string
		v    int
	}{{"r", c.R}, {"g", c.G}, {"b", c.B}} {
		if err := ValidateChannel(ch.name, ch.v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDevice checks every field of d.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is nil", ErrInvalidDevice)
	}
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if err := ValidateAddress(d.Address); err != nil {
		return err
	}
	if !d.Status.Valid() {
		return invalid(ErrInvalidState, "unknown status %q", d.Status)
	}
	for _, a := range []*int{d.Servo1Angle, d.Servo2Angle} {
		if a != nil {
			if err := ValidateAngle(*a); err != nil {
				return err
			}
		}
	}
	if err := ValidateChannel("brightness", d.Brightness); err != nil {
		return err
	}
	return ValidateColor(d.Color)
}

// GenerateID creates a new UUID for a device created without an explicit ID.
func GenerateID() string {
	return uuid.New().String()
}

// AutoName derives a display name for an auto-registered device: the
// second '_'-separated segment of the ID if non-empty, otherwise the first
// eight characters.
//
//	AutoName("esp32_kitchen_2") == "Smart Light (kitchen)"
//	AutoName("a1b2c3d4e5f6")    == "Smart Light (a1b2c3d4)"
func AutoName(id string) string {
	suffix := id
	if parts := strings.Split(id, "_"); len(parts) > 1 && parts[1] != "" {
		suffix = parts[1]
	} else if r := []rune(id); len(r) > autoNameIDChars {
		suffix = string(r[:autoNameIDChars])
	}
	name := fmt.Sprintf("Smart Light (%s)", suffix)
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}
