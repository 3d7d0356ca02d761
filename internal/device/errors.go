package device

import "errors"

// Domain errors for the device package. Check them with errors.Is:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // 404
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is the parent of every validation failure below.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidID is returned for empty, oversized or unsafe device IDs.
	ErrInvalidID = errors.New("device: invalid id")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidAddress is returned when a network address is malformed.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidState is returned for out-of-range cached values or an unknown status.
	ErrInvalidState = errors.New("device: invalid state")
)
