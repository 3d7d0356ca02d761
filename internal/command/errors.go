package command

import "errors"

var (
	// ErrDeviceNotFound is returned when the target device is not in the
	// directory. It wraps device.ErrDeviceNotFound.
	ErrDeviceNotFound = errors.New("command: device not found")

	// ErrInvalidCommand is returned for out-of-range or malformed commands.
	// Nothing is sent when a command is invalid.
	ErrInvalidCommand = errors.New("command: invalid")

	// ErrDeviceUnreachable is returned when neither the live channel nor the
	// direct HTTP request delivered the command.
	ErrDeviceUnreachable = errors.New("command: device unreachable")
)
