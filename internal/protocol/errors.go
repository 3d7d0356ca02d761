package protocol

import "errors"

var (
	// ErrInvalidJSON is returned when a frame is not parseable JSON.
	ErrInvalidJSON = errors.New("protocol: invalid json")

	// ErrInvalidPayload is returned when a frame of a known type has the wrong shape.
	ErrInvalidPayload = errors.New("protocol: invalid payload")

	// ErrUnknownType is returned for frames with an unrecognised type.
	ErrUnknownType = errors.New("protocol: unknown type")

	// ErrProtocolViolation marks frames that are well formed but not allowed
	// in the connection's current state. They are logged and acknowledged,
	// never escalated.
	ErrProtocolViolation = errors.New("protocol: violation")
)
