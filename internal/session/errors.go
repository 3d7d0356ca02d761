package session

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches a connection or device.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrSendFailed wraps a transport error from Conn.Send.
	ErrSendFailed = errors.New("session: send failed")
)
