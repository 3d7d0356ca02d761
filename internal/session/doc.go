// Package session tracks which live connection speaks for which device.
//
// A Session is created when a connection registers, refreshed by each
// heartbeat and removed when the connection closes. The Runtime answers
// whether a device is reachable over its live channel and through which
// connection, and carries the servo angles the device last reported.
//
// The runtime is in-memory only and independent of the device directory:
// binding does not require a directory record, and deleting a record does
// not end its sessions.
package session
