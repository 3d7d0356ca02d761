// Package api implements the HTTP REST API and the device WebSocket endpoint.
//
// This package provides:
//   - REST endpoints for the device directory (list, create, rename, delete)
//   - Command endpoints for servos and LEDs, routed live or direct
//   - Status checks, servo queries and the online device listing
//   - The WebSocket endpoint devices hold open to register and heartbeat
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Each device WebSocket is wrapped as a session.Conn and driven by a
// protocol.Handler. HTTP command requests go through command.Router, which
// prefers a device's live session and otherwise makes one direct request
// to the device's own web server.
//
// # Errors
//
// Domain errors are mapped to HTTP status codes in one place
// (writeDomainError): not found is 404, invalid input 400, duplicate IDs
// 409 and unreachable devices 503.
package api
