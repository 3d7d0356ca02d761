// Package protocol implements the JSON frame protocol spoken by devices
// on their persistent channel.
//
// Devices send register and heartbeat frames:
//
//	{"type":"register","deviceId":"esp32_kitchen"}
//	{"type":"heartbeat","servo1":{"angle":45},"servo2":{"angle":90}}
//
// The hub answers with acks and errors, and pushes command frames:
//
//	{"type":"ack","action":"register","deviceId":"esp32_kitchen"}
//	{"type":"error","error":"invalid_json"}
//	{"type":"set_servo","id":1,"angle":90}
//
// Frame shapes are checked with JSON Schema before they touch any state.
// A Handler owns one connection's state machine and is driven by the
// transport's read loop.
package protocol
