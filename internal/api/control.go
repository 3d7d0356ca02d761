package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lumenhub-core/internal/command"
)

// servoRequest is the body of POST /devices/{id}/servo.
type servoRequest struct {
	Servo *int `json:"servo"`
	Angle *int `json:"angle"`
}

// handleSetServo moves one servo.
func (s *Server) handleSetServo(w http.ResponseWriter, r *http.Request) {
	var req servoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd, err := command.Request{Type: string(command.KindSetServo), Servo: req.Servo, Angle: req.Angle}.Command()
	if err != nil {
		s.writeInvalidCommand(w, r, err)
		return
	}
	s.dispatchCommand(w, r, cmd)
}

// handleLed sends one of set_led_color, set_led_brightness or clear_leds,
// chosen by the body's type field.
func (s *Server) handleLed(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if command.Kind(req.Type) == command.KindSetServo {
		s.writeInvalidCommand(w, r, fmt.Errorf("%w: use the servo endpoint for set_servo", command.ErrInvalidCommand))
		return
	}

	cmd, err := req.Command()
	if err != nil {
		s.writeInvalidCommand(w, r, err)
		return
	}
	s.dispatchCommand(w, r, cmd)
}

// writeInvalidCommand reports a command rejected before routing. An
// unknown device is reported as 404 ahead of the 400.
func (s *Server) writeInvalidCommand(w http.ResponseWriter, r *http.Request, err error) {
	if _, getErr := s.registry.Get(r.Context(), chi.URLParam(r, "id")); getErr != nil {
		writeDomainError(w, getErr, "failed to get device")
		return
	}
	writeDomainError(w, err, "invalid command")
}

// dispatchCommand routes cmd and writes the result.
func (s *Server) dispatchCommand(w http.ResponseWriter, r *http.Request, cmd command.Command) {
	id := chi.URLParam(r, "id")

	res, err := s.router.Dispatch(r.Context(), id, cmd)
	if err != nil {
		s.logger.Debug("command failed", "device_id", id, "kind", cmd.Kind(), "error", err)
		writeDomainError(w, err, "failed to send command")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"device_id": res.DeviceID,
		"kind":      res.Kind,
		"transport": res.Transport,
		"response":  res.Response,
	})
}

// handleGetServo reports a servo's position.
//
// Query parameters:
//   - servo: 1 or 2 (required)
func (s *Server) handleGetServo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	servo, err := strconv.Atoi(r.URL.Query().Get("servo"))
	if err != nil {
		s.writeInvalidCommand(w, r, fmt.Errorf("%w: servo query parameter must be 1 or 2", command.ErrInvalidCommand))
		return
	}

	reading, err := s.router.QueryServo(r.Context(), id, servo)
	if err != nil {
		writeDomainError(w, err, "failed to query servo")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// handleCheckStatus asks the device's web server for its status.
// An unreachable device is a 200 with status disconnected.
func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	check, err := s.router.CheckStatus(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to check device status")
		return
	}
	writeJSON(w, http.StatusOK, check)
}
