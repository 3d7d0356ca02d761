package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/lumenhub-core/internal/device"
)

// createDeviceRequest is the body of POST /devices.
type createDeviceRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// updateDeviceRequest is the body of PATCH /devices/{id}. Absent fields
// are left unchanged.
type updateDeviceRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
}

// onlineDevice is one entry of GET /devices/online.
type onlineDevice struct {
	DeviceID      string    `json:"device_id"`
	ConnectionID  string    `json:"connection_id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Servo1Angle   *int      `json:"servo1_angle"`
	Servo2Angle   *int      `json:"servo2_angle"`
}

// handleListDevices returns every device in the directory.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice adds a device by hand. The ID is generated when omitted.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev := &device.Device{ID: req.ID, Name: req.Name, Address: req.Address}
	if err := s.registry.Create(r.Context(), dev); err != nil {
		writeDomainError(w, err, "failed to create device")
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice renames a device or changes its address.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == nil && req.Address == nil {
		writeBadRequest(w, "name or address is required")
		return
	}

	dev, err := s.registry.Update(r.Context(), id, req.Name, req.Address)
	if err != nil {
		writeDomainError(w, err, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device by ID. An open session for the
// device is not closed.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStats returns directory statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}

// handleListOnline returns devices with a recent heartbeat on a live
// session, joined with their directory record.
//
// Query parameters:
//   - within_ms: liveness window in milliseconds, at least 1 (default from config)
func (s *Server) handleListOnline(w http.ResponseWriter, r *http.Request) {
	within := s.dispatch.LiveWindow()
	if raw := r.URL.Query().Get("within_ms"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			writeBadRequest(w, "within_ms must be a positive integer")
			return
		}
		within = time.Duration(ms) * time.Millisecond
	}

	ctx := r.Context()
	live := s.runtime.ListLive(within)
	out := make([]onlineDevice, 0, len(live))
	for _, sess := range live {
		entry := onlineDevice{
			DeviceID:      sess.DeviceID,
			ConnectionID:  sess.ConnectionID,
			LastHeartbeat: sess.LastHeartbeat,
			Servo1Angle:   sess.Servo1Angle,
			Servo2Angle:   sess.Servo2Angle,
		}
		// A deleted record still shows its session, without name or address.
		if dev, err := s.registry.Get(ctx, sess.DeviceID); err == nil {
			entry.Name = dev.Name
			entry.Address = dev.Address
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}
