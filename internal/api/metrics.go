package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/lumenhub-core/internal/device"
)

// SystemMetrics is the body of GET /metrics.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Sockets       SocketMetrics  `json:"sockets"`
	Devices       device.Stats   `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SocketMetrics counts device connections and the sessions bound on them.
type SocketMetrics struct {
	Open     int `json:"open"`
	Sessions int `json:"sessions"`
	Live     int `json:"live"`
}

// handleMetrics returns process and directory statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Sockets: SocketMetrics{
			Open:     s.hub.ConnCount(),
			Sessions: s.runtime.Count(),
			Live:     len(s.runtime.ListLive(s.dispatch.LiveWindow())),
		},
		Devices: s.registry.GetStats(),
	})
}
