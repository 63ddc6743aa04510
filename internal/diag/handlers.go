package diag

import (
	"encoding/json"
	"net/http"
	"time"
)

// writeJSON writes a JSON response with the given status code and
// payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// handleHealthz is a liveness probe: the process is up and serving.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// readyResponse is the /readyz payload.
type readyResponse struct {
	Ready                  bool   `json:"ready"`
	MonitoringStatus       string `json:"monitoring_status,omitempty"`
	MQTTConnectionStatus   string `json:"mqtt_connection_status,omitempty"`
	BACnetConnectionStatus string `json:"bacnet_connection_status,omitempty"`
}

// handleReadyz is a readiness probe: ready only once the device-status
// row reports both the MQTT and BACnet links connected. A missing row
// (GetDeviceStatus's zero-value fallback, see internal/heartbeat) or an
// ERROR/DISCONNECTED link reports not-ready without failing the
// request — the operator reads the body for the reason, not the status
// code alone.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Ready: false})
		return
	}
	status, err := s.store.GetDeviceStatus(r.Context())
	if err != nil {
		s.logger.Error("diag: reading device status", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{Ready: false})
		return
	}

	ready := string(status.MQTTConnectionStatus) == "CONNECTED" && string(status.BACnetConnectionStatus) == "CONNECTED"
	resp := readyResponse{
		Ready:                  ready,
		MonitoringStatus:       string(status.MonitoringStatus),
		MQTTConnectionStatus:   string(status.MQTTConnectionStatus),
		BACnetConnectionStatus: string(status.BACnetConnectionStatus),
	}
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handlePool reports per-wrapper BACnet pool utilization, the same
// data Monitor logs before/after each cycle.
func (s *Server) handlePool(w http.ResponseWriter, _ *http.Request) {
	if s.pool == nil {
		writeJSON(w, http.StatusOK, map[string]WrapperUtilization{})
		return
	}
	writeJSON(w, http.StatusOK, s.pool.Utilization())
}
