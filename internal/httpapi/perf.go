package httpapi

import "net/http"

// handlePerfLatency reports the rolling stage latency window.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.metrics.SnapshotStages())
}

// handlePerfLatencyReset empties the window so a benchmark run starts clean.
func (s *Server) handlePerfLatencyReset(w http.ResponseWriter, _ *http.Request) {
	s.metrics.ResetStages()
	s.logger.Info("latency window reset")
	w.WriteHeader(http.StatusNoContent)
}
