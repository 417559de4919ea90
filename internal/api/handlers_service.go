package api

import (
	"net/http"
	"time"
)

// handleHealth is a simple liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":        "operational",
		"uptime":        time.Since(s.startTime).String(),
		"version":       Version,
		"strategies":    len(s.deps.Ledger.Strategies()),
		"pending":       s.deps.Ledger.PendingCount(),
		"receiptSigner": s.deps.Receipts.Address(),
		"configuration": map[string]any{
			"dev_mode":         s.opts.DevMode,
			"rate_limit_rps":   s.opts.RateLimitRPS,
			"rate_limit_burst": s.opts.RateLimitBurst,
		},
	}
	if s.deps.Breaker != nil {
		status["circuit"] = s.deps.Breaker.Snapshot()
	}
	if s.deps.Exporter != nil {
		status["exporter"] = s.deps.Exporter.Status()
	}

	writeJSON(w, http.StatusOK, status)
}

// handleCircuit shows the bridge breaker and resets it on POST ?action=reset
func (s *Server) handleCircuit(w http.ResponseWriter, r *http.Request) {
	if s.deps.Breaker == nil {
		s.errorResponse(w, r, http.StatusServiceUnavailable, "Circuit breaker not enabled")
		return
	}

	response := map[string]any{}
	if r.Method == http.MethodPost {
		if r.URL.Query().Get("action") != "reset" {
			s.errorResponse(w, r, http.StatusBadRequest, "unknown action")
			return
		}
		s.deps.Breaker.Reset()
		response["message"] = "Circuit breaker reset"
	}

	snap := s.deps.Breaker.Snapshot()
	response["state"] = snap.State
	response["consecutiveFailures"] = snap.ConsecutiveFailures
	response["resetDelay"] = snap.ResetDelay
	if !snap.LastTrip.IsZero() {
		response["lastTrip"] = snap.LastTrip.UTC().Format(time.RFC3339)
		response["lastReason"] = snap.LastReason
	}

	writeJSON(w, http.StatusOK, response)
}
