package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// AgentRegistry exposes the orchestrator's view of the pipeline.
type AgentRegistry interface {
	Status() []domain.AgentRecord
}

// StatusHandler serves the agent lifecycle records for the dashboard.
type StatusHandler struct {
	registry  AgentRegistry
	mode      string
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(registry AgentRegistry, mode string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{registry: registry, mode: mode, startedAt: startedAt}
}

// GetStatus responds with the run mode, uptime, and per-agent records.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	records := h.registry.Status()

	agents := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		agents = append(agents, map[string]any{
			"name":              rec.Name,
			"status":            string(rec.Status),
			"last_health_check": rec.LastHealthCheck,
			"last_error":        rec.LastError,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"agents":         agents,
	})
}
