package handler

import (
	"net/http"
	"time"
)

// AgentStats exposes the confidence agent's observable state.
type AgentStats interface {
	Epsilon() float64
	StateCount() int
	PendingCount() int
}

// ClockStats exposes the minute normalizer's observable state.
type ClockStats interface {
	Tracked() int
}

// StatusHandler serves runtime status for dashboards.
type StatusHandler struct {
	Mode      string
	StartedAt time.Time
	Agent     AgentStats // optional, nil in server-only mode
	Clocks    ClockStats // optional
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, startedAt time.Time, agent AgentStats, clocks ClockStats) *StatusHandler {
	return &StatusHandler{Mode: mode, StartedAt: startedAt, Agent: agent, Clocks: clocks}
}

// GetStatus responds with the running mode, uptime, and engine gauges.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(h.StartedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	body := map[string]any{
		"mode":           h.Mode,
		"uptime_seconds": uptime,
	}
	if h.Agent != nil {
		body["agent"] = map[string]any{
			"epsilon":             h.Agent.Epsilon(),
			"states":              h.Agent.StateCount(),
			"pending_evaluations": h.Agent.PendingCount(),
		}
	}
	if h.Clocks != nil {
		body["tracked_clocks"] = h.Clocks.Tracked()
	}
	writeJSON(w, http.StatusOK, body)
}
