package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/V4T54L/hekad-gateway/internal/domain"
)

// StatusProvider exposes the supervised daemon's current status.
type StatusProvider interface {
	Status() domain.ProcessStatus
}

// StatusHandler serves daemon health and status.
type StatusHandler struct {
	provider StatusProvider
	logger   *slog.Logger
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(provider StatusProvider, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{provider: provider, logger: logger}
}

// HealthCheck reports 200 until the daemon reaches a terminal state.
// GET /health
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	state := h.provider.Status().State
	code := http.StatusOK
	if state.Terminal() {
		code = http.StatusServiceUnavailable
	}
	h.respondWithJSON(w, code, map[string]string{"state": string(state)})
}

// GetStatus returns the full status including the last daemon output.
// GET /status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.provider.Status())
}

func (h *StatusHandler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
