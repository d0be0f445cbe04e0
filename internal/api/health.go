package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ConnectionProbe reports whether the realtime connection is up.
type ConnectionProbe interface {
	Connected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	probe   ConnectionProbe
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(probe ConnectionProbe) *HealthHandler {
	return &HealthHandler{probe: probe, started: time.Now(), now: time.Now}
}

// Health returns the health status of the client and its connection.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]string{"client": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
		"uptime": h.now().Sub(h.started).Round(time.Second).String(),
	}
	statusCode := http.StatusOK

	switch {
	case h.probe == nil:
		checks["transport"] = "not started"
	case h.probe.Connected():
		checks["transport"] = "ok"
	default:
		status["status"] = "degraded"
		checks["transport"] = "disconnected"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
