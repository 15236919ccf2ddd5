package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/hekad-gateway/internal/adapter/api/handler"
	"github.com/V4T54L/hekad-gateway/internal/adapter/api/middleware"
)

// NewAdminRouter creates the admin HTTP router: health, status and metrics.
// /status requires adminToken when it is set.
func NewAdminRouter(provider handler.StatusProvider, gatherer prometheus.Gatherer, adminToken string, logger *slog.Logger) http.Handler {
	logger = logger.With("component", "admin_api")
	mux := http.NewServeMux()
	statusHandler := handler.NewStatusHandler(provider, logger)
	auth := middleware.Auth(adminToken, logger)

	mux.HandleFunc("GET /health", statusHandler.HealthCheck)
	mux.Handle("GET /status", auth(http.HandlerFunc(statusHandler.GetStatus)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return middleware.Logging(logger)(mux)
}
