package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/devrelay/internal/adapter/api/handler"
	"github.com/V4T54L/devrelay/internal/usecase"
)

// NewAdminRouter creates and configures the HTTP router for admin operations and metrics.
// gatherer may be nil to leave /metrics unmounted.
func NewAdminRouter(adminUseCase *usecase.AdminUseCase, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	adminHandler := handler.NewAdminHandler(adminUseCase, logger)

	mux.HandleFunc("GET /health", adminHandler.HealthCheck)
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// Relay
	mux.HandleFunc("GET /admin/relay", adminHandler.GetRelayStats)
	mux.HandleFunc("POST /admin/relay/flush", adminHandler.FlushRelay)

	// Shared stream
	mux.HandleFunc("GET /admin/streams/{streamName}/groups", adminHandler.GetGroupInfo)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups/{groupName}/pending", adminHandler.GetPendingSummary)
	mux.HandleFunc("POST /admin/streams/{streamName}/trim", adminHandler.TrimStream)

	return mux
}
