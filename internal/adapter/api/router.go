package api

import (
	"log/slog"
	"net/http"

	"github.com/V4T54L/devrelay/internal/adapter/api/handler"
	"github.com/V4T54L/devrelay/internal/adapter/api/middleware"
	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/pkg/config"
)

// NewRouter creates and configures the main HTTP router: the log stream, a health check and
// the host application's pages.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	source handler.RecordSource,
	m *metrics.RelayMetrics,
	pages http.Handler,
) http.Handler {
	mux := http.NewServeMux()

	// Log stream
	streamHandler := handler.NewLogStreamHandler(source, cfg.StreamBuffer, m, logger)
	tokenMiddleware := middleware.StreamToken(cfg.StreamToken, logger)
	mux.Handle("GET "+handler.LogStreamPath, tokenMiddleware(streamHandler))

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if pages != nil {
		mux.Handle("/", pages)
	}

	return middleware.Logging(logger)(mux)
}
