package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/devrelay/internal/pkg/devalue"
	"github.com/V4T54L/devrelay/internal/usecase"
)

// AdminHandler handles HTTP requests for relay and stream administration.
type AdminHandler struct {
	uc     *usecase.AdminUseCase
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(uc *usecase.AdminUseCase, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{uc: uc, logger: logger.With("component", "admin_handler")}
}

// HealthCheck is a simple health check endpoint.
func (h *AdminHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetRelayStats reports the buffer size and the number of subscribers.
// GET /admin/relay
func (h *AdminHandler) GetRelayStats(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.uc.RelayStats())
}

// FlushRelay drains the buffer and returns the drained records.
// POST /admin/relay/flush
func (h *AdminHandler) FlushRelay(w http.ResponseWriter, r *http.Request) {
	records, err := h.uc.FlushRelay(r.Context())
	if err != nil {
		// The buffer is already drained; report the records anyway.
		h.logger.Warn("failed to truncate journal after admin flush", "error", err)
	}
	h.respondWithJSON(w, http.StatusOK, records)
}

// GetGroupInfo handles requests to get consumer group info.
// GET /admin/streams/{streamName}/groups
func (h *AdminHandler) GetGroupInfo(w http.ResponseWriter, r *http.Request) {
	streamName := r.PathValue("streamName")
	if streamName == "" {
		http.Error(w, "streamName is required", http.StatusBadRequest)
		return
	}

	groups, err := h.uc.GetGroupInfo(r.Context(), streamName)
	if err != nil {
		h.respondWithError(w, "failed to get group info", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, groups)
}

// GetPendingSummary handles requests to get a summary of pending messages.
// GET /admin/streams/{streamName}/groups/{groupName}/pending
func (h *AdminHandler) GetPendingSummary(w http.ResponseWriter, r *http.Request) {
	streamName := r.PathValue("streamName")
	groupName := r.PathValue("groupName")

	summary, err := h.uc.GetPendingSummary(r.Context(), streamName, groupName)
	if err != nil {
		h.respondWithError(w, "failed to get pending summary", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, summary)
}

// TrimStream handles requests to trim a stream.
// POST /admin/streams/{streamName}/trim
func (h *AdminHandler) TrimStream(w http.ResponseWriter, r *http.Request) {
	streamName := r.PathValue("streamName")

	var payload struct {
		MaxLen int64 `json:"maxlen"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.MaxLen <= 0 {
		http.Error(w, "maxlen must be a positive integer", http.StatusBadRequest)
		return
	}

	trimmedCount, err := h.uc.TrimStream(r.Context(), streamName, payload.MaxLen)
	if err != nil {
		h.respondWithError(w, "failed to trim stream", err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]int64{"trimmed": trimmedCount})
}

func (h *AdminHandler) respondWithError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, usecase.ErrStreamAdminUnavailable) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	h.logger.Error(msg, "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// respondWithJSON encodes with devalue.JSON so captured args that plain JSON rejects, such as
// NaN, still produce a response.
func (h *AdminHandler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := devalue.JSON(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
