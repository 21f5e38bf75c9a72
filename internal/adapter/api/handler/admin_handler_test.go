package handler

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/domain/mocks"
	"github.com/V4T54L/devrelay/internal/usecase"
)

func newAdminMux(uc *usecase.AdminUseCase) *http.ServeMux {
	h := NewAdminHandler(uc, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/relay", h.GetRelayStats)
	mux.HandleFunc("POST /admin/relay/flush", h.FlushRelay)
	mux.HandleFunc("GET /admin/streams/{streamName}/groups", h.GetGroupInfo)
	mux.HandleFunc("POST /admin/streams/{streamName}/trim", h.TrimStream)
	return mux
}

func TestAdminHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		target         string
		body           string
		repo           domain.StreamAdminRepository
		setup          func(relay *usecase.LogRelay)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "Relay stats",
			method: http.MethodGet,
			target: "/admin/relay",
			setup: func(relay *usecase.LogRelay) {
				relay.Record(record("a", domain.TypeLog, "a"))
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"buffered":1`,
		},
		{
			name:   "Flush returns drained records with non-finite numbers as null",
			method: http.MethodPost,
			target: "/admin/relay/flush",
			setup: func(relay *usecase.LogRelay) {
				r := record("nan", domain.TypeLog, "ratio")
				r.Args = append(r.Args, math.NaN())
				relay.Record(r)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"args":["ratio",null]`,
		},
		{
			name:           "Groups without a shared stream",
			method:         http.MethodGet,
			target:         "/admin/streams/devrelay:logs/groups",
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "Groups",
			method:         http.MethodGet,
			target:         "/admin/streams/devrelay:logs/groups",
			repo:           &mocks.MockStreamAdminRepository{Groups: []domain.ConsumerGroupInfo{{Name: "archivers"}}},
			expectedStatus: http.StatusOK,
			expectedBody:   `"name":"archivers"`,
		},
		{
			name:           "Trim",
			method:         http.MethodPost,
			target:         "/admin/streams/devrelay:logs/trim",
			body:           `{"maxlen": 100}`,
			repo:           &mocks.MockStreamAdminRepository{Trimmed: 3},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"trimmed":3}`,
		},
		{
			name:           "Trim rejects non-positive maxlen",
			method:         http.MethodPost,
			target:         "/admin/streams/devrelay:logs/trim",
			body:           `{"maxlen": 0}`,
			repo:           &mocks.MockStreamAdminRepository{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relay := usecase.NewLogRelay("instance-1", nil, nil, nil, discardLogger())
			if tt.setup != nil {
				tt.setup(relay)
			}
			mux := newAdminMux(usecase.NewAdminUseCase(relay, nil, tt.repo))

			req := httptest.NewRequest(tt.method, tt.target, bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d (%s)", tt.expectedStatus, rr.Code, rr.Body.String())
			}
			if tt.expectedBody != "" && !strings.Contains(rr.Body.String(), tt.expectedBody) {
				t.Errorf("expected body to contain %q, got %q", tt.expectedBody, rr.Body.String())
			}
		})
	}
}
