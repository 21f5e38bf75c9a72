package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/devrelay/internal/adapter/filter"
	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/devalue"
	"github.com/V4T54L/devrelay/internal/usecase"
)

// LogStreamPath is the fixed route browser clients connect to.
const LogStreamPath = "/_nuxt_logs"

// DefaultStreamBuffer is the per-connection delivery queue length used when none is configured.
const DefaultStreamBuffer = 256

// RecordSource is the part of the relay the stream handler needs.
type RecordSource interface {
	Subscribe(fn usecase.Subscriber) (unsubscribe func())
}

// LogStreamHandler serves captured records to browser clients as Server-Sent Events.
// Every connection gets the records recorded after it connected and nothing earlier.
type LogStreamHandler struct {
	source     RecordSource
	bufferSize int
	metrics    *metrics.RelayMetrics
	logger     *slog.Logger
	dropWarn   *rate.Limiter
}

// NewLogStreamHandler creates a LogStreamHandler. m may be nil.
func NewLogStreamHandler(source RecordSource, bufferSize int, m *metrics.RelayMetrics, logger *slog.Logger) *LogStreamHandler {
	if bufferSize <= 0 {
		bufferSize = DefaultStreamBuffer
	}
	return &LogStreamHandler{
		source:     source,
		bufferSize: bufferSize,
		metrics:    m,
		logger:     logger.With("component", "log_stream"),
		dropWarn:   rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// streamConn is the state owned by one open stream.
type streamConn struct {
	nextID uint64
	filter *filter.Filter
	events chan domain.LogRecord
}

// offer is called on the dispatching goroutine and must not block.
func (h *LogStreamHandler) offer(conn *streamConn, record domain.LogRecord) {
	if !conn.filter.Match(record) {
		return
	}
	select {
	case conn.events <- record:
	default:
		if h.metrics != nil {
			h.metrics.DeliveriesDropped.Inc()
		}
		if h.dropWarn.Allow() {
			h.logger.Warn("stream client is not keeping up, dropping records", "buffer", h.bufferSize, "record_id", record.ID)
		}
	}
}

func (h *LogStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	f, err := filter.Compile(r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn := &streamConn{
		nextID: 1,
		filter: f,
		events: make(chan domain.LogRecord, h.bufferSize),
	}
	unsubscribe := h.source.Subscribe(func(record domain.LogRecord) {
		h.offer(conn, record)
	})
	defer unsubscribe()

	// The stream is held open until the client goes away.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.metrics != nil {
		h.metrics.StreamClients.Inc()
		defer h.metrics.StreamClients.Dec()
	}
	h.logger.Debug("stream client connected", "remote_addr", r.RemoteAddr, "filter", f.String())
	defer func() {
		h.logger.Debug("stream client disconnected", "remote_addr", r.RemoteAddr, "sent", conn.nextID-1)
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-conn.events:
			payload, err := devalue.JSON(record)
			if err != nil {
				h.logger.Warn("failed to encode record for stream, skipping", "record_id", record.ID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", conn.nextID, payload); err != nil {
				return
			}
			flusher.Flush()
			conn.nextID++
			if h.metrics != nil {
				h.metrics.StreamEvents.Inc()
			}
		}
	}
}
