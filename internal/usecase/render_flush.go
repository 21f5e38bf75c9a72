package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/devalue"
	"github.com/V4T54L/devrelay/internal/render"
)

// LogsGlobal is the window property that receives the records buffered for a render.
const LogsGlobal = "__NUXT_LOGS__"

// RenderFlusher embeds the relay's buffered records into every rendered page.
type RenderFlusher struct {
	relay   *LogRelay
	journal domain.JournalRepository
	metrics *metrics.RelayMetrics
	logger  *slog.Logger
}

// NewRenderFlusher creates a RenderFlusher. journal and m may be nil.
func NewRenderFlusher(relay *LogRelay, journal domain.JournalRepository, m *metrics.RelayMetrics, logger *slog.Logger) *RenderFlusher {
	return &RenderFlusher{
		relay:   relay,
		journal: journal,
		metrics: m,
		logger:  logger.With("component", "render_flusher"),
	}
}

// Register attaches the flusher to the render pipeline.
func (f *RenderFlusher) Register(hooks *render.Hooks) {
	hooks.OnHTML(f.OnRenderHTML)
}

// OnRenderHTML drains the buffer and puts one script assigning it to window.__NUXT_LOGS__ at
// the front of the body-append list. An empty buffer still assigns an empty array.
func (f *RenderFlusher) OnRenderHTML(ctx context.Context, html *render.HTMLContext) {
	records := f.relay.Flush()
	script := fmt.Sprintf("<script>window.%s = %s</script>", LogsGlobal, f.serialize(records))
	html.BodyAppend = append([]string{script}, html.BodyAppend...)

	if f.metrics != nil {
		f.metrics.Renders.Inc()
		f.metrics.RecordsFlushed.Add(float64(len(records)))
	}

	if f.journal != nil && len(records) > 0 {
		if err := f.journal.Truncate(ctx); err != nil {
			f.logger.Warn("failed to truncate journal after flush", "error", err)
		}
	}
}

func (f *RenderFlusher) serialize(records []domain.LogRecord) string {
	lit, err := devalue.Stringify(records)
	if err == nil {
		return lit
	}
	f.logger.Warn("failed to serialize log records, embedding degraded arguments", "error", err, "count", len(records))

	degraded := make([]domain.LogRecord, len(records))
	for i, rec := range records {
		args := make([]any, len(rec.Args))
		for j, a := range rec.Args {
			if _, err := devalue.Stringify(a); err != nil {
				a = fmt.Sprintf("[unserializable %T]", a)
			}
			args[j] = a
		}
		rec.Args = args
		degraded[i] = rec
	}
	if lit, err = devalue.Stringify(degraded); err != nil {
		f.logger.Error("failed to serialize degraded log records", "error", err)
		return "[]"
	}
	return lit
}
