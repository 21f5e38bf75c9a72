package site

import (
	"bytes"
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/V4T54L/devrelay/internal/render"
)

// captureDefault points slog's default logger at buf for the duration of the test.
func captureDefault(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	prev := slog.Default()
	prevWriter, prevFlags := log.Writer(), log.Flags()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(prev)
		log.SetOutput(prevWriter)
		log.SetFlags(prevFlags)
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestSite_PagesLogThroughEveryPath(t *testing.T) {
	var buf bytes.Buffer
	captureDefault(t, &buf)
	core, observed := observer.New(zap.InfoLevel)
	s := New(render.NewHooks(), zap.New(core))

	tests := []struct {
		path    string
		title   string
		expects func(t *testing.T)
	}{
		{"/", "devrelay demo", func(t *testing.T) { assert.Contains(t, buf.String(), "rendering index") }},
		{"/login", "login", func(t *testing.T) {
			assert.Contains(t, buf.String(), "login form requested")
			assert.Contains(t, buf.String(), "auth.password=hunter2")
		}},
		{"/db", "db", func(t *testing.T) {
			entries := observed.FilterLoggerName("db").All()
			require.Len(t, entries, 1)
			assert.Equal(t, "query executed", entries[0].Message)
		}},
		{"/fail", "fail", func(t *testing.T) { assert.Contains(t, buf.String(), "upstream returned 503") }},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := get(t, s, tt.path)
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Body.String(), "<title>"+tt.title+"</title>")
			tt.expects(t)
		})
	}
}

func TestSite_ClientScriptRunsAfterSnapshot(t *testing.T) {
	var buf bytes.Buffer
	captureDefault(t, &buf)
	hooks := render.NewHooks()
	s := New(hooks, nil)
	// Registered after the site, like the flusher in the server wiring.
	hooks.OnHTML(func(ctx context.Context, html *render.HTMLContext) {
		html.BodyAppend = append([]string{"<script>window.__NUXT_LOGS__ = []</script>"}, html.BodyAppend...)
	})

	body := get(t, s, "/").Body.String()

	snapshot := strings.Index(body, "window.__NUXT_LOGS__ = []")
	client := strings.Index(body, "new EventSource")
	require.GreaterOrEqual(t, snapshot, 0)
	require.GreaterOrEqual(t, client, 0)
	assert.Less(t, snapshot, client)
}

func TestSite_UnknownPath(t *testing.T) {
	s := New(render.NewHooks(), nil)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/missing").Code)
}
