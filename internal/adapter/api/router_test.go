package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/capture"
	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/config"
	"github.com/V4T54L/devrelay/internal/render"
	"github.com/V4T54L/devrelay/internal/site"
	"github.com/V4T54L/devrelay/internal/stack"
	"github.com/V4T54L/devrelay/internal/tail"
	"github.com/V4T54L/devrelay/internal/usecase"
)

type devServer struct {
	*httptest.Server
	relay *usecase.LogRelay
}

func newDevServer(t *testing.T, token string) *devServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()
	cfg.RootDir = "/srv/app"
	cfg.StreamToken = token

	m := metrics.NewRelayMetrics(prometheus.NewRegistry())
	relay := usecase.NewLogRelay("instance-1", stack.NewNormalizer(cfg.RootDir), nil, m, logger)
	session := capture.NewSession(slog.NewTextHandler(io.Discard, nil), relay.Capture)

	hooks := render.NewHooks()
	pages := site.New(hooks, zap.New(session.ZapCore(zapcore.NewNopCore())))
	usecase.NewRenderFlusher(relay, nil, m, logger).Register(hooks)

	srv := httptest.NewServer(NewRouter(cfg, logger, relay, m, pages))
	t.Cleanup(srv.Close)
	return &devServer{Server: srv, relay: relay}
}

func TestLogFlow_StreamAndRender(t *testing.T) {
	srv := newDevServer(t, "s3cret")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/_nuxt_logs", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	frames := make(chan tail.Frame, 4)
	go func() {
		_ = tail.ReadFrames(resp.Body, func(f tail.Frame) error {
			frames <- f
			return nil
		})
	}()

	page, err := srv.Client().Get(srv.URL + "/db")
	require.NoError(t, err)
	body, err := io.ReadAll(page.Body)
	page.Body.Close()
	require.NoError(t, err)
	html := string(body)

	// The render embeds the buffered record ahead of the client script.
	require.Contains(t, html, "window.__NUXT_LOGS__ = ")
	assert.Contains(t, html, "query executed")
	assert.Less(t, strings.Index(html, "window.__NUXT_LOGS__"), strings.Index(html, "EventSource"))
	assert.Equal(t, 0, srv.relay.Len())

	select {
	case f := <-frames:
		assert.Equal(t, "1", f.ID)
		var got domain.LogRecord
		require.NoError(t, json.Unmarshal([]byte(f.Data), &got))
		assert.Equal(t, domain.TypeInfo, got.Type)
		assert.Equal(t, "db", got.Tag)
		assert.Equal(t, "query executed", got.Message())
		assert.Equal(t, "instance-1", got.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received on the log stream")
	}

}

func TestLogFlow_StreamRequiresToken(t *testing.T) {
	srv := newDevServer(t, "s3cret")

	resp, err := srv.Client().Get(srv.URL + "/_nuxt_logs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, srv.relay.Subscribers())
}

func TestRouter_Health(t *testing.T) {
	srv := newDevServer(t, "")

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}
