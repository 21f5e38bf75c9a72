// Package site is a small host application used to exercise devrelay during development.
// Its pages log through slog, the standard library log package and zap, so every capture
// path produces records that show up in the browser console.
package site

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/V4T54L/devrelay/internal/render"
)

// clientScript replays the embedded snapshot and then follows the live stream.
const clientScript = `<script>
(function () {
  function show(r) {
    var fn = console[r.type] || console.log;
    fn.apply(console, ["%c[server" + (r.tag ? ":" + r.tag : "") + "]", "color:#888"].concat(r.args || []));
  }
  (window.__NUXT_LOGS__ || []).forEach(show);
  var es = new EventSource("/_nuxt_logs" + location.search);
  es.onmessage = function (e) { show(JSON.parse(e.data)); };
})();
</script>`

var errUpstream = errors.New("upstream returned 503")

// Site serves the demo pages.
type Site struct {
	renderer *render.Renderer
	zap      *zap.Logger
	mux      *http.ServeMux
}

// New creates the demo site and registers its client script on hooks. zapLogger may be nil.
func New(hooks *render.Hooks, zapLogger *zap.Logger) *Site {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	s := &Site{
		renderer: render.NewRenderer(hooks),
		zap:      zapLogger,
		mux:      http.NewServeMux(),
	}
	hooks.OnHTML(func(ctx context.Context, html *render.HTMLContext) {
		html.BodyAppend = append(html.BodyAppend, clientScript)
	})

	s.mux.HandleFunc("GET /{$}", s.page(s.index))
	s.mux.HandleFunc("GET /login", s.page(s.login))
	s.mux.HandleFunc("GET /db", s.page(s.db))
	s.mux.HandleFunc("GET /fail", s.page(s.fail))
	return s
}

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Site) page(fn func(r *http.Request) render.Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := fn(r)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.renderer.Render(r.Context(), w, r.URL.Path, page); err != nil {
			slog.Error("render failed", "path", r.URL.Path, "error", err)
		}
	}
}

func (s *Site) index(r *http.Request) render.Page {
	slog.Info("rendering index", "path", r.URL.Path, "user_agent", r.UserAgent())
	slog.Debug("feature flags", "flags", map[string]bool{"new_nav": true, "beta_search": false})
	return render.Page{
		Title: "devrelay demo",
		Body: `<h1>devrelay demo</h1><p>Open the browser console.</p>
<ul><li><a href="/login">login</a></li><li><a href="/db">db</a></li><li><a href="/fail">fail</a></li></ul>`,
	}
}

func (s *Site) login(r *http.Request) render.Page {
	log.Printf("login form requested from %s", r.RemoteAddr)
	slog.Default().WithGroup("auth").Warn("login attempt", "user", "demo", "password", "hunter2")
	return render.Page{Title: "login", Body: `<h1>login</h1><p>The password attribute is redacted in the console.</p>`}
}

func (s *Site) db(r *http.Request) render.Page {
	start := time.Now()
	s.zap.Named("db").Info("query executed",
		zap.String("query", "SELECT 1"),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("rows", 1),
	)
	return render.Page{Title: "db", Body: `<h1>db</h1><p>Logged through zap.</p>`}
}

func (s *Site) fail(r *http.Request) render.Page {
	err := fmt.Errorf("load dashboard: %w", errUpstream)
	slog.Error("page data failed", "error", err)
	return render.Page{Title: "fail", Body: `<h1>fail</h1><p>An error was logged on the server.</p>`}
}
