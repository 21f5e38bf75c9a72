package tail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/devalue"
)

func TestReadFrames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Frame
	}{
		{"single", "id: 1\ndata: {}\n\n", []Frame{{ID: "1", Data: "{}"}}},
		{"two frames", "id: 1\ndata: a\n\nid: 2\ndata: b\n\n", []Frame{{ID: "1", Data: "a"}, {ID: "2", Data: "b"}}},
		{"multi-line data", "data: a\ndata: b\n\n", []Frame{{Data: "a\nb"}}},
		{"comments and crlf", ": ping\r\n\r\nid: 7\r\ndata: x\r\n\r\n", []Frame{{ID: "7", Data: "x"}}},
		{"incomplete trailing frame", "id: 1\ndata: a\n\nid: 2\ndata: b\n", []Frame{{ID: "1", Data: "a"}}},
		{"no data", "id: 1\n\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []Frame
			err := ReadFrames(strings.NewReader(tt.input), func(f Frame) error {
				got = append(got, f)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStyles_Format(t *testing.T) {
	styles := DefaultStyles()
	line := styles.Format(domain.LogRecord{
		Type:     domain.TypeWarn,
		Tag:      "auth",
		Date:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local),
		Args:     []any{"login attempt", map[string]any{"user": "demo"}},
		Filename: "pages/login.go",
	})

	for _, want := range []string{"12:00:00.000", "WARN", "[auth]", "login attempt", `{"user":"demo"}`, "(pages/login.go)"} {
		assert.Contains(t, line, want)
	}

	unknown := styles.Format(domain.LogRecord{Type: "notice", Args: []any{"x"}})
	assert.Contains(t, unknown, "NOTICE")
}

func TestClient_Run(t *testing.T) {
	var gotAuth, gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFilter = r.URL.Query().Get("filter")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "id: 1\ndata: {\"type\":\"error\",\"args\":[\"boom\"]}\n\n")
		fmt.Fprint(w, "id: 2\ndata: not json\n\n")
		fmt.Fprint(w, "id: 3\ndata: {\"type\":\"log\",\"args\":[\"done\"]}\n\n")
	}))
	defer srv.Close()

	var out bytes.Buffer
	c := &Client{
		URL:    srv.URL + "/_nuxt_logs",
		Token:  "s3cret",
		Filter: "level <= 1",
		Out:    &out,
		Styles: DefaultStyles(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	err := c.Run(context.Background())

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, "level <= 1", gotFilter)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "boom")
	assert.Contains(t, lines[1], "done")
}

func TestClient_RejectedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized: invalid stream token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL, Out: io.Discard, Styles: DefaultStyles(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	err := c.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Snapshot(t *testing.T) {
	when := time.UnixMilli(1700000000123)
	literal, err := devalue.Stringify([]domain.LogRecord{
		{ID: "r1", Type: domain.TypeWarn, Level: domain.LevelOf(domain.TypeWarn), Tag: "auth", Date: when, Args: []any{"login attempt </script>", math.Inf(1)}, Filename: "pages/login.go"},
		{ID: "r2", Type: domain.TypeError, Level: domain.LevelOf(domain.TypeError), Date: when, Args: []any{"boom"}},
	})
	require.NoError(t, err)
	page := "<!DOCTYPE html><html><body><h1>db</h1><script>window.__NUXT_LOGS__ = " + literal + "</script>\n<script>client()</script></body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	var out bytes.Buffer
	c := &Client{Out: &out, Styles: DefaultStyles(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	n, err := c.Snapshot(context.Background(), srv.URL+"/db")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "login attempt </script>")
	assert.Contains(t, lines[0], "(pages/login.go)")
	assert.Contains(t, lines[1], "boom")

	records, err := ExtractSnapshot(page)
	require.NoError(t, err)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, domain.LevelOf(domain.TypeWarn), records[0].Level)
	assert.True(t, records[0].Date.Equal(when))
	assert.True(t, math.IsInf(records[0].Args[1].(float64), 1))
}

func TestExtractSnapshot_Missing(t *testing.T) {
	_, err := ExtractSnapshot("<html><body>no logs here</body></html>")
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = ExtractSnapshot("<script>window.__NUXT_LOGS__ = [oops</script>")
	assert.ErrorIs(t, err, devalue.ErrSyntax)
}
