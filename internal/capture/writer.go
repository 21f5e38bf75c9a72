package capture

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Writer returns an io.Writer that passes every byte through to w unchanged and reports each
// complete line as a record of type typ. It suits log.New, http.Server.ErrorLog and any other
// API that logs through a writer.
func (s *Session) Writer(typ string, w io.Writer) io.Writer {
	if w == nil {
		w = io.Discard
	}
	return &lineWriter{s: s, typ: typ, out: w}
}

type lineWriter struct {
	s   *Session
	typ string
	out io.Writer

	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n, err := w.out.Write(p)

	w.mu.Lock()
	w.buf.Write(p)
	var lines []string
	for {
		b := w.buf.Bytes()
		idx := bytes.IndexByte(b, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(b[:idx], "\r"))
		w.buf.Next(idx + 1)
		if line != "" {
			lines = append(lines, line)
		}
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.s.emit(w.typ, "", []any{line}, time.Time{})
	}
	return n, err
}
