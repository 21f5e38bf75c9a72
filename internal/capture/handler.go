package capture

import (
	"context"
	"log/slog"
	"strings"
)

// teeHandler forwards every record to the sink unchanged and reports it to the session.
type teeHandler struct {
	s      *Session
	sink   slog.Handler
	groups []string
	bound  map[string]any
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.sink.Enabled(ctx, level) || h.s.captures(level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.sink.Enabled(ctx, r.Level) {
		err = h.sink.Handle(ctx, r)
	}

	if h.s.captures(r.Level) {
		fields := cloneFields(h.bound)
		r.Attrs(func(a slog.Attr) bool {
			insertAttr(fields, h.groups, a)
			return true
		})

		args := []any{r.Message}
		if len(fields) > 0 {
			args = append(args, fields)
		}
		h.s.emit(typeFor(r.Level), strings.Join(h.groups, "."), args, r.Time)
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.sink = h.sink.WithAttrs(attrs)
	h2.bound = cloneFields(h.bound)
	for _, a := range attrs {
		insertAttr(h2.bound, h.groups, a)
	}
	return &h2
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.sink = h.sink.WithGroup(name)
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

// insertAttr stores a under the nested group path, following slog's rules for empty keys.
func insertAttr(fields map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		path := groups
		if a.Key != "" {
			path = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range attrs {
			insertAttr(fields, path, ga)
		}
		return
	}

	target := fields
	for _, g := range groups {
		next, ok := target[g].(map[string]any)
		if !ok {
			next = map[string]any{}
			target[g] = next
		}
		target = next
	}
	target[a.Key] = attrValue(a.Value)
}

func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindLogValuer:
		return attrValue(v.Resolve())
	default:
		return v.Any()
	}
}

func cloneFields(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			v = cloneFields(m)
		}
		dst[k] = v
	}
	return dst
}
