package pii

import (
	"log/slog"
	"strings"

	"github.com/V4T54L/devrelay/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive attribute values in captured records before they leave the process.
type Redactor struct {
	fieldsToRedact map[string]struct{} // lower-cased keys
	logger         *slog.Logger
}

// NewRedactor creates a new Redactor instance with a given set of fields to redact.
// Field names are matched case-insensitively.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	fieldSet := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		if field != "" {
			fieldSet[field] = struct{}{}
		}
	}
	return &Redactor{
		fieldsToRedact: fieldSet,
		logger:         logger,
	}
}

// Redact replaces sensitive values inside the record's attribute objects, at any depth.
// Maps are copied before modification so values shared with the caller stay untouched.
// It reports whether anything was redacted.
func (r *Redactor) Redact(record *domain.LogRecord) bool {
	if len(r.fieldsToRedact) == 0 || len(record.Args) == 0 {
		return false
	}

	redacted := false
	args := record.Args
	for i, arg := range record.Args {
		m, ok := arg.(map[string]any)
		if !ok {
			continue
		}
		if out, changed := r.redactMap(m); changed {
			if !redacted {
				args = append([]any(nil), record.Args...)
			}
			args[i] = out
			redacted = true
		}
	}

	if redacted {
		record.Args = args
		r.logger.Debug("redacted sensitive fields", "record_id", record.ID)
	}
	return redacted
}

func (r *Redactor) redactMap(m map[string]any) (map[string]any, bool) {
	var out map[string]any
	for k, v := range m {
		var replacement any
		switch {
		case r.sensitive(k):
			if v == RedactedPlaceholder {
				continue
			}
			replacement = RedactedPlaceholder
		default:
			nested, ok := v.(map[string]any)
			if !ok {
				continue
			}
			red, changed := r.redactMap(nested)
			if !changed {
				continue
			}
			replacement = red
		}
		if out == nil {
			out = make(map[string]any, len(m))
			for k2, v2 := range m {
				out[k2] = v2
			}
		}
		out[k] = replacement
	}
	if out == nil {
		return m, false
	}
	return out, true
}

func (r *Redactor) sensitive(key string) bool {
	_, ok := r.fieldsToRedact[strings.ToLower(key)]
	return ok
}
