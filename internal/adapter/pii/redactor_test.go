package pii

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/V4T54L/devrelay/internal/domain"
)

func TestRedactor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := NewRedactor([]string{"email", " Password ", ""}, logger)

	tests := []struct {
		name           string
		inputArgs      []any
		expectedArgs   []any
		expectRedacted bool
	}{
		{
			name:           "Redact single field",
			inputArgs:      []any{"login", map[string]any{"email": "test@example.com", "user_id": 123}},
			expectedArgs:   []any{"login", map[string]any{"email": "[REDACTED]", "user_id": 123}},
			expectRedacted: true,
		},
		{
			name:           "Case insensitive keys",
			inputArgs:      []any{"login", map[string]any{"PASSWORD": "hunter2"}},
			expectedArgs:   []any{"login", map[string]any{"PASSWORD": "[REDACTED]"}},
			expectRedacted: true,
		},
		{
			name:           "Nested group",
			inputArgs:      []any{"req", map[string]any{"user": map[string]any{"email": "a@b.c", "id": 1}}},
			expectedArgs:   []any{"req", map[string]any{"user": map[string]any{"email": "[REDACTED]", "id": 1}}},
			expectRedacted: true,
		},
		{
			name:           "No fields to redact",
			inputArgs:      []any{"ok", map[string]any{"action": "login"}},
			expectedArgs:   []any{"ok", map[string]any{"action": "login"}},
			expectRedacted: false,
		},
		{
			name:           "Plain arguments only",
			inputArgs:      []any{"email", 42},
			expectedArgs:   []any{"email", 42},
			expectRedacted: false,
		},
		{
			name:           "Empty args",
			inputArgs:      nil,
			expectedArgs:   nil,
			expectRedacted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &domain.LogRecord{Args: tt.inputArgs}

			got := redactor.Redact(record)

			if got != tt.expectRedacted {
				t.Errorf("Redact() got = %v, want %v", got, tt.expectRedacted)
			}
			if !reflect.DeepEqual(record.Args, tt.expectedArgs) {
				t.Errorf("args mismatch: got %v, want %v", record.Args, tt.expectedArgs)
			}
		})
	}
}

func TestRedactor_DoesNotMutateCallerMaps(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redactor := NewRedactor([]string{"token"}, logger)

	shared := map[string]any{"token": "abc"}
	original := []any{"call", shared}
	record := &domain.LogRecord{Args: original}

	if !redactor.Redact(record) {
		t.Fatal("expected redaction")
	}
	if shared["token"] != "abc" {
		t.Errorf("caller map was modified: %v", shared)
	}
	if original[1].(map[string]any)["token"] != "abc" {
		t.Errorf("caller slice was modified: %v", original)
	}
}
