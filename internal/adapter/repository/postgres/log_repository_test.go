package postgres

import (
	"testing"
	"time"

	"github.com/V4T54L/devrelay/internal/domain"
)

func TestRowValues(t *testing.T) {
	date := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	tests := []struct {
		name     string
		record   domain.LogRecord
		wantArgs string
		wantErr  bool
	}{
		{
			name: "Full record",
			record: domain.LogRecord{
				ID: "r1", Date: date, Source: "node-a", Type: domain.TypeWarn, Level: 1, Tag: "db",
				Args: []any{"slow query", map[string]any{"ms": 250}}, Filename: "pages/index.go", Stack: "    at main.handler (pages/index.go:10)",
			},
			wantArgs: `["slow query",{"ms":250}]`,
		},
		{
			name:     "No args",
			record:   domain.LogRecord{ID: "r2", Date: date, Type: domain.TypeLog},
			wantArgs: `[]`,
		},
		{
			name:     "Unencodable args",
			record:   domain.LogRecord{ID: "r3", Date: date, Type: domain.TypeLog, Args: []any{"loop", cyclic}},
			wantArgs: `[]`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := rowValues(tt.record)
			if (err != nil) != tt.wantErr {
				t.Fatalf("rowValues() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(values) != len(copyColumns) {
				t.Fatalf("expected %d values, got %d", len(copyColumns), len(values))
			}
			if values[0] != tt.record.ID {
				t.Errorf("record_id = %v, want %v", values[0], tt.record.ID)
			}
			if values[6] != tt.record.Message() {
				t.Errorf("message = %v, want %v", values[6], tt.record.Message())
			}
			if values[9] != tt.wantArgs {
				t.Errorf("args = %v, want %v", values[9], tt.wantArgs)
			}
		})
	}
}
