package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/devrelay/internal/domain"
)

const journalWriteTimeout = time.Second

// JournalWriter keeps an on-disk copy of the records waiting for the next render, so a
// restarted dev server can still embed them.
type JournalWriter struct {
	journal domain.JournalRepository
	logger  *slog.Logger
	warn    *rate.Limiter
}

// NewJournalWriter creates a JournalWriter.
func NewJournalWriter(journal domain.JournalRepository, logger *slog.Logger) *JournalWriter {
	return &JournalWriter{
		journal: journal,
		logger:  logger.With("component", "journal_writer"),
		warn:    rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Write is the relay subscriber.
func (j *JournalWriter) Write(record domain.LogRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := j.journal.Write(ctx, record); err != nil && j.warn.Allow() {
		j.logger.Warn("failed to journal record", "record_id", record.ID, "error", err)
	}
}

// Restore replays the journal into the relay buffer and returns the number of records restored.
// Restored records are not broadcast: stream clients connected after the restart never saw
// the old process and get no backlog.
func (j *JournalWriter) Restore(ctx context.Context, relay *LogRelay) (int, error) {
	var records []domain.LogRecord
	err := j.journal.Replay(ctx, func(record domain.LogRecord) error {
		records = append(records, record)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return 0, err
	}
	relay.Restore(records)
	if len(records) > 0 {
		j.logger.Info("restored journaled records", "count", len(records))
	}
	return len(records), err
}
