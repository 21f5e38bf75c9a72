package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/devalue"
)

const logsTableName = "dev_logs"

const schema = `
CREATE TABLE IF NOT EXISTS ` + logsTableName + ` (
	record_id   TEXT PRIMARY KEY,
	logged_at   TIMESTAMPTZ NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	level       SMALLINT NOT NULL,
	tag         TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL DEFAULT '',
	stack       TEXT NOT NULL DEFAULT '',
	args        JSONB NOT NULL DEFAULT '[]',
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS dev_logs_logged_at_idx ON ` + logsTableName + ` (logged_at);
`

var copyColumns = []string{"record_id", "logged_at", "source", "type", "level", "tag", "message", "filename", "stack", "args"}

// LogRepository implements domain.ArchiveRepository for PostgreSQL.
type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLogRepository creates a new PostgreSQL log repository.
func NewLogRepository(db *sql.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger.With("component", "postgres_archive")}
}

// EnsureSchema creates the archive table when it does not exist.
func (r *LogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create %s schema: %w", logsTableName, err)
	}
	return nil
}

// WriteLogBatch writes a batch of records to PostgreSQL using the COPY protocol for high performance.
// It uses an ON CONFLICT clause to perform an upsert, ensuring idempotency based on record_id.
func (r *LogRepository) WriteLogBatch(ctx context.Context, records []domain.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	// Use a temporary table to stage the data, then merge into the main table.
	tempTableName := logsTableName + "_temp_import"
	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+tempTableName+` (LIKE `+logsTableName+` INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return err
	}

	stmt, err := txn.Prepare(pq.CopyIn(tempTableName, copyColumns...))
	if err != nil {
		return err
	}

	for _, record := range records {
		values, err := rowValues(record)
		if err != nil {
			r.logger.Warn("storing record without args", "record_id", record.ID, "error", err)
		}
		if _, err = stmt.ExecContext(ctx, values...); err != nil {
			// Close the statement to avoid connection issues
			_ = stmt.Close()
			return err
		}
	}

	if err := stmt.Close(); err != nil {
		return err
	}

	// Upsert from the temp table into the main table
	upsertQuery := `
		INSERT INTO ` + logsTableName + ` (record_id, logged_at, source, type, level, tag, message, filename, stack, args)
		SELECT record_id, logged_at, source, type, level, tag, message, filename, stack, args FROM ` + tempTableName + `
		ON CONFLICT (record_id) DO UPDATE SET
			logged_at = EXCLUDED.logged_at,
			source = EXCLUDED.source,
			type = EXCLUDED.type,
			level = EXCLUDED.level,
			tag = EXCLUDED.tag,
			message = EXCLUDED.message,
			filename = EXCLUDED.filename,
			stack = EXCLUDED.stack,
			args = EXCLUDED.args;
	`
	_, err = txn.ExecContext(ctx, upsertQuery)
	if err != nil {
		return err
	}

	return txn.Commit()
}

// rowValues maps a record onto copyColumns. Args that cannot be encoded are stored as an
// empty array and reported through the error.
func rowValues(record domain.LogRecord) ([]any, error) {
	args := []byte("[]")
	var encErr error
	if record.Args != nil {
		encoded, err := devalue.JSON(record.Args)
		if err != nil {
			encErr = err
		} else {
			args = encoded
		}
	}
	return []any{
		record.ID,
		record.Date,
		record.Source,
		record.Type,
		record.Level,
		record.Tag,
		record.Message(),
		record.Filename,
		record.Stack,
		string(args),
	}, encErr
}
