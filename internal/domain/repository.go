package domain

import "context"

// JournalRepository persists buffered records so they survive a server restart.
type JournalRepository interface {
	// Write appends a record to the journal.
	Write(ctx context.Context, record LogRecord) error

	// Replay reads records from the journal in write order and sends them to handler.
	Replay(ctx context.Context, handler func(record LogRecord) error) error

	// Truncate removes every journaled record. Called after records were flushed into a render.
	Truncate(ctx context.Context) error
}

// RemoteLogRepository fans records out to other devrelay processes and feeds the archive worker.
type RemoteLogRepository interface {
	// Publish appends a record to the shared stream.
	Publish(ctx context.Context, record LogRecord) error

	// Follow blocks, calling handler for every record appended after the call started.
	Follow(ctx context.Context, handler func(record LogRecord)) error

	// ReadLogBatch reads a batch of records for a consumer group member.
	ReadLogBatch(ctx context.Context, group, consumer string, count int) ([]StreamedRecord, error)

	// AcknowledgeLogs marks stream messages as processed for the group.
	AcknowledgeLogs(ctx context.Context, group string, messageIDs ...string) error

	// MoveToDLQ copies records the archive could not store to the dead-letter stream.
	MoveToDLQ(ctx context.Context, records []StreamedRecord) error
}

// ArchiveRepository is the durable sink for records read back from the shared stream.
type ArchiveRepository interface {
	// WriteLogBatch writes records idempotently, keyed by record ID.
	WriteLogBatch(ctx context.Context, records []LogRecord) error
}

// StreamedRecord is a record read back from the shared stream together with its message ID.
type StreamedRecord struct {
	MessageID string
	Record    LogRecord
}

// StreamAdminRepository exposes operational views of the shared stream.
type StreamAdminRepository interface {
	GetGroupInfo(ctx context.Context, stream string) ([]ConsumerGroupInfo, error)
	GetPendingSummary(ctx context.Context, stream, group string) (*PendingMessageSummary, error)
	TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error)
}
