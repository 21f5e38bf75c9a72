package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/domain"
)

const (
	defaultBatchSize    = 500
	defaultRetryCount   = 3
	defaultRetryBackoff = 1 * time.Second
)

// ArchiveLogsUseCase moves records from the shared stream into the archive.
type ArchiveLogsUseCase struct {
	streamRepo   domain.RemoteLogRepository
	archiveRepo  domain.ArchiveRepository
	metrics      *metrics.RelayMetrics
	logger       *slog.Logger
	group        string
	consumer     string
	retryCount   int
	retryBackoff time.Duration
}

// NewArchiveLogsUseCase creates the archive use case. retryCount and retryBackoff fall back to
// defaults when not positive. m may be nil.
func NewArchiveLogsUseCase(streamRepo domain.RemoteLogRepository, archiveRepo domain.ArchiveRepository, m *metrics.RelayMetrics, logger *slog.Logger, group, consumer string, retryCount int, retryBackoff time.Duration) *ArchiveLogsUseCase {
	if retryCount <= 0 {
		retryCount = defaultRetryCount
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &ArchiveLogsUseCase{
		streamRepo:   streamRepo,
		archiveRepo:  archiveRepo,
		metrics:      m,
		logger:       logger.With("component", "archive", "group", group, "consumer", consumer),
		group:        group,
		consumer:     consumer,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// ProcessBatch reads a batch of records, writes them to the archive, and acknowledges them
// on the stream. A batch that still fails after the retries goes to the dead-letter stream
// and is acknowledged as well.
func (uc *ArchiveLogsUseCase) ProcessBatch(ctx context.Context) (int, error) {
	batch, err := uc.streamRepo.ReadLogBatch(ctx, uc.group, uc.consumer, defaultBatchSize)
	if err != nil {
		uc.logger.Error("failed to read log batch from stream", "error", err)
		return 0, err
	}

	if len(batch) == 0 {
		return 0, nil // No new records, not an error
	}

	uc.logger.Debug("read batch of records from stream", "count", len(batch))

	records := make([]domain.LogRecord, len(batch))
	messageIDs := make([]string, len(batch))
	for i, sr := range batch {
		records[i] = sr.Record
		messageIDs[i] = sr.MessageID
	}

	if err := uc.writeWithRetry(ctx, records); err != nil {
		uc.logger.Error("failed to write log batch to archive after retries", "error", err)
		if dlqErr := uc.streamRepo.MoveToDLQ(ctx, batch); dlqErr != nil {
			// Leave the batch pending so it is read again.
			uc.logger.Error("failed to move batch to DLQ", "error", dlqErr)
			return 0, err
		}
		if ackErr := uc.streamRepo.AcknowledgeLogs(ctx, uc.group, messageIDs...); ackErr != nil {
			uc.logger.Error("failed to acknowledge dead-lettered batch", "error", ackErr)
		}
		return 0, err
	}

	if err := uc.streamRepo.AcknowledgeLogs(ctx, uc.group, messageIDs...); err != nil {
		// The records are archived but stay pending; the upsert absorbs the redelivery.
		uc.logger.Error("failed to acknowledge archived records", "error", err)
		return 0, err
	}

	if uc.metrics != nil {
		uc.metrics.ArchivedRecords.Add(float64(len(records)))
	}
	uc.logger.Info("archived log batch", "count", len(records))
	return len(records), nil
}

// Run processes batches until ctx is done, pausing briefly after a failed batch.
func (uc *ArchiveLogsUseCase) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if _, err := uc.ProcessBatch(ctx); err != nil {
			select {
			case <-time.After(uc.retryBackoff):
			case <-ctx.Done():
			}
		}
	}
}

func (uc *ArchiveLogsUseCase) writeWithRetry(ctx context.Context, records []domain.LogRecord) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.archiveRepo.WriteLogBatch(ctx, records)
		if err == nil {
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to write batch to archive, retrying...", "attempt", i+1, "error", err)
		select {
		case <-time.After(uc.retryBackoff * time.Duration(i+1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
