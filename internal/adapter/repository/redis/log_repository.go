package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/devalue"
)

const (
	payloadField = "payload"
	sourceField  = "source"
	followBlock  = 2 * time.Second
	followCount  = 100
)

// ErrUnavailable is returned by Publish while the health check considers Redis down.
var ErrUnavailable = errors.New("redis is unavailable")

// LogRepository implements domain.RemoteLogRepository using a Redis Stream shared by every
// devrelay process in a development environment.
type LogRepository struct {
	client       *redis.Client
	logger       *slog.Logger
	stream       string
	dlqStreamKey string
	maxLen       int64
	isAvailable  atomic.Bool
}

// NewLogRepository creates a new Redis-backed LogRepository. maxLen caps the stream length
// approximately on every publish; zero leaves it unbounded.
func NewLogRepository(client *redis.Client, stream string, maxLen int64, logger *slog.Logger) *LogRepository {
	repo := &LogRepository{
		client:       client,
		logger:       logger.With("component", "redis_repository", "stream", stream),
		stream:       stream,
		dlqStreamKey: stream + ":dlq",
		maxLen:       maxLen,
	}
	repo.isAvailable.Store(true) // Assume available initially
	return repo
}

// Stream returns the key of the shared stream.
func (r *LogRepository) Stream() string {
	return r.stream
}

// Available reports the last known connectivity state.
func (r *LogRepository) Available() bool {
	return r.isAvailable.Load()
}

// StartHealthCheck monitors Redis connectivity until ctx is done. Publish fails fast while
// Redis is down instead of waiting on dial timeouts for every record.
func (r *LogRepository) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Stopping Redis health check")
			return
		case <-ticker.C:
			err := r.client.Ping(ctx).Err()
			if err != nil {
				if r.isAvailable.CompareAndSwap(true, false) {
					r.logger.Error("Redis connection lost", "error", err)
				}
			} else if r.isAvailable.CompareAndSwap(false, true) {
				r.logger.Info("Redis connection recovered")
			}
		}
	}
}

// SetupConsumerGroup creates group on the stream, creating the stream when needed.
func (r *LogRepository) SetupConsumerGroup(ctx context.Context, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, r.stream, group, "0").Err()
	if err != nil && !isRedisBusyGroupError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Publish appends a record to the shared stream.
func (r *LogRepository) Publish(ctx context.Context, record domain.LogRecord) error {
	if !r.isAvailable.Load() {
		return ErrUnavailable
	}

	payload, err := devalue.JSON(record)
	if err != nil {
		return fmt.Errorf("failed to marshal log record: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{payloadField: payload, sourceField: record.Source},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		if isNetworkError(err) && r.isAvailable.CompareAndSwap(true, false) {
			r.logger.Error("Redis connection lost during write", "error", err)
		}
		return fmt.Errorf("failed to XADD to redis stream: %w", err)
	}
	return nil
}

// Follow reads records appended after the call started and passes them to handler until ctx is
// done. Read errors are logged and retried with a growing delay.
func (r *LogRepository) Follow(ctx context.Context, handler func(record domain.LogRecord)) error {
	lastID, err := r.lastMessageID(ctx)
	if err != nil {
		return err
	}

	backoff := 100 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.stream, lastID},
			Count:   followCount,
			Block:   followBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("Failed to read from stream, retrying", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = min(backoff*2, 5*time.Second)
			continue
		}
		backoff = 100 * time.Millisecond

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				record, ok := r.decode(msg)
				if ok {
					handler(record)
				}
			}
		}
	}
}

// lastMessageID returns the ID of the newest entry, so Follow skips history without missing
// entries appended between two blocking reads.
func (r *LogRepository) lastMessageID(ctx context.Context) (string, error) {
	msgs, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read stream tail: %w", err)
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

func (r *LogRepository) decode(msg redis.XMessage) (domain.LogRecord, bool) {
	var record domain.LogRecord
	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		r.logger.Warn("Invalid message format in stream, skipping", "message_id", msg.ID)
		return record, false
	}
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		r.logger.Warn("Failed to unmarshal log record from stream, skipping", "message_id", msg.ID, "error", err)
		return record, false
	}
	return record, true
}

// ReadLogBatch reads a batch of records from the stream for a consumer group.
func (r *LogRepository) ReadLogBatch(ctx context.Context, group, consumer string, count int) ([]domain.StreamedRecord, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.stream, ">"},
		Count:    int64(count),
		Block:    followBlock,
	}

	streams, err := r.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	messages := streams[0].Messages
	records := make([]domain.StreamedRecord, 0, len(messages))
	var malformed []string
	for _, msg := range messages {
		record, ok := r.decode(msg)
		if !ok {
			malformed = append(malformed, msg.ID)
			continue
		}
		records = append(records, domain.StreamedRecord{MessageID: msg.ID, Record: record})
	}

	// Malformed entries can never be archived; acknowledge them so they do not stay pending.
	if err := r.AcknowledgeLogs(ctx, group, malformed...); err != nil {
		r.logger.Warn("Failed to acknowledge malformed messages", "error", err)
	}

	return records, nil
}

// AcknowledgeLogs acknowledges processed messages in the stream.
func (r *LogRepository) AcknowledgeLogs(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := r.client.XAck(ctx, r.stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

// MoveToDLQ moves a batch of records to the dead-letter stream.
func (r *LogRepository) MoveToDLQ(ctx context.Context, records []domain.StreamedRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, sr := range records {
		payload, err := devalue.JSON(sr.Record)
		if err != nil {
			r.logger.Error("Failed to marshal record for DLQ", "record_id", sr.Record.ID, "error", err)
			continue
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.dlqStreamKey,
			Values: map[string]interface{}{
				payloadField:      payload,
				"original_stream": r.stream,
				"original_msg_id": sr.MessageID,
				"failed_at":       time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute DLQ pipeline: %w", err)
	}
	r.logger.Warn("Moved records to DLQ", "count", len(records))
	return nil
}

func isRedisBusyGroupError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
