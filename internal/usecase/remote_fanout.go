package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/domain"
)

const defaultPublishQueue = 1024

// RemotePublisher copies locally captured records to the shared stream. Publishing happens on
// its own goroutine so a slow or absent Redis never delays the relay.
type RemotePublisher struct {
	repo       domain.RemoteLogRepository
	instanceID string
	queue      chan domain.LogRecord
	metrics    *metrics.RelayMetrics
	logger     *slog.Logger
	warn       *rate.Limiter
}

// NewRemotePublisher creates a publisher. queueSize <= 0 selects a default. m may be nil.
func NewRemotePublisher(repo domain.RemoteLogRepository, instanceID string, queueSize int, m *metrics.RelayMetrics, logger *slog.Logger) *RemotePublisher {
	if queueSize <= 0 {
		queueSize = defaultPublishQueue
	}
	return &RemotePublisher{
		repo:       repo,
		instanceID: instanceID,
		queue:      make(chan domain.LogRecord, queueSize),
		metrics:    m,
		logger:     logger.With("component", "remote_publisher"),
		warn:       rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Enqueue is the relay subscriber. Records that arrived from other instances are not
// published again.
func (p *RemotePublisher) Enqueue(record domain.LogRecord) {
	if record.Source != p.instanceID {
		return
	}
	select {
	case p.queue <- record:
	default:
		p.failed(record, "publish queue is full")
	}
}

// Run publishes queued records until ctx is done.
func (p *RemotePublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-p.queue:
			if err := p.repo.Publish(ctx, record); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.failed(record, err.Error())
			}
		}
	}
}

func (p *RemotePublisher) failed(record domain.LogRecord, reason string) {
	if p.metrics != nil {
		p.metrics.RemotePublishErrors.Inc()
	}
	if p.warn.Allow() {
		p.logger.Warn("dropping record for shared stream", "record_id", record.ID, "reason", reason)
	}
}

// FollowRemote feeds records published by other instances into relay until ctx is done.
// Followed records are streamed and embedded like local ones.
func FollowRemote(ctx context.Context, repo domain.RemoteLogRepository, relay *LogRelay, logger *slog.Logger) error {
	logger = logger.With("component", "remote_follower")
	logger.Info("following shared stream")
	return repo.Follow(ctx, func(record domain.LogRecord) {
		if record.Source == relay.InstanceID() {
			return
		}
		relay.Record(record)
	})
}
