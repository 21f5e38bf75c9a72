package usecase

import (
	"context"
	"errors"

	"github.com/V4T54L/devrelay/internal/domain"
)

// ErrStreamAdminUnavailable is returned by stream operations when no shared stream is configured.
var ErrStreamAdminUnavailable = errors.New("shared stream is not configured")

// AdminUseCase provides the operations behind the admin API.
type AdminUseCase struct {
	relay   *LogRelay
	journal domain.JournalRepository
	repo    domain.StreamAdminRepository
	remote  bool
}

// NewAdminUseCase creates a new AdminUseCase. journal and repo may be nil.
func NewAdminUseCase(relay *LogRelay, journal domain.JournalRepository, repo domain.StreamAdminRepository) *AdminUseCase {
	return &AdminUseCase{relay: relay, journal: journal, repo: repo, remote: repo != nil}
}

// RelayStats reports the relay's current buffer and subscriber counts.
func (uc *AdminUseCase) RelayStats() domain.RelayStats {
	return domain.RelayStats{
		InstanceID:  uc.relay.InstanceID(),
		Buffered:    uc.relay.Len(),
		Subscribers: uc.relay.Subscribers(),
		Journal:     uc.journal != nil,
		Remote:      uc.remote,
	}
}

// FlushRelay drains the buffer without rendering a page. The drained records will not appear
// in the next rendered snapshot.
func (uc *AdminUseCase) FlushRelay(ctx context.Context) ([]domain.LogRecord, error) {
	records := uc.relay.Flush()
	if uc.journal != nil && len(records) > 0 {
		if err := uc.journal.Truncate(ctx); err != nil {
			return records, err
		}
	}
	return records, nil
}

func (uc *AdminUseCase) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	if uc.repo == nil {
		return nil, ErrStreamAdminUnavailable
	}
	return uc.repo.GetGroupInfo(ctx, stream)
}

func (uc *AdminUseCase) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	if uc.repo == nil {
		return nil, ErrStreamAdminUnavailable
	}
	return uc.repo.GetPendingSummary(ctx, stream, group)
}

func (uc *AdminUseCase) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	if uc.repo == nil {
		return 0, ErrStreamAdminUnavailable
	}
	return uc.repo.TrimStream(ctx, stream, maxLen)
}
