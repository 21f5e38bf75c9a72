package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/devrelay/internal/domain"
)

// MockJournalRepository is a mock implementation of domain.JournalRepository for testing.
type MockJournalRepository struct {
	mu        sync.Mutex
	Written   []domain.LogRecord
	Truncates int
	WriteErr  error
	ReplayErr error
	TruncErr  error
}

func (m *MockJournalRepository) Write(ctx context.Context, record domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Written = append(m.Written, record)
	return nil
}

func (m *MockJournalRepository) Replay(ctx context.Context, handler func(record domain.LogRecord) error) error {
	m.mu.Lock()
	records := append([]domain.LogRecord(nil), m.Written...)
	err := m.ReplayErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := handler(r); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockJournalRepository) Truncate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TruncErr != nil {
		return m.TruncErr
	}
	m.Written = nil
	m.Truncates++
	return nil
}

// Records returns a copy of the journaled records.
func (m *MockJournalRepository) Records() []domain.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LogRecord(nil), m.Written...)
}

// MockRemoteLogRepository is a mock implementation of domain.RemoteLogRepository for testing.
type MockRemoteLogRepository struct {
	mu              sync.Mutex
	Published       []domain.LogRecord
	ReadBatchResult []domain.StreamedRecord
	AckedMessageIDs []string
	DLQRecords      []domain.StreamedRecord
	PublishErr      error
	ReadErr         error
	AckErr          error
}

func (m *MockRemoteLogRepository) Publish(ctx context.Context, record domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, record)
	return nil
}

func (m *MockRemoteLogRepository) Follow(ctx context.Context, handler func(record domain.LogRecord)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *MockRemoteLogRepository) ReadLogBatch(ctx context.Context, group, consumer string, count int) ([]domain.StreamedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	result := m.ReadBatchResult
	m.ReadBatchResult = nil
	return result, nil
}

func (m *MockRemoteLogRepository) AcknowledgeLogs(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockRemoteLogRepository) MoveToDLQ(ctx context.Context, records []domain.StreamedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DLQRecords = append(m.DLQRecords, records...)
	return nil
}

// PublishedRecords returns a copy of the published records.
func (m *MockRemoteLogRepository) PublishedRecords() []domain.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.LogRecord(nil), m.Published...)
}

// MockArchiveRepository is a mock implementation of domain.ArchiveRepository for testing.
type MockArchiveRepository struct {
	mu       sync.Mutex
	Written  []domain.LogRecord
	Calls    int
	WriteErr error
	// FailTimes makes the first N calls return WriteErr before succeeding.
	FailTimes int
}

func (m *MockArchiveRepository) WriteLogBatch(ctx context.Context, records []domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.WriteErr != nil && (m.FailTimes == 0 || m.Calls <= m.FailTimes) {
		return m.WriteErr
	}
	m.Written = append(m.Written, records...)
	return nil
}

// MockStreamAdminRepository is a mock implementation of domain.StreamAdminRepository for testing.
type MockStreamAdminRepository struct {
	Groups    []domain.ConsumerGroupInfo
	Pending   *domain.PendingMessageSummary
	Trimmed   int64
	Err       error
	TrimmedTo map[string]int64
}

func (m *MockStreamAdminRepository) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	return m.Groups, m.Err
}

func (m *MockStreamAdminRepository) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	return m.Pending, m.Err
}

func (m *MockStreamAdminRepository) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if m.TrimmedTo == nil {
		m.TrimmedTo = map[string]int64{}
	}
	m.TrimmedTo[stream] = maxLen
	return m.Trimmed, nil
}
