package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/domain/mocks"
)

func TestJournalWriter_WriteAndRestore(t *testing.T) {
	journal := &mocks.MockJournalRepository{}
	writer := NewJournalWriter(journal, discardLogger())

	before, _ := newTestRelay(t)
	unsubscribe := before.Subscribe(writer.Write)
	before.Record(rec("a"))
	before.Record(rec("b"))
	unsubscribe()
	assert.Equal(t, []string{"a", "b"}, ids(journal.Records()))

	// A fresh relay, as after a restart, gets the records back without broadcasting them.
	after, _ := newTestRelay(t)
	var broadcast []domain.LogRecord
	defer after.Subscribe(func(r domain.LogRecord) { broadcast = append(broadcast, r) })()

	n, err := writer.Restore(context.Background(), after)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, broadcast)
	assert.Equal(t, []string{"a", "b"}, ids(after.Flush()))
}

func TestJournalWriter_Errors(t *testing.T) {
	relay, _ := newTestRelay(t)

	writer := NewJournalWriter(&mocks.MockJournalRepository{WriteErr: errors.New("disk full")}, discardLogger())
	writer.Write(rec("a")) // logged, not propagated

	writer = NewJournalWriter(&mocks.MockJournalRepository{ReplayErr: errors.New("corrupt segment")}, discardLogger())
	_, err := writer.Restore(context.Background(), relay)
	assert.Error(t, err)
	assert.Equal(t, 0, relay.Len())
}

type deadlineJournal struct {
	mocks.MockJournalRepository
	remaining time.Duration
}

func (j *deadlineJournal) Write(ctx context.Context, record domain.LogRecord) error {
	if deadline, ok := ctx.Deadline(); ok {
		j.remaining = time.Until(deadline)
	}
	return j.MockJournalRepository.Write(ctx, record)
}

func TestJournalWriter_WriteHasDeadline(t *testing.T) {
	journal := &deadlineJournal{}
	NewJournalWriter(journal, discardLogger()).Write(rec("a"))

	assert.Greater(t, journal.remaining, time.Duration(0))
	assert.LessOrEqual(t, journal.remaining, journalWriteTimeout)
	assert.Equal(t, []string{"a"}, ids(journal.Records()))
}
