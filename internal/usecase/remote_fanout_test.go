package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/domain/mocks"
)

func TestRemotePublisher_PublishesLocalRecordsOnly(t *testing.T) {
	relay, m := newTestRelay(t)
	repo := &mocks.MockRemoteLogRepository{}
	pub := NewRemotePublisher(repo, relay.InstanceID(), 8, m, discardLogger())
	unsubscribe := relay.Subscribe(pub.Enqueue)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pub.Run(ctx)

	local := rec("local")
	local.Source = relay.InstanceID()
	remote := rec("remote")
	remote.Source = "other-instance"
	relay.Record(local)
	relay.Record(remote)

	require.Eventually(t, func() bool { return len(repo.PublishedRecords()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "local", repo.PublishedRecords()[0].ID)
}

func TestRemotePublisher_DropsWhenQueueIsFull(t *testing.T) {
	relay, m := newTestRelay(t)
	pub := NewRemotePublisher(&mocks.MockRemoteLogRepository{}, relay.InstanceID(), 1, m, discardLogger())

	r := rec("a")
	r.Source = relay.InstanceID()
	pub.Enqueue(r)
	pub.Enqueue(r)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemotePublishErrors))
}

func TestRemotePublisher_CountsPublishErrors(t *testing.T) {
	relay, m := newTestRelay(t)
	repo := &mocks.MockRemoteLogRepository{PublishErr: errors.New("redis is unavailable")}
	pub := NewRemotePublisher(repo, relay.InstanceID(), 8, m, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pub.Run(ctx)

	r := rec("a")
	r.Source = relay.InstanceID()
	pub.Enqueue(r)

	assert.Eventually(t, func() bool { return testutil.ToFloat64(m.RemotePublishErrors) == 1 }, time.Second, 5*time.Millisecond)
}

type scriptedFollower struct {
	mocks.MockRemoteLogRepository
	records []domain.LogRecord
}

func (f *scriptedFollower) Follow(ctx context.Context, handler func(domain.LogRecord)) error {
	for _, r := range f.records {
		handler(r)
	}
	return nil
}

func TestFollowRemote_SkipsOwnRecords(t *testing.T) {
	relay, _ := newTestRelay(t)
	own := rec("own")
	own.Source = relay.InstanceID()
	other := rec("other")
	other.Source = "other-instance"

	err := FollowRemote(context.Background(), &scriptedFollower{records: []domain.LogRecord{own, other}}, relay, discardLogger())

	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, ids(relay.Flush()))
}
