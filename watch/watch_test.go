package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saif727/hedera-wallet-backend/ledger/memnet"
	"github.com/saif727/hedera-wallet-backend/models"
	"github.com/saif727/hedera-wallet-backend/services"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFetcher) GetAccountInfo(ctx context.Context, accountID string) (*models.AccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.AccountSnapshot{AccountID: accountID, Balance: int64(f.calls)}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestPoller(fetcher AccountFetcher) (*AccountPoller, *clock.Mock, *AlertFeed) {
	mock := clock.NewMock()
	alerts := NewAlertFeed(10, nil)
	p := NewAccountPoller(PollerConfig{
		Fetcher:  fetcher,
		Interval: 30 * time.Second,
		Clock:    mock,
		Alerts:   alerts,
	})
	return p, mock, alerts
}

const wait = time.Second

func TestPollerRefreshesOnInterval(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, mock, _ := newTestPoller(fetcher)
	defer p.Deactivate()

	p.Activate("0.0.1001")
	assert.True(t, p.Active())
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, wait, time.Millisecond)

	mock.Add(30 * time.Second)
	require.Eventually(t, func() bool { return fetcher.count() == 2 }, wait, time.Millisecond)

	require.Eventually(t, func() bool {
		snap, _ := p.Snapshot()
		return snap != nil && snap.Balance == 2
	}, wait, time.Millisecond)
	_, at := p.Snapshot()
	assert.Equal(t, mock.Now(), at)
}

func TestPollerDeactivateBeforeFirstInterval(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, mock, _ := newTestPoller(fetcher)

	p.Activate("0.0.1001")
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, wait, time.Millisecond)
	p.Deactivate()
	assert.False(t, p.Active())

	mock.Add(5 * time.Minute)
	assert.Never(t, func() bool { return fetcher.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestPollerConcurrentActivateLeavesOneLoop(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, mock, _ := newTestPoller(fetcher)

	var wg sync.WaitGroup
	for _, id := range []string{"0.0.1001", "0.0.1002", "0.0.1003", "0.0.1004"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			p.Activate(id)
		}(id)
	}
	wg.Wait()
	p.Deactivate()
	assert.False(t, p.Active())

	settled := fetcher.count()
	mock.Add(90 * time.Second)
	assert.Never(t, func() bool { return fetcher.count() > settled }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestPollerDeactivateAfterFailedFetch(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("mirror unavailable")}
	p, mock, _ := newTestPoller(fetcher)

	p.Activate("0.0.1001")
	require.Eventually(t, func() bool { return p.LastError() != nil }, wait, time.Millisecond)
	p.Deactivate()

	mock.Add(5 * time.Minute)
	assert.Never(t, func() bool { return fetcher.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	snap, _ := p.Snapshot()
	assert.Nil(t, snap)
}

func TestPollerBackgroundFailureIsSilent(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("mirror unavailable")}
	p, _, alerts := newTestPoller(fetcher)
	defer p.Deactivate()

	p.Activate("0.0.1001")
	require.Eventually(t, func() bool { return p.LastError() != nil }, wait, time.Millisecond)
	assert.Empty(t, alerts.Recent())
}

func TestPollerManualRefreshFailureIsAlerted(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, _, alerts := newTestPoller(fetcher)
	defer p.Deactivate()

	p.Activate("0.0.1001")
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, wait, time.Millisecond)

	fetcher.fail(errors.New("mirror unavailable"))
	snap, err := p.Refresh(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)

	recent := alerts.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "Failed to refresh account", recent[0].Title)
	assert.Equal(t, "mirror unavailable", recent[0].Message)

	kept, _ := p.Snapshot()
	require.NotNil(t, kept)
	assert.Equal(t, int64(1), kept.Balance)
}

func TestPollerRefreshWithoutAccount(t *testing.T) {
	p, _, _ := newTestPoller(&fakeFetcher{})
	_, err := p.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestPollerActivateSwitchesAccount(t *testing.T) {
	fetcher := &fakeFetcher{}
	p, _, _ := newTestPoller(fetcher)
	defer p.Deactivate()

	p.Activate("0.0.1001")
	require.Eventually(t, func() bool { return fetcher.count() == 1 }, wait, time.Millisecond)
	p.Activate("0.0.1002")
	assert.Equal(t, "0.0.1002", p.AccountID())
	require.Eventually(t, func() bool {
		snap, _ := p.Snapshot()
		return snap != nil && snap.AccountID == "0.0.1002"
	}, wait, time.Millisecond)

	p.Stop()
	assert.Equal(t, "", p.AccountID())
	assert.False(t, p.Active())
}

func TestAlertFeedIsBounded(t *testing.T) {
	feed := NewAlertFeed(2, nil)
	feed.Alert("one", errors.New("1"))
	feed.Alert("two", nil)
	feed.Alert("three", errors.New("3"))

	recent := feed.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Title)
	assert.Equal(t, "", recent[0].Message)
	assert.Equal(t, "three", recent[1].Title)
}

type listenerFixture struct {
	net     *memnet.Network
	service *services.WalletService
	topicID string
}

func newListenerFixture(t *testing.T) listenerFixture {
	t.Helper()
	net, creds, err := memnet.NewDemo()
	require.NoError(t, err)
	service := services.NewWalletService(services.Config{Network: net})
	require.NoError(t, service.SetOperator(creds.AccountID, creds.PrivateKey))

	outcome := service.CreateTopic(context.Background(), "listener", false)
	require.True(t, outcome.Success, outcome.Error)
	return listenerFixture{net: net, service: service, topicID: outcome.Details.TopicID}
}

func TestListenerCollectsInOrder(t *testing.T) {
	f := newListenerFixture(t)
	l := NewTopicListener(f.service, NewAlertFeed(0, nil), nil)
	defer l.Close()

	active, err := l.Toggle(f.topicID)
	require.NoError(t, err)
	assert.True(t, active)

	for _, msg := range []string{"a", "b", "c"} {
		outcome := f.service.SendTopicMessage(context.Background(), f.topicID, msg)
		require.True(t, outcome.Success, outcome.Error)
	}
	require.Eventually(t, func() bool { return len(l.Messages()) == 3 }, wait, time.Millisecond)

	msgs := l.Messages()
	assert.Equal(t, "a", msgs[0].Contents)
	assert.Equal(t, "c", msgs[2].Contents)
	assert.Less(t, msgs[0].SequenceNumber, msgs[1].SequenceNumber)
	assert.Less(t, msgs[1].SequenceNumber, msgs[2].SequenceNumber)

	active, err = l.Toggle(f.topicID)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Len(t, l.Messages(), 3)
	assert.Equal(t, f.topicID, l.TopicID())
}

func TestListenerStreamErrorDeactivates(t *testing.T) {
	f := newListenerFixture(t)
	alerts := NewAlertFeed(0, nil)
	l := NewTopicListener(f.service, alerts, nil)
	defer l.Close()

	_, err := l.Toggle(f.topicID)
	require.NoError(t, err)
	outcome := f.service.SendTopicMessage(context.Background(), f.topicID, "kept")
	require.True(t, outcome.Success, outcome.Error)
	require.Eventually(t, func() bool { return len(l.Messages()) == 1 }, wait, time.Millisecond)

	f.net.FailSubscriptions(f.topicID, errors.New("connection reset"))
	require.Eventually(t, func() bool { return !l.Active() }, wait, time.Millisecond)

	recent := alerts.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "Subscription Error", recent[0].Title)
	assert.Contains(t, recent[0].Message, "connection reset")
	assert.Len(t, l.Messages(), 1)
}

func TestListenerRequiresTopic(t *testing.T) {
	f := newListenerFixture(t)
	l := NewTopicListener(f.service, nil, nil)
	_, err := l.Toggle("  ")
	assert.ErrorIs(t, err, ErrTopicRequired)
	assert.False(t, l.Active())

	_, err = l.Toggle("0.0.999999")
	assert.ErrorIs(t, err, services.ErrSubscriptionFailed)
	assert.False(t, l.Active())
}
