package events

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/treasury/internal/domain"
	"go.uber.org/zap"
)

func snapshotWorth(btc int64) domain.TreasurySnapshot {
	return domain.NewTreasurySnapshot(
		domain.Balances{BTC: decimal.NewFromInt(btc)},
		domain.Prices{BTC: decimal.NewFromInt(1)},
		nil,
		time.Unix(btc, 0),
	)
}

func TestSnapshotBroadcaster_PublishOrder(t *testing.T) {
	b := NewSnapshotBroadcaster(4, zap.NewNop())
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := int64(1); i <= 3; i++ {
		b.Publish(snapshotWorth(i))
	}

	for i := int64(1); i <= 3; i++ {
		s := <-ch
		assert.True(t, decimal.NewFromInt(i).Equal(s.Balances.BTC))
	}
}

func TestSnapshotBroadcaster_SlowSubscriberKeepsLatest(t *testing.T) {
	b := NewSnapshotBroadcaster(2, zap.NewNop())
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := int64(1); i <= 5; i++ {
		b.Publish(snapshotWorth(i))
	}

	require.Len(t, ch, 2)
	<-ch
	latest := <-ch
	assert.True(t, decimal.NewFromInt(5).Equal(latest.Balances.BTC))
}

func TestSnapshotBroadcaster_LateSubscriberGetsLast(t *testing.T) {
	b := NewSnapshotBroadcaster(0, nil)
	b.Publish(snapshotWorth(7))

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	select {
	case s := <-ch:
		assert.True(t, decimal.NewFromInt(7).Equal(s.Balances.BTC))
	case <-time.After(time.Second):
		t.Fatal("expected last snapshot on subscribe")
	}
}

func TestSnapshotBroadcaster_Unsubscribe(t *testing.T) {
	b := NewSnapshotBroadcaster(1, zap.NewNop())
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, func() { b.Publish(snapshotWorth(1)) })
}

func TestSnapshotBroadcaster_SubscribeFuncIsolatesPanics(t *testing.T) {
	b := NewSnapshotBroadcaster(4, zap.NewNop())

	var (
		mu  sync.Mutex
		got []int64
	)
	calls := 0
	cancel := b.SubscribeFunc(func(s domain.TreasurySnapshot) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			panic("listener bug")
		}
		got = append(got, s.Balances.BTC.IntPart())
	})

	b.Publish(snapshotWorth(1))
	b.Publish(snapshotWorth(2))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	cancel()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{2}, got)
}
