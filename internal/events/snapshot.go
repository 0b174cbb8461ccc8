// Package events fans out treasury snapshots to subscribers.
package events

import (
	"sync"

	"github.com/vadiminshakov/treasury/internal/domain"
	"github.com/vadiminshakov/treasury/internal/metrics"
	"go.uber.org/zap"
)

const defaultBuffer = 8

// SnapshotBroadcaster fans out snapshots to all subscribers via buffered channels.
// A slow subscriber loses its oldest pending snapshot, never the newest.
type SnapshotBroadcaster struct {
	mu     sync.Mutex
	subs   map[chan domain.TreasurySnapshot]struct{}
	buffer int
	last   *domain.TreasurySnapshot
	logger *zap.Logger
}

// NewSnapshotBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewSnapshotBroadcaster(buffer int, logger *zap.Logger) *SnapshotBroadcaster {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SnapshotBroadcaster{
		subs:   make(map[chan domain.TreasurySnapshot]struct{}),
		buffer: buffer,
		logger: logger.With(zap.String("component", "snapshot_broadcaster")),
	}
}

// Publish sends s to every subscriber and remembers it for late subscribers.
func (b *SnapshotBroadcaster) Publish(s domain.TreasurySnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	last := s.Clone()
	b.last = &last

	for ch := range b.subs {
		offer(ch, s.Clone())
	}
}

// Subscribe returns a channel that receives snapshots until Unsubscribe is called.
// The last published snapshot, if any, is delivered immediately.
func (b *SnapshotBroadcaster) Subscribe() chan domain.TreasurySnapshot {
	ch := make(chan domain.TreasurySnapshot, b.buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	if b.last != nil {
		ch <- b.last.Clone()
	}
	n := len(b.subs)
	b.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *SnapshotBroadcaster) Unsubscribe(ch chan domain.TreasurySnapshot) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	n := len(b.subs)
	b.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
}

// SubscribeFunc calls fn for every snapshot on a dedicated goroutine. A panicking
// listener is logged and keeps receiving. The returned func unsubscribes.
func (b *SnapshotBroadcaster) SubscribeFunc(fn func(domain.TreasurySnapshot)) func() {
	ch := b.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for s := range ch {
			b.deliver(fn, s)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.Unsubscribe(ch)
			<-done
		})
	}
}

func (b *SnapshotBroadcaster) deliver(fn func(domain.TreasurySnapshot), s domain.TreasurySnapshot) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("snapshot listener panicked", zap.Any("panic", r))
		}
	}()
	fn(s)
}

// offer sends s, dropping the oldest pending value when ch is full.
// Callers hold the broadcaster lock, so ch has a single producer.
func offer(ch chan domain.TreasurySnapshot, s domain.TreasurySnapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
