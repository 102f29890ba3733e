package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detective-hub/detective-quiz-hub/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	cfg := DefaultConfig()
	cfg.AsyncMode = false
	return NewInMemoryEventBus(cfg)
}

func testEvent(eventType shared.EventType, aggregateID string) shared.Event {
	return shared.LevelUpEvent{
		BaseEvent: shared.NewBaseEvent(eventType, aggregateID, time.Now()),
		OldLevel:  1,
		NewLevel:  2,
	}
}

func TestPublish_DeliversToSubscribers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var received []string
	bus.Subscribe(shared.EventLevelUp, func(ctx context.Context, event shared.Event) error {
		received = append(received, event.AggregateID())
		return nil
	})

	err := bus.Publish(context.Background(), testEvent(shared.EventLevelUp, "player-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"player-1"}, received)
}

func TestPublish_OnlyMatchingEventType(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	calls := 0
	bus.Subscribe(shared.EventRankChanged, func(ctx context.Context, event shared.Event) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), testEvent(shared.EventLevelUp, "player-1"))
	require.NoError(t, err)

	assert.Zero(t, calls, "handler for another event type must not fire")
}

func TestPublish_HandlerErrorNotPropagated(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	bus.Subscribe(shared.EventLevelUp, func(ctx context.Context, event shared.Event) error {
		return errors.New("notification failed")
	})

	err := bus.Publish(context.Background(), testEvent(shared.EventLevelUp, "player-1"))
	assert.NoError(t, err, "publisher must not see handler errors")
}

func TestPublish_NoSubscribers(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	err := bus.Publish(context.Background(), testEvent(shared.EventGameRecorded, "player-1"))
	assert.NoError(t, err)
}

func TestPublish_AfterClose(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), testEvent(shared.EventLevelUp, "player-1"))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestSubscribe_NilHandlerIgnored(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	bus.Subscribe(shared.EventLevelUp, nil)

	err := bus.Publish(context.Background(), testEvent(shared.EventLevelUp, "player-1"))
	assert.NoError(t, err)
}

func TestAsyncMode_DeliversAndDrainsOnClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)

	var mu sync.Mutex
	received := 0
	bus.Subscribe(shared.EventAchievementUnlocked, func(ctx context.Context, event shared.Event) error {
		mu.Lock()
		received++
		mu.Unlock()
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), testEvent(shared.EventAchievementUnlocked, "player-1")))
	}

	// Close waits for pending handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, received)
}

func TestMetrics_TracksPublishesAndFailures(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	bus.Subscribe(shared.EventLevelUp, func(ctx context.Context, event shared.Event) error {
		return nil
	})
	bus.Subscribe(shared.EventRankChanged, func(ctx context.Context, event shared.Event) error {
		return errors.New("boom")
	})

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, testEvent(shared.EventLevelUp, "player-1")))
	require.NoError(t, bus.Publish(ctx, testEvent(shared.EventRankChanged, "player-1")))

	snapshot := bus.MetricsSnapshot()

	assert.Equal(t, int64(2), snapshot.TotalPublished)
	assert.Equal(t, int64(2), snapshot.TotalExecutions)
	assert.Equal(t, int64(1), snapshot.Failures)
	assert.InDelta(t, 0.5, snapshot.SuccessRate, 0.001)
	assert.Equal(t, int64(1), snapshot.PublishedByType[shared.EventLevelUp])
}

func TestClose_Idempotent(t *testing.T) {
	bus := newSyncBus()

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
}
