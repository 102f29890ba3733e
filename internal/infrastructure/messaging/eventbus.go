// Package messaging implements the in-process event bus for Detective Quiz Hub.
// Progression events (level ups, rank changes, achievement unlocks) are fanned
// out to subscribers such as the notification layer.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/detective-hub/detective-quiz-hub/internal/domain/shared"
)

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrNilHandler is returned when a nil handler is subscribed.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus is a simple in-memory implementation of shared.EventBus.
// Suitable for single-instance deployments: the progression engine and its
// consumers run in one process.
type InMemoryEventBus struct {
	mu         sync.RWMutex
	handlers   map[shared.EventType][]shared.EventHandler
	asyncMode  bool
	workerPool chan struct{}
	logger     *slog.Logger
	metrics    *Metrics
	closed     bool
	closeCh    chan struct{}
	wg         sync.WaitGroup
}

// Config contains configuration for InMemoryEventBus.
type Config struct {
	// AsyncMode runs handlers on the worker pool instead of the publisher goroutine
	AsyncMode bool

	// WorkerPoolSize is the number of concurrent workers for async processing
	WorkerPoolSize int

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(cfg Config) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}

	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  cfg.AsyncMode,
		workerPool: make(chan struct{}, cfg.WorkerPoolSize),
		logger:     cfg.Logger.With("component", "eventbus"),
		metrics:    NewMetrics(),
		closeCh:    make(chan struct{}),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
}

// Publish sends an event to all subscribed handlers.
// Handler errors are logged and never propagated back to the publisher:
// a failed notification must not fail the progression update that caused it.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := append([]shared.EventHandler(nil), b.handlers[event.EventType()]...)
	b.mu.RUnlock()

	b.metrics.RecordPublish(event.EventType())

	if len(handlers) == 0 {
		return nil
	}

	for _, handler := range handlers {
		if b.asyncMode {
			b.executeAsync(event, handler)
		} else {
			b.execute(ctx, event, handler)
		}
	}

	return nil
}

// executeAsync executes a handler on the worker pool. The handler gets a
// fresh context: the publisher's request context may already be cancelled
// by the time the handler runs.
func (b *InMemoryEventBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		b.execute(context.Background(), event, handler)
	}()
}

func (b *InMemoryEventBus) execute(ctx context.Context, event shared.Event, handler shared.EventHandler) {
	start := time.Now()
	err := handler(ctx, event)
	b.metrics.RecordExecution(event.EventType(), time.Since(start), err == nil)

	if err != nil {
		b.logger.Error("event handler failed",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}

// Close shuts down the bus and waits for pending handlers to complete.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info("event bus closed")
	return nil
}

// MetricsSnapshot returns a point-in-time copy of bus metrics.
func (b *InMemoryEventBus) MetricsSnapshot() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics tracks event bus throughput and handler outcomes.
type Metrics struct {
	mu sync.RWMutex

	published     map[shared.EventType]int64
	executions    int64
	successes     int64
	failures      int64
	totalDuration time.Duration
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		published: make(map[shared.EventType]int64),
	}
}

// RecordPublish records a published event.
func (m *Metrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[eventType]++
}

// RecordExecution records a handler execution.
func (m *Metrics) RecordExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions++
	m.totalDuration += duration
	if success {
		m.successes++
	} else {
		m.failures++
	}
}

// MetricsSnapshot is a point-in-time snapshot of bus metrics.
type MetricsSnapshot struct {
	TotalPublished  int64
	TotalExecutions int64
	Failures        int64
	SuccessRate     float64
	AverageExecTime time.Duration
	PublishedByType map[shared.EventType]int64
}

// Snapshot returns a copy of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totalPublished int64
	byType := make(map[shared.EventType]int64, len(m.published))
	for t, n := range m.published {
		totalPublished += n
		byType[t] = n
	}

	snapshot := MetricsSnapshot{
		TotalPublished:  totalPublished,
		TotalExecutions: m.executions,
		Failures:        m.failures,
		SuccessRate:     1.0,
		PublishedByType: byType,
	}

	if m.executions > 0 {
		snapshot.SuccessRate = float64(m.successes) / float64(m.executions)
		snapshot.AverageExecTime = m.totalDuration / time.Duration(m.executions)
	}

	return snapshot
}
