// Package leaderboard contains the read path of the progression engine:
// periodic snapshot rebuilds and leaderboard queries with live fallback.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lb "github.com/detective-hub/detective-quiz-hub/internal/domain/leaderboard"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/player"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/shared"
	"github.com/detective-hub/detective-quiz-hub/pkg/timeutil"
)

// Clock выдаёт текущее время. Внедряется для детерминированных тестов.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return timeutil.Now() }

// Config настраивает кэш лидерборда.
type Config struct {
	// RefreshInterval - интервал фоновой пересборки снапшотов.
	RefreshInterval time.Duration

	// SnapshotSize - максимум игроков в снапшоте одного периода.
	// Запросы топ-N обрезаются этим значением.
	SnapshotSize int

	// DefaultLimit - размер топа по умолчанию для запросов без лимита.
	DefaultLimit int
}

// DefaultConfig возвращает конфигурацию кэша по умолчанию.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 10 * time.Minute,
		SnapshotSize:    1000,
		DefaultLimit:    10,
	}
}

func (c Config) withDefaults() Config {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 10 * time.Minute
	}
	if c.SnapshotSize <= 0 {
		c.SnapshotSize = 1000
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Cache пересобирает снапшоты лидерборда по расписанию и отвечает на
// запросы. Снапшоты одноразовые: каждая пересборка полностью заменяет
// содержимое периода, инкрементальных патчей нет.
//
// Одновременно идёт не больше одной пересборки: флаг isUpdating
// защищает от наложения тиков и от ручного обновления во время фонового.
type Cache struct {
	players player.Repository
	store   lb.SnapshotStore
	events  shared.EventPublisher
	log     *slog.Logger
	clock   Clock
	cfg     Config

	mu         sync.Mutex
	isRunning  bool
	isUpdating bool
	lastUpdate time.Time
	nextUpdate time.Time
	stop       chan struct{}
	done       chan struct{}
}

// NewCache создаёт кэш лидерборда.
func NewCache(
	players player.Repository,
	store lb.SnapshotStore,
	events shared.EventPublisher,
	log *slog.Logger,
	clock Clock,
	cfg Config,
) *Cache {
	if events == nil {
		events = shared.NoopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = systemClock{}
	}

	return &Cache{
		players: players,
		store:   store,
		events:  events,
		log:     log.With("component", "leaderboard_cache"),
		clock:   clock,
		cfg:     cfg.withDefaults(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKGROUND REFRESH LOOP
// ══════════════════════════════════════════════════════════════════════════════

// Start запускает фоновый цикл пересборки. Первая пересборка выполняется
// сразу, дальше по тикам интервала. Повторный запуск - no-op.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	c.log.Info("leaderboard refresh loop starting",
		slog.Duration("interval", c.cfg.RefreshInterval))

	go func() {
		defer close(done)

		if _, err := c.RefreshAll(ctx); err != nil && !errors.Is(err, shared.ErrRefreshInProgress) {
			c.log.Error("initial refresh failed", slog.Any("error", err))
		}

		ticker := time.NewTicker(c.cfg.RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				// Наложившийся тик пропускается, а не ставится в очередь.
				if _, err := c.RefreshAll(ctx); err != nil && !errors.Is(err, shared.ErrRefreshInProgress) {
					c.log.Error("scheduled refresh failed", slog.Any("error", err))
				}
			}
		}
	}()
}

// Stop останавливает фоновый цикл и дожидается его завершения.
func (c *Cache) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	close(c.stop)
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		c.log.Info("leaderboard refresh loop stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshAll пересобирает снапшоты всех периодов и возвращает количество
// успешно пересобранных.
//
// Если пересборка уже идёт, возвращает ErrRefreshInProgress без ожидания.
// Ошибка одного периода не прерывает остальные: каждый период
// пересобирается независимо, возвращается первая ошибка.
func (c *Cache) RefreshAll(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.isUpdating {
		c.mu.Unlock()
		return 0, shared.ErrRefreshInProgress
	}
	c.isUpdating = true
	c.mu.Unlock()

	// Флаг снимается при любом исходе, включая панику периода.
	defer func() {
		c.mu.Lock()
		c.isUpdating = false
		c.mu.Unlock()
	}()

	now := c.clock.Now()
	started := time.Now()

	var firstErr error
	refreshed := 0
	for _, period := range lb.AllPeriods() {
		if err := c.refreshPeriod(ctx, period, now); err != nil {
			c.log.Error("period refresh failed",
				slog.String("period", period.String()),
				slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		c.mu.Lock()
		c.lastUpdate = now
		c.nextUpdate = now.Add(c.cfg.RefreshInterval)
		c.mu.Unlock()
	}

	// Снапшоты старше трёх интервалов уже никому не нужны.
	if err := c.store.PurgeStale(ctx, now.Add(-3*c.cfg.RefreshInterval)); err != nil {
		c.log.Warn("stale snapshot purge failed", slog.Any("error", err))
	}

	c.log.Info("leaderboard refresh finished",
		slog.Int("periods", refreshed),
		slog.Duration("took", time.Since(started)))

	return refreshed, firstErr
}

// refreshPeriod пересобирает снапшот одного периода с нуля.
func (c *Cache) refreshPeriod(ctx context.Context, period lb.Period, now time.Time) error {
	entries, err := c.buildEntries(ctx, period, now)
	if err != nil {
		return fmt.Errorf("build %s entries: %w", period, err)
	}

	if err := c.store.ReplacePeriod(ctx, period, entries, now); err != nil {
		return fmt.Errorf("replace %s snapshot: %w", period, err)
	}

	event := shared.LeaderboardRefreshedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventLeaderboardRefreshed, period.String(), now),
		Period:    period.String(),
		Entries:   len(entries),
	}
	if err := c.events.Publish(ctx, event); err != nil {
		c.log.Warn("refresh event publish failed", slog.Any("error", err))
	}

	return nil
}

// buildEntries собирает записи периода живой агрегацией по игрокам.
func (c *Cache) buildEntries(ctx context.Context, period lb.Period, now time.Time) ([]lb.Entry, error) {
	since := period.WindowStart(now)

	players, err := c.players.ListActiveSince(ctx, since, c.cfg.SnapshotSize)
	if err != nil {
		return nil, err
	}

	entries := make([]lb.Entry, 0, len(players))
	for _, p := range players {
		entries = append(entries, lb.Entry{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Score:       p.Stats.TotalScore,
			RankTier:    p.Rank.String(),
			Level:       p.Stats.Level,
			Period:      period,
			UpdatedAt:   now,
		})
	}

	lb.RankEntries(entries)
	return entries, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboard возвращает топ-N периода и позицию запросившего игрока.
//
// Сначала снапшот; если он пуст или отсутствует, живая агрегация по
// игрокам с пометкой Fallback. Запрос никогда не падает только потому,
// что снапшот ещё не собран.
func (c *Cache) GetLeaderboard(ctx context.Context, period lb.Period, limit int, requesterID string) (*lb.Result, error) {
	if !period.IsValid() {
		return nil, lb.ErrInvalidPeriod
	}
	if limit <= 0 {
		limit = c.cfg.DefaultLimit
	}
	if limit > c.cfg.SnapshotSize {
		limit = c.cfg.SnapshotSize
	}

	entries, updatedAt, err := c.store.GetTop(ctx, period, limit)
	switch {
	case err == nil:
		result := &lb.Result{
			Entries:   entries,
			Cached:    true,
			UpdatedAt: updatedAt,
		}
		result.Requester = c.lookupRequester(ctx, period, requesterID)
		return result, nil

	case errors.Is(err, lb.ErrSnapshotEmpty):
		c.log.Warn("snapshot miss, serving live aggregation",
			slog.String("period", period.String()))
		return c.fallback(ctx, period, limit, requesterID)

	default:
		// Хранилище снапшотов недоступно: живая агрегация вместо отказа.
		c.log.Error("snapshot store unavailable, serving live aggregation",
			slog.String("period", period.String()),
			slog.Any("error", err))
		return c.fallback(ctx, period, limit, requesterID)
	}
}

// lookupRequester возвращает позицию игрока в снапшоте периода.
// Отсутствие игрока в снапшоте не является ошибкой запроса.
func (c *Cache) lookupRequester(ctx context.Context, period lb.Period, requesterID string) *lb.Entry {
	if requesterID == "" {
		return nil
	}

	entry, err := c.store.GetEntry(ctx, period, requesterID)
	if err != nil {
		if !errors.Is(err, lb.ErrPlayerNotRanked) {
			c.log.Warn("requester lookup failed",
				slog.String("player_id", requesterID),
				slog.Any("error", err))
		}
		return nil
	}

	// Позиция через счётчик строго больших очков: равные очки
	// делят позицию, как и в самом снапшоте.
	higher, err := c.store.CountHigher(ctx, period, entry.Score)
	if err == nil {
		entry.Rank = higher + 1
	}

	return entry
}

// fallback отвечает живой агрегацией по агрегатам игроков.
func (c *Cache) fallback(ctx context.Context, period lb.Period, limit int, requesterID string) (*lb.Result, error) {
	now := c.clock.Now()

	entries, err := c.buildEntries(ctx, period, now)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "GetLeaderboard",
			shared.ErrServiceUnavailable, "live aggregation failed", err)
	}

	result := &lb.Result{
		Fallback:  true,
		UpdatedAt: now,
	}

	for i := range entries {
		if entries[i].PlayerID == requesterID {
			requester := entries[i]
			result.Requester = &requester
			break
		}
	}

	// Запросивший за пределами агрегированных записей: позиция одним
	// счётным запросом вместо полного скана.
	if result.Requester == nil && requesterID != "" {
		result.Requester = c.lookupRequesterLive(ctx, period, requesterID, now)
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	result.Entries = entries

	return result, nil
}

// lookupRequesterLive вычисляет позицию игрока по агрегатам: счётчик
// игроков с очками строго выше, плюс единица. Игрок без активности в окне
// периода позиции не имеет.
func (c *Cache) lookupRequesterLive(ctx context.Context, period lb.Period, requesterID string, now time.Time) *lb.Entry {
	p, err := c.players.GetByID(ctx, requesterID)
	if err != nil {
		if !errors.Is(err, player.ErrPlayerNotFound) {
			c.log.Warn("live requester lookup failed",
				slog.String("player_id", requesterID),
				slog.Any("error", err))
		}
		return nil
	}

	since := period.WindowStart(now)
	if !since.IsZero() && p.Stats.LastActiveDate.Before(since) {
		return nil
	}

	higher, err := c.players.CountActiveWithScoreAbove(ctx, since, p.Stats.TotalScore)
	if err != nil {
		c.log.Warn("live requester rank failed",
			slog.String("player_id", requesterID),
			slog.Any("error", err))
		return nil
	}

	return &lb.Entry{
		PlayerID:    p.ID,
		DisplayName: p.DisplayName,
		Score:       p.Stats.TotalScore,
		RankTier:    p.Rank.String(),
		Level:       p.Stats.Level,
		Period:      period,
		Rank:        higher + 1,
		UpdatedAt:   now,
	}
}

// ForceRefresh запускает внеплановую пересборку всех периодов и возвращает
// количество пересобранных. Возвращает ErrRefreshInProgress, если
// пересборка уже идёт.
func (c *Cache) ForceRefresh(ctx context.Context) (int, error) {
	c.log.Info("manual refresh requested")
	return c.RefreshAll(ctx)
}

// GetStatus возвращает состояние фонового обновления.
func (c *Cache) GetStatus() lb.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := lb.Status{
		IsRunning:         c.isRunning,
		IsUpdating:        c.isUpdating,
		LastUpdateTime:    c.lastUpdate,
		RefreshIntervalMs: c.cfg.RefreshInterval.Milliseconds(),
	}

	if c.isRunning && !c.nextUpdate.IsZero() {
		if remaining := c.nextUpdate.Sub(c.clock.Now()); remaining > 0 {
			status.NextUpdateInMs = remaining.Milliseconds()
		}
	}

	return status
}
