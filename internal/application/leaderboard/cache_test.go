package leaderboard

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lb "github.com/detective-hub/detective-quiz-hub/internal/domain/leaderboard"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/player"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/shared"
	"github.com/detective-hub/detective-quiz-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST DOUBLES
// ══════════════════════════════════════════════════════════════════════════════

type memoryPlayers struct {
	mu      sync.Mutex
	players []*player.Player
	listErr error
}

func (r *memoryPlayers) Create(ctx context.Context, p *player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = append(r.players, p.Clone())
	return nil
}

func (r *memoryPlayers) GetByID(ctx context.Context, id string) (*player.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.players {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return nil, player.ErrPlayerNotFound
}

func (r *memoryPlayers) Save(ctx context.Context, p *player.Player) error {
	return nil
}

func (r *memoryPlayers) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*player.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}

	var out []*player.Player
	for _, p := range r.players {
		if since.IsZero() || p.Stats.LastActiveDate.After(since) || p.Stats.LastActiveDate.Equal(since) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Stats.TotalScore > out[j].Stats.TotalScore
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryPlayers) CountActiveWithScoreAbove(ctx context.Context, since time.Time, score int) (int, error) {
	all, err := r.ListActiveSince(ctx, since, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, p := range all {
		if p.Stats.TotalScore > score {
			count++
		}
	}
	return count, nil
}

type memoryStore struct {
	mu         sync.Mutex
	snapshots  map[lb.Period][]lb.Entry
	updatedAt  map[lb.Period]time.Time
	replaceErr map[lb.Period]error
	block      chan struct{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		snapshots:  make(map[lb.Period][]lb.Entry),
		updatedAt:  make(map[lb.Period]time.Time),
		replaceErr: make(map[lb.Period]error),
	}
}

func (s *memoryStore) ReplacePeriod(ctx context.Context, period lb.Period, entries []lb.Entry, updatedAt time.Time) error {
	s.mu.Lock()
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.replaceErr[period]; err != nil {
		return err
	}
	s.snapshots[period] = append([]lb.Entry(nil), entries...)
	s.updatedAt[period] = updatedAt
	return nil
}

func (s *memoryStore) GetTop(ctx context.Context, period lb.Period, limit int) ([]lb.Entry, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.snapshots[period]
	if len(entries) == 0 {
		return nil, time.Time{}, lb.ErrSnapshotEmpty
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return append([]lb.Entry(nil), entries...), s.updatedAt[period], nil
}

func (s *memoryStore) GetEntry(ctx context.Context, period lb.Period, playerID string) (*lb.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.snapshots[period] {
		if e.PlayerID == playerID {
			entry := e
			return &entry, nil
		}
	}
	return nil, lb.ErrPlayerNotRanked
}

func (s *memoryStore) CountHigher(ctx context.Context, period lb.Period, score int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.snapshots[period] {
		if e.Score > score {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) PurgeStale(ctx context.Context, before time.Time) error {
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

var testNow = timeutil.DateTime(2025, 6, 11, 12, 0, 0)

func seedPlayer(t *testing.T, repo *memoryPlayers, id, name string, score int, lastActive time.Time) {
	t.Helper()
	p, err := player.NewPlayer(id, name, lastActive)
	require.NoError(t, err)
	p.Stats.TotalScore = score
	p.Stats.LastActiveDate = lastActive
	require.NoError(t, repo.Create(context.Background(), p))
}

func newTestCache(t *testing.T) (*Cache, *memoryPlayers, *memoryStore) {
	t.Helper()
	repo := &memoryPlayers{}
	store := newMemoryStore()
	cache := NewCache(repo, store, nil, nil, &fakeClock{now: testNow}, Config{
		RefreshInterval: time.Minute,
		SnapshotSize:    100,
		DefaultLimit:    10,
	})
	return cache, repo, store
}

func mustRefresh(t *testing.T, cache *Cache) {
	t.Helper()
	_, err := cache.RefreshAll(context.Background())
	require.NoError(t, err)
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRefreshAll_BuildsAllPeriods(t *testing.T) {
	cache, repo, store := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)
	seedPlayer(t, repo, "p2", "Борис", 900, testNow)
	seedPlayer(t, repo, "p3", "Вера", 200, testNow)

	refreshed, err := cache.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(lb.AllPeriods()), refreshed)

	for _, period := range lb.AllPeriods() {
		entries, updatedAt, err := store.GetTop(context.Background(), period, 10)
		require.NoError(t, err, "period %s", period)
		require.Len(t, entries, 3)
		assert.Equal(t, testNow, updatedAt)

		// Убывание очков, позиции с единицы.
		assert.Equal(t, "p2", entries[0].PlayerID)
		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, "p1", entries[1].PlayerID)
		assert.Equal(t, 2, entries[1].Rank)
		assert.Equal(t, "p3", entries[2].PlayerID)
		assert.Equal(t, 3, entries[2].Rank)
	}
}

func TestRefreshAll_TiedScoresShareRank(t *testing.T) {
	cache, repo, store := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)
	seedPlayer(t, repo, "p2", "Борис", 500, testNow)
	seedPlayer(t, repo, "p3", "Вера", 200, testNow)

	mustRefresh(t, cache)

	entries, _, err := store.GetTop(context.Background(), lb.PeriodAll, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Равные очки делят позицию, следующая позиция с пропуском.
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, 3, entries[2].Rank)

	// Вторичный порядок при равных очках - по имени.
	assert.Equal(t, "Анна", entries[0].DisplayName)
	assert.Equal(t, "Борис", entries[1].DisplayName)
}

func TestRefreshAll_ConcurrentRefreshRejected(t *testing.T) {
	cache, repo, store := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)

	store.mu.Lock()
	store.block = make(chan struct{})
	store.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() {
		_, err := cache.RefreshAll(context.Background())
		firstDone <- err
	}()

	// Дожидаемся, пока первая пересборка возьмёт флаг и повиснет на сторе.
	require.Eventually(t, func() bool {
		return cache.GetStatus().IsUpdating
	}, time.Second, time.Millisecond)

	refreshed, err := cache.RefreshAll(context.Background())
	assert.ErrorIs(t, err, shared.ErrRefreshInProgress)
	assert.Zero(t, refreshed)

	close(store.block)
	require.NoError(t, <-firstDone)

	// Флаг снят, следующая пересборка проходит.
	store.mu.Lock()
	store.block = nil
	store.mu.Unlock()
	assert.False(t, cache.GetStatus().IsUpdating)
	mustRefresh(t, cache)
}

func TestRefreshAll_GuardResetAfterFailure(t *testing.T) {
	cache, repo, _ := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)

	repo.listErr = errors.New("db down")
	refreshed, err := cache.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Zero(t, refreshed)
	assert.False(t, cache.GetStatus().IsUpdating)

	// После сбоя пересборка снова доступна.
	repo.listErr = nil
	mustRefresh(t, cache)
}

func TestRefreshAll_PeriodFailureIsolated(t *testing.T) {
	cache, repo, store := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)

	store.mu.Lock()
	store.replaceErr[lb.PeriodWeek] = errors.New("write failed")
	store.mu.Unlock()

	refreshed, err := cache.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Equal(t, len(lb.AllPeriods())-1, refreshed)

	// Сбой недели не мешает остальным периодам.
	for _, period := range []lb.Period{lb.PeriodDay, lb.PeriodMonth, lb.PeriodAll} {
		_, _, err := store.GetTop(context.Background(), period, 10)
		assert.NoError(t, err, "period %s", period)
	}
	_, _, err = store.GetTop(context.Background(), lb.PeriodWeek, 10)
	assert.ErrorIs(t, err, lb.ErrSnapshotEmpty)
}

func TestGetLeaderboard_CachedWithRequester(t *testing.T) {
	cache, repo, _ := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)
	seedPlayer(t, repo, "p2", "Борис", 900, testNow)
	seedPlayer(t, repo, "p3", "Вера", 200, testNow)

	mustRefresh(t, cache)

	result, err := cache.GetLeaderboard(context.Background(), lb.PeriodAll, 2, "p3")
	require.NoError(t, err)

	assert.True(t, result.Cached)
	assert.False(t, result.Fallback)
	assert.Equal(t, testNow, result.UpdatedAt)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "p2", result.Entries[0].PlayerID)

	// Запросивший вне топ-2 всё равно получает свою позицию.
	require.NotNil(t, result.Requester)
	assert.Equal(t, "p3", result.Requester.PlayerID)
	assert.Equal(t, 3, result.Requester.Rank)
}

func TestGetLeaderboard_FallbackWhenSnapshotEmpty(t *testing.T) {
	cache, repo, _ := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)
	seedPlayer(t, repo, "p2", "Борис", 900, testNow)

	// Снапшот ещё не собран: живая агрегация вместо ошибки.
	result, err := cache.GetLeaderboard(context.Background(), lb.PeriodAll, 10, "p1")
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.True(t, result.Fallback)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "p2", result.Entries[0].PlayerID)
	assert.Equal(t, 1, result.Entries[0].Rank)

	require.NotNil(t, result.Requester)
	assert.Equal(t, 2, result.Requester.Rank)
}

func TestGetLeaderboard_FallbackMatchesSnapshot(t *testing.T) {
	cache, repo, _ := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)
	seedPlayer(t, repo, "p2", "Борис", 900, testNow)
	seedPlayer(t, repo, "p3", "Вера", 200, testNow)

	live, err := cache.GetLeaderboard(context.Background(), lb.PeriodAll, 10, "")
	require.NoError(t, err)
	require.True(t, live.Fallback)

	mustRefresh(t, cache)
	cached, err := cache.GetLeaderboard(context.Background(), lb.PeriodAll, 10, "")
	require.NoError(t, err)
	require.True(t, cached.Cached)

	// Живая агрегация и снапшот дают одинаковый порядок и позиции.
	require.Equal(t, len(cached.Entries), len(live.Entries))
	for i := range cached.Entries {
		assert.Equal(t, cached.Entries[i].PlayerID, live.Entries[i].PlayerID)
		assert.Equal(t, cached.Entries[i].Rank, live.Entries[i].Rank)
		assert.Equal(t, cached.Entries[i].Score, live.Entries[i].Score)
	}
}

func TestGetLeaderboard_Validation(t *testing.T) {
	cache, repo, _ := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)
	mustRefresh(t, cache)

	_, err := cache.GetLeaderboard(context.Background(), "year", 10, "")
	assert.ErrorIs(t, err, lb.ErrInvalidPeriod)

	// Неположительный лимит заменяется лимитом по умолчанию.
	result, err := cache.GetLeaderboard(context.Background(), lb.PeriodAll, 0, "")
	require.NoError(t, err)
	assert.Len(t, result.Entries, 1)
}

func TestGetLeaderboard_PeriodWindows(t *testing.T) {
	cache, repo, store := newTestCache(t)

	// Сегодняшний игрок и игрок недельной давности.
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)
	seedPlayer(t, repo, "p2", "Борис", 900, testNow.AddDate(0, 0, -6))

	mustRefresh(t, cache)

	day, _, err := store.GetTop(context.Background(), lb.PeriodDay, 10)
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, "p1", day[0].PlayerID)

	all, _, err := store.GetTop(context.Background(), lb.PeriodAll, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetLeaderboard_FallbackRequesterOutsideAggregation(t *testing.T) {
	repo := &memoryPlayers{}
	store := newMemoryStore()
	cache := NewCache(repo, store, nil, nil, &fakeClock{now: testNow}, Config{
		RefreshInterval: time.Minute,
		SnapshotSize:    2,
		DefaultLimit:    10,
	})

	seedPlayer(t, repo, "p1", "Анна", 500, testNow)
	seedPlayer(t, repo, "p2", "Борис", 900, testNow)
	seedPlayer(t, repo, "p3", "Вера", 200, testNow)

	// Агрегация ограничена двумя записями, p3 в них не попадает.
	result, err := cache.GetLeaderboard(context.Background(), lb.PeriodAll, 10, "p3")
	require.NoError(t, err)
	require.True(t, result.Fallback)
	require.Len(t, result.Entries, 2)

	// Позиция всё равно вычисляется, счётным запросом по агрегатам.
	require.NotNil(t, result.Requester)
	assert.Equal(t, "p3", result.Requester.PlayerID)
	assert.Equal(t, 3, result.Requester.Rank)
	assert.Equal(t, 200, result.Requester.Score)

	// Неизвестный игрок позиции не получает.
	result, err = cache.GetLeaderboard(context.Background(), lb.PeriodAll, 10, "ghost")
	require.NoError(t, err)
	assert.Nil(t, result.Requester)
}

func TestForceRefresh_ReportsRefreshedPeriods(t *testing.T) {
	cache, repo, store := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)

	refreshed, err := cache.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(lb.AllPeriods()), refreshed)

	// При отказе одного периода счётчик отражает только пересобранные.
	store.mu.Lock()
	store.replaceErr[lb.PeriodDay] = errors.New("write failed")
	store.mu.Unlock()

	refreshed, err = cache.ForceRefresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, len(lb.AllPeriods())-1, refreshed)
}

func TestGetStatus(t *testing.T) {
	cache, repo, _ := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)

	status := cache.GetStatus()
	assert.False(t, status.IsRunning)
	assert.False(t, status.IsUpdating)
	assert.True(t, status.LastUpdateTime.IsZero())
	assert.Equal(t, time.Minute.Milliseconds(), status.RefreshIntervalMs)

	mustRefresh(t, cache)

	status = cache.GetStatus()
	assert.Equal(t, testNow, status.LastUpdateTime)
}

func TestStartStop(t *testing.T) {
	cache, repo, store := newTestCache(t)
	seedPlayer(t, repo, "p1", "Анна", 500, testNow)

	ctx := context.Background()
	cache.Start(ctx)
	assert.True(t, cache.GetStatus().IsRunning)

	// Стартовая пересборка выполняется сразу, без ожидания первого тика.
	require.Eventually(t, func() bool {
		_, _, err := store.GetTop(ctx, lb.PeriodAll, 10)
		return err == nil
	}, time.Second, time.Millisecond)

	require.NoError(t, cache.Stop(ctx))
	assert.False(t, cache.GetStatus().IsRunning)

	// Повторный останов - no-op.
	require.NoError(t, cache.Stop(ctx))
}
