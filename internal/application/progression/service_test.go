package progression

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detective-hub/detective-quiz-hub/internal/domain/player"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/shared"
	"github.com/detective-hub/detective-quiz-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST DOUBLES
// ══════════════════════════════════════════════════════════════════════════════

// memoryRepo - потокобезопасный репозиторий игроков в памяти.
// Хранит глубокие копии, как это делает настоящая БД.
type memoryRepo struct {
	mu      sync.Mutex
	players map[string]*player.Player
	saveErr error
	saves   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{players: make(map[string]*player.Player)}
}

func (r *memoryRepo) Create(ctx context.Context, p *player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[p.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.players[p.ID] = p.Clone()
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*player.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[id]
	if !ok {
		return nil, player.ErrPlayerNotFound
	}
	return p.Clone(), nil
}

func (r *memoryRepo) Save(ctx context.Context, p *player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.players[p.ID] = p.Clone()
	r.saves++
	return nil
}

func (r *memoryRepo) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*player.Player, error) {
	return nil, nil
}

func (r *memoryRepo) CountActiveWithScoreAbove(ctx context.Context, since time.Time, score int) (int, error) {
	return 0, nil
}

// recordingPublisher накапливает опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeClock - управляемые часы для детерминированных тестов.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// weekdayNoon - среда, 12:00 по Москве. Ни бонуса выходного,
// ни сюрпризов с границей дня.
var weekdayNoon = timeutil.DateTime(2025, 6, 11, 12, 0, 0)

func newTestService(t *testing.T) (*Service, *memoryRepo, *recordingPublisher, *fakeClock) {
	t.Helper()
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	clock := &fakeClock{now: weekdayNoon}
	return NewService(repo, pub, nil, clock), repo, pub, clock
}

func registerTestPlayer(t *testing.T, svc *Service) *player.Player {
	t.Helper()
	p, err := svc.RegisterPlayer(context.Background(), "player-1", "Шерлок")
	require.NoError(t, err)
	return p
}

func perfectHardGame() player.GameResult {
	return player.GameResult{
		TotalScore:     500,
		CorrectAnswers: 5,
		TotalQuestions: 5,
		TimeSpentMs:    20_000,
		Difficulty:     player.DifficultyHard,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestReportGameResult_PerfectHardFirstOfDay(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	registerTestPlayer(t, svc)

	// Идеальная игра 5/5 на сложном уровне за 20 секунд, первая игра дня
	// в будний день: x1.5 * x1.3 * x1.4 * x1.25 = x3.4125.
	report, err := svc.ReportGameResult(context.Background(), "player-1", perfectHardGame())
	require.NoError(t, err)

	assert.Equal(t, 500, report.Experience.BaseExperience)
	assert.InDelta(t, 3.4125, report.Experience.Multiplier, 1e-9)
	assert.Equal(t, 1706, report.Experience.FinalExperience)
	assert.Len(t, report.Experience.BonusReasons, 4)

	assert.Equal(t, 1, report.OldLevel)
	assert.Equal(t, 6, report.NewLevel)

	saved, err := repo.GetByID(context.Background(), "player-1")
	require.NoError(t, err)
	assert.Equal(t, 1706, saved.Stats.Experience)
	assert.Equal(t, 6, saved.Stats.Level)
	assert.Equal(t, 500, saved.Stats.TotalScore)
	assert.Equal(t, 1, saved.Stats.Investigations)
	assert.Equal(t, 1, saved.Stats.SolvedCases)
	assert.Equal(t, 1, saved.Stats.PerfectGames)
	assert.Equal(t, 1, saved.Stats.WinStreak)
	assert.Equal(t, 100.0, saved.Stats.Accuracy)
	assert.Equal(t, int64(20_000), saved.Stats.FastestGameMs)
	assert.Equal(t, 1, saved.Stats.DailyStreakCurrent)
	require.Len(t, saved.GameHistory, 1)
	assert.Equal(t, 1706, saved.GameHistory[0].ExperienceGained)
}

func TestReportGameResult_ReputationAfterFirstGame(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	registerTestPlayer(t, svc)

	report, err := svc.ReportGameResult(context.Background(), "player-1", perfectHardGame())
	require.NoError(t, err)

	saved, err := repo.GetByID(context.Background(), "player-1")
	require.NoError(t, err)

	// Точность 100 -> компонента 100. Скорость стартует с нуля и
	// сглаживается: 0.8*0 + 0.2*50 = 10. Стабильность 8.5, сложность 50.
	// Композит: 0.35*100 + 0.25*10 + 0.25*8.5 + 0.15*50 = 47.125 -> 47.
	assert.Equal(t, 100.0, saved.Reputation.Accuracy)
	assert.InDelta(t, 10.0, saved.Reputation.Speed, 1e-9)
	assert.Equal(t, 47, saved.Reputation.Level)
	assert.Equal(t, 47, report.ReputationDelta)
	assert.Equal(t, player.ReputationOrdinary, saved.Reputation.Category)
}

func TestReportGameResult_RankTransitions(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	registerTestPlayer(t, svc)

	play := func(score int) *ReportResult {
		t.Helper()
		report, err := svc.ReportGameResult(context.Background(), "player-1", player.GameResult{
			TotalScore:     score,
			CorrectAnswers: 3,
			TotalQuestions: 5,
		})
		require.NoError(t, err)
		return report
	}

	// 100 очков: всё ещё СТАЖЁР.
	r1 := play(100)
	assert.False(t, r1.RankChanged)
	assert.Equal(t, player.RankTrainee, r1.Rank)

	// Ещё 100 (итого 200): СЛЕДОВАТЕЛЬ, ровно одно достижение за звание.
	clock.Set(clock.Now().Add(time.Minute))
	r2 := play(100)
	assert.True(t, r2.RankChanged)
	assert.Equal(t, player.RankInvestigator, r2.Rank)

	// Ещё 250 (итого 450): ДЕТЕКТИВ.
	clock.Set(clock.Now().Add(time.Minute))
	r3 := play(250)
	assert.True(t, r3.RankChanged)
	assert.Equal(t, player.RankDetective, r3.Rank)

	saved, err := repo.GetByID(context.Background(), "player-1")
	require.NoError(t, err)

	rankAchievements := 0
	for _, a := range saved.Achievements {
		if a.Category == player.AchievementCategoryRank {
			rankAchievements++
		}
	}
	assert.Equal(t, 2, rankAchievements)
	assert.True(t, saved.HasAchievement("rank_investigator"))
	assert.True(t, saved.HasAchievement("rank_detective"))
}

func TestReportGameResult_InvalidResultRejected(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	registerTestPlayer(t, svc)

	invalid := []player.GameResult{
		{TotalScore: -1, CorrectAnswers: 3, TotalQuestions: 5},
		{TotalScore: 100, CorrectAnswers: 6, TotalQuestions: 5},
		{TotalScore: 100, CorrectAnswers: 0, TotalQuestions: 0},
		{TotalScore: 100, CorrectAnswers: 3, TotalQuestions: 5, TimeSpentMs: -1},
		{TotalScore: 100, CorrectAnswers: 3, TotalQuestions: 5, Difficulty: "nightmare"},
	}

	for _, result := range invalid {
		_, err := svc.ReportGameResult(context.Background(), "player-1", result)
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	}

	// Невалидный вход не оставляет следов.
	saved, err := repo.GetByID(context.Background(), "player-1")
	require.NoError(t, err)
	assert.Equal(t, 0, saved.Stats.Investigations)
	assert.Equal(t, 0, repo.saves)
}

func TestReportGameResult_SaveFailureDiscardsUpdate(t *testing.T) {
	svc, repo, pub, _ := newTestService(t)
	registerTestPlayer(t, svc)

	repo.saveErr = errors.New("connection reset")

	_, err := svc.ReportGameResult(context.Background(), "player-1", perfectHardGame())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPersistence)

	// Агрегат в хранилище не изменился, события не публиковались.
	saved, getErr := repo.GetByID(context.Background(), "player-1")
	require.NoError(t, getErr)
	assert.Equal(t, 0, saved.Stats.Experience)
	assert.Empty(t, saved.GameHistory)
	assert.Empty(t, pub.events)
}

func TestReportGameResult_UnknownPlayer(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ReportGameResult(context.Background(), "ghost", perfectHardGame())
	assert.ErrorIs(t, err, player.ErrPlayerNotFound)
}

func TestReportGameResult_ExperienceNeverDecreases(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	registerTestPlayer(t, svc)

	prevXP := 0
	for i := 0; i < 20; i++ {
		// Чередуем победы и полные провалы с нулевыми очками.
		result := player.GameResult{TotalScore: 0, CorrectAnswers: 0, TotalQuestions: 5}
		if i%2 == 0 {
			result = player.GameResult{TotalScore: 50, CorrectAnswers: 4, TotalQuestions: 5}
		}

		_, err := svc.ReportGameResult(context.Background(), "player-1", result)
		require.NoError(t, err)

		saved, err := repo.GetByID(context.Background(), "player-1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, saved.Stats.Experience, prevXP)
		prevXP = saved.Stats.Experience

		clock.Set(clock.Now().Add(2 * time.Hour))
	}
}

func TestReportGameResult_WinStreakResetsOnLoss(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	registerTestPlayer(t, svc)

	win := player.GameResult{TotalScore: 50, CorrectAnswers: 4, TotalQuestions: 5}
	loss := player.GameResult{TotalScore: 10, CorrectAnswers: 1, TotalQuestions: 5}

	for i := 0; i < 3; i++ {
		_, err := svc.ReportGameResult(context.Background(), "player-1", win)
		require.NoError(t, err)
		clock.Set(clock.Now().Add(2 * time.Hour))
	}

	saved, err := repo.GetByID(context.Background(), "player-1")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Stats.WinStreak)
	assert.Equal(t, 3, saved.Stats.MaxWinStreak)
	assert.True(t, saved.HasAchievement("win_streak_3"))

	_, err = svc.ReportGameResult(context.Background(), "player-1", loss)
	require.NoError(t, err)

	saved, err = repo.GetByID(context.Background(), "player-1")
	require.NoError(t, err)
	assert.Equal(t, 0, saved.Stats.WinStreak)
	assert.Equal(t, 3, saved.Stats.MaxWinStreak)
}

func TestReportGameResult_DailyStreak(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	registerTestPlayer(t, svc)

	game := player.GameResult{TotalScore: 10, CorrectAnswers: 3, TotalQuestions: 5}
	play := func() {
		t.Helper()
		_, err := svc.ReportGameResult(context.Background(), "player-1", game)
		require.NoError(t, err)
	}
	streak := func() (current, best int) {
		t.Helper()
		saved, err := repo.GetByID(context.Background(), "player-1")
		require.NoError(t, err)
		return saved.Stats.DailyStreakCurrent, saved.Stats.DailyStreakBest
	}

	// День 1.
	play()
	current, best := streak()
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, best)

	// Вторая игра в тот же день: серия не меняется.
	clock.Set(clock.Now().Add(3 * time.Hour))
	play()
	current, _ = streak()
	assert.Equal(t, 1, current)

	// День 2: инкремент.
	clock.Set(weekdayNoon.AddDate(0, 0, 1))
	play()
	current, best = streak()
	assert.Equal(t, 2, current)
	assert.Equal(t, 2, best)

	// Пропуск дня: сброс до 1, лучшая серия сохраняется.
	clock.Set(weekdayNoon.AddDate(0, 0, 3))
	play()
	current, best = streak()
	assert.Equal(t, 1, current)
	assert.Equal(t, 2, best)
}

func TestReportGameResult_FirstGameOfDayBonusOnlyOnce(t *testing.T) {
	svc, _, _, clock := newTestService(t)
	registerTestPlayer(t, svc)

	game := player.GameResult{TotalScore: 100, CorrectAnswers: 3, TotalQuestions: 5}

	r1, err := svc.ReportGameResult(context.Background(), "player-1", game)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, r1.Experience.Multiplier, 1e-9)

	clock.Set(clock.Now().Add(2 * time.Hour))
	r2, err := svc.ReportGameResult(context.Background(), "player-1", game)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2.Experience.Multiplier, 1e-9)
}

func TestReportGameResult_OverplayPenalty(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerTestPlayer(t, svc)

	game := player.GameResult{TotalScore: 100, CorrectAnswers: 2, TotalQuestions: 5}

	// Игры 1-4 в одном часе: счётчик ДО игры не превышает порог 3.
	var last *ReportResult
	for i := 0; i < 4; i++ {
		report, err := svc.ReportGameResult(context.Background(), "player-1", game)
		require.NoError(t, err)
		last = report
	}
	assert.InDelta(t, 1.0, last.Experience.Multiplier, 1e-9)
	assert.NotContains(t, reasonsJoined(last), "за час")

	// Игра 5: до неё сыграно 4 > 3, включается штраф x0.8.
	report, err := svc.ReportGameResult(context.Background(), "player-1", game)
	require.NoError(t, err)
	assert.Contains(t, reasonsJoined(report), "за час")
	assert.InDelta(t, 0.8, report.Experience.Multiplier, 1e-9)
	assert.Equal(t, 80, report.Experience.FinalExperience)
	assert.Equal(t, -20, report.Experience.BonusExperience)
}

func reasonsJoined(r *ReportResult) string {
	joined := ""
	for _, reason := range r.Experience.BonusReasons {
		joined += reason + "\n"
	}
	return joined
}

func TestReportGameResult_AchievementsUnlockOnce(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	registerTestPlayer(t, svc)

	r1, err := svc.ReportGameResult(context.Background(), "player-1", perfectHardGame())
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, a := range r1.NewAchievements {
		assert.False(t, ids[a.ID], "duplicate achievement %s in one update", a.ID)
		ids[a.ID] = true
	}
	assert.True(t, ids["cases_1"])
	assert.True(t, ids["perfect_1"])
	assert.True(t, ids["speed_30s"])

	// Повторная идентичная игра не выдаёт уже разблокированные достижения.
	clock.Set(clock.Now().Add(2 * time.Hour))
	r2, err := svc.ReportGameResult(context.Background(), "player-1", perfectHardGame())
	require.NoError(t, err)
	for _, a := range r2.NewAchievements {
		assert.False(t, ids[a.ID], "achievement %s unlocked twice", a.ID)
	}

	saved, err := repo.GetByID(context.Background(), "player-1")
	require.NoError(t, err)
	seen := make(map[string]int)
	for _, a := range saved.Achievements {
		seen[a.ID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "achievement %s stored %d times", id, count)
	}
}

func TestReportGameResult_PublishesEvents(t *testing.T) {
	svc, _, pub, _ := newTestService(t)
	registerTestPlayer(t, svc)

	report, err := svc.ReportGameResult(context.Background(), "player-1", perfectHardGame())
	require.NoError(t, err)

	require.Len(t, pub.byType(shared.EventGameRecorded), 1)
	require.Len(t, pub.byType(shared.EventLevelUp), 1)
	require.Len(t, pub.byType(shared.EventRankChanged), 1)
	assert.Len(t, pub.byType(shared.EventAchievementUnlocked), len(report.NewAchievements))

	levelUp := pub.byType(shared.EventLevelUp)[0].(shared.LevelUpEvent)
	assert.Equal(t, 1, levelUp.OldLevel)
	assert.Equal(t, 6, levelUp.NewLevel)
	assert.Equal(t, "player-1", levelUp.AggregateID())
}

func TestReportGameResult_CategoryMastery(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	registerTestPlayer(t, svc)

	game := player.GameResult{
		TotalScore:     200,
		CorrectAnswers: 4,
		TotalQuestions: 5,
		Category:       "криминалистика",
	}

	_, err := svc.ReportGameResult(context.Background(), "player-1", game)
	require.NoError(t, err)
	clock.Set(clock.Now().Add(2 * time.Hour))
	_, err = svc.ReportGameResult(context.Background(), "player-1", game)
	require.NoError(t, err)

	saved, err := repo.GetByID(context.Background(), "player-1")
	require.NoError(t, err)

	mastery := saved.Stats.CategoryMastery["криминалистика"]
	assert.Equal(t, saved.Stats.Experience, mastery.Experience)
	assert.Equal(t, player.ResolveLevel(mastery.Experience), mastery.Level)
}

func TestRegisterPlayer_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.RegisterPlayer(context.Background(), "", "Имя")
	assert.ErrorIs(t, err, player.ErrInvalidPlayerID)

	_, err = svc.RegisterPlayer(context.Background(), "id-1", "   ")
	assert.ErrorIs(t, err, player.ErrInvalidDisplayName)

	_, err = svc.RegisterPlayer(context.Background(), "id-1", "Ватсон")
	require.NoError(t, err)

	_, err = svc.RegisterPlayer(context.Background(), "id-1", "Ватсон")
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}
