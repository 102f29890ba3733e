// Package progression contains the write path of the progression engine:
// applying one finished game to one player aggregate.
package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/detective-hub/detective-quiz-hub/internal/domain/player"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/shared"
	"github.com/detective-hub/detective-quiz-hub/pkg/logger"
	"github.com/detective-hub/detective-quiz-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock выдаёт текущее время. Внедряется явно, чтобы бонусы за выходные
// и границы дней были детерминированы в тестах.
type Clock interface {
	Now() time.Time
}

// SystemClock - часы по умолчанию (московское время).
type SystemClock struct{}

// Now возвращает текущее московское время.
func (SystemClock) Now() time.Time {
	return timeutil.Now()
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION SERVICE
// Оркестратор: Received -> Scored -> Ranked -> AchievementsChecked -> Persisted.
// Шаги выполняются в фиксированном порядке без коротких замыканий:
// даже если шаг ничего не изменил, последующие шаги всё равно выполняются.
// ══════════════════════════════════════════════════════════════════════════════

// Service применяет результаты игр к агрегатам игроков.
// Обновления синхронны; внешняя сериализация "одна игра игрока за раз"
// предполагается вызывающей стороной и здесь не форсируется.
type Service struct {
	players player.Repository
	events  shared.EventPublisher
	log     *logger.Logger
	clock   Clock

	experience   *player.ExperienceCalculator
	reputation   *player.ReputationScorer
	ranks        *player.RankAssigner
	achievements *player.AchievementEvaluator
}

// NewService создаёт сервис прогрессии.
func NewService(players player.Repository, events shared.EventPublisher, log *logger.Logger, clock Clock) *Service {
	if events == nil {
		events = shared.NoopPublisher{}
	}
	if log == nil {
		log = logger.Default()
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Service{
		players:      players,
		events:       events,
		log:          log.With(logger.Component("progression")),
		clock:        clock,
		experience:   player.NewExperienceCalculator(),
		reputation:   player.NewReputationScorer(),
		ranks:        player.NewRankAssigner(),
		achievements: player.NewAchievementEvaluator(),
	}
}

// ReportResult содержит производные изменения одного обновления.
type ReportResult struct {
	// PlayerID - идентификатор игрока.
	PlayerID string

	// Experience - разбор начисленного опыта.
	Experience player.ExperienceBreakdown

	// OldLevel, NewLevel - уровень до и после игры.
	OldLevel int
	NewLevel int

	// ReputationDelta - изменение композитной репутации.
	ReputationDelta int

	// RankChanged - сменилось ли звание.
	RankChanged bool

	// Rank - звание после игры.
	Rank player.RankTier

	// NextRankProgress - прогресс до следующего звания, 0-100.
	NextRankProgress float64

	// NewAchievements - достижения, разблокированные этой игрой
	// (включая синтетическое достижение за смену звания).
	NewAchievements []player.Achievement
}

// RegisterPlayer создаёт агрегат нового игрока.
func (s *Service) RegisterPlayer(ctx context.Context, id, displayName string) (*player.Player, error) {
	p, err := player.NewPlayer(id, displayName, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := s.players.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("register player: %w", err)
	}

	s.log.Info("player registered", logger.PlayerID(id))
	return p, nil
}

// ReportGameResult применяет результат одной завершённой игры.
//
// Фиксированная последовательность:
//  1. сырые счётчики (игры, ответы, серии, тайминги, окна);
//  2. опыт и уровень;
//  3. репутация;
//  4. звание и прогресс до следующего;
//  5. дневная серия;
//  6. проверка достижений;
//  7. запись в историю игр;
//  8. атомарное сохранение всего агрегата.
//
// Ошибка сохранения фатальна для запроса: мутация в памяти не считается
// применённой, пока запись не удалась.
func (s *Service) ReportGameResult(ctx context.Context, playerID string, result player.GameResult) (*ReportResult, error) {
	if playerID == "" {
		return nil, player.ErrInvalidPlayerID
	}
	if err := result.Validate(); err != nil {
		return nil, shared.WrapError("progression", "ReportGameResult", shared.ErrValidation, "rejected game result", err)
	}

	stored, err := s.players.GetByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", playerID, err)
	}

	// Мутируем копию: оригинал остаётся нетронутым до успешной записи.
	p := stored.Clone()
	now := s.clock.Now()

	// ── Шаг 1: сырые счётчики ────────────────────────────────────────────────
	prevLastActive := p.Stats.LastActiveDate
	throttle := s.rollThrottleWindows(&p.Stats, now)

	solved := result.CorrectAnswers*2 > result.TotalQuestions
	s.applyCounters(&p.Stats, result, solved)

	// ── Шаг 2: опыт и уровень ────────────────────────────────────────────────
	breakdown := s.experience.Calculate(result, p.Stats.WinStreak, prevLastActive, throttle, now)
	p.Stats.Experience += breakdown.FinalExperience
	oldLevel := p.Stats.Level
	p.Stats.Level = player.ResolveLevel(p.Stats.Experience)

	if result.Category != "" {
		mastery := p.Stats.CategoryMastery[result.Category]
		mastery.Experience += breakdown.FinalExperience
		mastery.Level = player.ResolveLevel(mastery.Experience)
		p.Stats.CategoryMastery[result.Category] = mastery
	}

	// ── Шаг 3: репутация ─────────────────────────────────────────────────────
	newReputation, reputationDelta := s.reputation.Score(result, p.Stats, p.Reputation)
	p.Reputation = newReputation

	// ── Шаг 4: звание ────────────────────────────────────────────────────────
	oldRank := p.Rank
	newRank, rankProgress := s.ranks.Assign(p.Stats.TotalScore)
	p.Rank = newRank
	p.NextRankProgress = rankProgress

	var newAchievements []player.Achievement
	rankChanged := newRank != oldRank
	if rankChanged {
		rankAchievement := s.ranks.RankAchievement(newRank, now)
		if p.AddAchievement(rankAchievement) {
			newAchievements = append(newAchievements, rankAchievement)
		}
	}

	// ── Шаг 5: дневная серия ─────────────────────────────────────────────────
	s.applyDailyStreak(&p.Stats, prevLastActive, now)
	p.Stats.LastActiveDate = now

	// ── Шаг 6: достижения ────────────────────────────────────────────────────
	unlocked := s.achievements.Evaluate(p, now)
	for _, a := range unlocked {
		if p.AddAchievement(a) {
			newAchievements = append(newAchievements, a)
		}
	}

	// ── Шаг 7: история игр ───────────────────────────────────────────────────
	record := s.buildGameRecord(p, result, breakdown, reputationDelta, newAchievements, now)
	p.GameHistory = append(p.GameHistory, record)

	// ── Шаг 8: атомарное сохранение ──────────────────────────────────────────
	p.UpdatedAt = now
	if err := s.players.Save(ctx, p); err != nil {
		return nil, shared.WrapError("progression", "ReportGameResult", shared.ErrPersistence,
			"aggregate write failed, update discarded", err)
	}

	s.publishEvents(ctx, p, record, oldLevel, oldRank, rankChanged, newAchievements, now)

	s.log.Info("game result applied",
		logger.PlayerID(p.ID),
		logger.XPAmount(breakdown.FinalExperience),
		logger.ScoreAmount(p.Stats.TotalScore),
		logger.RankTier(p.Rank.String()),
		logger.Int("new_achievements", len(newAchievements)),
	)

	return &ReportResult{
		PlayerID:         p.ID,
		Experience:       breakdown,
		OldLevel:         oldLevel,
		NewLevel:         p.Stats.Level,
		ReputationDelta:  reputationDelta,
		RankChanged:      rankChanged,
		Rank:             p.Rank,
		NextRankProgress: rankProgress,
		NewAchievements:  newAchievements,
	}, nil
}

// rollThrottleWindows сбрасывает часовое и дневное окна при их смене и
// возвращает счётчики ДО учёта текущей игры (вход для штрафов за
// переигрывание). Инкремент счётчиков происходит здесь же.
func (s *Service) rollThrottleWindows(st *player.Stats, now time.Time) player.ThrottleWindow {
	if !timeutil.SameHour(st.HourWindowStart, now) {
		st.GamesThisHour = 0
		st.HourWindowStart = timeutil.StartOfHour(now)
	}
	if !timeutil.SameDay(st.LastActiveDate, now) {
		st.GamesToday = 0
	}

	window := player.ThrottleWindow{
		GamesThisHour: st.GamesThisHour,
		GamesToday:    st.GamesToday,
	}

	st.GamesThisHour++
	st.GamesToday++

	return window
}

// applyCounters обновляет сырые счётчики статистики по результату игры.
func (s *Service) applyCounters(st *player.Stats, result player.GameResult, solved bool) {
	st.Investigations++
	st.TotalQuestions += result.TotalQuestions
	st.CorrectAnswers += result.CorrectAnswers
	st.TotalScore += result.TotalScore

	if st.TotalQuestions > 0 {
		st.Accuracy = float64(st.CorrectAnswers) / float64(st.TotalQuestions) * 100
	}

	if solved {
		st.SolvedCases++
		st.WinStreak++
		if st.WinStreak > st.MaxWinStreak {
			st.MaxWinStreak = st.WinStreak
		}
	} else {
		st.WinStreak = 0
	}

	if result.IsPerfect() {
		st.PerfectGames++
	}

	if result.Difficulty != "" {
		st.GamesByDifficulty[result.Difficulty]++
	}

	if result.HasTiming() {
		st.TimedGames++
		if st.TimedGames == 1 {
			st.AverageTimeMs = result.TimeSpentMs
		} else {
			st.AverageTimeMs = (st.AverageTimeMs*int64(st.TimedGames-1) + result.TimeSpentMs) / int64(st.TimedGames)
		}
		if st.FastestGameMs == 0 || result.TimeSpentMs < st.FastestGameMs {
			st.FastestGameMs = result.TimeSpentMs
		}
	}
}

// applyDailyStreak пересчитывает дневную серию.
// Тот же день - no-op; ровно вчера - инкремент; иначе сброс до 1.
func (s *Service) applyDailyStreak(st *player.Stats, prevLastActive, now time.Time) {
	switch {
	case prevLastActive.IsZero():
		st.DailyStreakCurrent = 1
	case timeutil.SameDay(prevLastActive, now):
		return
	case timeutil.DaysBetween(prevLastActive, now) == 1:
		st.DailyStreakCurrent++
	default:
		st.DailyStreakCurrent = 1
	}

	if st.DailyStreakCurrent > st.DailyStreakBest {
		st.DailyStreakBest = st.DailyStreakCurrent
	}
}

// buildGameRecord собирает запись истории по входам и производным дельтам.
func (s *Service) buildGameRecord(
	p *player.Player,
	result player.GameResult,
	breakdown player.ExperienceBreakdown,
	reputationDelta int,
	newAchievements []player.Achievement,
	now time.Time,
) player.GameRecord {
	achievementIDs := make([]string, 0, len(newAchievements))
	for _, a := range newAchievements {
		achievementIDs = append(achievementIDs, a.ID)
	}

	return player.GameRecord{
		ID:               uuid.NewString(),
		PlayedAt:         now,
		TotalScore:       result.TotalScore,
		CorrectAnswers:   result.CorrectAnswers,
		TotalQuestions:   result.TotalQuestions,
		TimeSpentMs:      result.TimeSpentMs,
		Difficulty:       result.Difficulty,
		Category:         result.Category,
		ExperienceGained: breakdown.FinalExperience,
		BonusReasons:     breakdown.BonusReasons,
		ReputationDelta:  reputationDelta,
		RankAfter:        p.Rank.String(),
		NewAchievements:  achievementIDs,
	}
}

// publishEvents публикует доменные события после успешной записи.
// Ошибки публикации не фатальны: запись уже сохранена.
func (s *Service) publishEvents(
	ctx context.Context,
	p *player.Player,
	record player.GameRecord,
	oldLevel int,
	oldRank player.RankTier,
	rankChanged bool,
	newAchievements []player.Achievement,
	now time.Time,
) {
	publish := func(event shared.Event) {
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Warn("event publish failed",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err),
			)
		}
	}

	publish(shared.GameRecordedEvent{
		BaseEvent:        shared.NewBaseEvent(shared.EventGameRecorded, p.ID, now),
		GameRecordID:     record.ID,
		ExperienceGained: record.ExperienceGained,
		TotalScore:       p.Stats.TotalScore,
	})

	if p.Stats.Level > oldLevel {
		publish(shared.LevelUpEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventLevelUp, p.ID, now),
			OldLevel:  oldLevel,
			NewLevel:  p.Stats.Level,
		})
	}

	if rankChanged {
		publish(shared.RankChangedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventRankChanged, p.ID, now),
			OldRank:   oldRank.String(),
			NewRank:   p.Rank.String(),
		})
	}

	for _, a := range newAchievements {
		publish(shared.AchievementUnlockedEvent{
			BaseEvent:     shared.NewBaseEvent(shared.EventAchievementUnlocked, p.ID, now),
			AchievementID: a.ID,
			Name:          a.Name,
			Rarity:        string(a.Rarity),
		})
	}
}
