package player

import (
	"fmt"
	"math"
	"time"

	"github.com/detective-hub/detective-quiz-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPERIENCE CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// Пороговые значения и множители бонусов к опыту.
// Порядок применения фиксирован; множители перемножаются.
const (
	perfectGameMultiplier   = 1.5
	fastGameMultiplier      = 1.3
	fastAnswerThresholdMs   = 30_000
	hardDifficultyBonus     = 1.4
	expertDifficultyBonus   = 1.6
	streakBonusPerWin       = 0.1
	streakBonusMinStreak    = 3
	streakBonusCap          = 2.0
	weekendMultiplier       = 1.1
	firstGameOfDayBonus     = 1.25
	hourlyOverplayPenalty   = 0.8
	hourlyOverplayThreshold = 3
	dailyOverplayPenalty    = 0.9
	dailyOverplayThreshold  = 10
)

// ThrottleWindow содержит счётчики игр в коротких окнах ДО текущей игры.
// Используются только как вход для штрафа за переигрывание.
type ThrottleWindow struct {
	// GamesThisHour - игр уже сыграно в текущем часе.
	GamesThisHour int

	// GamesToday - игр уже сыграно сегодня.
	GamesToday int
}

// ExperienceBreakdown содержит разбор начисленного опыта с объяснением бонусов.
type ExperienceBreakdown struct {
	// BaseExperience - базовый опыт (равен очкам за игру).
	BaseExperience int

	// Multiplier - итоговый множитель после всех бонусов и штрафов.
	Multiplier float64

	// BonusExperience - разница между итоговым и базовым опытом.
	// Может быть отрицательной из-за штрафов за переигрывание.
	BonusExperience int

	// FinalExperience - итоговый опыт, round(base * multiplier).
	FinalExperience int

	// BonusReasons - человекочитаемые причины применённых бонусов.
	BonusReasons []string
}

// ExperienceCalculator вычисляет опыт за одну игру.
// Чистая функция: текущее время передаётся явно, глобальные часы не читаются.
type ExperienceCalculator struct{}

// NewExperienceCalculator создаёт калькулятор опыта.
func NewExperienceCalculator() *ExperienceCalculator {
	return &ExperienceCalculator{}
}

// Calculate вычисляет опыт за игру.
//
// Входы: результат игры, серия побед игрока (после учёта этой игры),
// дата последней активности ДО этой игры, счётчики окон ДО этой игры
// и текущее время.
//
// Бонусы применяются мультипликативно в фиксированном порядке:
// идеальная игра, скорость, сложность, серия побед, выходной,
// первая игра дня, штрафы за переигрывание.
func (c *ExperienceCalculator) Calculate(
	result GameResult,
	winStreak int,
	lastActiveDate time.Time,
	window ThrottleWindow,
	now time.Time,
) ExperienceBreakdown {
	base := result.TotalScore
	multiplier := 1.0
	var reasons []string

	// 1. Идеальная игра
	if result.IsPerfect() {
		multiplier *= perfectGameMultiplier
		reasons = append(reasons, "Идеальная игра: все ответы верны (x1.5)")
	}

	// 2. Быстрые ответы (< 30 секунд на вопрос)
	if avg := result.AverageTimePerQuestionMs(); avg > 0 && avg < fastAnswerThresholdMs {
		multiplier *= fastGameMultiplier
		reasons = append(reasons, "Быстрое расследование: меньше 30 секунд на вопрос (x1.3)")
	}

	// 3. Бонус за сложность
	switch result.Difficulty {
	case DifficultyHard:
		multiplier *= hardDifficultyBonus
		reasons = append(reasons, "Сложное дело (x1.4)")
	case DifficultyExpert:
		multiplier *= expertDifficultyBonus
		reasons = append(reasons, "Дело для экспертов (x1.6)")
	}

	// 4. Серия побед (от 3 побед, с потолком против неограниченного роста)
	if winStreak >= streakBonusMinStreak {
		streakBonus := math.Min(1.0+float64(winStreak)*streakBonusPerWin, streakBonusCap)
		multiplier *= streakBonus
		reasons = append(reasons, fmt.Sprintf("Серия побед: %d подряд (x%.1f)", winStreak, streakBonus))
	}

	// 5. Выходной день
	if timeutil.IsWeekend(now) {
		multiplier *= weekendMultiplier
		reasons = append(reasons, "Бонус выходного дня (x1.1)")
	}

	// 6. Первая игра дня
	if !timeutil.SameDay(lastActiveDate, now) {
		multiplier *= firstGameOfDayBonus
		reasons = append(reasons, "Первое расследование за день (x1.25)")
	}

	// 7. Штрафы за переигрывание. Перемножаются со всеми бонусами,
	// поэтому итог может опуститься ниже базового опыта.
	if window.GamesThisHour > hourlyOverplayThreshold {
		multiplier *= hourlyOverplayPenalty
		reasons = append(reasons, "Штраф: слишком много игр за час (x0.8)")
	}
	if window.GamesToday > dailyOverplayThreshold {
		multiplier *= dailyOverplayPenalty
		reasons = append(reasons, "Штраф: слишком много игр за день (x0.9)")
	}

	final := int(math.Round(float64(base) * multiplier))

	return ExperienceBreakdown{
		BaseExperience:  base,
		Multiplier:      multiplier,
		BonusExperience: final - base,
		FinalExperience: final,
		BonusReasons:    reasons,
	}
}
