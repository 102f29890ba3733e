package player

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// REPUTATION SCORER
// ══════════════════════════════════════════════════════════════════════════════

// Веса компонент композитной репутации.
const (
	reputationAccuracyWeight    = 0.35
	reputationSpeedWeight       = 0.25
	reputationConsistencyWeight = 0.25
	reputationDifficultyWeight  = 0.15

	// Коэффициенты сглаживания EMA для компоненты скорости.
	// Стартует с нуля без прогрева: ранние значения занижены,
	// поведение сохранено намеренно.
	speedEMAPrevWeight   = 0.8
	speedEMASampleWeight = 0.2
)

// ReputationScorer пересчитывает репутацию игрока после игры.
type ReputationScorer struct{}

// NewReputationScorer создаёт скорер репутации.
func NewReputationScorer() *ReputationScorer {
	return &ReputationScorer{}
}

// Score вычисляет обновлённую репутацию по результату игры и обновлённой
// статистике. Возвращает новую репутацию и дельту композитного уровня
// для записи в историю.
func (r *ReputationScorer) Score(result GameResult, stats Stats, prev Reputation) (Reputation, int) {
	next := Reputation{
		Accuracy:    clamp100(stats.Accuracy * 1.2),
		Speed:       prev.Speed,
		Consistency: r.consistency(stats),
		Difficulty:  r.difficulty(stats),
	}

	// Скорость: EMA 0.8/0.2, обновляется только при наличии данных о времени.
	if result.HasTiming() {
		sample := clamp100(float64(stats.AverageTimeMs) / float64(result.TimeSpentMs) * 50)
		next.Speed = clamp100(speedEMAPrevWeight*prev.Speed + speedEMASampleWeight*sample)
	}

	composite := reputationAccuracyWeight*next.Accuracy +
		reputationSpeedWeight*next.Speed +
		reputationConsistencyWeight*next.Consistency +
		reputationDifficultyWeight*next.Difficulty

	next.Level = int(math.Round(clamp100(composite)))
	next.Category = reputationCategoryFor(next.Level)

	return next, next.Level - prev.Level
}

// consistency вычисляет компоненту стабильности: серия побед, дневная серия
// и количество расследований с аддитивными весами, ограничено сотней.
func (r *ReputationScorer) consistency(stats Stats) float64 {
	score := float64(stats.WinStreak)*8 +
		float64(stats.DailyStreakCurrent)*3 +
		float64(stats.Investigations)*0.5
	return clamp100(score)
}

// difficulty вычисляет взвешенное среднее сложности по всем сыгранным играм.
func (r *ReputationScorer) difficulty(stats Stats) float64 {
	var weighted float64
	var total int
	for d, count := range stats.GamesByDifficulty {
		weighted += d.ReputationWeight() * float64(count)
		total += count
	}
	if total == 0 {
		return 0
	}
	return clamp100(weighted / float64(total))
}

// reputationCategoryFor возвращает категорию по композитному уровню.
// Пороги - включительные нижние границы.
func reputationCategoryFor(level int) ReputationCategory {
	switch {
	case level >= 90:
		return ReputationLegendary
	case level >= 75:
		return ReputationElite
	case level >= 60:
		return ReputationRespected
	case level >= 30:
		return ReputationOrdinary
	default:
		return ReputationCriticized
	}
}

// clamp100 ограничивает значение диапазоном [0, 100].
func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
