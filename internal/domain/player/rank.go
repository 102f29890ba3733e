package player

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// RANK ASSIGNER
// ══════════════════════════════════════════════════════════════════════════════

// RankTier представляет звание детектива, производное от суммарных очков.
// Звания упорядочены: сравнение по значению соответствует порядку званий.
type RankTier int

const (
	// RankTrainee - СТАЖЁР, стартовое звание.
	RankTrainee RankTier = iota
	// RankInvestigator - СЛЕДОВАТЕЛЬ.
	RankInvestigator
	// RankDetective - ДЕТЕКТИВ.
	RankDetective
	// RankSeniorDetective - СТАРШИЙ ДЕТЕКТИВ.
	RankSeniorDetective
	// RankInspector - ИНСПЕКТОР.
	RankInspector
	// RankChiefInspector - ГЛАВНЫЙ ИНСПЕКТОР.
	RankChiefInspector
	// RankCommissioner - КОМИССАР.
	RankCommissioner
	// RankLegend - ЛЕГЕНДА СЫСКА, высшее звание.
	RankLegend
)

// rankThresholds - фиксированная возрастающая последовательность порогов
// очков для каждого звания.
var rankThresholds = [...]int{0, 150, 400, 900, 2000, 4500, 10000, 20000}

// rankTitles - русские названия званий.
var rankTitles = [...]string{
	"СТАЖЁР",
	"СЛЕДОВАТЕЛЬ",
	"ДЕТЕКТИВ",
	"СТАРШИЙ ДЕТЕКТИВ",
	"ИНСПЕКТОР",
	"ГЛАВНЫЙ ИНСПЕКТОР",
	"КОМИССАР",
	"ЛЕГЕНДА СЫСКА",
}

// rankRarities - таблица звание -> редкость синтетического достижения.
// Младшие звания обычные, высшее - легендарное.
var rankRarities = [...]AchievementRarity{
	RarityCommon,
	RarityCommon,
	RarityUncommon,
	RarityUncommon,
	RarityRare,
	RarityRare,
	RarityEpic,
	RarityLegendary,
}

// rankIDs - стабильные идентификаторы для достижений за звание.
var rankIDs = [...]string{
	"rank_trainee",
	"rank_investigator",
	"rank_detective",
	"rank_senior_detective",
	"rank_inspector",
	"rank_chief_inspector",
	"rank_commissioner",
	"rank_legend",
}

// IsValid проверяет, что звание в допустимом диапазоне.
func (r RankTier) IsValid() bool {
	return r >= RankTrainee && r <= RankLegend
}

// String возвращает русское название звания.
func (r RankTier) String() string {
	if !r.IsValid() {
		return "НЕИЗВЕСТНО"
	}
	return rankTitles[r]
}

// Threshold возвращает минимальные очки для звания.
func (r RankTier) Threshold() int {
	if !r.IsValid() {
		return 0
	}
	return rankThresholds[r]
}

// Rarity возвращает редкость достижения за получение звания.
func (r RankTier) Rarity() AchievementRarity {
	if !r.IsValid() {
		return RarityCommon
	}
	return rankRarities[r]
}

// AchievementID возвращает стабильный ID достижения за звание.
func (r RankTier) AchievementID() string {
	if !r.IsValid() {
		return "rank_unknown"
	}
	return rankIDs[r]
}

// RankAssigner выводит звание из суммарных очков.
// Чистая функция: для любых a <= b звание(a) <= звание(b).
type RankAssigner struct{}

// NewRankAssigner создаёт назначатель званий.
func NewRankAssigner() *RankAssigner {
	return &RankAssigner{}
}

// Assign возвращает звание и прогресс до следующего звания (0-100).
// Для высшего звания прогресс всегда 100.
func (a *RankAssigner) Assign(totalScore int) (RankTier, float64) {
	tier := RankTrainee
	for i := len(rankThresholds) - 1; i >= 0; i-- {
		if totalScore >= rankThresholds[i] {
			tier = RankTier(i)
			break
		}
	}

	if tier == RankLegend {
		return tier, 100
	}

	floor := rankThresholds[tier]
	next := rankThresholds[tier+1]
	progress := float64(totalScore-floor) / float64(next-floor) * 100

	return tier, progress
}

// RankAchievement строит синтетическое достижение за получение звания.
// Вызывается ровно один раз на каждую смену звания.
func (a *RankAssigner) RankAchievement(tier RankTier, now time.Time) Achievement {
	return Achievement{
		ID:          tier.AchievementID(),
		Name:        "Новое звание: " + tier.String(),
		Description: "Присвоено звание " + tier.String(),
		Category:    AchievementCategoryRank,
		Rarity:      tier.Rarity(),
		UnlockedAt:  now,
		Progress: AchievementProgress{
			Current: tier.Threshold(),
			Target:  tier.Threshold(),
		},
	}
}
