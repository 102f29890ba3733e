package player

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT RULES
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRule описывает одно правило разблокировки достижения.
// Правила декларативные: добавление нового правила не требует
// изменения управляющей логики - достаточно дописать запись в каталог.
type AchievementRule struct {
	// ID - уникальный идентификатор достижения.
	ID string

	// Name - название достижения.
	Name string

	// Description - описание достижения.
	Description string

	// Category - категория достижения.
	Category AchievementCategory

	// Rarity - редкость достижения.
	Rarity AchievementRarity

	// Target - целевое значение для отображения прогресса.
	Target int

	// Predicate возвращает true, если условие достижения выполнено.
	Predicate func(p *Player) bool

	// Current возвращает текущее значение прогресса.
	Current func(p *Player) int
}

// investigationTiers - вехи по количеству расследований.
var investigationTiers = []struct {
	count  int
	name   string
	rarity AchievementRarity
}{
	{1, "Первое расследование", RarityCommon},
	{5, "Начинающий сыщик", RarityCommon},
	{25, "Опытный сыщик", RarityUncommon},
	{50, "Завсегдатай участка", RarityUncommon},
	{100, "Сотня дел", RarityRare},
	{250, "Гроза преступности", RarityEpic},
	{500, "Ходячий архив", RarityLegendary},
}

// scoreTiers - вехи по суммарным очкам.
var scoreTiers = []struct {
	score  int
	name   string
	rarity AchievementRarity
}{
	{1_000, "Первая тысяча", RarityCommon},
	{10_000, "Десять тысяч улик", RarityRare},
	{50_000, "Очковый магнат", RarityEpic},
}

// winStreakTiers - вехи серий побед.
var winStreakTiers = []struct {
	streak int
	name   string
	rarity AchievementRarity
}{
	{3, "Три подряд", RarityCommon},
	{5, "Горячая рука", RarityUncommon},
	{10, "Неудержимый", RarityRare},
	{20, "Безупречная серия", RarityLegendary},
}

// dailyStreakTiers - вехи серий активных дней.
var dailyStreakTiers = []struct {
	days   int
	name   string
	rarity AchievementRarity
}{
	{3, "Три дня на посту", RarityCommon},
	{7, "Неделя без выходных", RarityUncommon},
	{30, "Месяц службы", RarityEpic},
	{100, "Сто дней на страже", RarityLegendary},
}

// perfectGameTiers - вехи идеальных игр.
var perfectGameTiers = []struct {
	count  int
	name   string
	rarity AchievementRarity
}{
	{1, "Чистая работа", RarityCommon},
	{10, "Перфекционист", RarityRare},
	{50, "Эталон точности", RarityLegendary},
}

// Catalog возвращает полный каталог правил достижений.
// Порядок записей определяет порядок разблокировки в рамках одного прохода.
func Catalog() []AchievementRule {
	rules := make([]AchievementRule, 0, 32)

	// Вехи прогресса: количество расследований.
	for _, tier := range investigationTiers {
		count := tier.count
		rules = append(rules, AchievementRule{
			ID:          fmt.Sprintf("cases_%d", count),
			Name:        tier.name,
			Description: fmt.Sprintf("Проведено расследований: %d", count),
			Category:    AchievementCategoryProgress,
			Rarity:      tier.rarity,
			Target:      count,
			Predicate:   func(p *Player) bool { return p.Stats.Investigations >= count },
			Current:     func(p *Player) int { return p.Stats.Investigations },
		})
	}

	// Мастерство: точность с минимальным количеством игр.
	accuracyRules := []struct {
		accuracy float64
		minGames int
		name     string
		rarity   AchievementRarity
	}{
		{80, 10, "Меткий глаз", RarityUncommon},
		{90, 25, "Проницательный ум", RarityRare},
		{95, 50, "Дедукция Холмса", RarityLegendary},
	}
	for _, tier := range accuracyRules {
		accuracy, minGames := tier.accuracy, tier.minGames
		rules = append(rules, AchievementRule{
			ID:          fmt.Sprintf("accuracy_%d", int(accuracy)),
			Name:        tier.name,
			Description: fmt.Sprintf("Точность %.0f%%+ при %d+ играх", accuracy, minGames),
			Category:    AchievementCategoryMastery,
			Rarity:      tier.rarity,
			Target:      int(accuracy),
			Predicate: func(p *Player) bool {
				return p.Stats.Investigations >= minGames && p.Stats.Accuracy >= accuracy
			},
			Current: func(p *Player) int { return int(p.Stats.Accuracy) },
		})
	}

	// Мастерство: идеальные игры.
	for _, tier := range perfectGameTiers {
		count := tier.count
		rules = append(rules, AchievementRule{
			ID:          fmt.Sprintf("perfect_%d", count),
			Name:        tier.name,
			Description: fmt.Sprintf("Идеальных игр: %d", count),
			Category:    AchievementCategoryMastery,
			Rarity:      tier.rarity,
			Target:      count,
			Predicate:   func(p *Player) bool { return p.Stats.PerfectGames >= count },
			Current:     func(p *Player) int { return p.Stats.PerfectGames },
		})
	}

	// Скорость: самая быстрая игра.
	speedRules := []struct {
		thresholdMs int64
		name        string
		rarity      AchievementRarity
	}{
		{60_000, "Быстрое закрытие", RarityUncommon},
		{30_000, "Молниеносный сыщик", RarityEpic},
	}
	for _, tier := range speedRules {
		thresholdMs := tier.thresholdMs
		rules = append(rules, AchievementRule{
			ID:          fmt.Sprintf("speed_%ds", thresholdMs/1000),
			Name:        tier.name,
			Description: fmt.Sprintf("Игра быстрее %d секунд", thresholdMs/1000),
			Category:    AchievementCategorySpeed,
			Rarity:      tier.rarity,
			Target:      1,
			Predicate: func(p *Player) bool {
				return p.Stats.FastestGameMs > 0 && p.Stats.FastestGameMs < thresholdMs
			},
			Current: func(p *Player) int {
				if p.Stats.FastestGameMs > 0 && p.Stats.FastestGameMs < thresholdMs {
					return 1
				}
				return 0
			},
		})
	}

	// Серии побед.
	for _, tier := range winStreakTiers {
		streak := tier.streak
		rules = append(rules, AchievementRule{
			ID:          fmt.Sprintf("win_streak_%d", streak),
			Name:        tier.name,
			Description: fmt.Sprintf("Серия побед: %d", streak),
			Category:    AchievementCategoryStreak,
			Rarity:      tier.rarity,
			Target:      streak,
			Predicate:   func(p *Player) bool { return p.Stats.MaxWinStreak >= streak },
			Current:     func(p *Player) int { return p.Stats.MaxWinStreak },
		})
	}

	// Серии активных дней.
	for _, tier := range dailyStreakTiers {
		days := tier.days
		rules = append(rules, AchievementRule{
			ID:          fmt.Sprintf("daily_streak_%d", days),
			Name:        tier.name,
			Description: fmt.Sprintf("Активных дней подряд: %d", days),
			Category:    AchievementCategoryStreak,
			Rarity:      tier.rarity,
			Target:      days,
			Predicate:   func(p *Player) bool { return p.Stats.DailyStreakBest >= days },
			Current:     func(p *Player) int { return p.Stats.DailyStreakBest },
		})
	}

	// Вехи по очкам.
	for _, tier := range scoreTiers {
		score := tier.score
		rules = append(rules, AchievementRule{
			ID:          fmt.Sprintf("score_%d", score),
			Name:        tier.name,
			Description: fmt.Sprintf("Суммарные очки: %d", score),
			Category:    AchievementCategoryProgress,
			Rarity:      tier.rarity,
			Target:      score,
			Predicate:   func(p *Player) bool { return p.Stats.TotalScore >= score },
			Current:     func(p *Player) int { return p.Stats.TotalScore },
		})
	}

	// Особые достижения.
	rules = append(rules,
		AchievementRule{
			ID:          "all_difficulties",
			Name:        "Универсальный детектив",
			Description: "Сыграна хотя бы одна игра на каждой сложности",
			Category:    AchievementCategorySpecial,
			Rarity:      RarityRare,
			Target:      len(AllDifficulties()),
			Predicate:   func(p *Player) bool { return p.Stats.HasPlayedAllDifficulties() },
			Current: func(p *Player) int {
				played := 0
				for _, d := range AllDifficulties() {
					if p.Stats.GamesByDifficulty[d] > 0 {
						played++
					}
				}
				return played
			},
		},
		AchievementRule{
			ID:          "reputation_legend",
			Name:        "Безупречная репутация",
			Description: "Репутация 90+",
			Category:    AchievementCategorySpecial,
			Rarity:      RarityLegendary,
			Target:      90,
			Predicate:   func(p *Player) bool { return p.Reputation.Level >= 90 },
			Current:     func(p *Player) int { return p.Reputation.Level },
		},
	)

	return rules
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT EVALUATOR
// ══════════════════════════════════════════════════════════════════════════════

// AchievementEvaluator прогоняет каталог правил по агрегату игрока.
// Идемпотентен: уже разблокированное достижение никогда не выдаётся повторно,
// повторный прогон без изменений состояния - no-op.
type AchievementEvaluator struct {
	catalog []AchievementRule
}

// NewAchievementEvaluator создаёт эвалюатор со стандартным каталогом.
func NewAchievementEvaluator() *AchievementEvaluator {
	return &AchievementEvaluator{catalog: Catalog()}
}

// NewAchievementEvaluatorWithCatalog создаёт эвалюатор с заданным каталогом.
func NewAchievementEvaluatorWithCatalog(catalog []AchievementRule) *AchievementEvaluator {
	return &AchievementEvaluator{catalog: catalog}
}

// Evaluate возвращает достижения, разблокированные ЭТИМ проходом.
// Каждое правило проверяется на каждом вызове; правило срабатывает только
// если его ID ещё не присутствует в достижениях игрока.
func (e *AchievementEvaluator) Evaluate(p *Player, now time.Time) []Achievement {
	unlocked := p.UnlockedIDs()

	var fresh []Achievement
	for _, rule := range e.catalog {
		if unlocked[rule.ID] {
			continue
		}
		if !rule.Predicate(p) {
			continue
		}

		current := rule.Target
		if rule.Current != nil {
			current = rule.Current(p)
			if current > rule.Target {
				current = rule.Target
			}
		}

		fresh = append(fresh, Achievement{
			ID:          rule.ID,
			Name:        rule.Name,
			Description: rule.Description,
			Category:    rule.Category,
			Rarity:      rule.Rarity,
			UnlockedAt:  now,
			Progress: AchievementProgress{
				Current: current,
				Target:  rule.Target,
			},
		})
	}

	return fresh
}
