package player

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// MaxLevel - потолок уровня.
const MaxLevel = 20

// levelThresholds - монотонно возрастающая таблица порогов опыта.
// Рост примерно геометрический (~1.3-1.5x на шаг).
// Порядок порогов менять нельзя без миграции данных игроков:
// уровень детерминированно выводится из этой таблицы.
var levelThresholds = [MaxLevel]int{
	100,    // -> 2
	250,    // -> 3
	500,    // -> 4
	900,    // -> 5
	1_500,  // -> 6
	2_400,  // -> 7
	3_700,  // -> 8
	5_500,  // -> 9
	8_000,  // -> 10
	11_500, // -> 11
	16_000, // -> 12
	22_000, // -> 13
	30_000, // -> 14
	40_000, // -> 15
	53_000, // -> 16
	70_000, // -> 17
	92_000, // -> 18
	120_000, // -> 19
	155_000, // -> 20
	200_000,
}

// ResolveLevel вычисляет уровень из накопленного опыта.
// Уровень = 1 + количество порогов строго ниже опыта, с потолком MaxLevel.
// Одинаковый опыт всегда даёт одинаковый уровень.
func ResolveLevel(experience int) int {
	level := 1
	for _, threshold := range levelThresholds {
		if experience > threshold {
			level++
		} else {
			break
		}
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// ExperienceForLevel возвращает опыт, необходимый для достижения уровня.
// Для первого уровня возвращает 0.
func ExperienceForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelThresholds[level-2] + 1
}
