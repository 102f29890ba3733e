// Package player содержит доменную модель игрока "Детектив Квиз".
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package player

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Difficulty представляет сложность расследования (игры).
type Difficulty string

const (
	// DifficultyEasy - лёгкое дело.
	DifficultyEasy Difficulty = "easy"
	// DifficultyMedium - дело средней сложности.
	DifficultyMedium Difficulty = "medium"
	// DifficultyHard - сложное дело.
	DifficultyHard Difficulty = "hard"
	// DifficultyExpert - дело для экспертов.
	DifficultyExpert Difficulty = "expert"
)

// AllDifficulties возвращает все уровни сложности в порядке возрастания.
func AllDifficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert}
}

// IsValid проверяет, что сложность корректна.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	default:
		return false
	}
}

// ReputationWeight возвращает вес сложности для репутационного скоринга.
func (d Difficulty) ReputationWeight() float64 {
	switch d {
	case DifficultyEasy:
		return 10
	case DifficultyMedium:
		return 25
	case DifficultyHard:
		return 50
	case DifficultyExpert:
		return 100
	default:
		return 0
	}
}

// Experience представляет очки опыта игрока.
type Experience int

// IsValid проверяет, что опыт неотрицательный.
func (e Experience) IsValid() bool {
	return e >= 0
}

// Add складывает опыт.
func (e Experience) Add(delta Experience) Experience {
	return e + delta
}

// Score представляет игровые очки.
type Score int

// IsValid проверяет, что очки неотрицательные.
func (s Score) IsValid() bool {
	return s >= 0
}

// ══════════════════════════════════════════════════════════════════════════════
// GAME RESULT (входные данные, не персистятся этой подсистемой)
// ══════════════════════════════════════════════════════════════════════════════

// GameResult представляет результат одной завершённой игры.
// Передаётся контроллером игровой сессии, здесь не сохраняется.
type GameResult struct {
	// TotalScore - набранные очки за игру.
	TotalScore int

	// CorrectAnswers - количество верных ответов.
	CorrectAnswers int

	// TotalQuestions - количество вопросов в игре.
	TotalQuestions int

	// TimeSpentMs - затраченное время в миллисекундах (0 = нет данных).
	TimeSpentMs int64

	// AverageTimeMs - среднее время на вопрос в миллисекундах (0 = вычисляется).
	AverageTimeMs int64

	// Difficulty - сложность игры (пустая строка = не указана).
	Difficulty Difficulty

	// Category - категория вопросов (пустая строка = не указана).
	Category string
}

// IsPerfect возвращает true, если все ответы верные.
func (g GameResult) IsPerfect() bool {
	return g.TotalQuestions > 0 && g.CorrectAnswers == g.TotalQuestions
}

// AverageTimePerQuestionMs возвращает среднее время на вопрос.
// Если AverageTimeMs не передан, вычисляет из TimeSpentMs.
func (g GameResult) AverageTimePerQuestionMs() int64 {
	if g.AverageTimeMs > 0 {
		return g.AverageTimeMs
	}
	if g.TimeSpentMs > 0 && g.TotalQuestions > 0 {
		return g.TimeSpentMs / int64(g.TotalQuestions)
	}
	return 0
}

// HasTiming возвращает true, если есть данные о времени игры.
func (g GameResult) HasTiming() bool {
	return g.TimeSpentMs > 0
}

// Validate проверяет результат игры. Невалидные данные отклоняются сразу,
// без тихой подгонки значений.
func (g GameResult) Validate() error {
	if g.TotalScore < 0 {
		return ErrNegativeScore
	}
	if g.TotalQuestions <= 0 {
		return ErrNoQuestions
	}
	if g.CorrectAnswers < 0 || g.CorrectAnswers > g.TotalQuestions {
		return ErrInvalidAnswerCount
	}
	if g.TimeSpentMs < 0 || g.AverageTimeMs < 0 {
		return ErrNegativeTime
	}
	if g.Difficulty != "" && !g.Difficulty.IsValid() {
		return ErrInvalidDifficulty
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS (накопительная статистика игрока)
// ══════════════════════════════════════════════════════════════════════════════

// CategoryMastery представляет мастерство игрока в одной категории вопросов.
type CategoryMastery struct {
	// Level - уровень мастерства в категории.
	Level int `json:"level"`

	// Experience - опыт, заработанный в категории.
	Experience int `json:"experience"`
}

// Stats содержит накопительную статистику игрока.
// Experience, TotalScore, Investigations, MaxWinStreak и DailyStreakBest
// монотонно не убывают.
type Stats struct {
	// Investigations - количество сыгранных расследований.
	Investigations int `json:"investigations"`

	// SolvedCases - количество раскрытых дел (больше половины верных ответов).
	SolvedCases int `json:"solved_cases"`

	// TotalQuestions - всего отвечено вопросов.
	TotalQuestions int `json:"total_questions"`

	// CorrectAnswers - всего верных ответов.
	CorrectAnswers int `json:"correct_answers"`

	// Accuracy - точность 0-100, производная от CorrectAnswers/TotalQuestions.
	Accuracy float64 `json:"accuracy"`

	// Experience - накопленный опыт.
	Experience int `json:"experience"`

	// Level - уровень, производный от опыта.
	Level int `json:"level"`

	// TotalScore - суммарные игровые очки.
	TotalScore int `json:"total_score"`

	// WinStreak - текущая серия побед.
	WinStreak int `json:"win_streak"`

	// MaxWinStreak - лучшая серия побед.
	MaxWinStreak int `json:"max_win_streak"`

	// PerfectGames - количество идеальных игр.
	PerfectGames int `json:"perfect_games"`

	// TimedGames - количество игр с данными о времени.
	// Знаменатель для AverageTimeMs, не все игры приходят с таймингом.
	TimedGames int `json:"timed_games"`

	// AverageTimeMs - среднее время игры в миллисекундах.
	AverageTimeMs int64 `json:"average_time_ms"`

	// FastestGameMs - самая быстрая игра в миллисекундах (0 = нет данных).
	FastestGameMs int64 `json:"fastest_game_ms"`

	// DailyStreakCurrent - текущая серия активных дней.
	DailyStreakCurrent int `json:"daily_streak_current"`

	// DailyStreakBest - лучшая серия активных дней.
	DailyStreakBest int `json:"daily_streak_best"`

	// LastActiveDate - дата последней активности.
	LastActiveDate time.Time `json:"last_active_date"`

	// GamesByDifficulty - количество игр по уровням сложности.
	GamesByDifficulty map[Difficulty]int `json:"games_by_difficulty"`

	// CategoryMastery - мастерство по категориям вопросов.
	CategoryMastery map[string]CategoryMastery `json:"category_mastery"`

	// GamesThisHour - игр за текущий час (вход для штрафа за переигрывание).
	GamesThisHour int `json:"games_this_hour"`

	// GamesToday - игр за текущий день (вход для штрафа за переигрывание).
	GamesToday int `json:"games_today"`

	// HourWindowStart - начало текущего часового окна.
	HourWindowStart time.Time `json:"hour_window_start"`
}

// NewStats возвращает пустую статистику нового игрока.
func NewStats() Stats {
	return Stats{
		Level:             1,
		GamesByDifficulty: make(map[Difficulty]int),
		CategoryMastery:   make(map[string]CategoryMastery),
	}
}

// HasPlayedAllDifficulties возвращает true, если игрок сыграл на каждой сложности.
func (s Stats) HasPlayedAllDifficulties() bool {
	for _, d := range AllDifficulties() {
		if s.GamesByDifficulty[d] == 0 {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// REPUTATION
// ══════════════════════════════════════════════════════════════════════════════

// ReputationCategory представляет категорию репутации детектива.
type ReputationCategory string

const (
	// ReputationLegendary - легендарный детектив (уровень >= 90).
	ReputationLegendary ReputationCategory = "legendary"
	// ReputationElite - элитный детектив (уровень >= 75).
	ReputationElite ReputationCategory = "elite"
	// ReputationRespected - уважаемый детектив (уровень >= 60).
	ReputationRespected ReputationCategory = "respected"
	// ReputationOrdinary - обычный детектив (уровень >= 30).
	ReputationOrdinary ReputationCategory = "ordinary"
	// ReputationCriticized - детектив под критикой (уровень < 30).
	ReputationCriticized ReputationCategory = "criticized"
)

// Title возвращает русское название категории для отображения.
func (c ReputationCategory) Title() string {
	switch c {
	case ReputationLegendary:
		return "Легендарный"
	case ReputationElite:
		return "Элитный"
	case ReputationRespected:
		return "Уважаемый"
	case ReputationOrdinary:
		return "Обычный"
	default:
		return "Под критикой"
	}
}

// Reputation содержит четыре компоненты репутации и композитный уровень.
// Все значения ограничены диапазоном [0, 100].
type Reputation struct {
	// Accuracy - компонента точности.
	Accuracy float64 `json:"accuracy"`

	// Speed - компонента скорости (экспоненциальное скользящее среднее).
	Speed float64 `json:"speed"`

	// Consistency - компонента стабильности.
	Consistency float64 `json:"consistency"`

	// Difficulty - компонента сложности.
	Difficulty float64 `json:"difficulty"`

	// Level - композитный уровень репутации 0-100.
	Level int `json:"level"`

	// Category - категория репутации, производная от уровня.
	Category ReputationCategory `json:"category"`
}

// NewReputation возвращает начальную репутацию нового игрока.
func NewReputation() Reputation {
	return Reputation{Category: ReputationCriticized}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRarity представляет редкость достижения.
type AchievementRarity string

const (
	// RarityCommon - обычное достижение.
	RarityCommon AchievementRarity = "common"
	// RarityUncommon - необычное достижение.
	RarityUncommon AchievementRarity = "uncommon"
	// RarityRare - редкое достижение.
	RarityRare AchievementRarity = "rare"
	// RarityEpic - эпическое достижение.
	RarityEpic AchievementRarity = "epic"
	// RarityLegendary - легендарное достижение.
	RarityLegendary AchievementRarity = "legendary"
)

// AchievementCategory представляет категорию достижения.
type AchievementCategory string

const (
	// AchievementCategoryProgress - вехи по количеству расследований.
	AchievementCategoryProgress AchievementCategory = "progress"
	// AchievementCategoryMastery - вехи мастерства (точность, идеальные игры).
	AchievementCategoryMastery AchievementCategory = "mastery"
	// AchievementCategorySpeed - вехи скорости.
	AchievementCategorySpeed AchievementCategory = "speed"
	// AchievementCategoryStreak - вехи серий.
	AchievementCategoryStreak AchievementCategory = "streak"
	// AchievementCategoryRank - достижения за смену звания.
	AchievementCategoryRank AchievementCategory = "rank"
	// AchievementCategorySpecial - особые достижения.
	AchievementCategorySpecial AchievementCategory = "special"
)

// AchievementProgress представляет прогресс достижения на момент разблокировки.
type AchievementProgress struct {
	Current int `json:"current"`
	Target  int `json:"target"`
}

// Achievement представляет разблокированное достижение.
// Инвариант: ID встречается в списке достижений игрока не более одного раза.
type Achievement struct {
	// ID - уникальный идентификатор достижения.
	ID string `json:"id"`

	// Name - название достижения.
	Name string `json:"name"`

	// Description - описание достижения.
	Description string `json:"description"`

	// Category - категория достижения.
	Category AchievementCategory `json:"category"`

	// Rarity - редкость достижения.
	Rarity AchievementRarity `json:"rarity"`

	// UnlockedAt - когда разблокировано.
	UnlockedAt time.Time `json:"unlocked_at"`

	// Progress - прогресс на момент разблокировки.
	Progress AchievementProgress `json:"progress"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GAME HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// GameRecord представляет одну запись в истории игр.
// История append-only; ограничение размера - забота вызывающей стороны.
type GameRecord struct {
	// ID - уникальный идентификатор записи.
	ID string `json:"id"`

	// PlayedAt - когда сыграна игра.
	PlayedAt time.Time `json:"played_at"`

	// TotalScore - очки за игру.
	TotalScore int `json:"total_score"`

	// CorrectAnswers - верных ответов.
	CorrectAnswers int `json:"correct_answers"`

	// TotalQuestions - вопросов в игре.
	TotalQuestions int `json:"total_questions"`

	// TimeSpentMs - затраченное время.
	TimeSpentMs int64 `json:"time_spent_ms"`

	// Difficulty - сложность игры.
	Difficulty Difficulty `json:"difficulty,omitempty"`

	// Category - категория вопросов.
	Category string `json:"category,omitempty"`

	// ExperienceGained - заработанный опыт (после бонусов).
	ExperienceGained int `json:"experience_gained"`

	// BonusReasons - причины бонусов к опыту.
	BonusReasons []string `json:"bonus_reasons,omitempty"`

	// ReputationDelta - изменение композитной репутации.
	ReputationDelta int `json:"reputation_delta"`

	// RankAfter - звание после игры.
	RankAfter string `json:"rank_after"`

	// NewAchievements - ID достижений, разблокированных этой игрой.
	NewAchievements []string `json:"new_achievements,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PLAYER
// ══════════════════════════════════════════════════════════════════════════════

// Player - агрегат игрока. Единственная персистентная запись, хранящая
// статистику, репутацию, звание, достижения и историю игр.
// Мутируется только через ProgressionService.
type Player struct {
	// ID - непрозрачный идентификатор игрока.
	ID string

	// DisplayName - отображаемое имя.
	DisplayName string

	// Stats - накопительная статистика.
	Stats Stats

	// Reputation - репутация детектива.
	Reputation Reputation

	// Rank - звание, производное от TotalScore.
	Rank RankTier

	// NextRankProgress - прогресс до следующего звания, 0-100.
	NextRankProgress float64

	// Achievements - разблокированные достижения (append-only).
	Achievements []Achievement

	// GameHistory - история игр (append-only).
	GameHistory []GameRecord

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewPlayer создаёт нового игрока с валидацией полей.
func NewPlayer(id, displayName string, now time.Time) (*Player, error) {
	if id == "" {
		return nil, ErrInvalidPlayerID
	}

	displayName = strings.TrimSpace(displayName)
	if len(displayName) == 0 || len(displayName) > 100 {
		return nil, ErrInvalidDisplayName
	}

	return &Player{
		ID:          id,
		DisplayName: displayName,
		Stats:       NewStats(),
		Reputation:  NewReputation(),
		Rank:        RankTrainee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// HasAchievement проверяет, разблокировано ли достижение с данным ID.
func (p *Player) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// AddAchievement добавляет достижение, если его ещё нет.
// Возвращает false, если достижение уже разблокировано.
func (p *Player) AddAchievement(a Achievement) bool {
	if p.HasAchievement(a.ID) {
		return false
	}
	p.Achievements = append(p.Achievements, a)
	return true
}

// UnlockedIDs возвращает множество ID разблокированных достижений.
func (p *Player) UnlockedIDs() map[string]bool {
	ids := make(map[string]bool, len(p.Achievements))
	for _, a := range p.Achievements {
		ids[a.ID] = true
	}
	return ids
}

// String возвращает строковое представление игрока для логирования.
func (p *Player) String() string {
	return fmt.Sprintf(
		"Player{ID: %s, XP: %d, Level: %d, Score: %d, Rank: %s}",
		p.ID, p.Stats.Experience, p.Stats.Level, p.Stats.TotalScore, p.Rank,
	)
}

// Clone создаёт глубокую копию игрока.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}

	clone := *p

	clone.Stats.GamesByDifficulty = make(map[Difficulty]int, len(p.Stats.GamesByDifficulty))
	for k, v := range p.Stats.GamesByDifficulty {
		clone.Stats.GamesByDifficulty[k] = v
	}

	clone.Stats.CategoryMastery = make(map[string]CategoryMastery, len(p.Stats.CategoryMastery))
	for k, v := range p.Stats.CategoryMastery {
		clone.Stats.CategoryMastery[k] = v
	}

	clone.Achievements = make([]Achievement, len(p.Achievements))
	copy(clone.Achievements, p.Achievements)

	clone.GameHistory = make([]GameRecord, len(p.GameHistory))
	copy(clone.GameHistory, p.GameHistory)

	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidPlayerID - пустой идентификатор игрока.
	ErrInvalidPlayerID = errors.New("invalid player id: cannot be empty")

	// ErrInvalidDisplayName - невалидное отображаемое имя.
	ErrInvalidDisplayName = errors.New("invalid display name: must be 1-100 chars")

	// ErrPlayerNotFound - игрок не найден.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrNegativeScore - отрицательные очки в результате игры.
	ErrNegativeScore = errors.New("invalid game result: total score must be non-negative")

	// ErrNoQuestions - в результате игры нет вопросов.
	ErrNoQuestions = errors.New("invalid game result: total questions must be positive")

	// ErrInvalidAnswerCount - количество верных ответов вне диапазона.
	ErrInvalidAnswerCount = errors.New("invalid game result: correct answers out of range")

	// ErrNegativeTime - отрицательное время игры.
	ErrNegativeTime = errors.New("invalid game result: time must be non-negative")

	// ErrInvalidDifficulty - неизвестная сложность.
	ErrInvalidDifficulty = errors.New("invalid game result: unknown difficulty")
)
