// Package leaderboard содержит доменную модель лидерборда "Детектив Квиз".
// Лидерборд - производные, одноразовые данные: любой снапшот можно
// полностью пересобрать из агрегатов игроков.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/detective-hub/detective-quiz-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIOD
// ══════════════════════════════════════════════════════════════════════════════

// Period представляет временное окно лидерборда.
type Period string

const (
	// PeriodDay - рейтинг за сегодня.
	PeriodDay Period = "day"
	// PeriodWeek - рейтинг за текущую неделю.
	PeriodWeek Period = "week"
	// PeriodMonth - рейтинг за текущий месяц.
	PeriodMonth Period = "month"
	// PeriodAll - рейтинг за всё время.
	PeriodAll Period = "all"
)

// AllPeriods возвращает все поддерживаемые периоды.
func AllPeriods() []Period {
	return []Period{PeriodDay, PeriodWeek, PeriodMonth, PeriodAll}
}

// IsValid проверяет, что период поддерживается.
func (p Period) IsValid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodAll:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление периода.
func (p Period) String() string {
	return string(p)
}

// WindowStart возвращает начало окна активности для периода.
// Для PeriodAll возвращает нулевое время (без фильтрации).
func (p Period) WindowStart(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return timeutil.StartOfDay(now)
	case PeriodWeek:
		return timeutil.StartOfWeek(now)
	case PeriodMonth:
		return timeutil.StartOfMonth(now)
	default:
		return time.Time{}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну запись лидерборда за период.
// Записи создаются пачкой при пересборке и целиком заменяются,
// никогда не патчатся по одной.
type Entry struct {
	// PlayerID - идентификатор игрока.
	PlayerID string `json:"player_id"`

	// DisplayName - отображаемое имя игрока.
	DisplayName string `json:"display_name"`

	// Score - суммарные очки игрока.
	Score int `json:"score"`

	// Rank - позиция в периоде, начиная с 1.
	// Инвариант: Rank = 1 + количество записей с БОЛЬШИМ Score.
	Rank int `json:"rank"`

	// RankTier - звание игрока.
	RankTier string `json:"rank_tier"`

	// Level - уровень игрока.
	Level int `json:"level"`

	// Period - период, к которому относится запись.
	Period Period `json:"period"`

	// UpdatedAt - время пересборки снапшота (метка свежести).
	UpdatedAt time.Time `json:"updated_at"`
}

// String возвращает строковое представление для логирования.
func (e Entry) String() string {
	return fmt.Sprintf("Entry{Rank: %d, Player: %s, Score: %d, Period: %s}",
		e.Rank, e.PlayerID, e.Score, e.Period)
}

// RankEntries сортирует записи по убыванию очков и присваивает позиции.
// При равных очках вторичный порядок - по имени (детерминированная
// сортировка); одинаковые очки дают одинаковую позицию.
func RankEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})

	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT & STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Result представляет ответ на запрос лидерборда.
type Result struct {
	// Entries - топ-N записей периода.
	Entries []Entry `json:"entries"`

	// Requester - позиция запросившего игрока (nil, если игрок не найден).
	Requester *Entry `json:"requester,omitempty"`

	// Cached - true, если ответ собран из снапшота.
	Cached bool `json:"cached"`

	// Fallback - true, если ответ собран живой агрегацией
	// (снапшот отсутствовал или был пуст).
	Fallback bool `json:"fallback"`

	// UpdatedAt - время последней пересборки снапшота.
	UpdatedAt time.Time `json:"updated_at"`
}

// Status представляет состояние фонового обновления лидерборда.
type Status struct {
	// IsRunning - запущен ли фоновый цикл.
	IsRunning bool `json:"is_running"`

	// IsUpdating - идёт ли пересборка прямо сейчас.
	IsUpdating bool `json:"is_updating"`

	// LastUpdateTime - время последней успешной пересборки.
	LastUpdateTime time.Time `json:"last_update_time"`

	// RefreshIntervalMs - интервал пересборки в миллисекундах.
	RefreshIntervalMs int64 `json:"refresh_interval_ms"`

	// NextUpdateInMs - миллисекунд до следующей пересборки.
	NextUpdateInMs int64 `json:"next_update_in_ms"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidPeriod - неподдерживаемый период.
	ErrInvalidPeriod = errors.New("leaderboard: invalid period")

	// ErrInvalidLimit - неположительный лимит выборки.
	ErrInvalidLimit = errors.New("leaderboard: limit must be positive")

	// ErrSnapshotEmpty - снапшот периода пуст или отсутствует.
	ErrSnapshotEmpty = errors.New("leaderboard: snapshot is empty")

	// ErrPlayerNotRanked - игрок отсутствует в снапшоте периода.
	ErrPlayerNotRanked = errors.New("leaderboard: player not ranked in period")
)
