package player

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Контракт хранилища агрегатов игроков. Реализации - в
// infrastructure/persistence. Достаточно любого документного или
// реляционного хранилища с точечным доступом по ключу и запросом
// "все игроки с активностью после X, по убыванию очков".
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над агрегатами игроков.
type Repository interface {
	// Create создаёт нового игрока.
	Create(ctx context.Context, p *Player) error

	// GetByID возвращает игрока по ID.
	// Возвращает ErrPlayerNotFound, если игрок не найден.
	GetByID(ctx context.Context, id string) (*Player, error)

	// Save атомарно сохраняет весь агрегат одной записью.
	// Частичное сохранение полей недопустимо: либо весь агрегат, либо ошибка.
	Save(ctx context.Context, p *Player) error

	// ListActiveSince возвращает игроков с активностью после указанного
	// времени, отсортированных по убыванию TotalScore.
	// Нулевое время означает "все игроки" (период all-time).
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*Player, error)

	// CountActiveWithScoreAbove возвращает количество игроков с активностью
	// после указанного времени и очками строго выше заданных.
	// Используется для вычисления позиции игрока вне топ-N.
	CountActiveWithScoreAbove(ctx context.Context, since time.Time, score int) (int, error)
}
