package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT STORE INTERFACE
// Контракт хранилища снапшотов лидерборда. Реализация - в
// infrastructure/persistence/redis.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotStore хранит пересобираемые снапшоты лидерборда по периодам.
type SnapshotStore interface {
	// ReplacePeriod атомарно заменяет снапшот периода: удаление старых
	// записей и вставка новых в одной операции, без инкрементальных патчей.
	ReplacePeriod(ctx context.Context, period Period, entries []Entry, updatedAt time.Time) error

	// GetTop возвращает топ-N записей периода и время пересборки снапшота.
	// Возвращает ErrSnapshotEmpty, если снапшот отсутствует или пуст.
	GetTop(ctx context.Context, period Period, limit int) ([]Entry, time.Time, error)

	// GetEntry возвращает запись игрока в снапшоте периода.
	// Возвращает ErrPlayerNotRanked, если игрока нет в снапшоте.
	GetEntry(ctx context.Context, period Period, playerID string) (*Entry, error)

	// CountHigher возвращает количество записей периода с очками
	// строго выше заданных. Позволяет вычислить позицию игрока
	// без сканирования всего снапшота.
	CountHigher(ctx context.Context, period Period, score int) (int, error)

	// PurgeStale удаляет снапшоты, пересобранные раньше указанного времени.
	PurgeStale(ctx context.Context, before time.Time) error
}
