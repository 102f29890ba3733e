package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PLAYERS
// Одна строка на агрегат. Горячие поля (очки, уровень, активность) вынесены
// в настоящие колонки под индекс лидерборда, остальной документ хранится
// в JSONB и не требует миграций при изменении структуры.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS players (
	id                 TEXT PRIMARY KEY,
	display_name       TEXT NOT NULL,

	-- Горячие колонки для выборок лидерборда.
	total_score        BIGINT NOT NULL DEFAULT 0,
	level              INTEGER NOT NULL DEFAULT 1,
	rank_tier          INTEGER NOT NULL DEFAULT 0,
	next_rank_progress DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_active_at     TIMESTAMPTZ,

	-- Документная часть агрегата.
	stats              JSONB NOT NULL DEFAULT '{}'::jsonb,
	reputation         JSONB NOT NULL DEFAULT '{}'::jsonb,
	achievements       JSONB NOT NULL DEFAULT '[]'::jsonb,
	game_history       JSONB NOT NULL DEFAULT '[]'::jsonb,

	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Покрывает ListActiveSince: фильтр по активности, сортировка по очкам.
CREATE INDEX IF NOT EXISTS idx_players_active_score
	ON players (last_active_at, total_score DESC);

CREATE INDEX IF NOT EXISTS idx_players_total_score
	ON players (total_score DESC);
`

const migration001Down = `
DROP INDEX IF EXISTS idx_players_total_score;
DROP INDEX IF EXISTS idx_players_active_score;
DROP TABLE IF EXISTS players;
`
