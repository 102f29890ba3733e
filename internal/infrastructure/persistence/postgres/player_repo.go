package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/detective-hub/detective-quiz-hub/internal/domain/player"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER REPOSITORY
// One row per aggregate. Save replaces the whole row in a single statement:
// the aggregate is either written completely or not at all.
// ══════════════════════════════════════════════════════════════════════════════

// PlayerRepository implements player.Repository on PostgreSQL.
type PlayerRepository struct {
	conn         *Connection
	queryTimeout time.Duration
}

// NewPlayerRepository creates a new player repository.
func NewPlayerRepository(conn *Connection, queryTimeout time.Duration) *PlayerRepository {
	if queryTimeout <= 0 {
		queryTimeout = 30 * time.Second
	}
	return &PlayerRepository{
		conn:         conn,
		queryTimeout: queryTimeout,
	}
}

const playerColumns = `
	id, display_name,
	total_score, level, rank_tier, next_rank_progress, last_active_at,
	stats, reputation, achievements, game_history,
	created_at, updated_at`

// Create inserts a new player. Returns shared.ErrAlreadyExists when a
// player with the same ID is already stored.
func (r *PlayerRepository) Create(ctx context.Context, p *player.Player) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	row, err := marshalPlayer(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO players (` + playerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.conn.Exec(ctx, query, row.args()...)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("player %s: %w", p.ID, shared.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create player: %w", err)
	}

	return nil
}

// GetByID returns a player by ID.
// Returns player.ErrPlayerNotFound when no row exists.
func (r *PlayerRepository) GetByID(ctx context.Context, id string) (*player.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	p, err := scanPlayer(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, fmt.Errorf("player %s: %w", id, player.ErrPlayerNotFound)
		}
		return nil, fmt.Errorf("postgres: get player: %w", err)
	}

	return p, nil
}

// Save writes the full aggregate in one statement. Insert-or-update keeps
// the operation atomic: concurrent saves never leave a half-written row.
func (r *PlayerRepository) Save(ctx context.Context, p *player.Player) error {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	row, err := marshalPlayer(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO players (` + playerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			display_name       = EXCLUDED.display_name,
			total_score        = EXCLUDED.total_score,
			level              = EXCLUDED.level,
			rank_tier          = EXCLUDED.rank_tier,
			next_rank_progress = EXCLUDED.next_rank_progress,
			last_active_at     = EXCLUDED.last_active_at,
			stats              = EXCLUDED.stats,
			reputation         = EXCLUDED.reputation,
			achievements       = EXCLUDED.achievements,
			game_history       = EXCLUDED.game_history,
			updated_at         = EXCLUDED.updated_at`

	_, err = r.conn.Exec(ctx, query, row.args()...)
	if err != nil {
		return fmt.Errorf("postgres: save player: %w", err)
	}

	return nil
}

// ListActiveSince returns players active after the given time, ordered by
// total score descending. Zero time means all players.
func (r *PlayerRepository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]*player.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT ` + playerColumns + `
		FROM players
		WHERE $1::timestamptz IS NULL OR last_active_at >= $1
		ORDER BY total_score DESC, display_name ASC
		LIMIT $2`

	rows, err := r.conn.Query(ctx, query, nullableTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active players: %w", err)
	}
	defer rows.Close()

	var players []*player.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan player row: %w", err)
		}
		players = append(players, p)
	}

	return players, rows.Err()
}

// CountActiveWithScoreAbove returns the number of players active after the
// given time with a score strictly above the given one.
func (r *PlayerRepository) CountActiveWithScoreAbove(ctx context.Context, since time.Time, score int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT count(*)
		FROM players
		WHERE ($1::timestamptz IS NULL OR last_active_at >= $1)
		  AND total_score > $2`

	var count int
	if err := r.conn.QueryRow(ctx, query, nullableTime(since), score).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count active players: %w", err)
	}

	return count, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROW MAPPING
// ══════════════════════════════════════════════════════════════════════════════

type playerRow struct {
	id               string
	displayName      string
	totalScore       int
	level            int
	rankTier         int
	nextRankProgress float64
	lastActiveAt     *time.Time
	stats            []byte
	reputation       []byte
	achievements     []byte
	gameHistory      []byte
	createdAt        time.Time
	updatedAt        time.Time
}

func (r playerRow) args() []interface{} {
	return []interface{}{
		r.id, r.displayName,
		r.totalScore, r.level, r.rankTier, r.nextRankProgress, r.lastActiveAt,
		r.stats, r.reputation, r.achievements, r.gameHistory,
		r.createdAt, r.updatedAt,
	}
}

func marshalPlayer(p *player.Player) (playerRow, error) {
	stats, err := json.Marshal(p.Stats)
	if err != nil {
		return playerRow{}, fmt.Errorf("postgres: marshal stats: %w", err)
	}

	reputation, err := json.Marshal(p.Reputation)
	if err != nil {
		return playerRow{}, fmt.Errorf("postgres: marshal reputation: %w", err)
	}

	achievements, err := json.Marshal(p.Achievements)
	if err != nil {
		return playerRow{}, fmt.Errorf("postgres: marshal achievements: %w", err)
	}

	history, err := json.Marshal(p.GameHistory)
	if err != nil {
		return playerRow{}, fmt.Errorf("postgres: marshal game history: %w", err)
	}

	return playerRow{
		id:               p.ID,
		displayName:      p.DisplayName,
		totalScore:       p.Stats.TotalScore,
		level:            p.Stats.Level,
		rankTier:         int(p.Rank),
		nextRankProgress: p.NextRankProgress,
		lastActiveAt:     nullableTime(p.Stats.LastActiveDate),
		stats:            stats,
		reputation:       reputation,
		achievements:     achievements,
		gameHistory:      history,
		createdAt:        p.CreatedAt,
		updatedAt:        p.UpdatedAt,
	}, nil
}

func scanPlayer(row pgx.Row) (*player.Player, error) {
	var r playerRow
	err := row.Scan(
		&r.id, &r.displayName,
		&r.totalScore, &r.level, &r.rankTier, &r.nextRankProgress, &r.lastActiveAt,
		&r.stats, &r.reputation, &r.achievements, &r.gameHistory,
		&r.createdAt, &r.updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p := &player.Player{
		ID:               r.id,
		DisplayName:      r.displayName,
		Rank:             player.RankTier(r.rankTier),
		NextRankProgress: r.nextRankProgress,
		CreatedAt:        r.createdAt,
		UpdatedAt:        r.updatedAt,
	}

	if err := json.Unmarshal(r.stats, &p.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	if err := json.Unmarshal(r.reputation, &p.Reputation); err != nil {
		return nil, fmt.Errorf("unmarshal reputation: %w", err)
	}
	if err := json.Unmarshal(r.achievements, &p.Achievements); err != nil {
		return nil, fmt.Errorf("unmarshal achievements: %w", err)
	}
	if err := json.Unmarshal(r.gameHistory, &p.GameHistory); err != nil {
		return nil, fmt.Errorf("unmarshal game history: %w", err)
	}

	// JSONB "{}" leaves maps nil, the domain expects them allocated.
	if p.Stats.GamesByDifficulty == nil {
		p.Stats.GamesByDifficulty = make(map[player.Difficulty]int)
	}
	if p.Stats.CategoryMastery == nil {
		p.Stats.CategoryMastery = make(map[string]player.CategoryMastery)
	}

	return p, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
