package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	lb "github.com/detective-hub/detective-quiz-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD SNAPSHOT STORE
//
// Architecture (per period):
//   - List   "leaderboard:{period}:top"     stores ordered Entry JSON (rank order)
//   - ZSet   "leaderboard:{period}:scores"  stores playerID -> score
//   - Hash   "leaderboard:{period}:entries" stores playerID -> Entry JSON
//   - String "leaderboard:{period}:meta"    stores rebuild timestamp
//
// Snapshots are rebuilt wholesale: ReplacePeriod deletes and repopulates all
// four keys in one transaction. The zset gives O(log N) CountHigher, the hash
// gives O(1) per-player lookup, the list preserves the precomputed rank order.
// ══════════════════════════════════════════════════════════════════════════════

const (
	keySuffixTop     = ":top"
	keySuffixScores  = ":scores"
	keySuffixEntries = ":entries"
	keySuffixMeta    = ":meta"
)

// SnapshotStore implements leaderboard.SnapshotStore on Redis.
type SnapshotStore struct {
	cache *Cache

	// ttl bounds snapshot lifetime so abandoned periods self-expire
	// even if PurgeStale never runs.
	ttl time.Duration
}

// NewSnapshotStore creates a new snapshot store.
// The TTL should comfortably exceed the refresh interval, three intervals
// is a reasonable choice.
func NewSnapshotStore(cache *Cache, ttl time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SnapshotStore{cache: cache, ttl: ttl}
}

func periodKey(period lb.Period, suffix string) string {
	return PrefixLeaderboard + period.String() + suffix
}

// ReplacePeriod atomically replaces the snapshot of a period.
func (s *SnapshotStore) ReplacePeriod(ctx context.Context, period lb.Period, entries []lb.Entry, updatedAt time.Time) error {
	topKey := periodKey(period, keySuffixTop)
	scoresKey := periodKey(period, keySuffixScores)
	entriesKey := periodKey(period, keySuffixEntries)
	metaKey := periodKey(period, keySuffixMeta)

	pipe := s.cache.Client().TxPipeline()

	// Delete-then-rebuild inside one transaction, readers never observe
	// a half-replaced snapshot.
	pipe.Del(ctx, topKey, scoresKey, entriesKey, metaKey)

	if len(entries) > 0 {
		top := make([]interface{}, 0, len(entries))
		zMembers := make([]redis.Z, 0, len(entries))
		hashData := make(map[string]interface{}, len(entries))

		for _, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}

			top = append(top, data)
			zMembers = append(zMembers, redis.Z{
				Score:  float64(entry.Score),
				Member: entry.PlayerID,
			})
			hashData[entry.PlayerID] = data
		}

		pipe.RPush(ctx, topKey, top...)
		pipe.ZAdd(ctx, scoresKey, zMembers...)
		pipe.HSet(ctx, entriesKey, hashData)

		pipe.Expire(ctx, topKey, s.ttl)
		pipe.Expire(ctx, scoresKey, s.ttl)
		pipe.Expire(ctx, entriesKey, s.ttl)
	}

	pipe.Set(ctx, metaKey, updatedAt.UTC().Format(time.RFC3339Nano), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: replace %s snapshot: %w", period, err)
	}

	return nil
}

// GetTop returns the top-N entries of a period and the snapshot rebuild time.
func (s *SnapshotStore) GetTop(ctx context.Context, period lb.Period, limit int) ([]lb.Entry, time.Time, error) {
	raw, err := s.cache.Client().LRange(ctx, periodKey(period, keySuffixTop), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get %s top: %w", period, err)
	}

	if len(raw) == 0 {
		return nil, time.Time{}, lb.ErrSnapshotEmpty
	}

	entries := make([]lb.Entry, 0, len(raw))
	for _, item := range raw {
		var entry lb.Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, time.Time{}, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		entries = append(entries, entry)
	}

	updatedAt, err := s.updatedAt(ctx, period)
	if err != nil {
		return nil, time.Time{}, err
	}

	return entries, updatedAt, nil
}

// GetEntry returns a player's entry in the period snapshot.
func (s *SnapshotStore) GetEntry(ctx context.Context, period lb.Period, playerID string) (*lb.Entry, error) {
	data, err := s.cache.Client().HGet(ctx, periodKey(period, keySuffixEntries), playerID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, lb.ErrPlayerNotRanked
		}
		return nil, fmt.Errorf("redis: get %s entry: %w", period, err)
	}

	var entry lb.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	return &entry, nil
}

// CountHigher returns the number of entries with a score strictly above
// the given one. O(log N) on the sorted set.
func (s *SnapshotStore) CountHigher(ctx context.Context, period lb.Period, score int) (int, error) {
	count, err := s.cache.Client().ZCount(
		ctx,
		periodKey(period, keySuffixScores),
		"("+strconv.Itoa(score),
		"+inf",
	).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: count %s higher: %w", period, err)
	}

	return int(count), nil
}

// PurgeStale deletes snapshots rebuilt before the given time.
func (s *SnapshotStore) PurgeStale(ctx context.Context, before time.Time) error {
	for _, period := range lb.AllPeriods() {
		updatedAt, err := s.updatedAt(ctx, period)
		if err != nil || updatedAt.IsZero() {
			continue
		}

		if updatedAt.Before(before) {
			err := s.cache.Delete(ctx,
				periodKey(period, keySuffixTop),
				periodKey(period, keySuffixScores),
				periodKey(period, keySuffixEntries),
				periodKey(period, keySuffixMeta),
			)
			if err != nil {
				return fmt.Errorf("redis: purge %s snapshot: %w", period, err)
			}
		}
	}

	return nil
}

// updatedAt returns the rebuild time of a period, zero when unknown.
func (s *SnapshotStore) updatedAt(ctx context.Context, period lb.Period) (time.Time, error) {
	raw, err := s.cache.Client().Get(ctx, periodKey(period, keySuffixMeta)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("redis: get %s meta: %w", period, err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, nil
	}

	return updatedAt, nil
}
