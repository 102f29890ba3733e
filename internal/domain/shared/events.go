package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant
// that happened in the progression domain.
const (
	// Progression events
	EventGameRecorded EventType = "progression.game_recorded"
	EventLevelUp      EventType = "progression.level_up"

	// Rank events - consumed by the achievement/notification layer
	EventRankChanged EventType = "rank.changed"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"

	// Leaderboard events
	EventLeaderboardRefreshed EventType = "leaderboard.refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, occurredAt time.Time) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   occurredAt,
		AggregateId: aggregateID,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONCRETE EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// GameRecordedEvent is published after a game result has been applied
// and the player aggregate persisted.
type GameRecordedEvent struct {
	BaseEvent
	GameRecordID     string `json:"game_record_id"`
	ExperienceGained int    `json:"experience_gained"`
	TotalScore       int    `json:"total_score"`
}

// LevelUpEvent is published when the player's level increases.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// RankChangedEvent is published when the player's rank tier changes.
type RankChangedEvent struct {
	BaseEvent
	OldRank string `json:"old_rank"`
	NewRank string `json:"new_rank"`
}

// AchievementUnlockedEvent is published for each newly unlocked achievement.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	Rarity        string `json:"rarity"`
}

// LeaderboardRefreshedEvent is published after a snapshot rebuild completes.
type LeaderboardRefreshedEvent struct {
	BaseEvent
	Period  string `json:"period"`
	Entries int    `json:"entries"`
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLISHER / HANDLER CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// EventHandler processes a single domain event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	// Publish delivers the event to all subscribers of its type.
	Publish(ctx context.Context, event Event) error
}

// EventBus extends EventPublisher with subscription management.
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for the given event type.
	Subscribe(eventType EventType, handler EventHandler)
}

// NoopPublisher discards all events. Useful for tests and for running
// the progression engine without a notification layer.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}
