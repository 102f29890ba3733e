package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainFieldHelpers(t *testing.T) {
	assert.Equal(t, Field{Key: "player_id", Value: "p1"}, PlayerID("p1"))
	assert.Equal(t, Field{Key: "xp_amount", Value: 150}, XPAmount(150))
	assert.Equal(t, Field{Key: "score", Value: 900}, ScoreAmount(900))
	assert.Equal(t, Field{Key: "rank_tier", Value: "ДЕТЕКТИВ"}, RankTier("ДЕТЕКТИВ"))
	assert.Equal(t, Field{Key: "period", Value: "week"}, Period("week"))
	assert.Equal(t, Field{Key: "component", Value: "progression"}, Component("progression"))
	assert.Equal(t, Field{Key: "latency", Value: "150ms"}, Latency(150*time.Millisecond))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel("info"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("unknown"))
}
