package postgres

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detective-hub/detective-quiz-hub/internal/domain/player"
)

// Значения по умолчанию горячих колонок должны совпадать с нулевым
// состоянием агрегата: строка, созданная мимо репозитория, читается
// как новый игрок, а не как игрок со званием повыше.
func TestPlayersMigrationDefaultsMatchNewAggregate(t *testing.T) {
	assert.Contains(t, migration001Up,
		fmt.Sprintf("rank_tier          INTEGER NOT NULL DEFAULT %d", player.RankTrainee))
	assert.Contains(t, migration001Up,
		fmt.Sprintf("level              INTEGER NOT NULL DEFAULT %d", player.ResolveLevel(0)))
}

func TestMigrationsAreSequential(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.UpSQL)
		assert.NotEmpty(t, m.DownSQL)
	}
}
