package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detective-hub/detective-quiz-hub/pkg/timeutil"
)

func TestGameResult_Validate(t *testing.T) {
	valid := GameResult{TotalScore: 100, CorrectAnswers: 3, TotalQuestions: 5}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		result GameResult
		err    error
	}{
		{
			"отрицательные очки",
			GameResult{TotalScore: -1, CorrectAnswers: 3, TotalQuestions: 5},
			ErrNegativeScore,
		},
		{
			"ноль вопросов",
			GameResult{TotalScore: 100, CorrectAnswers: 0, TotalQuestions: 0},
			ErrNoQuestions,
		},
		{
			"ответов больше чем вопросов",
			GameResult{TotalScore: 100, CorrectAnswers: 6, TotalQuestions: 5},
			ErrInvalidAnswerCount,
		},
		{
			"отрицательные ответы",
			GameResult{TotalScore: 100, CorrectAnswers: -1, TotalQuestions: 5},
			ErrInvalidAnswerCount,
		},
		{
			"отрицательное время",
			GameResult{TotalScore: 100, CorrectAnswers: 3, TotalQuestions: 5, TimeSpentMs: -1},
			ErrNegativeTime,
		},
		{
			"неизвестная сложность",
			GameResult{TotalScore: 100, CorrectAnswers: 3, TotalQuestions: 5, Difficulty: "impossible"},
			ErrInvalidDifficulty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.result.Validate(), tt.err)
		})
	}

	// Пустая сложность допустима: не каждая игра её сообщает.
	noDifficulty := GameResult{TotalScore: 100, CorrectAnswers: 3, TotalQuestions: 5}
	assert.NoError(t, noDifficulty.Validate())
}

func TestGameResult_IsPerfect(t *testing.T) {
	assert.True(t, GameResult{CorrectAnswers: 5, TotalQuestions: 5}.IsPerfect())
	assert.False(t, GameResult{CorrectAnswers: 4, TotalQuestions: 5}.IsPerfect())
	assert.False(t, GameResult{CorrectAnswers: 0, TotalQuestions: 0}.IsPerfect())
}

func TestGameResult_AverageTimePerQuestion(t *testing.T) {
	// Явно переданное среднее имеет приоритет.
	explicit := GameResult{TotalQuestions: 5, TimeSpentMs: 100_000, AverageTimeMs: 7_000}
	assert.Equal(t, int64(7_000), explicit.AverageTimePerQuestionMs())

	derived := GameResult{TotalQuestions: 5, TimeSpentMs: 100_000}
	assert.Equal(t, int64(20_000), derived.AverageTimePerQuestionMs())

	missing := GameResult{TotalQuestions: 5}
	assert.Equal(t, int64(0), missing.AverageTimePerQuestionMs())
}

func TestNewPlayer(t *testing.T) {
	now := timeutil.DateTime(2025, 6, 11, 12, 0, 0)

	p, err := NewPlayer("p1", "  Пуаро  ", now)
	require.NoError(t, err)
	assert.Equal(t, "Пуаро", p.DisplayName)
	assert.Equal(t, 1, p.Stats.Level)
	assert.Equal(t, RankTrainee, p.Rank)
	assert.Equal(t, ReputationCriticized, p.Reputation.Category)
	assert.NotNil(t, p.Stats.GamesByDifficulty)
	assert.NotNil(t, p.Stats.CategoryMastery)

	_, err = NewPlayer("", "Пуаро", now)
	assert.ErrorIs(t, err, ErrInvalidPlayerID)

	_, err = NewPlayer("p1", "   ", now)
	assert.ErrorIs(t, err, ErrInvalidDisplayName)
}

func TestPlayer_AddAchievement(t *testing.T) {
	p, err := NewPlayer("p1", "Пуаро", timeutil.Now())
	require.NoError(t, err)

	assert.True(t, p.AddAchievement(Achievement{ID: "cases_1"}))
	assert.False(t, p.AddAchievement(Achievement{ID: "cases_1"}))
	assert.Len(t, p.Achievements, 1)
	assert.True(t, p.HasAchievement("cases_1"))
	assert.False(t, p.HasAchievement("cases_5"))
}

func TestPlayer_Clone(t *testing.T) {
	now := timeutil.DateTime(2025, 6, 11, 12, 0, 0)
	p, err := NewPlayer("p1", "Пуаро", now)
	require.NoError(t, err)

	p.Stats.GamesByDifficulty[DifficultyHard] = 3
	p.Stats.CategoryMastery["логика"] = CategoryMastery{Level: 2, Experience: 300}
	p.AddAchievement(Achievement{ID: "cases_1"})
	p.GameHistory = append(p.GameHistory, GameRecord{ID: "g1"})

	clone := p.Clone()

	// Мутации клона не просачиваются в оригинал.
	clone.Stats.GamesByDifficulty[DifficultyHard] = 99
	clone.Stats.CategoryMastery["логика"] = CategoryMastery{Level: 9}
	clone.Achievements[0].ID = "mutated"
	clone.GameHistory[0].ID = "mutated"

	assert.Equal(t, 3, p.Stats.GamesByDifficulty[DifficultyHard])
	assert.Equal(t, 2, p.Stats.CategoryMastery["логика"].Level)
	assert.Equal(t, "cases_1", p.Achievements[0].ID)
	assert.Equal(t, "g1", p.GameHistory[0].ID)

	var nilPlayer *Player
	assert.Nil(t, nilPlayer.Clone())
}

func TestStats_HasPlayedAllDifficulties(t *testing.T) {
	stats := NewStats()
	assert.False(t, stats.HasPlayedAllDifficulties())

	for _, d := range AllDifficulties() {
		stats.GamesByDifficulty[d] = 1
	}
	assert.True(t, stats.HasPlayedAllDifficulties())
}

func TestDifficulty(t *testing.T) {
	assert.True(t, DifficultyEasy.IsValid())
	assert.True(t, DifficultyExpert.IsValid())
	assert.False(t, Difficulty("nightmare").IsValid())
	assert.False(t, Difficulty("").IsValid())

	assert.InDelta(t, 10, DifficultyEasy.ReputationWeight(), 1e-9)
	assert.InDelta(t, 100, DifficultyExpert.ReputationWeight(), 1e-9)
	assert.InDelta(t, 0, Difficulty("bogus").ReputationWeight(), 1e-9)
}
