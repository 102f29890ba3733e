package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	lb "github.com/detective-hub/detective-quiz-hub/internal/domain/leaderboard"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/player"
	"github.com/detective-hub/detective-quiz-hub/internal/domain/shared"
	"github.com/detective-hub/detective-quiz-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot returns basic service information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"service":   "detective-quiz-hub",
		"status":    "running",
		"uptime":    s.Uptime().String(),
		"endpoints": []string{"/healthz", "/api/v1/leaderboard", "/api/v1/players/{id}"},
	})
}

// handleLive is the liveness probe: the process is up.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleHealth probes each registered dependency.
// Returns 503 when any dependency fails its probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.HealthChecks))
	healthy := true

	for name, check := range s.deps.HealthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	writeJSON(w, r, status, map[string]interface{}{
		"status": overall,
		"checks": checks,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYERS
// ══════════════════════════════════════════════════════════════════════════════

type registerPlayerRequest struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

// handleRegisterPlayer creates a new player.
func (s *Server) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req registerPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	p, err := s.deps.Progression.RegisterPlayer(r.Context(), req.PlayerID, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrAlreadyExists):
			writeJSONError(w, http.StatusConflict, "player_exists", "Player is already registered")
		case errors.Is(err, player.ErrInvalidPlayerID), errors.Is(err, player.ErrInvalidDisplayName), shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		default:
			s.logger.Error("register player failed", logger.Err(err))
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to register player")
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, playerProfile(p))
}

// handleGetPlayer returns a player profile.
func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.deps.Players.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, player.ErrPlayerNotFound) {
			writeJSONError(w, http.StatusNotFound, "player_not_found", "Player not found")
			return
		}
		s.logger.Error("get player failed", logger.String("player_id", id), logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to load player")
		return
	}

	writeJSON(w, r, http.StatusOK, playerProfile(p))
}

type gameResultRequest struct {
	TotalScore     int    `json:"total_score"`
	CorrectAnswers int    `json:"correct_answers"`
	TotalQuestions int    `json:"total_questions"`
	TimeSpentMs    int64  `json:"time_spent_ms"`
	AverageTimeMs  int64  `json:"average_time_ms"`
	Difficulty     string `json:"difficulty"`
	Category       string `json:"category"`
}

// handleReportGameResult applies one finished game to a player aggregate.
func (s *Server) handleReportGameResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req gameResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	result, err := s.deps.Progression.ReportGameResult(r.Context(), id, player.GameResult{
		TotalScore:     req.TotalScore,
		CorrectAnswers: req.CorrectAnswers,
		TotalQuestions: req.TotalQuestions,
		TimeSpentMs:    req.TimeSpentMs,
		AverageTimeMs:  req.AverageTimeMs,
		Difficulty:     player.Difficulty(req.Difficulty),
		Category:       req.Category,
	})
	if err != nil {
		switch {
		case errors.Is(err, player.ErrPlayerNotFound):
			writeJSONError(w, http.StatusNotFound, "player_not_found", "Player not found")
		case shared.IsValidation(err):
			writeJSONError(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.Is(err, shared.ErrPersistence):
			s.logger.Error("report game result failed", logger.String("player_id", id), logger.Err(err))
			writeJSONError(w, http.StatusServiceUnavailable, "persistence_failed", "Update could not be saved, no changes were applied")
		default:
			s.logger.Error("report game result failed", logger.String("player_id", id), logger.Err(err))
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to process game result")
		}
		return
	}

	achievements := make([]achievementView, 0, len(result.NewAchievements))
	for _, a := range result.NewAchievements {
		achievements = append(achievements, achievementView{
			ID:     a.ID,
			Name:   a.Name,
			Rarity: string(a.Rarity),
		})
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"player_id":          result.PlayerID,
		"experience_gained":  result.Experience.FinalExperience,
		"experience_bonus":   result.Experience.BonusExperience,
		"multiplier":         result.Experience.Multiplier,
		"bonus_reasons":      result.Experience.BonusReasons,
		"old_level":          result.OldLevel,
		"new_level":          result.NewLevel,
		"level_up":           result.NewLevel > result.OldLevel,
		"reputation_delta":   result.ReputationDelta,
		"rank_changed":       result.RankChanged,
		"rank":               result.Rank.String(),
		"next_rank_progress": result.NextRankProgress,
		"new_achievements":   achievements,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard returns the top-N of a period, with the requester's
// own position when player_id is passed.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period := lb.Period(getQueryParam(r, "period", string(lb.PeriodAll)))
	limit := getQueryParamInt(r, "limit", 0)
	requesterID := getQueryParam(r, "player_id", "")

	result, err := s.deps.Leaderboard.GetLeaderboard(r.Context(), period, limit, requesterID)
	if err != nil {
		switch {
		case errors.Is(err, lb.ErrInvalidPeriod):
			writeJSONError(w, http.StatusBadRequest, "invalid_period", "Period must be one of: day, week, month, all")
		case errors.Is(err, lb.ErrInvalidLimit):
			writeJSONError(w, http.StatusBadRequest, "invalid_limit", "Limit must be positive")
		default:
			s.logger.Error("get leaderboard failed", logger.Period(period.String()), logger.Err(err))
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to load leaderboard")
		}
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleLeaderboardStatus returns the refresh loop state.
func (s *Server) handleLeaderboardStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.deps.Leaderboard.GetStatus())
}

// handleForceRefresh triggers an immediate snapshot rebuild and reports
// how many period snapshots were rebuilt.
func (s *Server) handleForceRefresh(w http.ResponseWriter, r *http.Request) {
	refreshed, err := s.deps.Leaderboard.ForceRefresh(r.Context())
	if err != nil {
		if errors.Is(err, shared.ErrRefreshInProgress) {
			writeJSONError(w, http.StatusConflict, "refresh_in_progress", "A refresh is already running")
			return
		}
		s.logger.Error("force refresh failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "refresh_failed", "Leaderboard refresh failed")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"refreshed_periods": refreshed,
		"status":            s.deps.Leaderboard.GetStatus(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW MODELS
// ══════════════════════════════════════════════════════════════════════════════

type achievementView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rarity string `json:"rarity"`
}

type playerProfileView struct {
	PlayerID         string  `json:"player_id"`
	DisplayName      string  `json:"display_name"`
	Level            int     `json:"level"`
	Experience       int     `json:"experience"`
	TotalScore       int     `json:"total_score"`
	Rank             string  `json:"rank"`
	NextRankProgress float64 `json:"next_rank_progress"`
	Reputation       int     `json:"reputation"`
	ReputationTitle  string  `json:"reputation_title"`
	Investigations   int     `json:"investigations"`
	SolvedCases      int     `json:"solved_cases"`
	Accuracy         float64 `json:"accuracy"`
	WinStreak        int     `json:"win_streak"`
	DailyStreak      int     `json:"daily_streak"`
	Achievements     int     `json:"achievements"`
}

func playerProfile(p *player.Player) playerProfileView {
	return playerProfileView{
		PlayerID:         p.ID,
		DisplayName:      p.DisplayName,
		Level:            p.Stats.Level,
		Experience:       p.Stats.Experience,
		TotalScore:       p.Stats.TotalScore,
		Rank:             p.Rank.String(),
		NextRankProgress: p.NextRankProgress,
		Reputation:       p.Reputation.Level,
		ReputationTitle:  p.Reputation.Category.Title(),
		Investigations:   p.Stats.Investigations,
		SolvedCases:      p.Stats.SolvedCases,
		Accuracy:         p.Stats.Accuracy,
		WinStreak:        p.Stats.WinStreak,
		DailyStreak:      p.Stats.DailyStreakCurrent,
		Achievements:     len(p.Achievements),
	}
}
