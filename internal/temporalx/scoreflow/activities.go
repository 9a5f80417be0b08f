package scoreflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/failures"
)

// Score ceiling per move; anything above is structurally impossible for the
// puzzle ruleset and rejected before cheat detection ever runs.
const maxScorePerMove = 10_000

// Client timestamps further in the future than this are rejected outright.
const maxClientClockSkew = 5 * time.Minute

type Activities struct {
	Log         *logger.Logger
	Cheat       clients.CheatDetectionService
	Leaderboard clients.LeaderboardService
	CloudSave   clients.CloudSaveService
}

// ValidateScoreIntegrity performs structural and business validation locally.
// It never mutates downstream state, so an invalid payload simply reports the
// reasons; the workflow decides rejection.
func (a *Activities) ValidateScoreIntegrity(ctx context.Context, req ValidateScoreRequest) (ValidationResult, error) {
	var reasons []string

	if strings.TrimSpace(req.PlayerID) == "" {
		reasons = append(reasons, "missing playerId")
	}
	if strings.TrimSpace(req.ScoreData.LevelID) == "" {
		reasons = append(reasons, "missing levelId")
	}
	if req.ScoreData.Score < 0 {
		reasons = append(reasons, "score must not be negative")
	}
	if req.ScoreData.Moves <= 0 {
		reasons = append(reasons, "moves must be positive")
	}
	if req.ScoreData.TimeTakenMs <= 0 {
		reasons = append(reasons, "timeTakenMs must be positive")
	}
	if req.ScoreData.Moves > 0 && req.ScoreData.Score > int64(req.ScoreData.Moves)*maxScorePerMove {
		reasons = append(reasons, fmt.Sprintf("score %d exceeds ceiling for %d moves", req.ScoreData.Score, req.ScoreData.Moves))
	}
	if !req.ClientTimestamp.IsZero() && time.Until(req.ClientTimestamp) > maxClientClockSkew {
		reasons = append(reasons, "clientTimestamp is in the future")
	}

	return ValidationResult{Valid: len(reasons) == 0, Reasons: reasons}, nil
}

func (a *Activities) RunCheatDetection(ctx context.Context, req clients.CheatDetectionRequest) (clients.CheatDetectionResult, error) {
	var out clients.CheatDetectionResult
	if a == nil || a.Cheat == nil {
		return out, failures.NonRetryable(failures.TypeCheatDetection, "cheat detection activity not configured")
	}
	res, err := a.Cheat.Evaluate(ctx, req)
	if err != nil {
		return out, failures.FromClientError(failures.TypeCheatDetection, err)
	}
	return *res, nil
}

func (a *Activities) SubmitLeaderboard(ctx context.Context, req clients.SubmitScoreRequest) (clients.SubmitScoreResult, error) {
	var out clients.SubmitScoreResult
	if a == nil || a.Leaderboard == nil {
		return out, failures.NonRetryable(failures.TypeLeaderboardSubmit, "leaderboard activity not configured")
	}
	res, err := a.Leaderboard.SubmitScore(ctx, req)
	if err != nil {
		return out, failures.FromClientError(failures.TypeLeaderboardSubmit, err)
	}
	return *res, nil
}

func (a *Activities) CompensateLeaderboard(ctx context.Context, req clients.InvalidateSubmissionRequest) error {
	if a == nil || a.Leaderboard == nil {
		return failures.NonRetryable(failures.TypeLeaderboardInvalidate, "leaderboard activity not configured")
	}
	err := a.Leaderboard.InvalidateSubmission(ctx, req)
	if err == nil {
		return nil
	}
	// A missing submission means the entry never landed or was already
	// invalidated; either way the compensation's goal is met.
	var he *clients.HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
		if a.Log != nil {
			a.Log.Info("leaderboard submission already gone", "submission_id", req.SubmissionID)
		}
		return nil
	}
	return failures.FromClientError(failures.TypeLeaderboardInvalidate, err)
}

func (a *Activities) SynchronizeCloudSave(ctx context.Context, req clients.CloudSaveSyncRequest) (clients.CloudSaveSyncResult, error) {
	var out clients.CloudSaveSyncResult
	if a == nil || a.CloudSave == nil {
		return out, failures.NonRetryable(failures.TypeCloudSaveSync, "cloud save activity not configured")
	}
	res, err := a.CloudSave.Synchronize(ctx, req)
	if err != nil {
		return out, failures.FromClientError(failures.TypeCloudSaveSync, err)
	}
	return *res, nil
}
