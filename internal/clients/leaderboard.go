package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

// LeaderboardService fronts the leaderboard service. SubmissionKey is the
// workflow's idempotency key; the service returns the same submission id for a
// repeated key instead of inserting a second entry.
type LeaderboardService interface {
	SubmitScore(ctx context.Context, req SubmitScoreRequest) (*SubmitScoreResult, error)
	InvalidateSubmission(ctx context.Context, req InvalidateSubmissionRequest) error
}

type SubmitScoreRequest struct {
	PlayerID      string    `json:"playerId"`
	Score         int64     `json:"score"`
	LevelID       string    `json:"levelId"`
	SubmissionKey string    `json:"submissionKey"`
	Timestamp     time.Time `json:"timestamp"`
}

type SubmitScoreResult struct {
	SubmissionID string `json:"submissionId"`
	Rank         int64  `json:"rank,omitempty"`
}

type InvalidateSubmissionRequest struct {
	SubmissionID string `json:"submissionId"`
	Reason       string `json:"reason"`
}

type leaderboardService struct {
	rest *restClient
}

func NewLeaderboardService(log *logger.Logger, cfg Config) (LeaderboardService, error) {
	rc, err := newRESTClient(log, "Leaderboard", cfg.LeaderboardURL, cfg.AuthToken, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &leaderboardService{rest: rc}, nil
}

func (c *leaderboardService) SubmitScore(ctx context.Context, req SubmitScoreRequest) (*SubmitScoreResult, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return nil, fmt.Errorf("leaderboard submit: missing playerId")
	}
	if strings.TrimSpace(req.SubmissionKey) == "" {
		return nil, fmt.Errorf("leaderboard submit: missing submissionKey")
	}
	var out SubmitScoreResult
	if err := c.rest.postJSON(ctx, "/v1/leaderboard/submissions", req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.SubmissionID) == "" {
		return nil, fmt.Errorf("leaderboard submit: empty submissionId in response")
	}
	return &out, nil
}

func (c *leaderboardService) InvalidateSubmission(ctx context.Context, req InvalidateSubmissionRequest) error {
	if strings.TrimSpace(req.SubmissionID) == "" {
		return fmt.Errorf("leaderboard invalidate: missing submissionId")
	}
	return c.rest.postJSON(ctx, "/v1/leaderboard/submissions/invalidate", req, nil)
}
