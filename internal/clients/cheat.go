package clients

import (
	"context"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/domain"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

// CheatDetectionService classifies a score submission as legitimate or cheated.
// Read-only: no compensation exists for it.
type CheatDetectionService interface {
	Evaluate(ctx context.Context, req CheatDetectionRequest) (*CheatDetectionResult, error)
}

type CheatDetectionRequest struct {
	PlayerID      string           `json:"playerId"`
	ScoreData     domain.ScoreData `json:"scoreData"`
	PlayerContext map[string]any   `json:"playerContext,omitempty"`
}

type CheatDetectionResult struct {
	IsCheater       bool    `json:"isCheater"`
	Reason          string  `json:"reason,omitempty"`
	ConfidenceScore float64 `json:"confidenceScore,omitempty"`
}

type cheatDetectionService struct {
	rest *restClient
}

func NewCheatDetectionService(log *logger.Logger, cfg Config) (CheatDetectionService, error) {
	rc, err := newRESTClient(log, "CheatDetection", cfg.CheatDetectionURL, cfg.AuthToken, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &cheatDetectionService{rest: rc}, nil
}

func (c *cheatDetectionService) Evaluate(ctx context.Context, req CheatDetectionRequest) (*CheatDetectionResult, error) {
	var out CheatDetectionResult
	if err := c.rest.postJSON(ctx, "/v1/cheat-detection/evaluate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
