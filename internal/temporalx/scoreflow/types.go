package scoreflow

import (
	"time"

	"github.com/glyphworks/puzzle-backend/internal/domain"
)

const (
	WorkflowName = "score_submission"

	ActivityValidateScore         = "score_validate_integrity"
	ActivityCheatDetection        = "score_run_cheat_detection"
	ActivitySubmitLeaderboard     = "score_update_leaderboard"
	ActivityCompensateLeaderboard = "score_compensate_leaderboard"
	ActivityCloudSaveSync         = "score_cloud_save_sync"
)

// Input is the immutable score-submission payload. SubmissionID is minted at
// trigger time and is the idempotency key for the leaderboard write.
type Input struct {
	PlayerID            string           `json:"playerId"`
	SubmissionID        string           `json:"submissionId"`
	ScoreData           domain.ScoreData `json:"scoreData"`
	GameplaySessionData map[string]any   `json:"gameplaySessionData,omitempty"`
	PlayerContext       map[string]any   `json:"playerContext,omitempty"`
	ClientTimestamp     time.Time        `json:"clientTimestamp"`
}

type Result struct {
	Accepted        bool   `json:"accepted"`
	Outcome         string `json:"outcome"`
	Reason          string `json:"reason,omitempty"`
	SubmissionID    string `json:"submissionId,omitempty"`
	Rank            int64  `json:"rank,omitempty"`
	CloudSaveSynced bool   `json:"cloudSaveSynced"`
}

type ValidateScoreRequest struct {
	PlayerID        string           `json:"playerId"`
	ScoreData       domain.ScoreData `json:"scoreData"`
	ClientTimestamp time.Time        `json:"clientTimestamp"`
}

type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`
}
