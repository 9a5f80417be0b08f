package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	WorkflowTypeIAPProcessing   = "iap_processing"
	WorkflowTypeScoreSubmission = "score_submission"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusRejected  = "rejected"
	RunStatusCheated   = "cheated"
	RunStatusFailed    = "failed"
)

// WorkflowRun is the trigger-side bookkeeping row for one workflow execution.
// The durable source of truth is the workflow engine; this table exists so the
// API layer can answer status queries without replaying history.
type WorkflowRun struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkflowID    string         `gorm:"size:255;uniqueIndex" json:"workflow_id"`
	RunID         string         `gorm:"size:255" json:"run_id"`
	WorkflowType  string         `gorm:"size:64;index" json:"workflow_type"`
	PlayerID      string         `gorm:"size:128;index" json:"player_id"`
	TransactionID string         `gorm:"size:255;index" json:"transaction_id"`
	Status        string         `gorm:"size:32;index" json:"status"`
	Result        datatypes.JSON `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// ScoreData is the raw score payload submitted by the client.
type ScoreData struct {
	Score       int64  `json:"score"`
	LevelID     string `json:"levelId"`
	ZoneID      string `json:"zoneId,omitempty"`
	Moves       int    `json:"moves"`
	TimeTakenMs int64  `json:"timeTakenMs"`
}
