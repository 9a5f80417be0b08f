package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/glyphworks/puzzle-backend/internal/domain"
	"github.com/glyphworks/puzzle-backend/internal/services"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/scoreflow"
)

type ScoreHandler struct {
	orchestrator services.OrchestratorService
}

func NewScoreHandler(orchestrator services.OrchestratorService) *ScoreHandler {
	return &ScoreHandler{orchestrator: orchestrator}
}

type submitScoreRequest struct {
	PlayerID            string           `json:"playerId" binding:"required"`
	SubmissionID        string           `json:"submissionId"`
	ScoreData           domain.ScoreData `json:"scoreData" binding:"required"`
	GameplaySessionData map[string]any   `json:"gameplaySessionData"`
	PlayerContext       map[string]any   `json:"playerContext"`
	ClientTimestamp     time.Time        `json:"clientTimestamp"`
}

func (sh *ScoreHandler) Submit(c *gin.Context) {
	var req submitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	run, err := sh.orchestrator.StartScoreSubmission(c.Request.Context(), scoreflow.Input{
		PlayerID:            req.PlayerID,
		SubmissionID:        req.SubmissionID,
		ScoreData:           req.ScoreData,
		GameplaySessionData: req.GameplaySessionData,
		PlayerContext:       req.PlayerContext,
		ClientTimestamp:     req.ClientTimestamp,
	})
	if err != nil {
		RespondError(c, http.StatusBadGateway, "workflow_start_failed", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"workflowRun": run})
}
