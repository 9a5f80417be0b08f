package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/glyphworks/puzzle-backend/internal/services"
)

type WorkflowHandler struct {
	orchestrator services.OrchestratorService
}

func NewWorkflowHandler(orchestrator services.OrchestratorService) *WorkflowHandler {
	return &WorkflowHandler{orchestrator: orchestrator}
}

func (wh *WorkflowHandler) Get(c *gin.Context) {
	run, err := wh.orchestrator.GetWorkflowRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "workflow_lookup_failed", err)
		return
	}
	if run == nil {
		RespondError(c, http.StatusNotFound, "workflow_not_found", fmt.Errorf("workflow run not found"))
		return
	}
	RespondOK(c, gin.H{"workflowRun": run})
}

func (wh *WorkflowHandler) ListByPlayer(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := wh.orchestrator.ListPlayerRuns(c.Request.Context(), c.Param("playerId"), limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "workflow_lookup_failed", err)
		return
	}
	RespondOK(c, gin.H{"workflowRuns": runs})
}
