package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glyphworks/puzzle-backend/internal/services"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/iapflow"
)

type PurchaseHandler struct {
	orchestrator services.OrchestratorService
}

func NewPurchaseHandler(orchestrator services.OrchestratorService) *PurchaseHandler {
	return &PurchaseHandler{orchestrator: orchestrator}
}

type processPurchaseRequest struct {
	PlayerID      string `json:"playerId" binding:"required"`
	ProductID     string `json:"productId" binding:"required"`
	TransactionID string `json:"transactionId" binding:"required"`
	Platform      string `json:"platform" binding:"required"`
	ReceiptData   string `json:"receiptData" binding:"required"`
	Quantity      int    `json:"quantity"`
	PriceInCents  int64  `json:"priceInCents"`
	Currency      string `json:"currency"`
}

// Process accepts a purchase and starts the durable workflow. The response is
// 202: validation, granting and auditing all happen inside the workflow.
func (ph *PurchaseHandler) Process(c *gin.Context) {
	var req processPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	run, err := ph.orchestrator.StartIAPProcessing(c.Request.Context(), iapflow.Input{
		PlayerID:      req.PlayerID,
		ProductID:     req.ProductID,
		TransactionID: req.TransactionID,
		Platform:      req.Platform,
		ReceiptData:   req.ReceiptData,
		Quantity:      req.Quantity,
		PriceInCents:  req.PriceInCents,
		Currency:      req.Currency,
	})
	if err != nil {
		RespondError(c, http.StatusBadGateway, "workflow_start_failed", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"workflowRun": run})
}
