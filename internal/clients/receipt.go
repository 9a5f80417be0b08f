package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

// ReceiptVerifier validates purchase receipts with the platform-specific IAP
// validation service. Verification has no side effect downstream.
type ReceiptVerifier interface {
	Verify(ctx context.Context, req VerifyReceiptRequest) (*VerifyReceiptResult, error)
}

type VerifyReceiptRequest struct {
	ReceiptData   string `json:"receiptData"`
	ProductID     string `json:"productId"`
	Platform      string `json:"platform"`
	TransactionID string `json:"transactionId"`
}

type VerifyReceiptResult struct {
	IsValid        bool           `json:"isValid"`
	ValidationData map[string]any `json:"validationData,omitempty"`
	FailureReason  string         `json:"failureReason,omitempty"`
}

type receiptVerifier struct {
	rest *restClient
}

func NewReceiptVerifier(log *logger.Logger, cfg Config) (ReceiptVerifier, error) {
	rc, err := newRESTClient(log, "ReceiptValidation", cfg.ReceiptValidationURL, cfg.AuthToken, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &receiptVerifier{rest: rc}, nil
}

func (c *receiptVerifier) Verify(ctx context.Context, req VerifyReceiptRequest) (*VerifyReceiptResult, error) {
	if strings.TrimSpace(req.ReceiptData) == "" {
		return nil, fmt.Errorf("receipt verify: missing receiptData")
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, fmt.Errorf("receipt verify: missing transactionId")
	}
	var out VerifyReceiptResult
	if err := c.rest.postJSON(ctx, "/v1/receipts/verify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
