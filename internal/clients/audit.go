package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

// AuditService writes the durable audit trail. Writes are keyed by
// (eventType, transactionId) downstream so engine retries cannot double-record.
type AuditService interface {
	LogEvent(ctx context.Context, event AuditEvent) error
}

type AuditEvent struct {
	EventType     string         `json:"eventType"`
	UserID        string         `json:"userId"`
	TransactionID string         `json:"transactionId"`
	Outcome       string         `json:"outcome"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

type auditService struct {
	rest *restClient
}

func NewAuditService(log *logger.Logger, cfg Config) (AuditService, error) {
	rc, err := newRESTClient(log, "AuditLogging", cfg.AuditURL, cfg.AuthToken, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &auditService{rest: rc}, nil
}

func (c *auditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if strings.TrimSpace(event.EventType) == "" {
		return fmt.Errorf("audit: missing eventType")
	}
	if strings.TrimSpace(event.Outcome) == "" {
		return fmt.Errorf("audit: missing outcome")
	}
	return c.rest.postJSON(ctx, "/v1/audit/events", event, nil)
}
