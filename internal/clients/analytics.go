package clients

import (
	"context"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

// AnalyticsService emits fire-and-forget tracking events. Best-effort; losing
// one is acceptable and never compensated.
type AnalyticsService interface {
	TrackEvent(ctx context.Context, req TrackEventRequest) error
}

type TrackEventRequest struct {
	EventName     string         `json:"eventName"`
	PlayerID      string         `json:"playerId"`
	TransactionID string         `json:"transactionId,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

type analyticsService struct {
	rest *restClient
}

func NewAnalyticsService(log *logger.Logger, cfg Config) (AnalyticsService, error) {
	rc, err := newRESTClient(log, "Analytics", cfg.AnalyticsURL, cfg.AuthToken, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &analyticsService{rest: rc}, nil
}

func (c *analyticsService) TrackEvent(ctx context.Context, req TrackEventRequest) error {
	return c.rest.postJSON(ctx, "/v1/analytics/events", req, nil)
}
