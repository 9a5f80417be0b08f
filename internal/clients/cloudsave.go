package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

// CloudSaveService triggers a best-effort save-state sync after an accepted
// score submission.
type CloudSaveService interface {
	Synchronize(ctx context.Context, req CloudSaveSyncRequest) (*CloudSaveSyncResult, error)
}

type CloudSaveSyncRequest struct {
	PlayerID  string         `json:"playerId"`
	SessionID string         `json:"sessionId,omitempty"`
	SaveData  map[string]any `json:"saveData,omitempty"`
}

type CloudSaveSyncResult struct {
	Synced  bool  `json:"synced"`
	Version int64 `json:"version,omitempty"`
}

type cloudSaveService struct {
	rest *restClient
}

func NewCloudSaveService(log *logger.Logger, cfg Config) (CloudSaveService, error) {
	rc, err := newRESTClient(log, "CloudSave", cfg.CloudSaveURL, cfg.AuthToken, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &cloudSaveService{rest: rc}, nil
}

func (c *cloudSaveService) Synchronize(ctx context.Context, req CloudSaveSyncRequest) (*CloudSaveSyncResult, error) {
	if strings.TrimSpace(req.PlayerID) == "" {
		return nil, fmt.Errorf("cloud save: missing playerId")
	}
	var out CloudSaveSyncResult
	if err := c.rest.postJSON(ctx, "/v1/cloud-saves/sync", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
