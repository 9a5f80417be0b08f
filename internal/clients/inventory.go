package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
)

// InventoryService fronts the player inventory service. All mutating calls carry
// the purchase transaction id; the service deduplicates on it, so re-invoking a
// grant or revert with the same id is a no-op downstream.
type InventoryService interface {
	GrantEntitlement(ctx context.Context, req GrantEntitlementRequest) (*GrantEntitlementResult, error)
	RevertEntitlement(ctx context.Context, req RevertEntitlementRequest) (*RevertEntitlementResult, error)
	ConfirmInventory(ctx context.Context, req ConfirmInventoryRequest) (*ConfirmInventoryResult, error)
}

type ItemGrant struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type GrantEntitlementRequest struct {
	PlayerID      string      `json:"playerId"`
	TransactionID string      `json:"transactionId"`
	Items         []ItemGrant `json:"items,omitempty"`
	CurrencyDelta int64       `json:"currencyDelta"`
}

type GrantEntitlementResult struct {
	Success             bool     `json:"success"`
	ItemsGranted        []string `json:"itemsGranted,omitempty"`
	CurrencyGranted     int64    `json:"currencyGranted"`
	ErrorMessage        string   `json:"errorMessage,omitempty"`
	IsNonRetryableError bool     `json:"isNonRetryableError,omitempty"`
}

type RevertEntitlementRequest struct {
	PlayerID      string `json:"playerId"`
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason,omitempty"`
}

type RevertEntitlementResult struct {
	Success         bool `json:"success"`
	AlreadyReverted bool `json:"alreadyReverted,omitempty"`
}

type ConfirmInventoryRequest struct {
	PlayerID      string `json:"playerId"`
	TransactionID string `json:"transactionId"`
}

type ConfirmInventoryResult struct {
	Confirmed       bool  `json:"confirmed"`
	CurrencyBalance int64 `json:"currencyBalance,omitempty"`
}

type inventoryService struct {
	rest *restClient
}

func NewInventoryService(log *logger.Logger, cfg Config) (InventoryService, error) {
	rc, err := newRESTClient(log, "PlayerInventory", cfg.InventoryURL, cfg.AuthToken, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return &inventoryService{rest: rc}, nil
}

func (c *inventoryService) GrantEntitlement(ctx context.Context, req GrantEntitlementRequest) (*GrantEntitlementResult, error) {
	if err := requireIdempotencyKey("inventory grant", req.PlayerID, req.TransactionID); err != nil {
		return nil, err
	}
	var out GrantEntitlementResult
	if err := c.rest.postJSON(ctx, "/v1/inventory/grants", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *inventoryService) RevertEntitlement(ctx context.Context, req RevertEntitlementRequest) (*RevertEntitlementResult, error) {
	if err := requireIdempotencyKey("inventory revert", req.PlayerID, req.TransactionID); err != nil {
		return nil, err
	}
	var out RevertEntitlementResult
	if err := c.rest.postJSON(ctx, "/v1/inventory/grants/revert", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *inventoryService) ConfirmInventory(ctx context.Context, req ConfirmInventoryRequest) (*ConfirmInventoryResult, error) {
	if err := requireIdempotencyKey("inventory confirm", req.PlayerID, req.TransactionID); err != nil {
		return nil, err
	}
	var out ConfirmInventoryResult
	if err := c.rest.postJSON(ctx, "/v1/inventory/confirm", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func requireIdempotencyKey(op, playerID, transactionID string) error {
	if strings.TrimSpace(playerID) == "" {
		return fmt.Errorf("%s: missing playerId", op)
	}
	if strings.TrimSpace(transactionID) == "" {
		return fmt.Errorf("%s: missing transactionId", op)
	}
	return nil
}
