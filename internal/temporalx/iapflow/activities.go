package iapflow

import (
	"context"
	"fmt"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/failures"
)

// Activities holds the downstream clients the purchase workflow calls into.
// Constructed once per worker process; never reach for globals here.
type Activities struct {
	Log       *logger.Logger
	Receipts  clients.ReceiptVerifier
	Inventory clients.InventoryService
	Analytics clients.AnalyticsService
}

func (a *Activities) VerifyReceipt(ctx context.Context, req clients.VerifyReceiptRequest) (clients.VerifyReceiptResult, error) {
	var out clients.VerifyReceiptResult
	if a == nil || a.Receipts == nil {
		return out, failures.NonRetryable(failures.TypeIAPValidationFailed, "receipt activity not configured")
	}
	res, err := a.Receipts.Verify(ctx, req)
	if err != nil {
		return out, failures.FromClientError(failures.TypeIAPValidationFailed, err)
	}
	return *res, nil
}

func (a *Activities) GrantEntitlement(ctx context.Context, req clients.GrantEntitlementRequest) (clients.GrantEntitlementResult, error) {
	var out clients.GrantEntitlementResult
	if a == nil || a.Inventory == nil {
		return out, failures.NonRetryable(failures.TypeEntitlementGrant, "inventory activity not configured")
	}
	res, err := a.Inventory.GrantEntitlement(ctx, req)
	if err != nil {
		return out, failures.FromClientError(failures.TypeEntitlementGrant, err)
	}
	if !res.Success {
		msg := res.ErrorMessage
		if msg == "" {
			msg = "entitlement grant not applied"
		}
		if res.IsNonRetryableError {
			return out, failures.NonRetryable(failures.TypeEntitlementGrant, msg)
		}
		return out, failures.Retryable(failures.TypeEntitlementGrant, msg)
	}
	return *res, nil
}

func (a *Activities) CompensateGrantEntitlement(ctx context.Context, req clients.RevertEntitlementRequest) error {
	if a == nil || a.Inventory == nil {
		return failures.NonRetryable(failures.TypeEntitlementRevert, "inventory activity not configured")
	}
	res, err := a.Inventory.RevertEntitlement(ctx, req)
	if err != nil {
		return failures.FromClientError(failures.TypeEntitlementRevert, err)
	}
	if !res.Success && !res.AlreadyReverted {
		return failures.Retryable(failures.TypeEntitlementRevert,
			fmt.Sprintf("entitlement revert not applied for transaction %s", req.TransactionID))
	}
	if a.Log != nil && res.AlreadyReverted {
		a.Log.Info("entitlement already reverted", "transaction_id", req.TransactionID)
	}
	return nil
}

func (a *Activities) ConfirmInventory(ctx context.Context, req clients.ConfirmInventoryRequest) (clients.ConfirmInventoryResult, error) {
	var out clients.ConfirmInventoryResult
	if a == nil || a.Inventory == nil {
		return out, failures.NonRetryable(failures.TypeInventoryConfirm, "inventory activity not configured")
	}
	res, err := a.Inventory.ConfirmInventory(ctx, req)
	if err != nil {
		return out, failures.FromClientError(failures.TypeInventoryConfirm, err)
	}
	if !res.Confirmed {
		return out, failures.Retryable(failures.TypeInventoryConfirm,
			fmt.Sprintf("inventory not confirmed for transaction %s", req.TransactionID))
	}
	return *res, nil
}

func (a *Activities) TrackEvent(ctx context.Context, req clients.TrackEventRequest) error {
	if a == nil || a.Analytics == nil {
		return failures.NonRetryable(failures.TypeAnalyticsTrack, "analytics activity not configured")
	}
	if err := a.Analytics.TrackEvent(ctx, req); err != nil {
		return failures.FromClientError(failures.TypeAnalyticsTrack, err)
	}
	return nil
}
