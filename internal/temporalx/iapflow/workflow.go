package iapflow

import (
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/workflow"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/auditlog"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/failures"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/policies"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/saga"
)

// Workflow processes one in-app purchase: verify the receipt, grant the
// entitlement, confirm inventory, emit a tracking event. The grant is the only
// compensated step; a failure anywhere after it unwinds the saga before the
// original error is re-raised.
func Workflow(ctx workflow.Context, input Input) (*Result, error) {
	wlog := workflow.GetLogger(ctx)

	if err := input.validate(); err != nil {
		writeAudit(ctx, wlog, input, auditlog.OutcomeRejected, map[string]any{"reason": err.Error()})
		return nil, failures.NonRetryable(failures.TypeIAPValidationFailed, err.Error())
	}

	var receipt clients.VerifyReceiptResult
	err := workflow.ExecuteActivity(policies.WithValidation(ctx), ActivityVerifyReceipt, clients.VerifyReceiptRequest{
		ReceiptData:   input.ReceiptData,
		ProductID:     input.ProductID,
		Platform:      input.Platform,
		TransactionID: input.TransactionID,
	}).Get(ctx, &receipt)
	if err != nil {
		// No side effect yet, nothing to compensate.
		writeAudit(ctx, wlog, input, auditlog.OutcomeFailed, map[string]any{"step": "verify_receipt", "error": err.Error()})
		return nil, err
	}
	if !receipt.IsValid {
		wlog.Info("receipt rejected by validation service",
			"transaction_id", input.TransactionID, "reason", receipt.FailureReason)
		writeAudit(ctx, wlog, input, auditlog.OutcomeRejected, map[string]any{"reason": receipt.FailureReason})
		return nil, failures.NonRetryable(failures.TypeIAPValidationFailed, "receipt rejected: "+receipt.FailureReason)
	}

	sg := saga.New()

	var grant clients.GrantEntitlementResult
	err = workflow.ExecuteActivity(policies.WithDefault(ctx), ActivityGrantEntitlement, clients.GrantEntitlementRequest{
		PlayerID:      input.PlayerID,
		TransactionID: input.TransactionID,
		CurrencyDelta: entitlementCurrency(receipt, input),
	}).Get(ctx, &grant)
	if err != nil {
		return nil, failAndCompensate(ctx, wlog, sg, input, "grant_entitlement", err)
	}
	sg.AddCompensation(saga.Compensation{
		Name: "revert_entitlement",
		Run: func(cctx workflow.Context) error {
			return workflow.ExecuteActivity(policies.WithCritical(cctx), ActivityCompensateGrant, clients.RevertEntitlementRequest{
				PlayerID:      input.PlayerID,
				TransactionID: input.TransactionID,
				Reason:        "iap workflow rolled back",
			}).Get(cctx, nil)
		},
	})

	err = workflow.ExecuteActivity(policies.WithDefault(ctx), ActivityConfirmInventory, clients.ConfirmInventoryRequest{
		PlayerID:      input.PlayerID,
		TransactionID: input.TransactionID,
	}).Get(ctx, nil)
	if err != nil {
		return nil, failAndCompensate(ctx, wlog, sg, input, "confirm_inventory", err)
	}

	// Tracking sits outside the transactional boundary.
	eventTracked := true
	err = workflow.ExecuteActivity(policies.WithBestEffort(ctx), ActivityTrackEvent, clients.TrackEventRequest{
		EventName:     "iap_purchase_completed",
		PlayerID:      input.PlayerID,
		TransactionID: input.TransactionID,
		Properties: map[string]any{
			"productId":    input.ProductID,
			"quantity":     input.Quantity,
			"priceInCents": input.PriceInCents,
			"currency":     input.Currency,
		},
		Timestamp: workflow.Now(ctx),
	}).Get(ctx, nil)
	if err != nil {
		eventTracked = false
		wlog.Warn("purchase tracking event dropped after best-effort retries",
			"transaction_id", input.TransactionID, "error", err)
	}

	err = auditlog.Write(ctx, clients.AuditEvent{
		EventType:     auditlog.EventIAPTransaction,
		UserID:        input.PlayerID,
		TransactionID: input.TransactionID,
		Outcome:       auditlog.OutcomeCompleted,
		Details: map[string]any{
			"productId":       input.ProductID,
			"currencyGranted": grant.CurrencyGranted,
		},
	})
	if err != nil {
		// The audit step itself failed terminally; unwind without a second
		// audit attempt.
		if cerr := sg.Compensate(ctx); cerr != nil {
			wlog.Error("compensation incomplete", "transaction_id", input.TransactionID, "error", cerr)
		}
		return nil, err
	}

	return &Result{
		TransactionID:   input.TransactionID,
		PlayerID:        input.PlayerID,
		ProductID:       input.ProductID,
		CurrencyGranted: grant.CurrencyGranted,
		ItemsGranted:    grant.ItemsGranted,
		EventTracked:    eventTracked,
		Outcome:         auditlog.OutcomeCompleted,
	}, nil
}

func failAndCompensate(ctx workflow.Context, wlog log.Logger, sg *saga.Saga, input Input, step string, cause error) error {
	if cerr := sg.Compensate(ctx); cerr != nil {
		wlog.Error("compensation incomplete", "step", step, "transaction_id", input.TransactionID, "error", cerr)
	}
	writeAudit(ctx, wlog, input, auditlog.OutcomeFailed, map[string]any{"step": step, "error": cause.Error()})
	return cause
}

func writeAudit(ctx workflow.Context, wlog log.Logger, input Input, outcome string, details map[string]any) {
	err := auditlog.Write(ctx, clients.AuditEvent{
		EventType:     auditlog.EventIAPTransaction,
		UserID:        input.PlayerID,
		TransactionID: input.TransactionID,
		Outcome:       outcome,
		Details:       details,
	})
	if err != nil {
		wlog.Error("audit write failed after critical retries",
			"transaction_id", input.TransactionID, "outcome", outcome, "error", err)
	}
}

// entitlementCurrency derives the currency credit from the platform's
// validation payload, falling back to price paid.
func entitlementCurrency(receipt clients.VerifyReceiptResult, input Input) int64 {
	if receipt.ValidationData != nil {
		if v, ok := receipt.ValidationData["currencyAmount"]; ok {
			switch n := v.(type) {
			case float64:
				return int64(n) * int64(input.Quantity)
			case int64:
				return n * int64(input.Quantity)
			}
		}
	}
	return input.PriceInCents * int64(input.Quantity)
}
