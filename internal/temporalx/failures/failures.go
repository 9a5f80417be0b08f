// Package failures maps downstream client errors onto typed application
// failures. Classification here decides whether the engine keeps retrying an
// activity or surfaces the failure to the workflow immediately.
package failures

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/glyphworks/puzzle-backend/internal/platform/httpx"
)

const (
	TypeIAPValidationFailed   = "IAPValidationFailed"
	TypeScoreValidationFailed = "ScoreValidationFailed"
	TypeEntitlementGrant      = "EntitlementGrantFailed"
	TypeInventoryConfirm      = "InventoryConfirmFailed"
	TypeLeaderboardSubmit     = "LeaderboardSubmitFailed"
	TypeLeaderboardInvalidate = "LeaderboardInvalidateFailed"
	TypeCheatDetection        = "CheatDetectionFailed"
	TypeAuditLog              = "AuditLogFailed"
	TypeAnalyticsTrack        = "AnalyticsTrackFailed"
	TypeCloudSaveSync         = "CloudSaveSyncFailed"
	TypeEntitlementRevert     = "EntitlementRevertFailed"
)

// FromClientError wraps a downstream error as a typed ApplicationError. 4xx
// responses (other than 408/429) are permanent, so they short-circuit the
// engine's retry budget; everything else stays retryable.
func FromClientError(errType string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return err
	}
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) && !httpx.IsRetryableHTTPStatus(sc.HTTPStatusCode()) {
		return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
	}
	return temporal.NewApplicationError(err.Error(), errType)
}

// NonRetryable marks a failure terminal regardless of remaining attempts.
func NonRetryable(errType, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, errType, nil)
}

// Retryable builds a typed transient failure.
func Retryable(errType, msg string) error {
	return temporal.NewApplicationError(msg, errType)
}

// IsType reports whether err carries the given application failure type,
// unwrapping activity and workflow error envelopes.
func IsType(err error, errType string) bool {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type() == errType
}
