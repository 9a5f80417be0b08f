// Package auditlog holds the audit-trail activity shared by every workflow.
// Each workflow attempt that reaches a terminal state writes exactly one audit
// event, always under the Critical retry policy.
package auditlog

import (
	"context"

	"go.temporal.io/sdk/workflow"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/failures"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/policies"
)

const ActivityLogAudit = "audit_log_event"

const (
	EventIAPTransaction  = "iap_transaction"
	EventScoreSubmission = "score_submission"
)

// Terminal workflow outcomes recorded on the audit trail.
const (
	OutcomeCompleted = "completed"
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeCheated   = "cheated"
	OutcomeFailed    = "failed"
)

type Activities struct {
	Log   *logger.Logger
	Audit clients.AuditService
}

func (a *Activities) LogAudit(ctx context.Context, event clients.AuditEvent) error {
	if a == nil || a.Audit == nil {
		return failures.NonRetryable(failures.TypeAuditLog, "audit activity not configured")
	}
	if err := a.Audit.LogEvent(ctx, event); err != nil {
		return failures.FromClientError(failures.TypeAuditLog, err)
	}
	if a.Log != nil {
		a.Log.Info("audit event recorded",
			"event_type", event.EventType,
			"user_id", event.UserID,
			"transaction_id", event.TransactionID,
			"outcome", event.Outcome,
		)
	}
	return nil
}

// Write executes the audit activity under the Critical policy. The timestamp
// defaults to workflow time so workflow code never reads the system clock.
func Write(ctx workflow.Context, event clients.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = workflow.Now(ctx)
	}
	return workflow.ExecuteActivity(policies.WithCritical(ctx), ActivityLogAudit, event).Get(ctx, nil)
}
