// Package policies defines the fixed retry-policy classes activities run
// under. Selection is static per activity type; retrying is always done by the
// engine, never by workflow code or the clients themselves.
package policies

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Default covers ordinary remote calls: grants, confirmations, leaderboard
// writes, cheat detection.
func Default() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    1 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    30 * time.Second,
		MaximumAttempts:    5,
	}
}

// Critical covers steps whose failure must not be silently dropped: audit
// logging and every compensation.
func Critical() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    60 * time.Second,
		MaximumAttempts:    10,
	}
}

// Validation covers verification-style calls where repeated identical failures
// indicate a permanent rejection rather than transient unavailability.
func Validation() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    500 * time.Millisecond,
		BackoffCoefficient: 1.5,
		MaximumInterval:    10 * time.Second,
		MaximumAttempts:    3,
	}
}

// BestEffort covers droppable operations: analytics tracking, cloud-save sync.
func BestEffort() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    1 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    5 * time.Second,
		MaximumAttempts:    2,
	}
}

const (
	defaultStartToClose  = 30 * time.Second
	criticalStartToClose = 60 * time.Second
)

func WithDefault(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: defaultStartToClose,
		RetryPolicy:         Default(),
	})
}

func WithCritical(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: criticalStartToClose,
		RetryPolicy:         Critical(),
	})
}

func WithValidation(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: defaultStartToClose,
		RetryPolicy:         Validation(),
	})
}

func WithBestEffort(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: defaultStartToClose,
		RetryPolicy:         BestEffort(),
	})
}
