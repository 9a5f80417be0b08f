package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/platform/envutil"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
	"github.com/glyphworks/puzzle-backend/internal/temporalx"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/auditlog"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/iapflow"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/scoreflow"
)

// Deps carries every downstream client the activities need. Built once per
// worker process and injected; activity code never reaches for globals.
type Deps struct {
	Receipts    clients.ReceiptVerifier
	Inventory   clients.InventoryService
	Leaderboard clients.LeaderboardService
	Cheat       clients.CheatDetectionService
	CloudSave   clients.CloudSaveService
	Analytics   clients.AnalyticsService
	Audit       clients.AuditService
}

type Runner struct {
	log  *logger.Logger
	tc   temporalsdkclient.Client
	deps Deps
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, deps Deps) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if deps.Receipts == nil || deps.Inventory == nil || deps.Leaderboard == nil ||
		deps.Cheat == nil || deps.CloudSave == nil || deps.Analytics == nil || deps.Audit == nil {
		return nil, fmt.Errorf("temporal worker missing downstream clients")
	}
	return &Runner{log: log, tc: tc, deps: deps}, nil
}

// Start brings the worker up, retrying until TEMPORAL_WORKER_START_MAX_WAIT_SECONDS
// elapses. The worker stops when ctx is canceled.
func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}

	cfg := temporalx.LoadConfig()
	if r.log != nil {
		r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}

	if envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false) {
		baseCtx := ctx
		if baseCtx == nil {
			baseCtx = context.Background()
		}
		if err := temporalx.EnsureNamespace(baseCtx, r.tc, cfg.Namespace, r.log); err != nil && r.log != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", cfg.Namespace, "error", err)
		}
	}

	maxWait := time.Duration(envutil.Int("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60)) * time.Second
	backoff := time.Duration(envutil.Int("TEMPORAL_WORKER_START_BACKOFF_MS", 250)) * time.Millisecond
	backoffMax := time.Duration(envutil.Int("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5000)) * time.Millisecond

	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		w := r.newWorker(cfg)
		startErr := w.Start()
		if startErr == nil {
			if ctx != nil {
				go func() {
					<-ctx.Done()
					w.Stop()
				}()
			}
			if r.log != nil {
				r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			}
			return nil
		}

		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false) {
			baseCtx := ctx
			if baseCtx == nil {
				baseCtx = context.Background()
			}
			_ = temporalx.EnsureNamespace(baseCtx, r.tc, cfg.Namespace, r.log)
		}

		if maxWait <= 0 || time.Now().After(deadline) {
			var nfe2 *serviceerror.NamespaceNotFound
			if errors.As(startErr, &nfe2) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}

		if r.log != nil {
			r.log.Warn("Temporal worker failed to start; retrying", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempt", attempt, "error", startErr)
		}

		if sleep := clampBackoff(backoff, backoffMax, attempt); sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

func (r *Runner) newWorker(cfg temporalx.Config) worker.Worker {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 8)
	if concurrency < 1 {
		concurrency = 1
	}

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	iapActs := &iapflow.Activities{
		Log:       r.log,
		Receipts:  r.deps.Receipts,
		Inventory: r.deps.Inventory,
		Analytics: r.deps.Analytics,
	}
	scoreActs := &scoreflow.Activities{
		Log:         r.log,
		Cheat:       r.deps.Cheat,
		Leaderboard: r.deps.Leaderboard,
		CloudSave:   r.deps.CloudSave,
	}
	auditActs := &auditlog.Activities{
		Log:   r.log,
		Audit: r.deps.Audit,
	}

	w.RegisterWorkflowWithOptions(iapflow.Workflow, workflow.RegisterOptions{Name: iapflow.WorkflowName})
	w.RegisterWorkflowWithOptions(scoreflow.Workflow, workflow.RegisterOptions{Name: scoreflow.WorkflowName})

	w.RegisterActivityWithOptions(iapActs.VerifyReceipt, activity.RegisterOptions{Name: iapflow.ActivityVerifyReceipt})
	w.RegisterActivityWithOptions(iapActs.GrantEntitlement, activity.RegisterOptions{Name: iapflow.ActivityGrantEntitlement})
	w.RegisterActivityWithOptions(iapActs.CompensateGrantEntitlement, activity.RegisterOptions{Name: iapflow.ActivityCompensateGrant})
	w.RegisterActivityWithOptions(iapActs.ConfirmInventory, activity.RegisterOptions{Name: iapflow.ActivityConfirmInventory})
	w.RegisterActivityWithOptions(iapActs.TrackEvent, activity.RegisterOptions{Name: iapflow.ActivityTrackEvent})

	w.RegisterActivityWithOptions(scoreActs.ValidateScoreIntegrity, activity.RegisterOptions{Name: scoreflow.ActivityValidateScore})
	w.RegisterActivityWithOptions(scoreActs.RunCheatDetection, activity.RegisterOptions{Name: scoreflow.ActivityCheatDetection})
	w.RegisterActivityWithOptions(scoreActs.SubmitLeaderboard, activity.RegisterOptions{Name: scoreflow.ActivitySubmitLeaderboard})
	w.RegisterActivityWithOptions(scoreActs.CompensateLeaderboard, activity.RegisterOptions{Name: scoreflow.ActivityCompensateLeaderboard})
	w.RegisterActivityWithOptions(scoreActs.SynchronizeCloudSave, activity.RegisterOptions{Name: scoreflow.ActivityCloudSaveSync})

	w.RegisterActivityWithOptions(auditActs.LogAudit, activity.RegisterOptions{Name: auditlog.ActivityLogAudit})

	return w
}

func clampBackoff(base time.Duration, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	if max > 0 && sleep > max {
		return max
	}
	return sleep
}
