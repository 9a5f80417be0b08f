package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"

	"github.com/glyphworks/puzzle-backend/internal/data/repos"
	"github.com/glyphworks/puzzle-backend/internal/domain"
	"github.com/glyphworks/puzzle-backend/internal/platform/ctxutil"
	"github.com/glyphworks/puzzle-backend/internal/platform/logger"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/failures"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/iapflow"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/scoreflow"
)

// How long a trigger dedup key lingers in Redis. Long enough to absorb client
// retries, short enough not to pin old transactions forever; the engine's
// workflow ID reuse policy is the durable duplicate guard either way.
const dedupTTL = 24 * time.Hour

// workflowStarter is the slice of the Temporal client the service needs.
type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
	GetWorkflow(ctx context.Context, workflowID string, runID string) temporalsdkclient.WorkflowRun
}

type OrchestratorService interface {
	StartIAPProcessing(ctx context.Context, input iapflow.Input) (*domain.WorkflowRun, error)
	StartScoreSubmission(ctx context.Context, input scoreflow.Input) (*domain.WorkflowRun, error)
	GetWorkflowRun(ctx context.Context, workflowID string) (*domain.WorkflowRun, error)
	ListPlayerRuns(ctx context.Context, playerID string, limit int) ([]*domain.WorkflowRun, error)
}

type orchestratorService struct {
	log       *logger.Logger
	repo      repos.WorkflowRunRepo
	temporal  workflowStarter
	redis     *goredis.Client
	taskQueue string
}

func NewOrchestratorService(
	baseLog *logger.Logger,
	repo repos.WorkflowRunRepo,
	tc workflowStarter,
	redis *goredis.Client,
	taskQueue string,
) (OrchestratorService, error) {
	if repo == nil {
		return nil, fmt.Errorf("workflow run repo is required")
	}
	if tc == nil {
		return nil, fmt.Errorf("temporal not configured (TEMPORAL_ADDRESS)")
	}
	return &orchestratorService{
		log:       baseLog.With("service", "OrchestratorService"),
		repo:      repo,
		temporal:  tc,
		redis:     redis,
		taskQueue: strings.TrimSpace(taskQueue),
	}, nil
}

func (s *orchestratorService) StartIAPProcessing(ctx context.Context, input iapflow.Input) (*domain.WorkflowRun, error) {
	ctx = ctxutil.Default(ctx)
	if strings.TrimSpace(input.TransactionID) == "" {
		return nil, fmt.Errorf("missing transactionId")
	}
	if strings.TrimSpace(input.PlayerID) == "" {
		return nil, fmt.Errorf("missing playerId")
	}
	if input.Quantity <= 0 {
		input.Quantity = 1
	}

	workflowID := "iap-" + input.TransactionID

	if dup, prior := s.checkDedup(ctx, workflowID); dup {
		return prior, nil
	}

	return s.start(ctx, workflowID, iapflow.WorkflowName, domain.WorkflowTypeIAPProcessing, input.PlayerID, input.TransactionID, input)
}

func (s *orchestratorService) StartScoreSubmission(ctx context.Context, input scoreflow.Input) (*domain.WorkflowRun, error) {
	ctx = ctxutil.Default(ctx)
	if strings.TrimSpace(input.PlayerID) == "" {
		return nil, fmt.Errorf("missing playerId")
	}
	if strings.TrimSpace(input.SubmissionID) == "" {
		input.SubmissionID = uuid.NewString()
	}
	if input.ClientTimestamp.IsZero() {
		input.ClientTimestamp = time.Now().UTC()
	}

	workflowID := "score-" + input.SubmissionID

	if dup, prior := s.checkDedup(ctx, workflowID); dup {
		return prior, nil
	}

	return s.start(ctx, workflowID, scoreflow.WorkflowName, domain.WorkflowTypeScoreSubmission, input.PlayerID, input.SubmissionID, input)
}

func (s *orchestratorService) start(
	ctx context.Context,
	workflowID string,
	workflowName string,
	workflowType string,
	playerID string,
	transactionID string,
	input any,
) (*domain.WorkflowRun, error) {
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    workflowID,
		TaskQueue:             s.taskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	we, err := s.temporal.ExecuteWorkflow(ctx, opts, workflowName, input)
	if err != nil {
		if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
			s.log.Info("Workflow already started; returning existing run", "workflow_id", workflowID)
			if existing, gerr := s.repo.GetByWorkflowID(ctx, workflowID); gerr == nil && existing != nil {
				return existing, nil
			}
			return &domain.WorkflowRun{
				WorkflowID:    workflowID,
				WorkflowType:  workflowType,
				PlayerID:      playerID,
				TransactionID: transactionID,
				Status:        domain.RunStatusRunning,
			}, nil
		}
		return nil, fmt.Errorf("start workflow %s: %w", workflowName, err)
	}

	now := time.Now().UTC()
	run := &domain.WorkflowRun{
		ID:            uuid.New(),
		WorkflowID:    workflowID,
		RunID:         we.GetRunID(),
		WorkflowType:  workflowType,
		PlayerID:      playerID,
		TransactionID: transactionID,
		Status:        domain.RunStatusRunning,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, run); err != nil {
		s.log.Warn("Failed to persist workflow run row", "workflow_id", workflowID, "error", err)
	}

	go s.watchCompletion(workflowID, we.GetRunID())

	s.log.Info("Workflow started", "workflow_id", workflowID, "workflow_type", workflowType, "run_id", we.GetRunID())
	return run, nil
}

// watchCompletion blocks on the workflow result in the background and writes
// the terminal status into the bookkeeping row. The engine remains the source
// of truth; a crashed API process just leaves the row at "running" until the
// next status query reconciles it.
func (s *orchestratorService) watchCompletion(workflowID, runID string) {
	ctx := context.Background()

	var raw json.RawMessage
	err := s.temporal.GetWorkflow(ctx, workflowID, runID).Get(ctx, &raw)

	updates := map[string]interface{}{
		"completed_at": time.Now().UTC(),
	}
	switch {
	case err == nil:
		updates["status"] = statusFromResult(raw)
		if len(raw) > 0 {
			updates["result"] = datatypes.JSON(raw)
		}
	case failures.IsType(err, failures.TypeIAPValidationFailed),
		failures.IsType(err, failures.TypeScoreValidationFailed):
		updates["status"] = domain.RunStatusRejected
		updates["error"] = err.Error()
	default:
		updates["status"] = domain.RunStatusFailed
		updates["error"] = err.Error()
	}

	if uerr := s.repo.UpdateFields(ctx, workflowID, updates); uerr != nil {
		s.log.Warn("Failed to record workflow completion", "workflow_id", workflowID, "error", uerr)
	}
}

// statusFromResult maps a successful workflow payload to a run status. Score
// submissions complete successfully with a "cheated" outcome; everything else
// that returned a value completed.
func statusFromResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return domain.RunStatusCompleted
	}
	var probe struct {
		Outcome string `json:"outcome"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Outcome == domain.RunStatusCheated {
		return domain.RunStatusCheated
	}
	return domain.RunStatusCompleted
}

func (s *orchestratorService) GetWorkflowRun(ctx context.Context, workflowID string) (*domain.WorkflowRun, error) {
	ctx = ctxutil.Default(ctx)
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return nil, fmt.Errorf("missing workflow id")
	}
	run, err := s.repo.GetByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("get workflow run: %w", err)
	}
	if run == nil {
		return nil, nil
	}
	if run.Status == domain.RunStatusRunning {
		s.reconcile(ctx, run)
	}
	return run, nil
}

// reconcile asks the engine directly when the bookkeeping row is still
// "running", covering watcher goroutines lost to process restarts.
func (s *orchestratorService) reconcile(ctx context.Context, run *domain.WorkflowRun) {
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var raw json.RawMessage
	err := s.temporal.GetWorkflow(waitCtx, run.WorkflowID, run.RunID).Get(waitCtx, &raw)
	if err != nil {
		if waitCtx.Err() != nil || temporal.IsCanceledError(err) {
			return
		}
		if _, ok := err.(*serviceerror.NotFound); ok {
			return
		}
		switch {
		case failures.IsType(err, failures.TypeIAPValidationFailed),
			failures.IsType(err, failures.TypeScoreValidationFailed):
			run.Status = domain.RunStatusRejected
		default:
			run.Status = domain.RunStatusFailed
		}
		run.Error = err.Error()
	} else {
		run.Status = statusFromResult(raw)
		if len(raw) > 0 {
			run.Result = datatypes.JSON(raw)
		}
	}

	now := time.Now().UTC()
	run.CompletedAt = &now
	updates := map[string]interface{}{
		"status":       run.Status,
		"error":        run.Error,
		"completed_at": now,
	}
	if len(run.Result) > 0 {
		updates["result"] = run.Result
	}
	if uerr := s.repo.UpdateFields(ctx, run.WorkflowID, updates); uerr != nil {
		s.log.Warn("Failed to reconcile workflow run", "workflow_id", run.WorkflowID, "error", uerr)
	}
}

func (s *orchestratorService) ListPlayerRuns(ctx context.Context, playerID string, limit int) ([]*domain.WorkflowRun, error) {
	ctx = ctxutil.Default(ctx)
	return s.repo.ListByPlayer(ctx, playerID, limit)
}

// checkDedup consults Redis before hitting the engine. A duplicate trigger
// returns the stored row (or whatever the DB has) without starting anything.
// Redis being down or unconfigured degrades to engine-side duplicate rejection.
func (s *orchestratorService) checkDedup(ctx context.Context, workflowID string) (bool, *domain.WorkflowRun) {
	if s.redis == nil {
		return false, nil
	}
	key := "wfdedup:" + workflowID
	ok, err := s.redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), dedupTTL).Result()
	if err != nil {
		s.log.Warn("Redis dedup check failed; deferring to engine", "workflow_id", workflowID, "error", err)
		return false, nil
	}
	if ok {
		return false, nil
	}
	s.log.Info("Duplicate trigger suppressed", "workflow_id", workflowID)
	run, gerr := s.repo.GetByWorkflowID(ctx, workflowID)
	if gerr != nil || run == nil {
		return false, nil
	}
	return true, run
}
