package scoreflow

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/domain"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/auditlog"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/failures"
)

type fakeCheat struct {
	mu     sync.Mutex
	calls  int
	result clients.CheatDetectionResult
	err    error
}

func (f *fakeCheat) Evaluate(ctx context.Context, req clients.CheatDetectionRequest) (*clients.CheatDetectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.result
	return &out, nil
}

type fakeLeaderboard struct {
	mu              sync.Mutex
	submitCalls     int
	submitErr       error
	submitResult    clients.SubmitScoreResult
	invalidateCalls int
	invalidateErr   error
}

func (f *fakeLeaderboard) SubmitScore(ctx context.Context, req clients.SubmitScoreRequest) (*clients.SubmitScoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	out := f.submitResult
	return &out, nil
}

func (f *fakeLeaderboard) InvalidateSubmission(ctx context.Context, req clients.InvalidateSubmissionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidateCalls++
	return f.invalidateErr
}

type fakeCloudSave struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeCloudSave) Synchronize(ctx context.Context, req clients.CloudSaveSyncRequest) (*clients.CloudSaveSyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &clients.CloudSaveSyncResult{Synced: true, Version: 7}, nil
}

type fakeAudit struct {
	mu          sync.Mutex
	events      []clients.AuditEvent
	failOutcome string
	failErr     error
}

func (f *fakeAudit) LogEvent(ctx context.Context, event clients.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOutcome != "" && event.Outcome == f.failOutcome {
		return f.failErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Outcome)
	}
	return out
}

type scoreFixture struct {
	cheat       *fakeCheat
	leaderboard *fakeLeaderboard
	cloudSave   *fakeCloudSave
	audit       *fakeAudit
}

func newScoreFixture() *scoreFixture {
	return &scoreFixture{
		cheat: &fakeCheat{result: clients.CheatDetectionResult{IsCheater: false}},
		leaderboard: &fakeLeaderboard{submitResult: clients.SubmitScoreResult{
			SubmissionID: "sub-abc",
			Rank:         42,
		}},
		cloudSave: &fakeCloudSave{},
		audit:     &fakeAudit{},
	}
}

func newScoreEnv(t *testing.T, fx *scoreFixture) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	acts := &Activities{Cheat: fx.cheat, Leaderboard: fx.leaderboard, CloudSave: fx.cloudSave}
	auditActs := &auditlog.Activities{Audit: fx.audit}

	env.RegisterActivityWithOptions(acts.ValidateScoreIntegrity, activity.RegisterOptions{Name: ActivityValidateScore})
	env.RegisterActivityWithOptions(acts.RunCheatDetection, activity.RegisterOptions{Name: ActivityCheatDetection})
	env.RegisterActivityWithOptions(acts.SubmitLeaderboard, activity.RegisterOptions{Name: ActivitySubmitLeaderboard})
	env.RegisterActivityWithOptions(acts.CompensateLeaderboard, activity.RegisterOptions{Name: ActivityCompensateLeaderboard})
	env.RegisterActivityWithOptions(acts.SynchronizeCloudSave, activity.RegisterOptions{Name: ActivityCloudSaveSync})
	env.RegisterActivityWithOptions(auditActs.LogAudit, activity.RegisterOptions{Name: auditlog.ActivityLogAudit})

	return env
}

func validSubmission() Input {
	return Input{
		PlayerID:     "player-1",
		SubmissionID: "sub-key-1",
		ScoreData: domain.ScoreData{
			Score:       1200,
			LevelID:     "level-3",
			Moves:       18,
			TimeTakenMs: 45_000,
		},
		GameplaySessionData: map[string]any{"combo": 4},
		ClientTimestamp:     time.Now().Add(-time.Minute),
	}
}

func TestWorkflow_AcceptedSubmission(t *testing.T) {
	fx := newScoreFixture()
	env := newScoreEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validSubmission())

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var res Result
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Accepted || res.Outcome != auditlog.OutcomeAccepted {
		t.Fatalf("result = %+v, want accepted", res)
	}
	if res.SubmissionID != "sub-abc" || res.Rank != 42 {
		t.Fatalf("submission = %q rank = %d, want sub-abc/42", res.SubmissionID, res.Rank)
	}
	if !res.CloudSaveSynced {
		t.Fatal("cloudSaveSynced = false, want true")
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeAccepted {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeAccepted)
	}
}

func TestWorkflow_StructurallyInvalidScoreRejected(t *testing.T) {
	fx := newScoreFixture()
	env := newScoreEnv(t, fx)

	in := validSubmission()
	in.ScoreData.Score = -5
	env.ExecuteWorkflow(Workflow, in)

	err := env.GetWorkflowError()
	if err == nil || !failures.IsType(err, failures.TypeScoreValidationFailed) {
		t.Fatalf("error = %v, want %s", err, failures.TypeScoreValidationFailed)
	}
	if fx.cheat.calls != 0 {
		t.Fatalf("cheat detection called %d times for an invalid payload", fx.cheat.calls)
	}
	if fx.leaderboard.submitCalls != 0 {
		t.Fatalf("leaderboard called %d times for an invalid payload", fx.leaderboard.submitCalls)
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeRejected {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeRejected)
	}
}

func TestWorkflow_CheaterVerdictIsAValueNotAnError(t *testing.T) {
	fx := newScoreFixture()
	fx.cheat.result = clients.CheatDetectionResult{IsCheater: true, Reason: "impossible apm", ConfidenceScore: 0.97}
	env := newScoreEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validSubmission())

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v, cheat verdict must complete the workflow", err)
	}
	var res Result
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Accepted || res.Outcome != auditlog.OutcomeCheated {
		t.Fatalf("result = %+v, want cheated outcome", res)
	}
	if fx.leaderboard.submitCalls != 0 {
		t.Fatalf("leaderboard called %d times for a cheater", fx.leaderboard.submitCalls)
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeCheated {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeCheated)
	}
}

func TestWorkflow_LeaderboardRetriesExhaustThenFail(t *testing.T) {
	fx := newScoreFixture()
	fx.leaderboard.submitErr = &clients.HTTPError{Service: "Leaderboard", StatusCode: http.StatusInternalServerError, Body: "boom"}
	env := newScoreEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validSubmission())

	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error after leaderboard retries exhaust")
	}
	// Default policy allows 5 attempts.
	if fx.leaderboard.submitCalls != 5 {
		t.Fatalf("submit attempts = %d, want 5", fx.leaderboard.submitCalls)
	}
	// The write never landed, so nothing to invalidate.
	if fx.leaderboard.invalidateCalls != 0 {
		t.Fatalf("invalidate attempts = %d, want 0", fx.leaderboard.invalidateCalls)
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeFailed {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeFailed)
	}
}

func TestWorkflow_CloudSaveFailureIsBestEffort(t *testing.T) {
	fx := newScoreFixture()
	fx.cloudSave.err = &clients.HTTPError{Service: "CloudSave", StatusCode: http.StatusGatewayTimeout, Body: "slow"}
	env := newScoreEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validSubmission())

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var res Result
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Accepted {
		t.Fatal("submission should still be accepted when cloud save fails")
	}
	if res.CloudSaveSynced {
		t.Fatal("cloudSaveSynced = true, want false")
	}
	// BestEffort policy allows 2 attempts.
	if fx.cloudSave.calls != 2 {
		t.Fatalf("cloud save attempts = %d, want 2", fx.cloudSave.calls)
	}
}

func TestWorkflow_AuditFailureInvalidatesLeaderboardEntry(t *testing.T) {
	fx := newScoreFixture()
	fx.audit.failOutcome = auditlog.OutcomeAccepted
	fx.audit.failErr = &clients.HTTPError{Service: "AuditLogging", StatusCode: http.StatusUnprocessableEntity, Body: "schema rejected"}
	env := newScoreEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validSubmission())

	err := env.GetWorkflowError()
	if err == nil || !failures.IsType(err, failures.TypeAuditLog) {
		t.Fatalf("error = %v, want %s", err, failures.TypeAuditLog)
	}
	if fx.leaderboard.invalidateCalls != 1 {
		t.Fatalf("invalidate attempts = %d, want 1 after terminal audit failure", fx.leaderboard.invalidateCalls)
	}
	if got := fx.audit.outcomes(); len(got) != 0 {
		t.Fatalf("audit outcomes = %v, want none recorded", got)
	}
}

func TestWorkflow_CompensationToleratesMissingSubmission(t *testing.T) {
	fx := newScoreFixture()
	fx.audit.failOutcome = auditlog.OutcomeAccepted
	fx.audit.failErr = &clients.HTTPError{Service: "AuditLogging", StatusCode: http.StatusUnprocessableEntity, Body: "schema rejected"}
	fx.leaderboard.invalidateErr = &clients.HTTPError{Service: "Leaderboard", StatusCode: http.StatusNotFound, Body: "gone"}
	env := newScoreEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validSubmission())

	err := env.GetWorkflowError()
	if err == nil || !failures.IsType(err, failures.TypeAuditLog) {
		t.Fatalf("error = %v, want the original audit failure, not a compensation error", err)
	}
	if fx.leaderboard.invalidateCalls != 1 {
		t.Fatalf("invalidate attempts = %d, want 1", fx.leaderboard.invalidateCalls)
	}
}
