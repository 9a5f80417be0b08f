package iapflow

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/glyphworks/puzzle-backend/internal/clients"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/auditlog"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/failures"
)

type fakeReceipts struct {
	mu     sync.Mutex
	calls  int
	result clients.VerifyReceiptResult
	err    error
}

func (f *fakeReceipts) Verify(ctx context.Context, req clients.VerifyReceiptRequest) (*clients.VerifyReceiptResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.result
	return &out, nil
}

type fakeInventory struct {
	mu           sync.Mutex
	grantCalls   int
	grantErr     error
	grantResult  clients.GrantEntitlementResult
	revertCalls  int
	revertErr    error
	confirmCalls int
	confirmErr   error
}

func (f *fakeInventory) GrantEntitlement(ctx context.Context, req clients.GrantEntitlementRequest) (*clients.GrantEntitlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grantCalls++
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	out := f.grantResult
	return &out, nil
}

func (f *fakeInventory) RevertEntitlement(ctx context.Context, req clients.RevertEntitlementRequest) (*clients.RevertEntitlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revertCalls++
	if f.revertErr != nil {
		return nil, f.revertErr
	}
	return &clients.RevertEntitlementResult{Success: true}, nil
}

func (f *fakeInventory) ConfirmInventory(ctx context.Context, req clients.ConfirmInventoryRequest) (*clients.ConfirmInventoryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmCalls++
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &clients.ConfirmInventoryResult{Confirmed: true, CurrencyBalance: 500}, nil
}

type fakeAnalytics struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAnalytics) TrackEvent(ctx context.Context, req clients.TrackEventRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

// fakeAudit records every successful write and can be scripted to fail for a
// specific outcome.
type fakeAudit struct {
	mu          sync.Mutex
	attempts    int
	events      []clients.AuditEvent
	failOutcome string
	failErr     error
}

func (f *fakeAudit) LogEvent(ctx context.Context, event clients.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
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

type iapFixture struct {
	receipts  *fakeReceipts
	inventory *fakeInventory
	analytics *fakeAnalytics
	audit     *fakeAudit
}

func newIAPFixture() *iapFixture {
	return &iapFixture{
		receipts: &fakeReceipts{result: clients.VerifyReceiptResult{
			IsValid:        true,
			ValidationData: map[string]any{"currencyAmount": float64(100)},
		}},
		inventory: &fakeInventory{grantResult: clients.GrantEntitlementResult{
			Success:         true,
			CurrencyGranted: 100,
			ItemsGranted:    []string{"booster_pack"},
		}},
		analytics: &fakeAnalytics{},
		audit:     &fakeAudit{},
	}
}

func newIAPEnv(t *testing.T, fx *iapFixture) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	acts := &Activities{Receipts: fx.receipts, Inventory: fx.inventory, Analytics: fx.analytics}
	auditActs := &auditlog.Activities{Audit: fx.audit}

	env.RegisterActivityWithOptions(acts.VerifyReceipt, activity.RegisterOptions{Name: ActivityVerifyReceipt})
	env.RegisterActivityWithOptions(acts.GrantEntitlement, activity.RegisterOptions{Name: ActivityGrantEntitlement})
	env.RegisterActivityWithOptions(acts.CompensateGrantEntitlement, activity.RegisterOptions{Name: ActivityCompensateGrant})
	env.RegisterActivityWithOptions(acts.ConfirmInventory, activity.RegisterOptions{Name: ActivityConfirmInventory})
	env.RegisterActivityWithOptions(acts.TrackEvent, activity.RegisterOptions{Name: ActivityTrackEvent})
	env.RegisterActivityWithOptions(auditActs.LogAudit, activity.RegisterOptions{Name: auditlog.ActivityLogAudit})

	return env
}

func validInput() Input {
	return Input{
		PlayerID:      "player-1",
		ProductID:     "com.glyphworks.booster",
		TransactionID: "txn-123",
		Platform:      "ios",
		ReceiptData:   "base64-receipt",
		Quantity:      1,
		PriceInCents:  499,
		Currency:      "USD",
	}
}

func TestWorkflow_HappyPath(t *testing.T) {
	fx := newIAPFixture()
	env := newIAPEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validInput())

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}

	var res Result
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Outcome != auditlog.OutcomeCompleted {
		t.Fatalf("outcome = %q, want %q", res.Outcome, auditlog.OutcomeCompleted)
	}
	if res.CurrencyGranted != 100 {
		t.Fatalf("currencyGranted = %d, want 100", res.CurrencyGranted)
	}
	if !res.EventTracked {
		t.Fatal("eventTracked = false, want true")
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeCompleted {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeCompleted)
	}
	if fx.inventory.revertCalls != 0 {
		t.Fatalf("revert called %d times on success path", fx.inventory.revertCalls)
	}
}

func TestWorkflow_InvalidReceiptRejects(t *testing.T) {
	fx := newIAPFixture()
	fx.receipts.result = clients.VerifyReceiptResult{IsValid: false, FailureReason: "signature mismatch"}
	env := newIAPEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validInput())

	err := env.GetWorkflowError()
	if err == nil {
		t.Fatal("expected workflow error for rejected receipt")
	}
	if !failures.IsType(err, failures.TypeIAPValidationFailed) {
		t.Fatalf("error type = %v, want %s", err, failures.TypeIAPValidationFailed)
	}
	if fx.inventory.grantCalls != 0 {
		t.Fatalf("grant called %d times for an invalid receipt", fx.inventory.grantCalls)
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeRejected {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeRejected)
	}
}

func TestWorkflow_MissingFieldsRejectBeforeAnyCall(t *testing.T) {
	fx := newIAPFixture()
	env := newIAPEnv(t, fx)

	in := validInput()
	in.ReceiptData = ""
	env.ExecuteWorkflow(Workflow, in)

	err := env.GetWorkflowError()
	if err == nil || !failures.IsType(err, failures.TypeIAPValidationFailed) {
		t.Fatalf("error = %v, want %s", err, failures.TypeIAPValidationFailed)
	}
	if fx.receipts.calls != 0 {
		t.Fatalf("receipt service called %d times for structurally invalid input", fx.receipts.calls)
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeRejected {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeRejected)
	}
}

func TestWorkflow_GrantRetriesExhaustThenFail(t *testing.T) {
	fx := newIAPFixture()
	fx.inventory.grantErr = &clients.HTTPError{Service: "PlayerInventory", StatusCode: http.StatusServiceUnavailable, Body: "down"}
	env := newIAPEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validInput())

	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error after grant retries exhaust")
	}
	// Default policy allows 5 attempts.
	if fx.inventory.grantCalls != 5 {
		t.Fatalf("grant attempts = %d, want 5", fx.inventory.grantCalls)
	}
	// The grant never succeeded, so there is nothing to compensate.
	if fx.inventory.revertCalls != 0 {
		t.Fatalf("revert called %d times, want 0", fx.inventory.revertCalls)
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeFailed {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeFailed)
	}
}

func TestWorkflow_NonRetryableGrantFailsImmediately(t *testing.T) {
	fx := newIAPFixture()
	fx.inventory.grantErr = &clients.HTTPError{Service: "PlayerInventory", StatusCode: http.StatusBadRequest, Body: "unknown product"}
	env := newIAPEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validInput())

	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
	if fx.inventory.grantCalls != 1 {
		t.Fatalf("grant attempts = %d, want exactly 1 for a non-retryable failure", fx.inventory.grantCalls)
	}
}

func TestWorkflow_DownstreamNonRetryableFlagHonored(t *testing.T) {
	fx := newIAPFixture()
	fx.inventory.grantResult = clients.GrantEntitlementResult{
		Success:             false,
		ErrorMessage:        "player banned",
		IsNonRetryableError: true,
	}
	env := newIAPEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validInput())

	err := env.GetWorkflowError()
	if err == nil || !failures.IsType(err, failures.TypeEntitlementGrant) {
		t.Fatalf("error = %v, want %s", err, failures.TypeEntitlementGrant)
	}
	if fx.inventory.grantCalls != 1 {
		t.Fatalf("grant attempts = %d, want exactly 1 when downstream flags non-retryable", fx.inventory.grantCalls)
	}
}

func TestWorkflow_ConfirmFailureRevertsGrant(t *testing.T) {
	fx := newIAPFixture()
	fx.inventory.confirmErr = &clients.HTTPError{Service: "PlayerInventory", StatusCode: http.StatusConflict, Body: "ledger mismatch"}
	env := newIAPEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validInput())

	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error after confirmation failure")
	}
	if fx.inventory.grantCalls != 1 {
		t.Fatalf("grant attempts = %d, want 1", fx.inventory.grantCalls)
	}
	if fx.inventory.revertCalls != 1 {
		t.Fatalf("revert attempts = %d, want 1", fx.inventory.revertCalls)
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeFailed {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeFailed)
	}
}

func TestWorkflow_AnalyticsFailureIsBestEffort(t *testing.T) {
	fx := newIAPFixture()
	fx.analytics.err = &clients.HTTPError{Service: "Analytics", StatusCode: http.StatusBadGateway, Body: "flaky"}
	env := newIAPEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validInput())

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var res Result
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.EventTracked {
		t.Fatal("eventTracked = true, want false after analytics failure")
	}
	// BestEffort policy allows 2 attempts.
	if fx.analytics.calls != 2 {
		t.Fatalf("analytics attempts = %d, want 2", fx.analytics.calls)
	}
	if got := fx.audit.outcomes(); len(got) != 1 || got[0] != auditlog.OutcomeCompleted {
		t.Fatalf("audit outcomes = %v, want exactly one %q", got, auditlog.OutcomeCompleted)
	}
}

func TestWorkflow_AuditFailureUnwindsGrant(t *testing.T) {
	fx := newIAPFixture()
	fx.audit.failOutcome = auditlog.OutcomeCompleted
	fx.audit.failErr = &clients.HTTPError{Service: "AuditLogging", StatusCode: http.StatusUnprocessableEntity, Body: "schema rejected"}
	env := newIAPEnv(t, fx)

	env.ExecuteWorkflow(Workflow, validInput())

	err := env.GetWorkflowError()
	if err == nil || !failures.IsType(err, failures.TypeAuditLog) {
		t.Fatalf("error = %v, want %s", err, failures.TypeAuditLog)
	}
	if fx.inventory.revertCalls != 1 {
		t.Fatalf("revert attempts = %d, want 1 after terminal audit failure", fx.inventory.revertCalls)
	}
	// No fallback audit write happens once the audit step itself is the failure.
	if got := fx.audit.outcomes(); len(got) != 0 {
		t.Fatalf("audit outcomes = %v, want none recorded", got)
	}
}
