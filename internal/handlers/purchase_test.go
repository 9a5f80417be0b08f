package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/glyphworks/puzzle-backend/internal/domain"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/iapflow"
	"github.com/glyphworks/puzzle-backend/internal/temporalx/scoreflow"
)

type fakeOrchestrator struct {
	iapInput   *iapflow.Input
	scoreInput *scoreflow.Input
	run        *domain.WorkflowRun
	err        error
}

func (f *fakeOrchestrator) StartIAPProcessing(ctx context.Context, input iapflow.Input) (*domain.WorkflowRun, error) {
	f.iapInput = &input
	return f.run, f.err
}

func (f *fakeOrchestrator) StartScoreSubmission(ctx context.Context, input scoreflow.Input) (*domain.WorkflowRun, error) {
	f.scoreInput = &input
	return f.run, f.err
}

func (f *fakeOrchestrator) GetWorkflowRun(ctx context.Context, workflowID string) (*domain.WorkflowRun, error) {
	return f.run, f.err
}

func (f *fakeOrchestrator) ListPlayerRuns(ctx context.Context, playerID string, limit int) ([]*domain.WorkflowRun, error) {
	if f.run == nil {
		return nil, f.err
	}
	return []*domain.WorkflowRun{f.run}, f.err
}

func newPurchaseRouter(orch *fakeOrchestrator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewPurchaseHandler(orch)
	r.POST("/api/v1/purchases/process", h.Process)
	return r
}

func TestPurchaseProcess_Accepted(t *testing.T) {
	orch := &fakeOrchestrator{run: &domain.WorkflowRun{
		WorkflowID: "iap-txn-1",
		Status:     domain.RunStatusRunning,
	}}
	router := newPurchaseRouter(orch)

	body := `{
		"playerId": "player-1",
		"productId": "prod-1",
		"transactionId": "txn-1",
		"platform": "ios",
		"receiptData": "abc",
		"quantity": 2,
		"priceInCents": 499,
		"currency": "USD"
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases/process", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", w.Code, w.Body.String())
	}
	if orch.iapInput == nil {
		t.Fatal("orchestrator never called")
	}
	if orch.iapInput.TransactionID != "txn-1" || orch.iapInput.Quantity != 2 {
		t.Fatalf("input = %+v", orch.iapInput)
	}
	if !strings.Contains(w.Body.String(), "iap-txn-1") {
		t.Fatalf("body = %s, want workflow run echoed", w.Body.String())
	}
}

func TestPurchaseProcess_MissingFieldsRejected(t *testing.T) {
	orch := &fakeOrchestrator{}
	router := newPurchaseRouter(orch)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases/process", strings.NewReader(`{"playerId":"p"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if orch.iapInput != nil {
		t.Fatal("orchestrator called for an invalid payload")
	}
}

func TestPurchaseProcess_StartFailure(t *testing.T) {
	orch := &fakeOrchestrator{err: fmt.Errorf("engine unavailable")}
	router := newPurchaseRouter(orch)

	body := `{
		"playerId": "player-1",
		"productId": "prod-1",
		"transactionId": "txn-1",
		"platform": "ios",
		"receiptData": "abc"
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases/process", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestScoreSubmit_Accepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	orch := &fakeOrchestrator{run: &domain.WorkflowRun{
		WorkflowID: "score-sub-1",
		Status:     domain.RunStatusRunning,
	}}
	r := gin.New()
	r.POST("/api/v1/scores/submit", NewScoreHandler(orch).Submit)

	body := `{
		"playerId": "player-1",
		"scoreData": {"score": 1200, "levelId": "l3", "moves": 18, "timeTakenMs": 45000}
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scores/submit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", w.Code, w.Body.String())
	}
	if orch.scoreInput == nil || orch.scoreInput.ScoreData.Score != 1200 {
		t.Fatalf("input = %+v", orch.scoreInput)
	}
}

func TestWorkflowGet_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	orch := &fakeOrchestrator{run: nil}
	r := gin.New()
	r.GET("/api/v1/workflows/:id", NewWorkflowHandler(orch).Get)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/iap-unknown", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
