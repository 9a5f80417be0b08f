package failures

import (
	"errors"
	"fmt"
	"testing"

	"go.temporal.io/sdk/temporal"

	"github.com/glyphworks/puzzle-backend/internal/clients"
)

func asApplicationError(t *testing.T, err error) *temporal.ApplicationError {
	t.Helper()
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("error %v is not an ApplicationError", err)
	}
	return appErr
}

func TestFromClientError_ClientErrorsAreNonRetryable(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404, 409, 422} {
		err := FromClientError(TypeEntitlementGrant, &clients.HTTPError{Service: "x", StatusCode: code, Body: "no"})
		appErr := asApplicationError(t, err)
		if !appErr.NonRetryable() {
			t.Errorf("status %d should be non-retryable", code)
		}
		if appErr.Type() != TypeEntitlementGrant {
			t.Errorf("status %d: type = %q, want %q", code, appErr.Type(), TypeEntitlementGrant)
		}
	}
}

func TestFromClientError_ServerAndThrottleErrorsStayRetryable(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		err := FromClientError(TypeLeaderboardSubmit, &clients.HTTPError{Service: "x", StatusCode: code, Body: "later"})
		appErr := asApplicationError(t, err)
		if appErr.NonRetryable() {
			t.Errorf("status %d should stay retryable", code)
		}
	}
}

func TestFromClientError_TransportErrorsStayRetryable(t *testing.T) {
	err := FromClientError(TypeCheatDetection, fmt.Errorf("dial tcp: connection refused"))
	appErr := asApplicationError(t, err)
	if appErr.NonRetryable() {
		t.Fatal("unclassified transport errors should stay retryable")
	}
}

func TestFromClientError_PassesThroughExistingApplicationErrors(t *testing.T) {
	orig := NonRetryable(TypeAuditLog, "already classified")
	got := FromClientError(TypeLeaderboardSubmit, orig)
	if !IsType(got, TypeAuditLog) {
		t.Fatalf("existing classification overwritten: %v", got)
	}
}

func TestFromClientError_NilIsNil(t *testing.T) {
	if err := FromClientError(TypeAuditLog, nil); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestIsType(t *testing.T) {
	err := Retryable(TypeInventoryConfirm, "not yet")
	if !IsType(err, TypeInventoryConfirm) {
		t.Fatal("IsType should match the assigned type")
	}
	if IsType(err, TypeAuditLog) {
		t.Fatal("IsType matched the wrong type")
	}
	if IsType(fmt.Errorf("plain"), TypeAuditLog) {
		t.Fatal("IsType matched a plain error")
	}
	if IsType(nil, TypeAuditLog) {
		t.Fatal("IsType matched nil")
	}
}
