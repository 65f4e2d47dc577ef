package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOfTraversesWrapping(t *testing.T) {
	base := New(CodeInsufficientBalance, "insufficient balance")
	wrapped := fmt.Errorf("withdraw: %w", base)

	if got := CodeOf(wrapped); got != CodeInsufficientBalance {
		t.Fatalf("CodeOf() = %q, want %q", got, CodeInsufficientBalance)
	}
	if !stderrors.Is(wrapped, New(CodeInsufficientBalance, "other message")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if CodeOf(stderrors.New("plain")) != CodeUnknown {
		t.Fatal("plain errors should map to CodeUnknown")
	}
	if CodeOf(nil) != "" {
		t.Fatal("nil error should have no code")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("redis: connection refused")
	err := Wrap(CodeTransient, "load ledger", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause to be reachable through Unwrap")
	}
	if err.Error() != "load ledger: redis: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	tcs := map[Code]int{
		CodeInvalidInput:        http.StatusBadRequest,
		CodeInsufficientBalance: http.StatusUnprocessableEntity,
		CodeTransient:           http.StatusServiceUnavailable,
		CodeRateLimited:         http.StatusTooManyRequests,
		CodeUnauthorized:        http.StatusUnauthorized,
		CodeUnknown:             http.StatusInternalServerError,
	}
	for code, want := range tcs {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}
