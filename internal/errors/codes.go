// Package errors provides coded errors shared by the ledger, seed pool and
// HTTP layer.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeAmountOverflow Code = "AMOUNT_OVERFLOW"

	// Ledger errors
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeWriteConflict       Code = "LEDGER_WRITE_CONFLICT"
	CodeTransient           Code = "TRANSIENT"

	// Seed commitment errors
	CodeCommitmentNotFound Code = "COMMITMENT_NOT_FOUND"
	CodeVerificationFailed Code = "VERIFICATION_FAILED"

	// Transport errors
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeRateLimited  Code = "RATE_LIMITED"
)

// HTTPStatus maps the code to the status returned by the HTTP handlers.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput, CodeAmountOverflow, CodeVerificationFailed:
		return http.StatusBadRequest
	case CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTransient, CodeWriteConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
