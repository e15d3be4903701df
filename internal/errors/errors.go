package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound          = New(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists     = New(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict   = New(ErrCodeVersionConflict, "version conflict")
	ErrValidation        = New(ErrCodeValidation, "validation error")
	ErrInvalidOperation  = New(ErrCodeInvalidOperation, "invalid operation")
	ErrInvalidTransition = New(ErrCodeInvalidTransition, "invalid state transition")
	ErrReconciliation    = New(ErrCodeReconciliation, "reconciliation mismatch")
	ErrGateway           = New(ErrCodeGateway, "payment gateway error")
	ErrRetryInProgress   = New(ErrCodeRetryInProgress, "retry already in progress")
	ErrPermissionDenied  = New(ErrCodePermissionDenied, "permission denied")
	ErrHTTPClient        = New(ErrCodeHTTPClient, "http client error")
	ErrDatabase          = New(ErrCodeDatabase, "database error")
	ErrSystem            = New(ErrCodeSystemError, "system error")

	// maps errors to http status codes, checked in order
	statusCodes = []struct {
		err    error
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrVersionConflict, http.StatusConflict},
		{ErrRetryInProgress, http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidOperation, http.StatusBadRequest},
		{ErrInvalidTransition, http.StatusUnprocessableEntity},
		{ErrReconciliation, http.StatusUnprocessableEntity},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrGateway, http.StatusBadGateway},
		{ErrHTTPClient, http.StatusInternalServerError},
		{ErrDatabase, http.StatusInternalServerError},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeHTTPClient        = "http_client_error"
	ErrCodeSystemError       = "system_error"
	ErrCodeNotFound          = "not_found"
	ErrCodeAlreadyExists     = "already_exists"
	ErrCodeVersionConflict   = "version_conflict"
	ErrCodeValidation        = "validation_error"
	ErrCodeInvalidOperation  = "invalid_operation"
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeReconciliation    = "reconciliation_error"
	ErrCodeGateway           = "gateway_error"
	ErrCodeRetryInProgress   = "retry_in_progress"
	ErrCodeDatabase          = "database_error"
	ErrCodePermissionDenied  = "permission_denied"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// New creates a new InternalError
func New(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a passthrough to cockroachdb errors.Is so callers only import one package
func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsVersionConflict checks if an error is a version conflict error
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsInvalidTransition checks if an error is an invalid lifecycle transition
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsReconciliation checks if an error is an amount or currency mismatch
func IsReconciliation(err error) bool {
	return errors.Is(err, ErrReconciliation)
}

// IsGateway checks if an error came from a payment gateway call
func IsGateway(err error) bool {
	return errors.Is(err, ErrGateway)
}

// IsRetryInProgress checks if an error is a rejected concurrent retry
func IsRetryInProgress(err error) bool {
	return errors.Is(err, ErrRetryInProgress)
}

// IsHTTPClient checks if an error is an http client error
func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsDatabase checks if an error is a database error
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

func HTTPStatusFromErr(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}
