package httpclient

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	ierr "github.com/flexprice/recurring/internal/errors"
)

// Error is returned for non 2xx responses, it matches ierr.ErrHTTPClient
type Error struct {
	*ierr.InternalError
	StatusCode int
	Response   []byte
}

func (e *Error) Unwrap() error {
	return e.InternalError
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: status %d", e.InternalError.Error(), e.StatusCode)
}

// Retryable reports whether the remote end may accept the same request later
func (e *Error) Retryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError && e.StatusCode != http.StatusNotImplemented
}

func NewError(statusCode int, response []byte) *Error {
	return &Error{
		InternalError: ierr.ErrHTTPClient,
		StatusCode:    statusCode,
		Response:      response,
	}
}

// IsHTTPError unwraps err to a response error
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
