package router

import (
	"errors"
	"net"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/logger"
)

// shouldRetry keeps redelivering transient failures and drops the rest
func shouldRetry(logger *logger.Logger, err error) bool {
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		logger.Debugw("delivery got an http error",
			"status_code", httpErr.StatusCode,
			"retryable", httpErr.Retryable(),
			"error", httpErr,
		)
		return httpErr.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	if ierr.IsValidation(err) ||
		ierr.IsNotFound(err) ||
		ierr.IsPermissionDenied(err) ||
		ierr.IsInvalidOperation(err) {
		return false
	}

	return true
}
