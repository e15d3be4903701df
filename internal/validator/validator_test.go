package validator

import (
	"testing"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/stretchr/testify/assert"
)

type noteRequest struct {
	Text string `validate:"required,max=5"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(&noteRequest{Text: "ok"}))

	err := ValidateRequest(&noteRequest{})
	assert.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	err = ValidateRequest(&noteRequest{Text: "too long"})
	assert.True(t, ierr.IsValidation(err))
	assert.Contains(t, ierr.ReportableDetails(err), "Text")
}
