package models

import (
	"github.com/flexprice/recurring/internal/api/dto"
	ierr "github.com/flexprice/recurring/internal/errors"
)

const (
	SubscriptionSweepWorkflow   = "SubscriptionSweepWorkflow"
	RepairProfilesWorkflow      = "RepairProfilesWorkflow"
	ActivityExpireDue           = "ExpireDue"
	ActivityRetryFailing        = "RetryFailing"
	ActivityRepairProfiles      = "RepairDuplicateProfiles"
	SubscriptionSweepWorkflowID = "subscription-sweep"
)

// SweepWorkflowInput selects the passes run by a scheduled sweep
type SweepWorkflowInput struct {
	SkipExpire bool `json:"skip_expire,omitempty"`
	SkipRetry  bool `json:"skip_retry,omitempty"`
}

// SweepWorkflowResult carries the outcome of each pass. A skipped pass is nil.
type SweepWorkflowResult struct {
	Expired *dto.SweepResponse `json:"expired,omitempty"`
	Retried *dto.SweepResponse `json:"retried,omitempty"`
}

// RepairProfilesWorkflowInput represents input for the duplicate profile repair workflow
type RepairProfilesWorkflowInput struct {
	TenantID      string `json:"tenant_id"`
	EnvironmentID string `json:"environment_id"`
	UserID        string `json:"user_id"`
}

func (r *RepairProfilesWorkflowInput) Validate() error {
	if r.TenantID == "" {
		return ierr.NewError("tenant ID is required").
			WithHint("Tenant ID is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
