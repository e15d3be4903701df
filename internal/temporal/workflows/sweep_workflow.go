package workflows

import (
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/temporal/models"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

func sweepActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute * 30,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
}

// SubscriptionSweepWorkflow expires due subscriptions, then retries the failing ones.
// It is scheduled on a cron and a failed expiration pass does not block the retry pass.
func SubscriptionSweepWorkflow(ctx workflow.Context, input models.SweepWorkflowInput) (*models.SweepWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting subscription sweep workflow", "skipExpire", input.SkipExpire, "skipRetry", input.SkipRetry)

	ctx = workflow.WithActivityOptions(ctx, sweepActivityOptions())
	result := &models.SweepWorkflowResult{}

	var expireErr error
	if !input.SkipExpire {
		var expired dto.SweepResponse
		expireErr = workflow.ExecuteActivity(ctx, models.ActivityExpireDue).Get(ctx, &expired)
		if expireErr != nil {
			logger.Error("Expiration pass failed", "error", expireErr)
		} else {
			result.Expired = &expired
		}
	}

	if !input.SkipRetry {
		var retried dto.SweepResponse
		if err := workflow.ExecuteActivity(ctx, models.ActivityRetryFailing).Get(ctx, &retried); err != nil {
			logger.Error("Retry pass failed", "error", err)
			return result, err
		}
		result.Retried = &retried
	}

	if expireErr != nil {
		return result, expireErr
	}
	return result, nil
}

// RepairProfilesWorkflow clears gateway profiles shared by more than one subscription of a tenant
func RepairProfilesWorkflow(ctx workflow.Context, input models.RepairProfilesWorkflowInput) (*dto.RepairProfilesResponse, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting profile repair workflow", "tenantID", input.TenantID)

	if err := input.Validate(); err != nil {
		return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), "validation", err)
	}

	ctx = workflow.WithActivityOptions(ctx, sweepActivityOptions())

	var result dto.RepairProfilesResponse
	if err := workflow.ExecuteActivity(ctx, models.ActivityRepairProfiles, input).Get(ctx, &result); err != nil {
		logger.Error("Profile repair failed", "tenantID", input.TenantID, "error", err)
		return nil, err
	}

	return &result, nil
}
