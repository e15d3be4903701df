package activities

import (
	"context"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/pyroscope"
	"github.com/flexprice/recurring/internal/service"
	"github.com/flexprice/recurring/internal/temporal/models"
	"github.com/flexprice/recurring/internal/types"
)

// SweepActivities runs the subscription maintenance passes for the sweep workflows.
// Methods are registered under their own names, e.g. "ExpireDue".
type SweepActivities struct {
	sweeps        service.SweepService
	subscriptions service.SubscriptionService
	pyroscope     *pyroscope.Service
	logger        *logger.Logger
}

func NewSweepActivities(
	sweeps service.SweepService,
	subscriptions service.SubscriptionService,
	pyroscope *pyroscope.Service,
	logger *logger.Logger,
) *SweepActivities {
	return &SweepActivities{
		sweeps:        sweeps,
		subscriptions: subscriptions,
		pyroscope:     pyroscope,
		logger:        logger,
	}
}

func (a *SweepActivities) ExpireDue(ctx context.Context) (*dto.SweepResponse, error) {
	return a.profiled(ctx, models.ActivityExpireDue, a.sweeps.ExpireDueAllTenants)
}

func (a *SweepActivities) RetryFailing(ctx context.Context) (*dto.SweepResponse, error) {
	return a.profiled(ctx, models.ActivityRetryFailing, a.sweeps.RetryFailingAllTenants)
}

// RepairDuplicateProfiles repairs the profiles of the tenant named by input
func (a *SweepActivities) RepairDuplicateProfiles(ctx context.Context, input models.RepairProfilesWorkflowInput) (*dto.RepairProfilesResponse, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	ctx = types.SetTenantID(ctx, input.TenantID)
	ctx = types.SetEnvironmentID(ctx, input.EnvironmentID)
	if input.UserID != "" {
		ctx = types.SetUserID(ctx, input.UserID)
	}

	var (
		resp *dto.RepairProfilesResponse
		err  error
	)
	a.pyroscope.TagWrapper(ctx, map[string]string{"activity": models.ActivityRepairProfiles}, func(ctx context.Context) {
		resp, err = a.subscriptions.RepairDuplicateProfiles(ctx)
	})
	return resp, err
}

func (a *SweepActivities) profiled(ctx context.Context, name string, fn func(context.Context) (*dto.SweepResponse, error)) (*dto.SweepResponse, error) {
	var (
		resp *dto.SweepResponse
		err  error
	)
	a.pyroscope.TagWrapper(ctx, map[string]string{"activity": name}, func(ctx context.Context) {
		resp, err = fn(ctx)
	})
	if err != nil {
		a.logger.Errorw("sweep activity failed", "activity", name, "error", err)
		return nil, err
	}
	return resp, nil
}
