package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/temporal/models"
	"github.com/flexprice/recurring/internal/types"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Service starts the subscription sweep workflows
type Service struct {
	client *TemporalClient
	log    *logger.Logger
	cfg    *config.TemporalConfig
}

// NewService creates a new Temporal service
func NewService(client *TemporalClient, cfg *config.Configuration, log *logger.Logger) *Service {
	return &Service{
		client: client,
		log:    log,
		cfg:    &cfg.Temporal,
	}
}

// ScheduleSweeps starts the cron sweep workflow. Starting it again while a run
// is scheduled returns the existing run.
func (s *Service) ScheduleSweeps(ctx context.Context) (string, error) {
	options := client.StartWorkflowOptions{
		ID:                    models.SubscriptionSweepWorkflowID,
		TaskQueue:             s.cfg.TaskQueue,
		CronSchedule:          s.cfg.SweepCron,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	we, err := s.client.Client.ExecuteWorkflow(ctx, options, models.SubscriptionSweepWorkflow, models.SweepWorkflowInput{})
	if err != nil {
		s.log.Errorw("failed to schedule sweep workflow", "error", err)
		return "", ierr.WithError(err).
			WithHint("Could not schedule the subscription sweeps").
			Mark(ierr.ErrSystem)
	}

	s.log.Infow("scheduled sweep workflow",
		"workflow_id", we.GetID(),
		"run_id", we.GetRunID(),
		"cron", s.cfg.SweepCron)
	return we.GetRunID(), nil
}

// StartProfileRepair runs the duplicate profile repair for the tenant in ctx
func (s *Service) StartProfileRepair(ctx context.Context) (string, error) {
	input := models.RepairProfilesWorkflowInput{
		TenantID:      types.GetTenantID(ctx),
		EnvironmentID: types.GetEnvironmentID(ctx),
		UserID:        types.GetUserID(ctx),
	}
	if err := input.Validate(); err != nil {
		return "", err
	}

	options := client.StartWorkflowOptions{
		ID:                    fmt.Sprintf("repair-profiles-%s-%d", input.TenantID, time.Now().Unix()),
		TaskQueue:             s.cfg.TaskQueue,
		WorkflowRunTimeout:    time.Hour,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	}

	we, err := s.client.Client.ExecuteWorkflow(ctx, options, models.RepairProfilesWorkflow, input)
	if err != nil {
		s.log.Errorw("failed to start profile repair workflow", "tenant_id", input.TenantID, "error", err)
		return "", ierr.WithError(err).
			WithHint("Could not start the profile repair").
			Mark(ierr.ErrSystem)
	}
	return we.GetID(), nil
}

// Close closes the temporal client
func (s *Service) Close() {
	s.client.Close()
}
