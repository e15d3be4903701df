package temporal

import (
	"github.com/flexprice/recurring/internal/temporal/activities"
	"github.com/flexprice/recurring/internal/temporal/models"
	"github.com/flexprice/recurring/internal/temporal/workflows"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// RegisterWorkflowsAndActivities registers the sweep workflows and their activities with a worker.
func RegisterWorkflowsAndActivities(w worker.Registry, sweeps *activities.SweepActivities) {
	w.RegisterWorkflowWithOptions(workflows.SubscriptionSweepWorkflow, workflow.RegisterOptions{Name: models.SubscriptionSweepWorkflow})
	w.RegisterWorkflowWithOptions(workflows.RepairProfilesWorkflow, workflow.RegisterOptions{Name: models.RepairProfilesWorkflow})

	w.RegisterActivityWithOptions(sweeps.ExpireDue, activity.RegisterOptions{Name: models.ActivityExpireDue})
	w.RegisterActivityWithOptions(sweeps.RetryFailing, activity.RegisterOptions{Name: models.ActivityRetryFailing})
	w.RegisterActivityWithOptions(sweeps.RepairDuplicateProfiles, activity.RegisterOptions{Name: models.ActivityRepairProfiles})
}
