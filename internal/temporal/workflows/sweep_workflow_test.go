package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/temporal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

type SweepWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func TestSweepWorkflow(t *testing.T) {
	suite.Run(t, new(SweepWorkflowSuite))
}

func (s *SweepWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivityWithOptions(func(context.Context) (*dto.SweepResponse, error) { return nil, nil },
		activity.RegisterOptions{Name: models.ActivityExpireDue})
	s.env.RegisterActivityWithOptions(func(context.Context) (*dto.SweepResponse, error) { return nil, nil },
		activity.RegisterOptions{Name: models.ActivityRetryFailing})
	s.env.RegisterActivityWithOptions(func(context.Context, models.RepairProfilesWorkflowInput) (*dto.RepairProfilesResponse, error) { return nil, nil },
		activity.RegisterOptions{Name: models.ActivityRepairProfiles})
}

func (s *SweepWorkflowSuite) AfterTest(_, _ string) {
	s.env.AssertExpectations(s.T())
}

func (s *SweepWorkflowSuite) TestRunsBothPasses() {
	s.env.OnActivity(models.ActivityExpireDue, mock.Anything).Return(&dto.SweepResponse{Scanned: 2, Succeeded: 2}, nil).Once()
	s.env.OnActivity(models.ActivityRetryFailing, mock.Anything).Return(&dto.SweepResponse{Scanned: 1, Failed: 1}, nil).Once()

	s.env.ExecuteWorkflow(SubscriptionSweepWorkflow, models.SweepWorkflowInput{})
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())

	var result models.SweepWorkflowResult
	s.Require().NoError(s.env.GetWorkflowResult(&result))
	s.Require().NotNil(result.Expired)
	s.Equal(2, result.Expired.Succeeded)
	s.Require().NotNil(result.Retried)
	s.Equal(1, result.Retried.Failed)
}

func (s *SweepWorkflowSuite) TestSkipsPasses() {
	s.env.OnActivity(models.ActivityRetryFailing, mock.Anything).Return(&dto.SweepResponse{}, nil).Once()

	s.env.ExecuteWorkflow(SubscriptionSweepWorkflow, models.SweepWorkflowInput{SkipExpire: true})
	s.Require().NoError(s.env.GetWorkflowError())

	var result models.SweepWorkflowResult
	s.Require().NoError(s.env.GetWorkflowResult(&result))
	s.Nil(result.Expired)
	s.NotNil(result.Retried)
}

func (s *SweepWorkflowSuite) TestExpireFailureStillRetries() {
	s.env.OnActivity(models.ActivityExpireDue, mock.Anything).Return(nil, errors.New("database unavailable"))
	s.env.OnActivity(models.ActivityRetryFailing, mock.Anything).Return(&dto.SweepResponse{Succeeded: 1}, nil).Once()

	s.env.ExecuteWorkflow(SubscriptionSweepWorkflow, models.SweepWorkflowInput{})
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *SweepWorkflowSuite) TestRepairProfiles() {
	input := models.RepairProfilesWorkflowInput{TenantID: "tenant_1", EnvironmentID: "env_1"}
	s.env.OnActivity(models.ActivityRepairProfiles, mock.Anything, input).
		Return(&dto.RepairProfilesResponse{Groups: 1, Kept: []string{"sub_1"}, Cleared: []string{"sub_2"}}, nil).Once()

	s.env.ExecuteWorkflow(RepairProfilesWorkflow, input)
	s.Require().NoError(s.env.GetWorkflowError())

	var result dto.RepairProfilesResponse
	s.Require().NoError(s.env.GetWorkflowResult(&result))
	s.Equal([]string{"sub_2"}, result.Cleared)
}

func (s *SweepWorkflowSuite) TestRepairProfilesRequiresTenant() {
	s.env.ExecuteWorkflow(RepairProfilesWorkflow, models.RepairProfilesWorkflowInput{})
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}
