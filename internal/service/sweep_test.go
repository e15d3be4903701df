package service

import (
	"context"
	"testing"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type SweepServiceSuite struct {
	engineSuite
}

func TestSweepService(t *testing.T) {
	suite.Run(t, new(SweepServiceSuite))
}

func (s *SweepServiceSuite) at(offset time.Duration) *time.Time {
	return lo.ToPtr(s.GetNow().Add(offset))
}

func (s *SweepServiceSuite) TestExpireDue() {
	grace := s.GetConfig().Sweep.GracePeriod
	day := 24 * time.Hour

	cancelledDue, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusCancelled, Expiration: s.at(-time.Hour)})
	cancelledLater, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusCancelled, Expiration: s.at(day)})
	failingPastGrace, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing, Expiration: s.at(-grace - day)})
	failingInGrace, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing, Expiration: s.at(-day)})
	activeLapsed, _ := s.CreateSubscription(testutil.SubscriptionFixture{Expiration: s.at(-grace - day)})

	resp, err := s.sweeps.ExpireDue(s.GetContext())
	s.Require().NoError(err)
	s.Equal(2, resp.Succeeded)
	s.Zero(resp.Failed)

	s.Equal(types.SubscriptionStatusExpired, s.MustGetSubscription(cancelledDue.ID).SubscriptionStatus)
	s.Equal(types.SubscriptionStatusCancelled, s.MustGetSubscription(cancelledLater.ID).SubscriptionStatus)
	s.Equal(types.SubscriptionStatusExpired, s.MustGetSubscription(failingPastGrace.ID).SubscriptionStatus)
	s.Equal(types.SubscriptionStatusFailing, s.MustGetSubscription(failingInGrace.ID).SubscriptionStatus)
	// active subscriptions wait for the gateway to report the lapse
	s.Equal(types.SubscriptionStatusActive, s.MustGetSubscription(activeLapsed.ID).SubscriptionStatus)

	s.ElementsMatch([]string{types.WebhookEventSubscriptionExpired, types.WebhookEventSubscriptionExpired}, s.publishedEvents())

	again, err := s.sweeps.ExpireDue(s.GetContext())
	s.Require().NoError(err)
	s.Zero(again.Scanned)
}

func (s *SweepServiceSuite) TestExpireDuePagesThroughBatches() {
	s.GetConfig().Sweep.BatchSize = 2
	s.GetConfig().Sweep.Concurrency = 2
	s.setupServices(s.GetStores().SubscriptionRepo)

	for i := 0; i < 5; i++ {
		s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusCancelled, Expiration: s.at(-time.Duration(i+1) * time.Hour)})
	}

	resp, err := s.sweeps.ExpireDue(s.GetContext())
	s.Require().NoError(err)
	s.Equal(5, resp.Succeeded)
	s.Equal(5, resp.Scanned)
}

func (s *SweepServiceSuite) TestRetryFailing() {
	due, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing, Expiration: s.at(-time.Hour)})
	notDue, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing, Expiration: s.at(time.Hour)})
	manual, _ := s.CreateSubscription(testutil.SubscriptionFixture{
		Status:     types.SubscriptionStatusFailing,
		Gateway:    types.GatewayTypeManual,
		Expiration: s.at(-time.Hour),
	})

	resp, err := s.sweeps.RetryFailing(s.GetContext())
	s.Require().NoError(err)
	s.Equal(2, resp.Scanned)
	s.Equal(1, resp.Succeeded)
	s.Equal(1, resp.Skipped)

	s.Equal(types.SubscriptionStatusActive, s.MustGetSubscription(due.ID).SubscriptionStatus)
	s.Equal(types.SubscriptionStatusFailing, s.MustGetSubscription(notDue.ID).SubscriptionStatus)
	s.Equal(types.SubscriptionStatusFailing, s.MustGetSubscription(manual.ID).SubscriptionStatus)
	s.Len(s.GetPayPal().Charges(), 1)
	s.Empty(s.GetManual().Charges())
}

func (s *SweepServiceSuite) TestRetryFailingCountsDeclines() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing, Expiration: s.at(-time.Hour)})
	s.GetPayPal().ChargeFunc = func(context.Context, gateway.ChargeRequest) (*gateway.ChargeResult, error) {
		return nil, ierr.NewError("declined").
			WithHint("Card was declined").
			Mark(ierr.ErrGateway)
	}

	resp, err := s.sweeps.RetryFailing(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Failed)
	s.Require().Len(resp.Errors, 1)
	s.Contains(resp.Errors[0], sub.ID)
	s.Equal(types.SubscriptionStatusFailing, s.MustGetSubscription(sub.ID).SubscriptionStatus)
}

func (s *SweepServiceSuite) TestAllTenants() {
	due, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusCancelled, Expiration: s.at(-time.Hour)})

	otherCtx := types.SetTenantID(s.GetContext(), "tenant_other")
	other := s.MustGetSubscription(due.ID)
	other.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION)
	other.TenantID = "tenant_other"
	other.ProfileID = "I-OTHER"
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(otherCtx, other))

	resp, err := s.sweeps.ExpireDueAllTenants(s.GetContext())
	s.Require().NoError(err)
	s.Equal(2, resp.Succeeded)

	s.Equal(types.SubscriptionStatusExpired, s.MustGetSubscription(due.ID).SubscriptionStatus)
	stored, err := s.GetStores().SubscriptionRepo.Get(otherCtx, other.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusExpired, stored.SubscriptionStatus)

	// settled tenants are not swept again
	resp, err = s.sweeps.RetryFailingAllTenants(s.GetContext())
	s.Require().NoError(err)
	s.Zero(resp.Scanned)
}
