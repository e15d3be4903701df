package service

import (
	"context"
	"testing"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/suite"
)

type RetryServiceSuite struct {
	engineSuite
}

func TestRetryService(t *testing.T) {
	suite.Run(t, new(RetryServiceSuite))
}

func (s *RetryServiceSuite) TestCanRetry() {
	failing, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing})
	active, _ := s.CreateSubscription(testutil.SubscriptionFixture{})
	manual, _ := s.CreateSubscription(testutil.SubscriptionFixture{
		Status:  types.SubscriptionStatusFailing,
		Gateway: types.GatewayTypeManual,
	})
	stripe, _ := s.CreateSubscription(testutil.SubscriptionFixture{
		Status:  types.SubscriptionStatusFailing,
		Gateway: types.GatewayTypeStripe,
	})

	tests := []struct {
		name     string
		id       string
		expected bool
	}{
		{name: "failing paypal", id: failing.ID, expected: true},
		{name: "active", id: active.ID, expected: false},
		{name: "gateway without retry", id: manual.ID, expected: false},
		{name: "gateway not configured", id: stripe.ID, expected: false},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.retry.CanRetry(s.GetContext(), tt.id)
			s.Require().NoError(err)
			s.Equal(tt.expected, resp.CanRetry)
			if !tt.expected {
				s.NotEmpty(resp.Reason)
			}
		})
	}
}

func (s *RetryServiceSuite) TestRetrySuccessRenews() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing})

	resp, err := s.retry.Retry(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.True(resp.Success)
	s.NotEmpty(resp.Reference)
	s.NotEmpty(resp.TransactionID)
	s.Equal(types.SubscriptionStatusActive, resp.Subscription.SubscriptionStatus)

	charges := s.GetPayPal().Charges()
	s.Require().Len(charges, 1)
	s.Equal(sub.ProfileID, charges[0].ProfileID)
	s.True(charges[0].Amount.Equal(sub.RecurringAmount))
	s.NotEmpty(charges[0].IdempotencyKey)

	renewals := s.GetStores().Ledger.ListRenewals(s.GetContext(), sub.ID)
	s.Require().Len(renewals, 1)
	s.Equal(resp.TransactionID, renewals[0].TransactionID)
	notes := s.GetStores().Ledger.OrderNotes(renewals[0].ID)
	s.Require().Len(notes, 1)
	s.Contains(notes[0].Text, resp.Reference)
}

func (s *RetryServiceSuite) TestRetryFailureIsNoted() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing})
	s.GetPayPal().ChargeFunc = func(context.Context, gateway.ChargeRequest) (*gateway.ChargeResult, error) {
		return nil, ierr.NewError("insufficient funds").
			WithHint("Card was declined").
			Mark(ierr.ErrGateway)
	}

	resp, err := s.retry.Retry(s.GetContext(), sub.ID)
	s.Require().Error(err)
	s.True(ierr.IsGateway(err))
	s.Require().NotNil(resp)
	s.False(resp.Success)
	s.Equal("Card was declined", resp.Reason)

	stored := s.MustGetSubscription(sub.ID)
	s.Equal(types.SubscriptionStatusFailing, stored.SubscriptionStatus)
	s.Equal(sub.Version, stored.Version)
	s.Equal([]string{"Payment retry " + resp.Reference + " failed: Card was declined"}, s.notes(sub.ID))
	s.Empty(s.GetStores().Ledger.ListRenewals(s.GetContext(), sub.ID))
}

func (s *RetryServiceSuite) TestRetryIneligible() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	_, err := s.retry.Retry(s.GetContext(), sub.ID)
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))
	s.Empty(s.GetPayPal().Charges())
}

func (s *RetryServiceSuite) TestRetryInProgress() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing})

	started := make(chan struct{})
	release := make(chan struct{})
	s.GetPayPal().ChargeFunc = func(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
		close(started)
		<-release
		return &gateway.ChargeResult{
			TransactionID: "TX-SLOW",
			Amount:        req.Amount,
			Currency:      req.Currency,
			ChargedAt:     time.Now().UTC(),
		}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.retry.Retry(s.GetContext(), sub.ID)
		done <- err
	}()
	<-started

	_, err := s.retry.Retry(s.GetContext(), sub.ID)
	s.Require().Error(err)
	s.True(ierr.IsRetryInProgress(err))

	close(release)
	s.Require().NoError(<-done)
	s.Len(s.GetPayPal().Charges(), 1)
	s.Equal(types.SubscriptionStatusActive, s.MustGetSubscription(sub.ID).SubscriptionStatus)
}
