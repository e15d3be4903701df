package service

import (
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	engineSuite
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) TestGetSubscription() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})
	_, err := s.recorder.Record(s.GetContext(), sub.ID, RenewalInput{
		TransactionID: "TX-1", Amount: decimal.NewFromInt(10), Currency: "USD",
	})
	s.Require().NoError(err)

	resp, err := s.subscriptions.GetSubscription(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(sub.ID, resp.ID)
	s.Equal(1, resp.TimesBilled)
	s.Len(resp.Notes, 1)
	s.Require().NotNil(resp.Customer)
	s.Equal(sub.CustomerID, resp.Customer.ID)

	_, err = s.subscriptions.GetSubscription(s.GetContext(), "")
	s.True(ierr.IsValidation(err))

	_, err = s.subscriptions.GetSubscription(s.GetContext(), "sub_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestGetSubscriptionWithoutCustomer() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{CustomerID: "cust_gone"})

	resp, err := s.subscriptions.GetSubscription(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Nil(resp.Customer)
}

func (s *SubscriptionServiceSuite) TestListSubscriptions() {
	for i := 0; i < 3; i++ {
		s.CreateSubscription(testutil.SubscriptionFixture{})
	}
	failing, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusFailing})

	all, err := s.subscriptions.ListSubscriptions(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Len(all.Items, 4)
	s.Equal(4, all.Pagination.Total)

	filter := types.NewSubscriptionFilter()
	filter.SubscriptionStatus = []types.SubscriptionStatus{types.SubscriptionStatusFailing}
	resp, err := s.subscriptions.ListSubscriptions(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal(failing.ID, resp.Items[0].ID)
	s.Nil(resp.Items[0].Notes)

	filter = types.NewSubscriptionFilter()
	filter.Limit = lo.ToPtr(2)
	page, err := s.subscriptions.ListSubscriptions(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Len(page.Items, 2)
	s.Equal(4, page.Pagination.Total)
}

func (s *SubscriptionServiceSuite) TestCustomerLookupsAreCached() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})
	repo := s.GetStores().CustomerRepo

	_, err := s.subscriptions.GetSubscription(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	_, err = s.subscriptions.GetSubscription(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), repo.Gets())

	s.customers.InvalidateCustomer(s.GetContext(), sub.CustomerID)
	_, err = s.customers.GetCustomer(s.GetContext(), sub.CustomerID)
	s.Require().NoError(err)
	s.Equal(int64(2), repo.Gets())
}

func (s *SubscriptionServiceSuite) TestUpdateSubscription() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})
	expiration := s.GetNow().Add(90 * 24 * time.Hour)

	resp, err := s.subscriptions.UpdateSubscription(s.GetContext(), sub.ID, dto.UpdateSubscriptionRequest{
		RecurringAmount: lo.ToPtr(decimal.NewFromInt(15)),
		BillTimes:       lo.ToPtr(12),
		Expiration:      lo.ToPtr(expiration),
	})
	s.Require().NoError(err)
	s.True(resp.RecurringAmount.Equal(decimal.NewFromInt(15)))

	stored := s.MustGetSubscription(sub.ID)
	s.Equal(12, stored.BillTimes)
	s.True(stored.Expiration.Equal(expiration))
	s.Equal(sub.Version+1, stored.Version)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.Equal([]string{"Subscription details updated"}, s.notes(sub.ID))
}

func (s *SubscriptionServiceSuite) TestUpdateRejectsTakenProfile() {
	taken, _ := s.CreateSubscription(testutil.SubscriptionFixture{ProfileID: "I-TAKEN"})
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	_, err := s.subscriptions.UpdateSubscription(s.GetContext(), sub.ID, dto.UpdateSubscriptionRequest{
		ProfileID: lo.ToPtr(taken.ProfileID),
	})
	s.Require().Error(err)
	s.True(ierr.IsAlreadyExists(err))
	s.Equal(sub.ProfileID, s.MustGetSubscription(sub.ID).ProfileID)

	_, err = s.subscriptions.UpdateSubscription(s.GetContext(), sub.ID, dto.UpdateSubscriptionRequest{})
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestAddNote() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	note, err := s.subscriptions.AddNote(s.GetContext(), sub.ID, dto.AddSubscriptionNoteRequest{Text: "called the customer"})
	s.Require().NoError(err)
	s.Equal(sub.ID, note.SubscriptionID)
	s.Equal(types.DefaultUserID, note.CreatedBy)
	s.Equal([]string{"called the customer"}, s.notes(sub.ID))

	_, err = s.subscriptions.AddNote(s.GetContext(), sub.ID, dto.AddSubscriptionNoteRequest{})
	s.True(ierr.IsValidation(err))

	_, err = s.subscriptions.AddNote(s.GetContext(), "sub_missing", dto.AddSubscriptionNoteRequest{Text: "x"})
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestRepairDuplicateProfiles() {
	now := s.GetNow()
	oldest, _ := s.CreateSubscription(testutil.SubscriptionFixture{ProfileID: "I-DUP", Created: now.Add(-48 * time.Hour)})
	middle, _ := s.CreateSubscription(testutil.SubscriptionFixture{ProfileID: "I-DUP", Created: now.Add(-24 * time.Hour)})
	newest, _ := s.CreateSubscription(testutil.SubscriptionFixture{ProfileID: "I-DUP", Created: now})
	other, _ := s.CreateSubscription(testutil.SubscriptionFixture{ProfileID: "I-DUP", Gateway: types.GatewayTypeManual})
	unique, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	resp, err := s.subscriptions.RepairDuplicateProfiles(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Groups)
	s.Equal([]string{oldest.ID}, resp.Kept)
	s.ElementsMatch([]string{middle.ID, newest.ID}, resp.Cleared)
	s.Empty(resp.Failures)

	s.Equal("I-DUP", s.MustGetSubscription(oldest.ID).ProfileID)
	s.Empty(s.MustGetSubscription(middle.ID).ProfileID)
	s.Empty(s.MustGetSubscription(newest.ID).ProfileID)
	s.Equal("I-DUP", s.MustGetSubscription(other.ID).ProfileID)
	s.Equal(unique.ProfileID, s.MustGetSubscription(unique.ID).ProfileID)
	s.Equal([]string{"Cleared gateway profile I-DUP, it belongs to subscription " + oldest.ID}, s.notes(middle.ID))

	// a second run has nothing left to repair
	resp, err = s.subscriptions.RepairDuplicateProfiles(s.GetContext())
	s.Require().NoError(err)
	s.Zero(resp.Groups)
}
