package service

import (
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/domain/order"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestClassify(t *testing.T) {
	placed := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	ten := decimal.NewFromInt(10)

	pending := &order.Order{ID: "ord_1", Date: placed, OrderStatus: types.OrderStatusPending}
	settled := &order.Order{ID: "ord_1", Date: placed, OrderStatus: types.OrderStatusComplete, TransactionID: "TX-PARENT"}

	tests := []struct {
		name     string
		parent   *order.Order
		txID     string
		state    types.SaleState
		at       time.Time
		expected PaymentPath
	}{
		{name: "just inside window", parent: pending, txID: "TX-1", state: types.SaleStateCompleted, at: placed.Add(23*time.Hour + 59*time.Minute), expected: PaymentPathInitial},
		{name: "just outside window", parent: pending, txID: "TX-1", state: types.SaleStateCompleted, at: placed.Add(24*time.Hour + time.Minute), expected: PaymentPathRenewal},
		{name: "sale stamped before order", parent: pending, txID: "TX-1", state: types.SaleStateCompleted, at: placed.Add(-time.Hour), expected: PaymentPathInitial},
		{name: "parent transaction matches late redelivery", parent: settled, txID: "TX-PARENT", state: types.SaleStateCompleted, at: placed.Add(40 * 24 * time.Hour), expected: PaymentPathInitial},
		{name: "settled parent sends early sale to renewal", parent: settled, txID: "TX-2", state: types.SaleStateCompleted, at: placed.Add(time.Hour), expected: PaymentPathRenewal},
		{name: "missing parent", parent: nil, txID: "TX-1", state: types.SaleStateCompleted, at: placed, expected: PaymentPathRenewal},
		{name: "denied", parent: pending, txID: "TX-1", state: types.SaleStateDenied, at: placed, expected: PaymentPathDeclined},
		{name: "pending", parent: pending, txID: "TX-1", state: types.SaleStatePending, at: placed, expected: PaymentPathPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := testutil.SaleEvent(types.GatewayTypePayPal, "I-1", tt.txID, tt.state, ten, "USD", tt.at)
			got := Classify(tt.parent, evt, window)
			assert.Equal(t, tt.expected, got.Path)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

type PaymentClassifierSuite struct {
	engineSuite
}

func TestPaymentClassifier(t *testing.T) {
	suite.Run(t, new(PaymentClassifierSuite))
}

func (s *PaymentClassifierSuite) sale(profileID, txID string, state types.SaleState, amount decimal.Decimal, currency string, at time.Time) *gateway.NormalizedEvent {
	return testutil.SaleEvent(types.GatewayTypePayPal, profileID, txID, state, amount, currency, at)
}

func (s *PaymentClassifierSuite) TestInitialPaymentActivates() {
	sub, parent := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusPending})
	evt := s.sale(sub.ProfileID, "TX-INIT", types.SaleStateCompleted, decimal.NewFromInt(10), "USD", s.GetNow().Add(time.Minute))

	outcome, err := s.classifier.Process(s.GetContext(), evt, sub)
	s.Require().NoError(err)
	s.Equal(PaymentPathInitial, outcome.Classification.Path)
	s.Equal(types.SubscriptionStatusActive, outcome.Subscription.SubscriptionStatus)

	stored, err := s.GetStores().Ledger.GetOrder(s.GetContext(), parent.ID)
	s.Require().NoError(err)
	s.Equal(types.OrderStatusComplete, stored.OrderStatus)
	s.Equal("TX-INIT", stored.TransactionID)
	s.Empty(s.GetStores().Ledger.ListRenewals(s.GetContext(), sub.ID))
}

func (s *PaymentClassifierSuite) TestInitialRedeliveryIsNoOp() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusPending})
	evt := s.sale(sub.ProfileID, "TX-INIT", types.SaleStateCompleted, decimal.NewFromInt(10), "USD", s.GetNow())

	_, err := s.classifier.Process(s.GetContext(), evt, sub)
	s.Require().NoError(err)
	version := s.MustGetSubscription(sub.ID).Version

	outcome, err := s.classifier.Process(s.GetContext(), evt, s.MustGetSubscription(sub.ID))
	s.Require().NoError(err)
	s.Equal(PaymentPathInitial, outcome.Classification.Path)
	s.True(outcome.Transition.NoOp)
	s.Equal(version, s.MustGetSubscription(sub.ID).Version)
}

func (s *PaymentClassifierSuite) TestUnderpaidInitialPayment() {
	sub, parent := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusPending})
	evt := s.sale(sub.ProfileID, "TX-LOW", types.SaleStateCompleted, decimal.NewFromFloat(9.99), "USD", s.GetNow())

	outcome, err := s.classifier.Process(s.GetContext(), evt, sub)
	s.Require().Error(err)
	s.True(ierr.IsReconciliation(err))
	s.Require().NotNil(outcome)
	s.Equal(types.SubscriptionStatusFailing, outcome.Subscription.SubscriptionStatus)

	stored, err := s.GetStores().Ledger.GetOrder(s.GetContext(), parent.ID)
	s.Require().NoError(err)
	s.Equal(types.OrderStatusFailed, stored.OrderStatus)
	s.Len(s.GetStores().Ledger.OrderNotes(parent.ID), 1)
	s.Equal(types.SubscriptionStatusFailing, s.MustGetSubscription(sub.ID).SubscriptionStatus)
}

func (s *PaymentClassifierSuite) TestRenewalCurrencyMismatch() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Created: s.GetNow().AddDate(0, -1, 0)})
	evt := s.sale(sub.ProfileID, "TX-EUR", types.SaleStateCompleted, decimal.NewFromInt(10), "EUR", s.GetNow())

	outcome, err := s.classifier.Process(s.GetContext(), evt, sub)
	s.Require().Error(err)
	s.True(ierr.IsReconciliation(err))
	s.Equal(PaymentPathRenewal, outcome.Classification.Path)

	stored := s.MustGetSubscription(sub.ID)
	s.Equal(types.SubscriptionStatusFailing, stored.SubscriptionStatus)
	s.True(stored.Expiration.Equal(*sub.Expiration))
	s.Empty(s.GetStores().Ledger.ListRenewals(s.GetContext(), sub.ID))

	notes := s.notes(sub.ID)
	s.Require().Len(notes, 2)
	s.Contains(notes, "Payment currency EUR does not match subscription currency USD (TX-EUR)")
	s.Contains(notes, "Subscription marked as failing: renewal currency mismatch")
}

func (s *PaymentClassifierSuite) TestSkewedFirstPaymentAgainstPendingParent() {
	sub, parent := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusPending})
	evt := s.sale(sub.ProfileID, "TX-SKEW", types.SaleStateCompleted, decimal.NewFromInt(10), "USD", s.GetNow().Add(48*time.Hour))

	outcome, err := s.classifier.Process(s.GetContext(), evt, sub)
	s.Require().Error(err)
	s.True(ierr.IsReconciliation(err))
	s.Equal(PaymentPathRenewal, outcome.Classification.Path)

	s.Equal(types.SubscriptionStatusPending, s.MustGetSubscription(sub.ID).SubscriptionStatus)
	s.Empty(s.GetStores().Ledger.ListRenewals(s.GetContext(), sub.ID))
	stored, err := s.GetStores().Ledger.GetOrder(s.GetContext(), parent.ID)
	s.Require().NoError(err)
	s.False(stored.IsComplete())

	notes := s.notes(sub.ID)
	s.Require().Len(notes, 1)
	s.Contains(notes[0], "TX-SKEW")

	result := s.dispatcher.Dispatch(s.GetContext(), evt)
	s.Equal(types.DispatchOutcomeFailed, result.Outcome)
	s.True(result.Retryable)
}

func (s *PaymentClassifierSuite) TestDeclinedSaleFailsSubscription() {
	sub, parent := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusPending})
	evt := s.sale(sub.ProfileID, "TX-DENIED", types.SaleStateDenied, decimal.NewFromInt(10), "USD", s.GetNow())

	outcome, err := s.classifier.Process(s.GetContext(), evt, sub)
	s.Require().NoError(err)
	s.Equal(PaymentPathDeclined, outcome.Classification.Path)
	s.Equal(types.SubscriptionStatusFailing, outcome.Subscription.SubscriptionStatus)

	stored, err := s.GetStores().Ledger.GetOrder(s.GetContext(), parent.ID)
	s.Require().NoError(err)
	s.Equal(types.OrderStatusFailed, stored.OrderStatus)
}

func (s *PaymentClassifierSuite) TestPendingSaleHoldsParent() {
	sub, parent := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusPending})
	evt := s.sale(sub.ProfileID, "TX-WAIT", types.SaleStatePending, decimal.NewFromInt(10), "USD", s.GetNow())

	outcome, err := s.classifier.Process(s.GetContext(), evt, sub)
	s.Require().NoError(err)
	s.Equal(PaymentPathPending, outcome.Classification.Path)
	s.Equal(types.SubscriptionStatusPending, s.MustGetSubscription(sub.ID).SubscriptionStatus)

	stored, err := s.GetStores().Ledger.GetOrder(s.GetContext(), parent.ID)
	s.Require().NoError(err)
	s.Equal(types.OrderStatusProcessing, stored.OrderStatus)
}

// A trial checkout is paid, then renewed after the trial ends
func (s *PaymentClassifierSuite) TestTrialCheckoutThenRenewal() {
	now := s.GetNow()
	trialEnd := now.Add(7 * 24 * time.Hour)
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{
		Status:     types.SubscriptionStatusTrialling,
		Expiration: lo.ToPtr(trialEnd),
		TrialEnd:   lo.ToPtr(trialEnd),
	})

	initial := s.sale(sub.ProfileID, "TX-CHECKOUT", types.SaleStateCompleted, decimal.NewFromInt(10), "USD", now.Add(2*time.Hour))
	outcome, err := s.classifier.Process(s.GetContext(), initial, sub)
	s.Require().NoError(err)
	s.Equal(PaymentPathInitial, outcome.Classification.Path)

	stored := s.MustGetSubscription(sub.ID)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.True(stored.Expiration.Equal(trialEnd))

	renewal := s.sale(sub.ProfileID, "TX-MONTH-1", types.SaleStateCompleted, decimal.NewFromInt(10), "USD", now.Add(35*24*time.Hour))
	outcome, err = s.classifier.Process(s.GetContext(), renewal, stored)
	s.Require().NoError(err)
	s.Equal(PaymentPathRenewal, outcome.Classification.Path)
	s.Require().NotNil(outcome.Renewal)
	s.Equal(1, outcome.Renewal.TimesBilled)

	stored = s.MustGetSubscription(sub.ID)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.True(stored.Expiration.Equal(trialEnd.AddDate(0, 1, 0)))
}
