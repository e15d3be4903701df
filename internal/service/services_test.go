package service

import (
	"context"
	"sync/atomic"

	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/testutil"
)

// engineSuite wires every service of the engine over the in-memory stores
type engineSuite struct {
	testutil.BaseServiceTestSuite

	params        ServiceParams
	lifecycle     LifecycleService
	recorder      RenewalRecorder
	classifier    PaymentClassifier
	retry         RetryService
	dispatcher    WebhookDispatcher
	eventLog      EventLogService
	subscriptions SubscriptionService
	customers     CustomerService
	sweeps        SweepService
}

func (s *engineSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupServices(s.GetStores().SubscriptionRepo)
}

// setupServices builds the services on subRepo, so tests can wrap the store
func (s *engineSuite) setupServices(subRepo subscription.Repository) {
	stores := s.GetStores()
	s.params = NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		subRepo,
		stores.NoteRepo,
		stores.Ledger,
		stores.CustomerRepo,
		stores.EventLogRepo,
		s.GetGateways(),
		s.GetLocker(),
		s.GetCache(),
		s.GetWebhookPublisher(),
		s.GetHTTPClient(),
	)

	s.lifecycle = NewLifecycleService(s.params)
	s.recorder = NewRenewalRecorder(s.params, s.lifecycle)
	s.classifier = NewPaymentClassifier(s.params, s.lifecycle, s.recorder)
	s.retry = NewRetryService(s.params, s.lifecycle, s.recorder)
	s.dispatcher = NewWebhookDispatcher(s.params, s.lifecycle, s.classifier)
	s.eventLog = NewEventLogService(s.params)
	s.customers = NewCustomerService(s.params)
	s.subscriptions = NewSubscriptionService(s.params, s.customers)
	s.sweeps = NewSweepService(s.params, s.lifecycle, s.retry)
}

func (s *engineSuite) notes(subscriptionID string) []string {
	notes, err := s.GetStores().NoteRepo.ListNotes(s.GetContext(), subscriptionID)
	s.Require().NoError(err)
	texts := make([]string, 0, len(notes))
	for _, n := range notes {
		texts = append(texts, n.Text)
	}
	return texts
}

func (s *engineSuite) publishedEvents() []string {
	events := s.GetPubSub().WebhookEvents(s.GetConfig().Webhook.Topic)
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.EventName)
	}
	return names
}

// conflictingRepo fails the first n updates with a version conflict
type conflictingRepo struct {
	subscription.Repository
	remaining atomic.Int64
	updates   atomic.Int64
}

func newConflictingRepo(repo subscription.Repository, n int64) *conflictingRepo {
	r := &conflictingRepo{Repository: repo}
	r.remaining.Store(n)
	return r
}

func (r *conflictingRepo) Update(ctx context.Context, sub *subscription.Subscription) error {
	r.updates.Add(1)
	if r.remaining.Add(-1) >= 0 {
		return ierr.NewError("injected conflict").
			Mark(ierr.ErrVersionConflict)
	}
	return r.Repository.Update(ctx, sub)
}
