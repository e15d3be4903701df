package testutil

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/cache"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/customer"
	"github.com/flexprice/recurring/internal/domain/order"
	"github.com/flexprice/recurring/internal/domain/subscription"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/locker"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/types"
	"github.com/flexprice/recurring/internal/validator"
	webhookPublisher "github.com/flexprice/recurring/internal/webhook/publisher"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubscriptionRepo *InMemorySubscriptionStore
	NoteRepo         *InMemoryNoteStore
	Ledger           *InMemoryLedger
	CustomerRepo     *InMemoryCustomerStore
	EventLogRepo     *InMemoryEventLogStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx              context.Context
	stores           Stores
	pubSub           *InMemoryPubSub
	webhookPublisher webhookPublisher.WebhookPublisher
	db               postgres.IClient
	logger           *logger.Logger
	config           *config.Configuration
	locker           locker.Locker
	cache            *cache.InMemoryCache
	gateways         *gateway.Registry
	paypal           *FakeAdapter
	manual           *FakeAdapter
	httpClient       *MockHTTPClient
	now              time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupConfig()
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupConfig() {
	cfg := config.GetDefaultConfig()
	cfg.Webhook.Enabled = true
	cfg.Webhook.Topic = "webhooks"
	cfg.Conflict.InitialInterval = time.Millisecond
	cfg.Conflict.MaxInterval = 2 * time.Millisecond
	cfg.Gateway.Timeout = time.Second
	cfg.Sweep.RetryRatePerSecond = 1000
	s.config = cfg
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		NoteRepo:         NewInMemoryNoteStore(),
		Ledger:           NewInMemoryLedger(),
		CustomerRepo:     NewInMemoryCustomerStore(),
		EventLogRepo:     NewInMemoryEventLogStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.locker = locker.NewMemoryLocker()
	s.cache = cache.NewInMemoryCache(s.config)
	s.httpClient = NewMockHTTPClient()

	// paypal charges out of band, manual does not
	s.paypal = NewFakeAdapter(types.GatewayTypePayPal, true)
	s.manual = NewFakeAdapter(types.GatewayTypeManual, false)
	s.gateways = gateway.NewRegistry(s.paypal, s.manual)

	s.pubSub = NewInMemoryPubSub()
	var err error
	s.webhookPublisher, err = webhookPublisher.NewPublisher(s.pubSub, s.config, s.logger)
	if err != nil {
		s.T().Fatalf("failed to create webhook publisher: %v", err)
	}
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SubscriptionRepo.Clear()
	s.stores.NoteRepo.Clear()
	s.stores.Ledger.Clear()
	s.stores.CustomerRepo.Clear()
	s.stores.EventLogRepo.Clear()
	s.pubSub.ClearMessages()
	s.cache.Flush(s.ctx)
}

// ClearStores clears all stores
func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubSub
}

// GetWebhookPublisher returns the test webhook publisher
func (s *BaseServiceTestSuite) GetWebhookPublisher() webhookPublisher.WebhookPublisher {
	return s.webhookPublisher
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetLocker() locker.Locker {
	return s.locker
}

func (s *BaseServiceTestSuite) GetCache() *cache.InMemoryCache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetGateways() *gateway.Registry {
	return s.gateways
}

// GetPayPal returns the fake adapter registered for the paypal gateway
func (s *BaseServiceTestSuite) GetPayPal() *FakeAdapter {
	return s.paypal
}

// GetManual returns the fake adapter registered for the manual gateway
func (s *BaseServiceTestSuite) GetManual() *FakeAdapter {
	return s.manual
}

func (s *BaseServiceTestSuite) GetHTTPClient() *MockHTTPClient {
	return s.httpClient
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

// SubscriptionFixture describes a subscription created by CreateSubscription
type SubscriptionFixture struct {
	Status    types.SubscriptionStatus
	Gateway   types.GatewayType
	ProfileID string
	Currency  string
	Amount    decimal.Decimal
	BillTimes int
	// Created is the checkout time, the parent order is dated at it
	Created    time.Time
	Expiration *time.Time
	TrialEnd   *time.Time
	CustomerID string
}

// CreateSubscription stores a subscription, its customer and its parent order.
// Zero fields default to an active monthly paypal subscription of 10.00 USD.
func (s *BaseServiceTestSuite) CreateSubscription(f SubscriptionFixture) (*subscription.Subscription, *order.Order) {
	if f.Status == "" {
		f.Status = types.SubscriptionStatusActive
	}
	if f.Gateway == "" {
		f.Gateway = types.GatewayTypePayPal
	}
	if f.ProfileID == "" {
		f.ProfileID = types.GenerateUUIDWithPrefix("I")
	}
	if f.Currency == "" {
		f.Currency = "USD"
	}
	if f.Amount.IsZero() {
		f.Amount = decimal.NewFromInt(10)
	}
	if f.Created.IsZero() {
		f.Created = s.now
	}
	if f.Expiration == nil && f.Status != types.SubscriptionStatusPending {
		f.Expiration = lo.ToPtr(f.Created.AddDate(0, 1, 0))
	}
	if f.CustomerID == "" {
		f.CustomerID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER)
		s.Require().NoError(s.stores.CustomerRepo.Create(s.ctx, &customer.Customer{
			ID:        f.CustomerID,
			Email:     f.CustomerID + "@example.com",
			Name:      "Test Customer",
			BaseModel: types.GetDefaultBaseModel(s.ctx),
		}))
	}

	subID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION)
	parent := &order.Order{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER),
		SubscriptionID: lo.ToPtr(subID),
		Kind:           types.OrderKindParent,
		Gateway:        f.Gateway,
		Amount:         f.Amount,
		Currency:       f.Currency,
		OrderStatus:    types.OrderStatusPending,
		Date:           f.Created,
		BaseModel:      types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.stores.Ledger.CreateOrder(s.ctx, parent))

	sub := &subscription.Subscription{
		ID:                 subID,
		CustomerID:         f.CustomerID,
		ProductID:          "prod_recurring",
		ParentPaymentID:    parent.ID,
		Gateway:            f.Gateway,
		ProfileID:          f.ProfileID,
		Period:             types.BILLING_PERIOD_MONTHLY,
		PeriodCount:        1,
		Currency:           f.Currency,
		InitialAmount:      f.Amount,
		RecurringAmount:    f.Amount,
		BillTimes:          f.BillTimes,
		SubscriptionStatus: f.Status,
		Created:            f.Created,
		Expiration:         f.Expiration,
		TrialEnd:           f.TrialEnd,
		BaseModel:          types.GetDefaultBaseModel(s.ctx),
	}
	sub.CreatedAt = f.Created
	s.Require().NoError(s.stores.SubscriptionRepo.Create(s.ctx, sub))

	stored, err := s.stores.SubscriptionRepo.Get(s.ctx, subID)
	s.Require().NoError(err)
	return stored, parent
}

// MustGetSubscription reloads a subscription from the store
func (s *BaseServiceTestSuite) MustGetSubscription(id string) *subscription.Subscription {
	sub, err := s.stores.SubscriptionRepo.Get(s.ctx, id)
	s.Require().NoError(err)
	return sub
}
