package testutil

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/clock"
	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/logger"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository fakes for testing
type Stores struct {
	SubscriptionRepo *InMemorySubscriptionStore
	UsageRepo        *InMemoryUsageStore
	HistorySink      *InMemoryHistorySink
	PaymentGateway   *FakePaymentGateway
}

// BaseServiceTestSuite provides common functionality for all service test
// suites: fresh in-memory stores per test, a frozen clock and default config
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	logger *logger.Logger
	config *config.Configuration
	clock  *clock.TestClock
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	var err error
	s.config = config.GetDefaultConfig()
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = GetContext()
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		UsageRepo:        NewInMemoryUsageStore(),
		HistorySink:      NewInMemoryHistorySink(),
		PaymentGateway:   NewFakePaymentGateway(),
	}
	s.clock = clock.NewTestClock(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.SubscriptionRepo.Clear()
	s.stores.UsageRepo.Clear()
	s.stores.HistorySink.Clear()
	s.stores.PaymentGateway.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the store fakes
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetClock returns the frozen test clock
func (s *BaseServiceTestSuite) GetClock() *clock.TestClock {
	return s.clock
}
