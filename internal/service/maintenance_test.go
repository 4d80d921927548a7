package service

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/tier"
	"github.com/billforge/billforge/internal/types"
	"github.com/stretchr/testify/suite"
)

type MaintenanceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service             MaintenanceService
	subscriptionService SubscriptionService
}

func TestMaintenanceService(t *testing.T) {
	suite.Run(t, new(MaintenanceServiceSuite))
}

func (s *MaintenanceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := s.serviceParams()
	s.service = NewMaintenanceService(params)
	s.subscriptionService = NewSubscriptionService(params)
}

func (s *MaintenanceServiceSuite) serviceParams() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		Clock:          s.GetClock(),
		SubRepo:        stores.SubscriptionRepo,
		UsageRepo:      stores.UsageRepo,
		TierProvider:   tier.NewConfigProvider(s.GetConfig()),
		HistorySink:    stores.HistorySink,
		PaymentGateway: stores.PaymentGateway,
	}
}

func (s *MaintenanceServiceSuite) setupActiveSubscription(userID string) string {
	created, err := s.subscriptionService.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		UserID:       userID,
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		AutoRenewal:  true,
	})
	s.NoError(err)
	_, err = s.subscriptionService.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	return created.ID
}

func (s *MaintenanceServiceSuite) TestProcessDueBillingCharges() {
	id := s.setupActiveSubscription("user_1")

	// Not yet due: nothing happens
	sweep, err := s.service.ProcessDueBilling(s.GetContext())
	s.NoError(err)
	s.Empty(sweep.Items)

	s.GetClock().Advance(32 * 24 * time.Hour)

	sweep, err = s.service.ProcessDueBilling(s.GetContext())
	s.NoError(err)
	s.Equal(1, sweep.TotalSuccess)
	s.Zero(sweep.TotalFailed)
	s.Equal([]string{id}, s.GetStores().PaymentGateway.Charges())

	// The billing date advanced, a rerun charges nothing
	sweep, err = s.service.ProcessDueBilling(s.GetContext())
	s.NoError(err)
	s.Empty(sweep.Items)

	resp, err := s.subscriptionService.GetSubscription(s.GetContext(), id)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.NotNil(resp.LastBillingDate)
	s.Equal(types.SubscriptionChangeRenewed, s.GetStores().HistorySink.LastChangeType(id))
}

func (s *MaintenanceServiceSuite) TestProcessDueBillingDeclineIsRecorded() {
	id := s.setupActiveSubscription("user_1")
	s.GetStores().PaymentGateway.DeclineFor(id)
	s.GetClock().Advance(32 * 24 * time.Hour)

	sweep, err := s.service.ProcessDueBilling(s.GetContext())
	s.NoError(err)
	// The decline was handled, so the unit of work succeeded
	s.Equal(1, sweep.TotalSuccess)

	resp, err := s.subscriptionService.GetSubscription(s.GetContext(), id)
	s.NoError(err)
	s.Equal(1, resp.FailedBillingAttempts)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Equal(types.SubscriptionChangeBillingFailed, s.GetStores().HistorySink.LastChangeType(id))
}

func (s *MaintenanceServiceSuite) TestRepeatedDeclinesSuspend() {
	id := s.setupActiveSubscription("user_1")
	s.GetStores().PaymentGateway.DeclineAll(true)
	s.GetClock().Advance(32 * 24 * time.Hour)

	// The billing date does not advance on failure, so each sweep retries
	for i := 0; i < 3; i++ {
		_, err := s.service.ProcessDueBilling(s.GetContext())
		s.NoError(err)
	}

	resp, err := s.subscriptionService.GetSubscription(s.GetContext(), id)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusSuspended, resp.SubscriptionStatus)
	s.Equal(3, resp.FailedBillingAttempts)
	s.Equal(types.SubscriptionChangeSuspended, s.GetStores().HistorySink.LastChangeType(id))

	// A suspended subscription is no longer swept
	sweep, err := s.service.ProcessDueBilling(s.GetContext())
	s.NoError(err)
	s.Empty(sweep.Items)
}

func (s *MaintenanceServiceSuite) TestSweepIsolatesFailures() {
	idDeclined := s.setupActiveSubscription("user_1")
	idHealthy := s.setupActiveSubscription("user_2")
	s.GetStores().PaymentGateway.DeclineFor(idDeclined)
	s.GetClock().Advance(32 * 24 * time.Hour)

	sweep, err := s.service.ProcessDueBilling(s.GetContext())
	s.NoError(err)
	s.Len(sweep.Items, 2)
	s.Equal(2, sweep.TotalSuccess)

	healthy, err := s.subscriptionService.GetSubscription(s.GetContext(), idHealthy)
	s.NoError(err)
	s.Zero(healthy.FailedBillingAttempts)

	declined, err := s.subscriptionService.GetSubscription(s.GetContext(), idDeclined)
	s.NoError(err)
	s.Equal(1, declined.FailedBillingAttempts)
}

func (s *MaintenanceServiceSuite) TestProcessExpiredTrials() {
	created, err := s.subscriptionService.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		WithTrial:    true,
		TrialDays:    14,
	})
	s.NoError(err)

	// Trial still running
	sweep, err := s.service.ProcessExpiredTrials(s.GetContext())
	s.NoError(err)
	s.Empty(sweep.Items)

	s.GetClock().Advance(15 * 24 * time.Hour)

	sweep, err = s.service.ProcessExpiredTrials(s.GetContext())
	s.NoError(err)
	s.Equal(1, sweep.TotalSuccess)

	resp, err := s.subscriptionService.GetSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusExpired, resp.SubscriptionStatus)
	s.Equal(types.SubscriptionChangeExpired, s.GetStores().HistorySink.LastChangeType(created.ID))
}

func (s *MaintenanceServiceSuite) TestExpiredTrialKeepsGraceAccess() {
	created, err := s.subscriptionService.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		WithTrial:    true,
		TrialDays:    14,
	})
	s.NoError(err)

	s.GetClock().Advance(15 * 24 * time.Hour)
	_, err = s.service.ProcessExpiredTrials(s.GetContext())
	s.NoError(err)

	resp, err := s.subscriptionService.GetSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusExpired, resp.SubscriptionStatus)
	s.True(resp.InGracePeriod)

	// The expired subscription is still inside its grace window, so
	// metered features keep working
	usageService := NewUsageService(s.serviceParams())
	check, err := usageService.CheckUsage(s.GetContext(), dto.CheckUsageRequest{
		UserID:          "user_1",
		FeatureName:     "api_calls",
		IncrementAmount: 1,
		ApplyIncrement:  true,
	})
	s.NoError(err)
	s.True(check.Allowed)
}
