package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/usage"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/tier"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SubscriptionService
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSubscriptionService(s.serviceParams())
}

func (s *SubscriptionServiceSuite) serviceParams() ServiceParams {
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

func (s *SubscriptionServiceSuite) createSubscription(req dto.CreateSubscriptionRequest) *dto.SubscriptionResponse {
	resp, err := s.service.CreateSubscription(s.GetContext(), req)
	s.NoError(err)
	s.NotNil(resp)
	return resp
}

func (s *SubscriptionServiceSuite) TestCreateSubscription() {
	resp := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		AutoRenewal:  true,
	})

	s.Equal(types.SubscriptionStatusPending, resp.SubscriptionStatus)
	s.Equal(types.SubscriptionTierPro, resp.Tier)
	s.True(resp.MonthlyPrice.Equal(decimal.RequireFromString("29.99")))
	s.True(resp.BillingAmount.Equal(decimal.RequireFromString("29.99")))
	s.Equal("usd", resp.Currency)
	s.Equal(int64(1), resp.Version)
	s.NotNil(resp.NextBillingDate)
	s.Equal(s.GetClock().Now().AddDate(0, 1, 0), *resp.NextBillingDate)

	s.Equal(types.SubscriptionChangeCreated, s.GetStores().HistorySink.LastChangeType(resp.ID))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionWithTrial() {
	resp := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierAIPremium,
		BillingCycle: types.BillingCycleMonthly,
		WithTrial:    true,
		TrialDays:    14,
	})

	s.Equal(types.SubscriptionStatusTrial, resp.SubscriptionStatus)
	s.NotNil(resp.TrialEndDate)
	s.Equal(s.GetClock().Now().AddDate(0, 0, 14), *resp.TrialEndDate)
	s.Equal(types.SubscriptionChangeTrialStarted, s.GetStores().HistorySink.LastChangeType(resp.ID))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionValidation() {
	_, err := s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
	})
	s.True(ierr.IsValidation(err))

	_, err = s.service.CreateSubscription(s.GetContext(), dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		WithTrial:    true,
	})
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionAnnualDiscount() {
	resp := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:            "user_1",
		Tier:              types.SubscriptionTierPro,
		BillingCycle:      types.BillingCycleAnnual,
		PromotionDiscount: decimal.RequireFromString("0.1"),
	})

	// 299.99 with 10% off, rounded half up
	s.True(resp.BillingAmount.Equal(decimal.RequireFromString("269.99")),
		"got %s", resp.BillingAmount)
	// 29.99 - 269.99/12 rounded half up
	s.True(resp.MonthlySavings.Equal(decimal.RequireFromString("7.49")),
		"got %s", resp.MonthlySavings)

	// A discount without an explicit code gets a generated one
	s.True(strings.HasPrefix(resp.PromotionCode, types.SHORT_ID_PREFIX_PROMOTION),
		"got %q", resp.PromotionCode)
	s.LessOrEqual(len(resp.PromotionCode), 12)
}

func (s *SubscriptionServiceSuite) TestCreateSubscriptionKeepsExplicitPromotionCode() {
	resp := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:            "user_1",
		Tier:              types.SubscriptionTierPro,
		BillingCycle:      types.BillingCycleAnnual,
		PromotionCode:     "WELCOME10",
		PromotionDiscount: decimal.RequireFromString("0.1"),
	})

	s.Equal("WELCOME10", resp.PromotionCode)
}

func (s *SubscriptionServiceSuite) TestActivateFromTrial() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		WithTrial:    true,
		TrialDays:    14,
	})

	s.GetClock().Advance(7 * 24 * time.Hour)

	resp, err := s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Nil(resp.TrialEndDate)
	s.Equal(s.GetClock().Now(), resp.StartDate)
	s.Equal(int64(2), resp.Version)
	s.Equal(types.SubscriptionChangeActivated, s.GetStores().HistorySink.LastChangeType(created.ID))
}

func (s *SubscriptionServiceSuite) TestCancelAndReactivate() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		AutoRenewal:  true,
	})
	_, err := s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)

	cancelled, err := s.service.CancelSubscription(s.GetContext(), created.ID,
		dto.CancelSubscriptionRequest{Reason: "too expensive"})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, cancelled.SubscriptionStatus)
	s.False(cancelled.AutoRenewal)
	s.NotNil(cancelled.CancelledAt)

	// Cancelling again is rejected
	_, err = s.service.CancelSubscription(s.GetContext(), created.ID, dto.CancelSubscriptionRequest{})
	s.True(ierr.IsInvalidOperation(err))

	// Reactivation restores auto renewal
	reactivated, err := s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, reactivated.SubscriptionStatus)
	s.True(reactivated.AutoRenewal)
	s.Nil(reactivated.CancelledAt)
	s.Equal(types.SubscriptionChangeReactivated, s.GetStores().HistorySink.LastChangeType(created.ID))
}

func (s *SubscriptionServiceSuite) TestTerminateIsFinal() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierFree,
		BillingCycle: types.BillingCycleMonthly,
	})

	resp, err := s.service.TerminateSubscription(s.GetContext(), created.ID, "account deleted")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTerminated, resp.SubscriptionStatus)
	s.NotNil(resp.EndDate)

	_, err = s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.Error(err)

	events := s.GetStores().HistorySink.EventsFor(created.ID)
	s.Equal(types.SubscriptionChangeTerminated, events[len(events)-1].ChangeType)
	s.Equal("account deleted", events[len(events)-1].Reason)
}

func (s *SubscriptionServiceSuite) TestChangeTierUpgrade() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
	})
	_, err := s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	activated, err := s.service.GetSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	originalNext := *activated.NextBillingDate

	resp, err := s.service.ChangeTier(s.GetContext(), created.ID, dto.ChangeTierRequest{
		Tier: types.SubscriptionTierAIPremium,
	})
	s.NoError(err)
	s.Equal(types.SubscriptionTierAIPremium, resp.Tier)
	s.True(resp.BillingAmount.Equal(decimal.RequireFromString("79.99")))
	s.Equal(originalNext, *resp.NextBillingDate)
	s.Equal(types.SubscriptionChangeTierUpgraded, s.GetStores().HistorySink.LastChangeType(created.ID))
}

// conflictingUsageStore simulates a concurrent writer that always wins
// the limit rewrite race
type conflictingUsageStore struct {
	usage.Repository
}

func (c *conflictingUsageStore) Update(ctx context.Context, record *usage.UsageTracking, expectedVersion int64) error {
	return ierr.NewError("usage record was modified concurrently").
		WithHint("The usage record changed since it was read, reload and retry").
		Mark(ierr.ErrVersionConflict)
}

func (s *SubscriptionServiceSuite) TestChangeTierSucceedsWhenLimitRewriteConflicts() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
	})
	_, err := s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)

	// Materialize a current period usage record so the rewrite has a row
	// to fight over
	usageSvc := NewUsageService(s.serviceParams())
	_, err = usageSvc.CheckUsage(s.GetContext(), dto.CheckUsageRequest{
		UserID:          "user_1",
		FeatureName:     types.FeatureName("document_exports"),
		IncrementAmount: 1,
		ApplyIncrement:  true,
	})
	s.NoError(err)

	params := s.serviceParams()
	params.UsageRepo = &conflictingUsageStore{Repository: params.UsageRepo}
	svc := NewSubscriptionService(params)

	// The tier change committed, a lost limit rewrite must not undo that
	resp, err := svc.ChangeTier(s.GetContext(), created.ID, dto.ChangeTierRequest{
		Tier: types.SubscriptionTierAIPremium,
	})
	s.NoError(err)
	s.Equal(types.SubscriptionTierAIPremium, resp.Tier)

	stored, err := s.service.GetSubscription(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionTierAIPremium, stored.Tier)
	s.Equal(types.SubscriptionChangeTierUpgraded, s.GetStores().HistorySink.LastChangeType(created.ID))
}

func (s *SubscriptionServiceSuite) TestChangeTierRequiresActive() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
	})

	_, err := s.service.ChangeTier(s.GetContext(), created.ID, dto.ChangeTierRequest{
		Tier: types.SubscriptionTierAIPremium,
	})
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestChangeBillingCycle() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
	})
	_, err := s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)

	resp, err := s.service.ChangeBillingCycle(s.GetContext(), created.ID, dto.ChangeBillingCycleRequest{
		BillingCycle: types.BillingCycleAnnual,
	})
	s.NoError(err)
	s.Equal(types.BillingCycleAnnual, resp.BillingCycle)
	s.True(resp.BillingAmount.Equal(decimal.RequireFromString("299.99")))
	s.Equal(types.SubscriptionChangeCycleChanged, s.GetStores().HistorySink.LastChangeType(created.ID))
}

func (s *SubscriptionServiceSuite) TestRecordBillingFailureSuspendsAfterThree() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		AutoRenewal:  true,
	})
	_, err := s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)

	for i := 0; i < 2; i++ {
		resp, err := s.service.RecordBillingFailure(s.GetContext(), created.ID, "card declined")
		s.NoError(err)
		s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
		s.Equal(i+1, resp.FailedBillingAttempts)
		s.Equal(types.SubscriptionChangeBillingFailed, s.GetStores().HistorySink.LastChangeType(created.ID))
	}

	resp, err := s.service.RecordBillingFailure(s.GetContext(), created.ID, "card declined")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusSuspended, resp.SubscriptionStatus)
	s.Equal(3, resp.FailedBillingAttempts)
	s.Equal(types.SubscriptionChangeSuspended, s.GetStores().HistorySink.LastChangeType(created.ID))
}

func (s *SubscriptionServiceSuite) TestRecordBillingSuccessRecovers() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
		AutoRenewal:  true,
	})
	_, err := s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)

	for i := 0; i < 3; i++ {
		_, err = s.service.RecordBillingFailure(s.GetContext(), created.ID, "card declined")
		s.NoError(err)
	}

	resp, err := s.service.RecordBillingSuccess(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Zero(resp.FailedBillingAttempts)
	s.NotNil(resp.LastBillingDate)
	s.Equal(types.SubscriptionChangeRenewed, s.GetStores().HistorySink.LastChangeType(created.ID))
}

func (s *SubscriptionServiceSuite) TestVersionConflict() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_1",
		Tier:         types.SubscriptionTierPro,
		BillingCycle: types.BillingCycleMonthly,
	})

	// A concurrent writer bumps the version behind the service's back
	stale, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), created.ID)
	s.NoError(err)
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), stale, stale.Version))

	_, err = s.service.ActivateSubscription(s.GetContext(), created.ID)
	s.NoError(err)

	// Now replay against the stale version directly
	err = s.GetStores().SubscriptionRepo.Update(s.GetContext(), stale, int64(1))
	s.True(ierr.IsVersionConflict(err))
}

func (s *SubscriptionServiceSuite) TestGetSubscriptionByUser() {
	created := s.createSubscription(dto.CreateSubscriptionRequest{
		UserID:       "user_42",
		Tier:         types.SubscriptionTierFree,
		BillingCycle: types.BillingCycleMonthly,
	})

	resp, err := s.service.GetSubscriptionByUser(s.GetContext(), "user_42")
	s.NoError(err)
	s.Equal(created.ID, resp.ID)

	_, err = s.service.GetSubscriptionByUser(s.GetContext(), "nobody")
	s.True(ierr.IsNotFound(err))
}
