package service

import (
	"context"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/history"
	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// limitRewriteAttempts bounds the version conflict retries for the usage
// limit rewrite after a tier change
const limitRewriteAttempts = 3

// SubscriptionService drives the subscription lifecycle state machine.
// Every state changing operation is a load, domain transition, compare and
// swap write, history event sequence. A version conflict surfaces to the
// caller, the service never retries on its own.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	GetSubscriptionByUser(ctx context.Context, userID string) (*dto.SubscriptionResponse, error)
	ActivateSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id string, req dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	SuspendSubscription(ctx context.Context, id string, reason string) (*dto.SubscriptionResponse, error)
	TerminateSubscription(ctx context.Context, id string, reason string) (*dto.SubscriptionResponse, error)
	ChangeTier(ctx context.Context, id string, req dto.ChangeTierRequest) (*dto.SubscriptionResponse, error)
	ChangeBillingCycle(ctx context.Context, id string, req dto.ChangeBillingCycleRequest) (*dto.SubscriptionResponse, error)
	RecordBillingSuccess(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	RecordBillingFailure(ctx context.Context, id string, reason string) (*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	ServiceParams
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{ServiceParams: params}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()

	monthlyPrice, err := s.TierProvider.PriceFor(req.Tier, types.BillingCycleMonthly)
	if err != nil {
		return nil, err
	}
	cyclePrice, err := s.TierProvider.PriceFor(req.Tier, req.BillingCycle)
	if err != nil {
		return nil, err
	}
	currency, err := s.TierProvider.CurrencyFor(req.Tier)
	if err != nil {
		return nil, err
	}

	next, err := types.NextBillingDate(now, req.BillingCycle)
	if err != nil {
		return nil, err
	}

	// A discount without a code gets a generated human facing one
	promoCode := req.PromotionCode
	if promoCode == "" && req.PromotionDiscount.IsPositive() {
		promoCode = types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_PROMOTION)
	}

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		UserID:             req.UserID,
		Tier:               req.Tier,
		SubscriptionStatus: types.SubscriptionStatusPending,
		BillingCycle:       req.BillingCycle,
		Currency:           currency,
		MonthlyPrice:       monthlyPrice,
		BillingAmount:      subscription.ApplyDiscount(cyclePrice, req.PromotionDiscount),
		StartDate:          now,
		NextBillingDate:    &next,
		AutoRenewal:        req.AutoRenewal,
		PromotionCode:      promoCode,
		PromotionDiscount:  req.PromotionDiscount,
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}

	change := types.SubscriptionChangeCreated
	if req.WithTrial {
		trialEnd := now.AddDate(0, 0, req.TrialDays)
		sub.SubscriptionStatus = types.SubscriptionStatusTrial
		sub.TrialEndDate = &trialEnd
		change = types.SubscriptionChangeTrialStarted
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.emitChange(ctx, sub, change, sub.Tier, sub.Tier, decimal.Zero, sub.BillingAmount, "")

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"user_id", sub.UserID,
		"tier", sub.Tier,
		"status", sub.SubscriptionStatus)

	return dto.NewSubscriptionResponse(sub, now, s.Config.Billing.GraceDays), nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub, s.Clock.Now(), s.Config.Billing.GraceDays), nil
}

func (s *subscriptionService) GetSubscriptionByUser(ctx context.Context, userID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub, s.Clock.Now(), s.Config.Billing.GraceDays), nil
}

func (s *subscriptionService) ActivateSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	return s.transition(ctx, id, func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error) {
		change, err := sub.Activate(s.Clock.Now())
		return change, "", err
	})
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string, req dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	return s.transition(ctx, id, func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error) {
		if err := sub.Cancel(s.Clock.Now()); err != nil {
			return "", "", err
		}
		return types.SubscriptionChangeCancelled, req.Reason, nil
	})
}

func (s *subscriptionService) SuspendSubscription(ctx context.Context, id string, reason string) (*dto.SubscriptionResponse, error) {
	return s.transition(ctx, id, func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error) {
		if err := sub.Suspend(); err != nil {
			return "", "", err
		}
		return types.SubscriptionChangeSuspended, reason, nil
	})
}

func (s *subscriptionService) TerminateSubscription(ctx context.Context, id string, reason string) (*dto.SubscriptionResponse, error) {
	return s.transition(ctx, id, func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error) {
		if err := sub.Terminate(s.Clock.Now()); err != nil {
			return "", "", err
		}
		return types.SubscriptionChangeTerminated, reason, nil
	})
}

func (s *subscriptionService) ChangeTier(ctx context.Context, id string, req dto.ChangeTierRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	monthlyPrice, err := s.TierProvider.PriceFor(req.Tier, types.BillingCycleMonthly)
	if err != nil {
		return nil, err
	}

	resp, err := s.transition(ctx, id, func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error) {
		cyclePrice, err := s.TierProvider.PriceFor(req.Tier, sub.BillingCycle)
		if err != nil {
			return "", "", err
		}
		change, err := sub.ApplyTierChange(req.Tier, monthlyPrice, cyclePrice)
		return change, req.Reason, err
	})
	if err != nil {
		return nil, err
	}

	// Tier changes take effect immediately, so the current period's usage
	// limits are rewritten right away. The tier change itself is committed
	// at this point, so the rewrite is retried on version conflicts and a
	// persistent failure is logged rather than reported as an operation
	// failure. A stale limit is corrected at the next period reset.
	usageService := NewUsageService(s.ServiceParams)
	var rewriteErr error
	for attempt := 0; attempt < limitRewriteAttempts; attempt++ {
		rewriteErr = usageService.UpdateLimitsForSubscription(ctx, id, req.Tier)
		if rewriteErr == nil || !ierr.IsVersionConflict(rewriteErr) {
			break
		}
	}
	if rewriteErr != nil {
		s.Logger.Warnw("usage limit rewrite after tier change failed",
			"subscription_id", id,
			"new_tier", req.Tier,
			"error", rewriteErr)
	}

	return resp, nil
}

func (s *subscriptionService) ChangeBillingCycle(ctx context.Context, id string, req dto.ChangeBillingCycleRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error) {
		cyclePrice, err := s.TierProvider.PriceFor(sub.Tier, req.BillingCycle)
		if err != nil {
			return "", "", err
		}
		if err := sub.ApplyBillingCycleChange(req.BillingCycle, cyclePrice); err != nil {
			return "", "", err
		}
		return types.SubscriptionChangeCycleChanged, "", nil
	})
}

func (s *subscriptionService) RecordBillingSuccess(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	return s.transition(ctx, id, func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error) {
		if err := sub.RecordSuccessfulBilling(s.Clock.Now()); err != nil {
			return "", "", err
		}
		return types.SubscriptionChangeRenewed, "", nil
	})
}

func (s *subscriptionService) RecordBillingFailure(ctx context.Context, id string, reason string) (*dto.SubscriptionResponse, error) {
	return s.transition(ctx, id, func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error) {
		suspended, err := sub.RecordFailedBilling(s.Config.Billing.MaxFailedAttempts)
		if err != nil {
			return "", "", err
		}
		if suspended {
			return types.SubscriptionChangeSuspended, reason, nil
		}
		return types.SubscriptionChangeBillingFailed, reason, nil
	})
}

// transition runs one guarded state change: load, mutate, CAS write,
// history event. The change is atomic with respect to the version token.
func (s *subscriptionService) transition(
	ctx context.Context,
	id string,
	mutate func(sub *subscription.Subscription) (types.SubscriptionChangeType, string, error),
) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldTier := sub.Tier
	oldAmount := sub.BillingAmount
	expectedVersion := sub.Version

	change, reason, err := mutate(sub)
	if err != nil {
		return nil, err
	}

	sub.UpdatedAt = s.Clock.Now()
	sub.UpdatedBy = types.GetUserID(ctx)
	if err := s.SubRepo.Update(ctx, sub, expectedVersion); err != nil {
		return nil, err
	}

	s.emitChange(ctx, sub, change, oldTier, sub.Tier, oldAmount, sub.BillingAmount, reason)

	s.Logger.Infow("subscription transition applied",
		"subscription_id", sub.ID,
		"change_type", change,
		"status", sub.SubscriptionStatus,
		"version", sub.Version)

	return dto.NewSubscriptionResponse(sub, s.Clock.Now(), s.Config.Billing.GraceDays), nil
}

// emitChange publishes the history event. The sink is fire and forget,
// a publish failure is logged but does not fail the operation.
func (s *subscriptionService) emitChange(
	ctx context.Context,
	sub *subscription.Subscription,
	change types.SubscriptionChangeType,
	oldTier, newTier types.SubscriptionTier,
	oldAmount, newAmount decimal.Decimal,
	reason string,
) {
	initiatedBy := types.GetUserID(ctx)
	if initiatedBy == "" {
		initiatedBy = types.DefaultUserID
	}

	event := &history.SubscriptionHistory{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_HISTORY),
		SubscriptionID:   sub.ID,
		UserID:           sub.UserID,
		ChangeType:       change,
		OldTier:          oldTier,
		NewTier:          newTier,
		OldBillingAmount: oldAmount,
		NewBillingAmount: newAmount,
		Reason:           reason,
		InitiatedBy:      initiatedBy,
		Timestamp:        s.Clock.Now(),
	}

	if err := s.HistorySink.RecordChange(ctx, event); err != nil {
		s.Logger.Errorw("failed to record subscription history",
			"subscription_id", sub.ID,
			"change_type", change,
			"error", err)
	}
}
