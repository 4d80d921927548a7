package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/domain/usage"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// UsageService enforces per feature quotas against the current billing
// period. Checks without increments never mutate stored usage; applied
// increments happen as one guarded atomic operation at the storage
// boundary so concurrent checks cannot jointly exceed the cap.
type UsageService interface {
	CheckUsage(ctx context.Context, req dto.CheckUsageRequest) (*dto.CheckUsageResponse, error)
	GetCurrentUsage(ctx context.Context, userID string, feature types.FeatureName) (*dto.UsageResponse, error)
	// UpdateLimitsForSubscription rewrites the current period's limits
	// after a tier change. Past periods stay untouched, they reflect
	// history under the old limit.
	UpdateLimitsForSubscription(ctx context.Context, subscriptionID string, newTier types.SubscriptionTier) error
	// ResetDuePeriods supersedes every record whose reset date has
	// passed with a zeroed record for the next period window
	ResetDuePeriods(ctx context.Context) (*dto.SweepResponse, error)
}

type usageService struct {
	ServiceParams
}

func NewUsageService(params ServiceParams) UsageService {
	return &usageService{ServiceParams: params}
}

func (s *usageService) CheckUsage(ctx context.Context, req dto.CheckUsageRequest) (*dto.CheckUsageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()

	sub, err := s.SubRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !sub.HasFeatureAccess(now, s.Config.Billing.GraceDays) {
		return nil, ierr.NewError("subscription has no feature access").
			WithHintf("Feature %s requires an active subscription", req.FeatureName).
			WithReportableDetails(map[string]any{
				"feature":             req.FeatureName,
				"subscription_status": sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrFeatureUnavailable)
	}

	record, err := s.getOrCreateCurrent(ctx, sub, req.FeatureName, now)
	if err != nil {
		return nil, err
	}

	// Feature not entitled for the tier: always denied, even for a zero
	// increment
	if record.IsUnavailable() {
		return nil, ierr.NewError("feature not available").
			WithHintf("Feature %s is not available on tier %s", req.FeatureName, sub.Tier).
			WithReportableDetails(map[string]any{
				"feature":       req.FeatureName,
				"tier":          sub.Tier,
				"current_usage": record.UsageCount,
				"usage_limit":   record.UsageLimit,
			}).
			Mark(ierr.ErrFeatureUnavailable)
	}

	if record.IsUnlimited() {
		currentUsage := record.UsageCount
		if req.ApplyIncrement && req.IncrementAmount > 0 {
			currentUsage, err = s.UsageRepo.AtomicIncrement(ctx, record.ID, req.IncrementAmount, now)
			if err != nil {
				return nil, err
			}
		}
		return &dto.CheckUsageResponse{Decision: usage.AllowedUnlimited(req.FeatureName, currentUsage)}, nil
	}

	if req.ApplyIncrement && req.IncrementAmount > 0 {
		newTotal, err := s.UsageRepo.AtomicIncrement(ctx, record.ID, req.IncrementAmount, now)
		if err != nil {
			return nil, err
		}
		return &dto.CheckUsageResponse{Decision: usage.AllowedWithin(req.FeatureName, newTotal, record.UsageLimit)}, nil
	}

	// Dry run: decide on the projected total without touching storage.
	// Reaching the limit exactly is allowed, only strictly exceeding it
	// is denied.
	projected := record.UsageCount + req.IncrementAmount
	if projected > record.UsageLimit {
		return nil, ierr.NewError("usage limit exceeded").
			WithHintf("Feature %s has reached its usage limit", req.FeatureName).
			WithReportableDetails(map[string]any{
				"feature":       req.FeatureName,
				"current_usage": record.UsageCount,
				"usage_limit":   record.UsageLimit,
			}).
			Mark(ierr.ErrUsageLimitExceeded)
	}
	return &dto.CheckUsageResponse{Decision: usage.AllowedWithin(req.FeatureName, projected, record.UsageLimit)}, nil
}

func (s *usageService) GetCurrentUsage(ctx context.Context, userID string, feature types.FeatureName) (*dto.UsageResponse, error) {
	record, err := s.UsageRepo.GetCurrent(ctx, userID, feature.String(), s.Clock.Now())
	if err != nil {
		return nil, err
	}
	return dto.NewUsageResponse(record), nil
}

// getOrCreateCurrent loads the current period record, lazily creating it
// on first use of a feature within a period. The period window is derived
// from the owning subscription's billing cycle.
func (s *usageService) getOrCreateCurrent(
	ctx context.Context,
	sub *subscription.Subscription,
	feature types.FeatureName,
	now time.Time,
) (*usage.UsageTracking, error) {
	record, err := s.UsageRepo.GetCurrent(ctx, sub.UserID, feature.String(), now)
	if err == nil {
		return record, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	limit, err := s.TierProvider.LimitFor(sub.Tier, feature)
	if err != nil {
		return nil, err
	}

	periodStart, periodEnd, err := currentPeriodWindow(sub, now)
	if err != nil {
		return nil, err
	}

	record = &usage.UsageTracking{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE),
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		FeatureName:    feature,
		UsageCount:     0,
		UsageLimit:     limit,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		ResetDate:      periodEnd,
		Version:        1,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.UsageRepo.Create(ctx, record); err != nil {
		// A concurrent check may have created the record first
		if ierr.IsAlreadyExists(err) {
			return s.UsageRepo.GetCurrent(ctx, sub.UserID, feature.String(), now)
		}
		return nil, err
	}
	return record, nil
}

// currentPeriodWindow walks billing cycles forward from the subscription
// start date until the window containing now is found
func currentPeriodWindow(sub *subscription.Subscription, now time.Time) (time.Time, time.Time, error) {
	start := sub.StartDate
	end, err := types.NextBillingDate(start, sub.BillingCycle)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	for !end.After(now) {
		start = end
		end, err = types.NextBillingDate(start, sub.BillingCycle)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

func (s *usageService) UpdateLimitsForSubscription(ctx context.Context, subscriptionID string, newTier types.SubscriptionTier) error {
	now := s.Clock.Now()

	records, err := s.UsageRepo.ListCurrentBySubscription(ctx, subscriptionID, now)
	if err != nil {
		return err
	}

	for _, record := range records {
		limit, err := s.TierProvider.LimitFor(newTier, record.FeatureName)
		if err != nil {
			return err
		}

		expectedVersion := record.Version
		record.UsageLimit = limit
		record.RecomputeExceeded()
		record.UpdatedBy = types.GetUserID(ctx)

		if err := s.UsageRepo.Update(ctx, record, expectedVersion); err != nil {
			return err
		}

		s.Logger.Debugw("rewrote usage limit after tier change",
			"usage_id", record.ID,
			"feature", record.FeatureName,
			"new_limit", limit,
			"limit_exceeded", record.LimitExceeded)
	}
	return nil
}

func (s *usageService) ResetDuePeriods(ctx context.Context) (*dto.SweepResponse, error) {
	now := s.Clock.Now()
	response := &dto.SweepResponse{
		Items:     make([]*dto.SweepResponseItem, 0),
		StartedAt: now,
	}

	records, err := s.UsageRepo.ListNeedingReset(ctx, now)
	if err != nil {
		return response, err
	}

	// Per record unit of work: one failure must not abort the sweep
	for _, record := range records {
		item := &dto.SweepResponseItem{ID: record.ID}
		if err := s.resetPeriod(ctx, record, now); err != nil {
			s.Logger.Errorw("failed to reset usage period",
				"usage_id", record.ID,
				"feature", record.FeatureName,
				"error", err)
			item.Error = err.Error()
			response.TotalFailed++
		} else {
			item.Success = true
			response.TotalSuccess++
		}
		response.Items = append(response.Items, item)
	}

	return response, nil
}

// resetPeriod supersedes an elapsed record: the old row is archived for
// audit and a zeroed record is created for the next period window. The
// new limit is re-resolved from the tier catalog so a tier change during
// the old period carries forward.
func (s *usageService) resetPeriod(ctx context.Context, record *usage.UsageTracking, now time.Time) error {
	sub, err := s.SubRepo.Get(ctx, record.SubscriptionID)
	if err != nil {
		return err
	}

	limit, err := s.TierProvider.LimitFor(sub.Tier, record.FeatureName)
	if err != nil {
		return err
	}

	newStart, newEnd, err := currentPeriodWindow(sub, now)
	if err != nil {
		return err
	}

	expectedVersion := record.Version
	record.Status = types.StatusArchived
	record.UpdatedBy = types.DefaultUserID
	if err := s.UsageRepo.Update(ctx, record, expectedVersion); err != nil {
		return err
	}

	fresh := &usage.UsageTracking{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE),
		UserID:         record.UserID,
		SubscriptionID: record.SubscriptionID,
		FeatureName:    record.FeatureName,
		UsageCount:     0,
		UsageLimit:     limit,
		PeriodStart:    newStart,
		PeriodEnd:      newEnd,
		ResetDate:      newEnd,
		LimitExceeded:  false,
		Version:        1,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	return s.UsageRepo.Create(ctx, fresh)
}
