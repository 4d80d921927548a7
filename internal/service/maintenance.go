package service

import (
	"context"
	"sync"

	"github.com/billforge/billforge/internal/api/dto"
	"github.com/billforge/billforge/internal/domain/history"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// MaintenanceService runs the periodic sweeps that keep subscriptions and
// usage records consistent with the calendar: charging due subscriptions,
// expiring elapsed trials and rolling usage periods over. Each record is an
// isolated unit of work so a single failure never aborts a sweep.
type MaintenanceService interface {
	ProcessDueBilling(ctx context.Context) (*dto.SweepResponse, error)
	ProcessExpiredTrials(ctx context.Context) (*dto.SweepResponse, error)
	ProcessUsageResets(ctx context.Context) (*dto.SweepResponse, error)
}

type maintenanceService struct {
	ServiceParams

	subscriptionService SubscriptionService
	usageService        UsageService
}

func NewMaintenanceService(params ServiceParams) MaintenanceService {
	return &maintenanceService{
		ServiceParams:       params,
		subscriptionService: NewSubscriptionService(params),
		usageService:        NewUsageService(params),
	}
}

// ProcessDueBilling charges every auto renewing subscription whose next
// billing date has passed. Charges run concurrently on a bounded pool; the
// outcome of each charge is recorded back through the lifecycle service so
// the failure counter and suspension rule apply.
func (s *maintenanceService) ProcessDueBilling(ctx context.Context) (*dto.SweepResponse, error) {
	now := s.Clock.Now()
	response := &dto.SweepResponse{
		Items:     make([]*dto.SweepResponseItem, 0),
		StartedAt: now,
	}

	due, err := s.SubRepo.ListDueForBilling(ctx, now)
	if err != nil {
		return response, err
	}

	s.Logger.Infow("starting billing sweep", "due_count", len(due))

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(s.Config.Billing.SweepConcurrency)
	for _, sub := range due {
		sub := sub
		p.Go(func() {
			item := s.billOne(ctx, sub)
			mu.Lock()
			defer mu.Unlock()
			response.Items = append(response.Items, item)
			if item.Success {
				response.TotalSuccess++
			} else {
				response.TotalFailed++
			}
		})
	}
	p.Wait()

	s.Logger.Infow("billing sweep finished",
		"total_success", response.TotalSuccess,
		"total_failed", response.TotalFailed)
	return response, nil
}

// billOne attempts one charge and records the outcome. A gateway decline is
// a billing failure for the subscription but a successful unit of work for
// the sweep as long as the failure was recorded.
func (s *maintenanceService) billOne(ctx context.Context, sub *subscription.Subscription) *dto.SweepResponseItem {
	item := &dto.SweepResponseItem{ID: sub.ID}

	if err := s.PaymentGateway.Charge(ctx, sub); err != nil {
		s.Logger.Warnw("charge failed",
			"subscription_id", sub.ID,
			"amount", sub.BillingAmount,
			"error", err)

		if _, recErr := s.subscriptionService.RecordBillingFailure(ctx, sub.ID, err.Error()); recErr != nil {
			item.Error = recErr.Error()
			return item
		}
		item.Success = true
		return item
	}

	if _, err := s.subscriptionService.RecordBillingSuccess(ctx, sub.ID); err != nil {
		item.Error = err.Error()
		return item
	}
	item.Success = true
	return item
}

// ProcessExpiredTrials expires every TRIAL subscription whose trial end
// date has passed without activation.
func (s *maintenanceService) ProcessExpiredTrials(ctx context.Context) (*dto.SweepResponse, error) {
	now := s.Clock.Now()
	response := &dto.SweepResponse{
		Items:     make([]*dto.SweepResponseItem, 0),
		StartedAt: now,
	}

	expired, err := s.SubRepo.ListExpiredTrials(ctx, now)
	if err != nil {
		return response, err
	}

	for _, sub := range expired {
		item := &dto.SweepResponseItem{ID: sub.ID}
		if err := s.expireOne(ctx, sub); err != nil {
			s.Logger.Errorw("failed to expire trial",
				"subscription_id", sub.ID,
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

func (s *maintenanceService) expireOne(ctx context.Context, sub *subscription.Subscription) error {
	expectedVersion := sub.Version
	if err := sub.Expire(); err != nil {
		return err
	}
	sub.UpdatedAt = s.Clock.Now()
	sub.UpdatedBy = types.DefaultUserID
	if err := s.SubRepo.Update(ctx, sub, expectedVersion); err != nil {
		return err
	}

	s.emitTrialExpired(ctx, sub)
	return nil
}

func (s *maintenanceService) emitTrialExpired(ctx context.Context, sub *subscription.Subscription) {
	event := &history.SubscriptionHistory{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_HISTORY),
		SubscriptionID:   sub.ID,
		UserID:           sub.UserID,
		ChangeType:       types.SubscriptionChangeExpired,
		OldTier:          sub.Tier,
		NewTier:          sub.Tier,
		OldBillingAmount: sub.BillingAmount,
		NewBillingAmount: sub.BillingAmount,
		Reason:           "trial period elapsed",
		InitiatedBy:      types.DefaultUserID,
		Timestamp:        s.Clock.Now(),
	}
	if err := s.HistorySink.RecordChange(ctx, event); err != nil {
		s.Logger.Errorw("failed to record trial expiry history",
			"subscription_id", sub.ID,
			"error", err)
	}
}

// ProcessUsageResets delegates to the usage service's period rollover
func (s *maintenanceService) ProcessUsageResets(ctx context.Context) (*dto.SweepResponse, error) {
	return s.usageService.ResetDuePeriods(ctx)
}
