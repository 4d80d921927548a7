package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/billforge/billforge/internal/domain/usage"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// InMemoryUsageStore implements usage.Repository. AtomicIncrement holds the
// store lock for the whole check and apply so the guarded increment is as
// atomic as the SQL statement it stands in for.
type InMemoryUsageStore struct {
	mu    sync.RWMutex
	items map[string]*usage.UsageTracking
}

func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		items: make(map[string]*usage.UsageTracking),
	}
}

func copyUsage(record *usage.UsageTracking) *usage.UsageTracking {
	c := *record
	return &c
}

func (s *InMemoryUsageStore) Create(ctx context.Context, record *usage.UsageTracking) error {
	if record == nil {
		return ierr.NewError("usage record cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[record.ID]; exists {
		return ierr.NewError("usage record already exists").
			WithHintf("Usage record %s already exists", record.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	for _, existing := range s.items {
		if existing.UserID == record.UserID &&
			existing.FeatureName == record.FeatureName &&
			existing.PeriodStart.Equal(record.PeriodStart) &&
			existing.Status == types.StatusPublished &&
			record.Status == types.StatusPublished {
			return ierr.NewError("usage record already exists").
				WithHintf("User %s already tracks %s for this period", record.UserID, record.FeatureName).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	s.items[record.ID] = copyUsage(record)
	return nil
}

func (s *InMemoryUsageStore) Get(ctx context.Context, id string) (*usage.UsageTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.items[id]
	if !exists || record.Status == types.StatusDeleted {
		return nil, ierr.NewError("usage record not found").
			WithHintf("Usage record %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return copyUsage(record), nil
}

func (s *InMemoryUsageStore) GetCurrent(ctx context.Context, userID string, feature string, now time.Time) (*usage.UsageTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.items {
		if record.UserID == userID &&
			record.FeatureName.String() == feature &&
			record.Status == types.StatusPublished &&
			!record.PeriodStart.After(now) &&
			record.PeriodEnd.After(now) {
			return copyUsage(record), nil
		}
	}
	return nil, ierr.NewError("no current usage record").
		WithHintf("No usage record for user %s feature %s", userID, feature).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryUsageStore) AtomicIncrement(ctx context.Context, id string, amount int64, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.items[id]
	if !exists || record.Status != types.StatusPublished {
		return 0, ierr.NewError("usage record not found").
			WithHintf("Usage record %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}

	if !record.IsUnlimited() && record.UsageCount+amount > record.UsageLimit {
		return 0, ierr.NewError("usage limit exceeded").
			WithHintf("Feature %s has reached its usage limit", record.FeatureName).
			WithReportableDetails(map[string]any{
				"feature":       record.FeatureName,
				"current_usage": record.UsageCount,
				"usage_limit":   record.UsageLimit,
			}).
			Mark(ierr.ErrUsageLimitExceeded)
	}

	record.UsageCount += amount
	record.Version++
	record.UpdatedAt = now
	return record.UsageCount, nil
}

func (s *InMemoryUsageStore) Update(ctx context.Context, record *usage.UsageTracking, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.items[record.ID]
	if !exists {
		return ierr.NewError("usage record not found").
			WithHintf("Usage record %s does not exist", record.ID).
			Mark(ierr.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return ierr.NewError("usage record was modified concurrently").
			WithHint("The usage record changed since it was read, reload and retry").
			WithReportableDetails(map[string]any{
				"usage_id":         record.ID,
				"expected_version": expectedVersion,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	record.Version = expectedVersion + 1
	s.items[record.ID] = copyUsage(record)
	return nil
}

func (s *InMemoryUsageStore) ListNeedingReset(ctx context.Context, now time.Time) ([]*usage.UsageTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*usage.UsageTracking, 0)
	for _, record := range s.items {
		if record.Status == types.StatusPublished && !record.ResetDate.After(now) {
			result = append(result, copyUsage(record))
		}
	}
	return result, nil
}

func (s *InMemoryUsageStore) ListCurrentBySubscription(ctx context.Context, subscriptionID string, now time.Time) ([]*usage.UsageTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*usage.UsageTracking, 0)
	for _, record := range s.items {
		if record.SubscriptionID == subscriptionID &&
			record.Status == types.StatusPublished &&
			!record.PeriodStart.After(now) &&
			record.PeriodEnd.After(now) {
			result = append(result, copyUsage(record))
		}
	}
	return result, nil
}

// Clear removes all usage records from the store
func (s *InMemoryUsageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*usage.UsageTracking)
}
