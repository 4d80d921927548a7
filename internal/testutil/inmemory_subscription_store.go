package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository with the
// same compare and swap semantics as the postgres repository
type InMemorySubscriptionStore struct {
	mu    sync.RWMutex
	items map[string]*subscription.Subscription
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		items: make(map[string]*subscription.Subscription),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	return &c
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[sub.ID]; exists {
		return ierr.NewError("subscription already exists").
			WithHintf("Subscription %s already exists", sub.ID).
			Mark(ierr.ErrAlreadyExists)
	}
	for _, existing := range s.items {
		if existing.UserID == sub.UserID && !existing.SubscriptionStatus.IsTerminal() {
			return ierr.NewError("user already has a subscription").
				WithHintf("User %s already has a live subscription", sub.UserID).
				Mark(ierr.ErrAlreadyExists)
		}
	}

	s.items[sub.ID] = copySubscription(sub)
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.items[id]
	if !exists {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription %s does not exist", id).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.items {
		if sub.UserID == userID && !sub.SubscriptionStatus.IsTerminal() {
			return copySubscription(sub), nil
		}
	}
	return nil, ierr.NewError("subscription not found").
		WithHintf("User %s has no subscription", userID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.items[sub.ID]
	if !exists {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription %s does not exist", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return ierr.NewError("subscription was modified concurrently").
			WithHint("The subscription changed since it was read, reload and retry").
			WithReportableDetails(map[string]any{
				"subscription_id":  sub.ID,
				"expected_version": expectedVersion,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	sub.Version = expectedVersion + 1
	s.items[sub.ID] = copySubscription(sub)
	return nil
}

func (s *InMemorySubscriptionStore) ListDueForBilling(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.items {
		if sub.IsDueForBilling(cutoff) {
			result = append(result, copySubscription(sub))
		}
	}
	return result, nil
}

func (s *InMemorySubscriptionStore) ListExpiredTrials(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.items {
		if sub.SubscriptionStatus == types.SubscriptionStatusTrial &&
			sub.TrialEndDate != nil && !sub.TrialEndDate.After(now) {
			result = append(result, copySubscription(sub))
		}
	}
	return result, nil
}

// Clear removes all subscriptions from the store
func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*subscription.Subscription)
}
