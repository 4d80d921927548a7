package subscription

import (
	"context"
	"time"
)

// Repository is the persistence port for subscriptions. Update performs a
// compare and swap against the expected version and fails with a version
// conflict error when another writer got there first.
type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)
	Update(ctx context.Context, subscription *Subscription, expectedVersion int64) error
	// ListDueForBilling returns subscriptions in a billable status with
	// auto renewal on and a next billing date at or before the cutoff
	ListDueForBilling(ctx context.Context, cutoff time.Time) ([]*Subscription, error)
	// ListExpiredTrials returns trialing subscriptions whose trial end
	// date has passed
	ListExpiredTrials(ctx context.Context, now time.Time) ([]*Subscription, error)
}
