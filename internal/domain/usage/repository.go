package usage

import (
	"context"
	"time"
)

// Repository is the persistence port for usage tracking records.
// AtomicIncrement is a single read-modify-write at the storage boundary so
// concurrent increments never lose updates.
type Repository interface {
	Create(ctx context.Context, record *UsageTracking) error
	Get(ctx context.Context, id string) (*UsageTracking, error)
	// GetCurrent returns the record whose period window contains now for
	// the given user and feature, or a not found error
	GetCurrent(ctx context.Context, userID string, feature string, now time.Time) (*UsageTracking, error)
	// AtomicIncrement adds amount to the record's usage count in one
	// atomic storage operation and returns the new total. The increment
	// only applies when the result stays within the limit (unlimited
	// records always apply); otherwise a usage limit exceeded error is
	// returned and the stored count is untouched. Guarding inside the
	// storage operation keeps two concurrent checks from both passing
	// and jointly exceeding the cap.
	AtomicIncrement(ctx context.Context, id string, amount int64, now time.Time) (int64, error)
	// Update performs a compare and swap against the expected version
	Update(ctx context.Context, record *UsageTracking, expectedVersion int64) error
	// ListNeedingReset returns current records whose reset date has passed
	ListNeedingReset(ctx context.Context, now time.Time) ([]*UsageTracking, error)
	// ListCurrentBySubscription returns all current period records funded
	// by the given subscription
	ListCurrentBySubscription(ctx context.Context, subscriptionID string, now time.Time) ([]*UsageTracking, error)
}
