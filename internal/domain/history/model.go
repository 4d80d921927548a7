package history

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// SubscriptionHistory is an immutable record of one lifecycle or tier
// change. Records are appended by the sink and never mutated after insert.
type SubscriptionHistory struct {
	ID               string                       `db:"id" json:"id"`
	SubscriptionID   string                       `db:"subscription_id" json:"subscription_id"`
	UserID           string                       `db:"user_id" json:"user_id"`
	ChangeType       types.SubscriptionChangeType `db:"change_type" json:"change_type"`
	OldTier          types.SubscriptionTier       `db:"old_tier" json:"old_tier,omitempty"`
	NewTier          types.SubscriptionTier       `db:"new_tier" json:"new_tier,omitempty"`
	OldBillingAmount decimal.Decimal              `db:"old_billing_amount" json:"old_billing_amount"`
	NewBillingAmount decimal.Decimal              `db:"new_billing_amount" json:"new_billing_amount"`
	Reason           string                       `db:"reason" json:"reason,omitempty"`
	InitiatedBy      string                       `db:"initiated_by" json:"initiated_by"`
	Timestamp        time.Time                    `db:"timestamp" json:"timestamp"`
}

// Sink receives change events. Delivery guarantees are the sink's
// responsibility; the core treats RecordChange as fire and forget.
type Sink interface {
	RecordChange(ctx context.Context, event *SubscriptionHistory) error
	Close() error
}
