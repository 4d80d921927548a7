package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

type subscriptionRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewSubscriptionRepository creates a postgres backed subscription
// repository
func NewSubscriptionRepository(db *sqlx.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, tier, subscription_status, billing_cycle, currency,
			monthly_price, billing_amount, start_date, end_date,
			next_billing_date, last_billing_date, trial_end_date, cancelled_at,
			failed_billing_attempts, auto_renewal, promotion_code,
			promotion_discount, version, status, created_at, updated_at,
			created_by, updated_by
		) VALUES (
			:id, :user_id, :tier, :subscription_status, :billing_cycle, :currency,
			:monthly_price, :billing_amount, :start_date, :end_date,
			:next_billing_date, :last_billing_date, :trial_end_date, :cancelled_at,
			:failed_billing_attempts, :auto_renewal, :promotion_code,
			:promotion_discount, :version, :status, :created_at, :updated_at,
			:created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("User %s already has a subscription", sub.UserID).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `SELECT * FROM subscriptions WHERE id = $1 AND status != $2`
	err := r.db.GetContext(ctx, &sub, query, id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHintf("Subscription %s does not exist", id).
				WithReportableDetails(map[string]any{
					"subscription_id": id,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to load subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `
		SELECT * FROM subscriptions
		WHERE user_id = $1 AND status != $2 AND subscription_status != $3
		ORDER BY created_at DESC
		LIMIT 1`
	err := r.db.GetContext(ctx, &sub, query, userID, types.StatusDeleted, types.SubscriptionStatusTerminated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHintf("User %s has no subscription", userID).
				WithReportableDetails(map[string]any{
					"user_id": userID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to load subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

// Update writes the subscription only if the stored version still matches
// the expected one, bumping the version in the same statement. Zero rows
// affected means another writer won the race.
func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription, expectedVersion int64) error {
	sub.Version = expectedVersion + 1
	sub.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE subscriptions SET
			tier = :tier,
			subscription_status = :subscription_status,
			billing_cycle = :billing_cycle,
			currency = :currency,
			monthly_price = :monthly_price,
			billing_amount = :billing_amount,
			start_date = :start_date,
			end_date = :end_date,
			next_billing_date = :next_billing_date,
			last_billing_date = :last_billing_date,
			trial_end_date = :trial_end_date,
			cancelled_at = :cancelled_at,
			failed_billing_attempts = :failed_billing_attempts,
			auto_renewal = :auto_renewal,
			promotion_code = :promotion_code,
			promotion_discount = :promotion_discount,
			version = :version,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :expected_version`

	args := map[string]any{
		"id":                      sub.ID,
		"tier":                    sub.Tier,
		"subscription_status":     sub.SubscriptionStatus,
		"billing_cycle":           sub.BillingCycle,
		"currency":                sub.Currency,
		"monthly_price":           sub.MonthlyPrice,
		"billing_amount":          sub.BillingAmount,
		"start_date":              sub.StartDate,
		"end_date":                sub.EndDate,
		"next_billing_date":       sub.NextBillingDate,
		"last_billing_date":       sub.LastBillingDate,
		"trial_end_date":          sub.TrialEndDate,
		"cancelled_at":            sub.CancelledAt,
		"failed_billing_attempts": sub.FailedBillingAttempts,
		"auto_renewal":            sub.AutoRenewal,
		"promotion_code":          sub.PromotionCode,
		"promotion_discount":      sub.PromotionDiscount,
		"version":                 sub.Version,
		"updated_at":              sub.UpdatedAt,
		"updated_by":              sub.UpdatedBy,
		"expected_version":        expectedVersion,
	}
	rows, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		sub.Version = expectedVersion
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}

	affected, err := rows.RowsAffected()
	if err != nil {
		sub.Version = expectedVersion
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		sub.Version = expectedVersion
		return ierr.NewError("subscription was modified concurrently").
			WithHint("The subscription changed since it was read, reload and retry").
			WithReportableDetails(map[string]any{
				"subscription_id":  sub.ID,
				"expected_version": expectedVersion,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}

func (r *subscriptionRepository) ListDueForBilling(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	query := `
		SELECT * FROM subscriptions
		WHERE subscription_status IN ($1, $2)
		  AND auto_renewal = true
		  AND next_billing_date IS NOT NULL
		  AND next_billing_date <= $3
		  AND status = $4
		ORDER BY next_billing_date ASC`
	err := r.db.SelectContext(ctx, &subs, query,
		types.SubscriptionStatusActive, types.SubscriptionStatusTrial,
		cutoff, types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions due for billing").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

func (r *subscriptionRepository) ListExpiredTrials(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	query := `
		SELECT * FROM subscriptions
		WHERE subscription_status = $1
		  AND trial_end_date IS NOT NULL
		  AND trial_end_date <= $2
		  AND status = $3
		ORDER BY trial_end_date ASC`
	err := r.db.SelectContext(ctx, &subs, query,
		types.SubscriptionStatusTrial, now, types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list expired trials").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}
