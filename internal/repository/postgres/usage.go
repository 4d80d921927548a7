package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/billforge/billforge/internal/domain/usage"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/types"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

type usageRepository struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewUsageRepository creates a postgres backed usage tracking repository
func NewUsageRepository(db *sqlx.DB, logger *logger.Logger) usage.Repository {
	return &usageRepository{db: db, logger: logger}
}

func (r *usageRepository) Create(ctx context.Context, record *usage.UsageTracking) error {
	query := `
		INSERT INTO usage_tracking (
			id, user_id, subscription_id, feature_name, usage_count,
			usage_limit, period_start, period_end, reset_date, limit_exceeded,
			version, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :user_id, :subscription_id, :feature_name, :usage_count,
			:usage_limit, :period_start, :period_end, :reset_date, :limit_exceeded,
			:version, :status, :created_at, :updated_at, :created_by, :updated_by
		)`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		// A concurrent first use of the feature can hit the unique index
		// on (user_id, feature_name, period_start)
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("Usage record for feature %s already exists", record.FeatureName).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create usage record").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *usageRepository) Get(ctx context.Context, id string) (*usage.UsageTracking, error) {
	var record usage.UsageTracking
	query := `SELECT * FROM usage_tracking WHERE id = $1 AND status != $2`
	err := r.db.GetContext(ctx, &record, query, id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("usage record not found").
				WithHintf("Usage record %s does not exist", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to load usage record").
			Mark(ierr.ErrDatabase)
	}
	return &record, nil
}

func (r *usageRepository) GetCurrent(ctx context.Context, userID string, feature string, now time.Time) (*usage.UsageTracking, error) {
	var record usage.UsageTracking
	query := `
		SELECT * FROM usage_tracking
		WHERE user_id = $1
		  AND feature_name = $2
		  AND period_start <= $3
		  AND period_end > $3
		  AND status = $4
		ORDER BY period_start DESC
		LIMIT 1`
	err := r.db.GetContext(ctx, &record, query, userID, feature, now, types.StatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("no current usage record").
				WithHintf("No usage record for user %s feature %s", userID, feature).
				WithReportableDetails(map[string]any{
					"user_id": userID,
					"feature": feature,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to load usage record").
			Mark(ierr.ErrDatabase)
	}
	return &record, nil
}

// AtomicIncrement adds the amount to the counter inside the database so
// concurrent increments serialize on the row and never lose updates. The
// limit guard lives in the same statement: an increment that would push
// the count past a finite limit matches no row and nothing is applied.
func (r *usageRepository) AtomicIncrement(ctx context.Context, id string, amount int64, now time.Time) (int64, error) {
	var newTotal int64
	query := `
		UPDATE usage_tracking SET
			usage_count = usage_count + $2,
			updated_at = $3,
			version = version + 1
		WHERE id = $1
		  AND status = $4
		  AND (usage_limit = -1 OR usage_count + $2 <= usage_limit)
		RETURNING usage_count`

	err := r.db.GetContext(ctx, &newTotal, query, id, amount, now, types.StatusPublished)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Disambiguate a missing record from a guarded increment
			record, getErr := r.Get(ctx, id)
			if getErr != nil {
				return 0, getErr
			}
			return 0, ierr.NewError("usage limit exceeded").
				WithHintf("Feature %s has reached its usage limit", record.FeatureName).
				WithReportableDetails(map[string]any{
					"feature":       record.FeatureName,
					"current_usage": record.UsageCount,
					"usage_limit":   record.UsageLimit,
				}).
				Mark(ierr.ErrUsageLimitExceeded)
		}
		return 0, ierr.WithError(err).
			WithHint("Failed to increment usage").
			Mark(ierr.ErrDatabase)
	}
	return newTotal, nil
}

func (r *usageRepository) Update(ctx context.Context, record *usage.UsageTracking, expectedVersion int64) error {
	record.Version = expectedVersion + 1
	record.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE usage_tracking SET
			usage_count = :usage_count,
			usage_limit = :usage_limit,
			period_start = :period_start,
			period_end = :period_end,
			reset_date = :reset_date,
			limit_exceeded = :limit_exceeded,
			version = :version,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :expected_version`

	args := map[string]any{
		"id":               record.ID,
		"usage_count":      record.UsageCount,
		"usage_limit":      record.UsageLimit,
		"period_start":     record.PeriodStart,
		"period_end":       record.PeriodEnd,
		"reset_date":       record.ResetDate,
		"limit_exceeded":   record.LimitExceeded,
		"version":          record.Version,
		"status":           record.Status,
		"updated_at":       record.UpdatedAt,
		"updated_by":       record.UpdatedBy,
		"expected_version": expectedVersion,
	}

	rows, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		record.Version = expectedVersion
		return ierr.WithError(err).
			WithHint("Failed to update usage record").
			Mark(ierr.ErrDatabase)
	}

	affected, err := rows.RowsAffected()
	if err != nil {
		record.Version = expectedVersion
		return ierr.WithError(err).
			WithHint("Failed to update usage record").
			Mark(ierr.ErrDatabase)
	}
	if affected == 0 {
		record.Version = expectedVersion
		return ierr.NewError("usage record was modified concurrently").
			WithHint("The usage record changed since it was read, reload and retry").
			WithReportableDetails(map[string]any{
				"usage_id":         record.ID,
				"expected_version": expectedVersion,
			}).
			Mark(ierr.ErrVersionConflict)
	}
	return nil
}

func (r *usageRepository) ListNeedingReset(ctx context.Context, now time.Time) ([]*usage.UsageTracking, error) {
	var records []*usage.UsageTracking
	query := `
		SELECT * FROM usage_tracking
		WHERE reset_date <= $1 AND status = $2
		ORDER BY reset_date ASC`
	err := r.db.SelectContext(ctx, &records, query, now, types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list usage records needing reset").
			Mark(ierr.ErrDatabase)
	}
	return records, nil
}

func (r *usageRepository) ListCurrentBySubscription(ctx context.Context, subscriptionID string, now time.Time) ([]*usage.UsageTracking, error) {
	var records []*usage.UsageTracking
	query := `
		SELECT * FROM usage_tracking
		WHERE subscription_id = $1
		  AND period_start <= $2
		  AND period_end > $2
		  AND status = $3`
	err := r.db.SelectContext(ctx, &records, query, subscriptionID, now, types.StatusPublished)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list usage records for subscription").
			Mark(ierr.ErrDatabase)
	}
	return records, nil
}
