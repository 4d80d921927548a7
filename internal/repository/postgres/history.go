package postgres

import (
	"context"

	"github.com/billforge/billforge/internal/domain/history"
	ierr "github.com/billforge/billforge/internal/errors"
	historysink "github.com/billforge/billforge/internal/history"
	"github.com/billforge/billforge/internal/logger"
	"github.com/jmoiron/sqlx"
)

// historyArchiver persists drained history events. The table is append
// only, rows are never updated or deleted.
type historyArchiver struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewHistoryArchiver creates a postgres backed history archiver
func NewHistoryArchiver(db *sqlx.DB, logger *logger.Logger) historysink.Archiver {
	return &historyArchiver{db: db, logger: logger}
}

func (a *historyArchiver) Archive(ctx context.Context, event *history.SubscriptionHistory) error {
	query := `
		INSERT INTO subscription_history (
			id, subscription_id, user_id, change_type, old_tier, new_tier,
			old_billing_amount, new_billing_amount, reason, initiated_by,
			timestamp
		) VALUES (
			:id, :subscription_id, :user_id, :change_type, :old_tier, :new_tier,
			:old_billing_amount, :new_billing_amount, :reason, :initiated_by,
			:timestamp
		)
		ON CONFLICT (id) DO NOTHING`

	if _, err := a.db.NamedExecContext(ctx, query, event); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to archive history event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
