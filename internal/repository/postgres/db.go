package postgres

import (
	"time"

	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	connectTimeout = 30 * time.Second

	pqUniqueViolation = "23505"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// NewDB opens a postgres connection pool, retrying with exponential
// backoff while the database comes up
func NewDB(cfg *config.Configuration, log *logger.Logger) (*sqlx.DB, error) {
	var db *sqlx.DB

	operation := func() error {
		var err error
		db, err = sqlx.Connect("postgres", cfg.Postgres.DSN())
		if err != nil {
			log.Warnw("postgres not ready, retrying",
				"host", cfg.Postgres.Host,
				"error", err)
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = connectTimeout
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not connect to the database").
			Mark(ierr.ErrDatabase)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}
