package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"carpool/internal/repository"
)

// Postgres error codes that mean "retry the whole transaction".
const (
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
)

// TxManager runs units of work in a database transaction with
// transaction-scoped repositories.
type TxManager struct {
	db         *sql.DB
	maxRetries int

	run     func(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error
	backoff func(attempt int) time.Duration
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB, maxRetries int) *TxManager {
	if maxRetries < 1 {
		maxRetries = 1
	}
	m := &TxManager{db: db, maxRetries: maxRetries, backoff: linearBackoff}
	m.run = m.runOnce
	return m
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 10 * time.Millisecond
}

// WithinTx runs fn in a READ COMMITTED transaction. Serialization failures and
// deadlocks are retried up to maxRetries times; any other error rolls back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	var err error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		err = m.run(ctx, fn)
		if err == nil || !isRetryable(err) || attempt == m.maxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff(attempt)):
		}
	}
	return err
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) (err error) {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stores := repository.Stores{
		Rides:        NewRideRepositoryWithTx(tx),
		Bookings:     NewBookingRepositoryWithTx(tx),
		Reservations: NewReservationRepositoryWithTx(tx),
		Payouts:      NewPayoutRepositoryWithTx(tx),
	}

	if err = fn(ctx, stores); err != nil {
		return err
	}

	return tx.Commit()
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}

// Ensure TxManager implements repository.TxManager.
var _ repository.TxManager = (*TxManager)(nil)
