package postgres

import (
	"context"
	"database/sql"
	"errors"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// AuthorizationRepository is a PostgreSQL implementation of repository.AuthorizationRepository.
type AuthorizationRepository struct {
	q Querier
}

// NewAuthorizationRepository creates a new PostgreSQL authorization repository.
func NewAuthorizationRepository(db *sql.DB) *AuthorizationRepository {
	return &AuthorizationRepository{q: db}
}

// NewAuthorizationRepositoryWithTx creates an authorization repository using a transaction.
func NewAuthorizationRepositoryWithTx(tx *sql.Tx) *AuthorizationRepository {
	return &AuthorizationRepository{q: tx}
}

// Create persists a new authorization.
func (r *AuthorizationRepository) Create(ctx context.Context, auth *domain.Authorization) error {
	query := `
		INSERT INTO payment_authorizations (ref, amount_cents, idempotency_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`

	_, err := r.q.ExecContext(ctx, query,
		auth.Ref,
		auth.Amount,
		auth.IdempotencyKey,
		auth.Status,
		auth.CreatedAt,
	)

	return err
}

// GetByRef retrieves an authorization by its processor reference.
func (r *AuthorizationRepository) GetByRef(ctx context.Context, ref string) (*domain.Authorization, error) {
	auth, err := r.getOne(ctx, `ref = $1`, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return auth, nil
}

// GetByIdempotencyKey retrieves an authorization by its idempotency key.
// Returns nil if no authorization exists with the given key.
func (r *AuthorizationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Authorization, error) {
	auth, err := r.getOne(ctx, `idempotency_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return auth, nil
}

// MarkCaptured moves an authorized hold to captured.
func (r *AuthorizationRepository) MarkCaptured(ctx context.Context, ref, captureRef string) error {
	query := `
		UPDATE payment_authorizations
		SET status = $2, capture_ref = $3, updated_at = NOW()
		WHERE ref = $1 AND status = $4
	`
	return r.execGuarded(ctx, query, ref, domain.AuthorizationStatusCaptured, captureRef, domain.AuthorizationStatusAuthorized)
}

// MarkVoided moves an authorized hold to voided.
func (r *AuthorizationRepository) MarkVoided(ctx context.Context, ref string) error {
	query := `
		UPDATE payment_authorizations
		SET status = $2, updated_at = NOW()
		WHERE ref = $1 AND status = $3
	`
	return r.execGuarded(ctx, query, ref, domain.AuthorizationStatusVoided, domain.AuthorizationStatusAuthorized)
}

// MarkRefunded records a refund against a captured hold.
func (r *AuthorizationRepository) MarkRefunded(ctx context.Context, ref, refundRef string, amount domain.Money) error {
	query := `
		UPDATE payment_authorizations
		SET status = $2, refund_ref = $3, refund_amount_cents = $4, updated_at = NOW()
		WHERE ref = $1 AND status = $5
	`
	return r.execGuarded(ctx, query, ref, domain.AuthorizationStatusRefunded, refundRef, amount, domain.AuthorizationStatusCaptured)
}

func (r *AuthorizationRepository) execGuarded(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrConflict
	}

	return nil
}

func (r *AuthorizationRepository) getOne(ctx context.Context, where string, arg any) (*domain.Authorization, error) {
	query := `
		SELECT ref, amount_cents, idempotency_key, status, capture_ref, refund_ref, refund_amount_cents,
			created_at, updated_at
		FROM payment_authorizations WHERE ` + where

	var auth domain.Authorization
	var captureRef, refundRef sql.NullString
	var refundAmount sql.NullInt64

	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&auth.Ref,
		&auth.Amount,
		&auth.IdempotencyKey,
		&auth.Status,
		&captureRef,
		&refundRef,
		&refundAmount,
		&auth.CreatedAt,
		&auth.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	auth.CaptureRef = captureRef.String
	auth.RefundRef = refundRef.String
	auth.RefundAmount = domain.Money(refundAmount.Int64)

	return &auth, nil
}

// Ensure AuthorizationRepository implements repository.AuthorizationRepository.
var _ repository.AuthorizationRepository = (*AuthorizationRepository)(nil)
