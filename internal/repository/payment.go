package repository

import (
	"context"

	"carpool/internal/domain"
)

// AuthorizationRepository defines the persistence operations for payment holds.
type AuthorizationRepository interface {
	// Create persists a new authorization.
	Create(ctx context.Context, auth *domain.Authorization) error

	// GetByRef retrieves an authorization by its processor reference.
	GetByRef(ctx context.Context, ref string) (*domain.Authorization, error)

	// GetByIdempotencyKey retrieves an authorization by its idempotency key.
	// Returns nil if no authorization exists with the given key.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Authorization, error)

	// MarkCaptured moves an authorized hold to captured.
	// Returns ErrConflict if the hold is no longer authorized.
	MarkCaptured(ctx context.Context, ref, captureRef string) error

	// MarkVoided moves an authorized hold to voided.
	// Returns ErrConflict if the hold is no longer authorized.
	MarkVoided(ctx context.Context, ref string) error

	// MarkRefunded records a refund against a captured hold.
	// Returns ErrConflict if the hold is not captured.
	MarkRefunded(ctx context.Context, ref, refundRef string, amount domain.Money) error
}
