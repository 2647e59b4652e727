package repository

import (
	"context"

	"carpool/internal/domain"
)

// PayoutRepository defines the persistence operations for the payout ledger.
// The ledger is append-only.
type PayoutRepository interface {
	// Create appends a payout.
	Create(ctx context.Context, payout *domain.Payout) error

	// ListByDriver retrieves all payouts made to a driver, newest first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Payout, error)

	// ListAll retrieves every payout, newest first.
	ListAll(ctx context.Context) ([]*domain.Payout, error)
}
