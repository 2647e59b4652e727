package repository

import (
	"context"
	"time"

	"carpool/internal/domain"
)

// ReservationRepository defines the persistence operations for seat reservations.
type ReservationRepository interface {
	// Create persists a new reservation.
	Create(ctx context.Context, reservation *domain.SeatReservation) error

	// Delete removes a reservation and returns it.
	// Returns ErrNotFound if it was already consumed or released.
	Delete(ctx context.Context, id string) (*domain.SeatReservation, error)

	// ListExpired retrieves reservations that expired at or before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.SeatReservation, error)
}
