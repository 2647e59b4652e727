package repository

import "context"

// Stores groups the repositories bound to a single transaction.
type Stores struct {
	Rides        RideRepository
	Bookings     BookingRepository
	Reservations ReservationRepository
	Payouts      PayoutRepository
}

// TxManager runs a function inside a database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
