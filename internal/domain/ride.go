package domain

import "time"

// RideStatus represents the current status of a published ride.
type RideStatus string

const (
	RideStatusUpcoming  RideStatus = "upcoming"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// Ride is seat inventory published by a driver for one departure.
type Ride struct {
	ID            string
	DriverID      string
	Origin        string
	Destination   string
	DepartureAt   time.Time
	SeatsTotal    int
	SeatsReserved int // seats held by reservations and pending/confirmed bookings
	PricePerSeat  Money
	Status        RideStatus
	CreatedAt     time.Time
	CompletedAt   time.Time
	CancelledAt   time.Time
}

// SeatsAvailable returns the number of seats that can still be reserved.
func (r *Ride) SeatsAvailable() int {
	if r.Status != RideStatusUpcoming {
		return 0
	}
	if free := r.SeatsTotal - r.SeatsReserved; free > 0 {
		return free
	}
	return 0
}

// RideFilter is the passenger's search configuration. It is passed explicitly
// into listing queries instead of living in ambient state.
type RideFilter struct {
	Origin         string    `json:"origin,omitempty"`
	Destination    string    `json:"destination,omitempty"`
	DepartureAfter time.Time `json:"departure_after,omitempty"`
	DepartureBy    time.Time `json:"departure_by,omitempty"`
	MinSeats       int       `json:"min_seats,omitempty"`
	DriverID       string    `json:"driver_id,omitempty"`
	OnlyCompatible bool      `json:"only_compatible,omitempty"`
	Limit          int       `json:"limit,omitempty"`
}

// SeatReservation is a short-lived claim on ride seats taken before payment
// authorization. It is consumed by the booking it turns into, or released.
type SeatReservation struct {
	ID        string
	RideID    string
	Seats     int
	ExpiresAt time.Time
	CreatedAt time.Time
}
