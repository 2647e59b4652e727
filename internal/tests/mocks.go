package tests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"carpool/internal/domain"
	"carpool/internal/events"
	"carpool/internal/redis"
	"carpool/internal/repository"
	"carpool/internal/service"
)

// ──────────────────────────────────────────────
// MOCK STORE
// ──────────────────────────────────────────────

// MockStore is the shared in-memory state behind the mock repositories.
// Stored entities are never mutated in place: writers replace the pointer,
// so restoring a journaled prior pointer restores the row exactly.
type MockStore struct {
	mu           sync.RWMutex
	profiles     map[string]*domain.Profile
	rides        map[string]*domain.Ride
	bookings     map[string]*domain.Booking
	reservations map[string]*domain.SeatReservation
	auths        map[string]*domain.Authorization
	payouts      []*domain.Payout
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{
		profiles:     make(map[string]*domain.Profile),
		rides:        make(map[string]*domain.Ride),
		bookings:     make(map[string]*domain.Booking),
		reservations: make(map[string]*domain.SeatReservation),
		auths:        make(map[string]*domain.Authorization),
	}
}

type txJournalKey struct{}

// txJournal records the prior value of every row written through a
// transaction's context. A nil prior value means the row did not exist.
type txJournal struct {
	rides        map[string]*domain.Ride
	bookings     map[string]*domain.Booking
	reservations map[string]*domain.SeatReservation
	payoutIDs    map[string]bool
}

func newTxJournal() *txJournal {
	return &txJournal{
		rides:        make(map[string]*domain.Ride),
		bookings:     make(map[string]*domain.Booking),
		reservations: make(map[string]*domain.SeatReservation),
		payoutIDs:    make(map[string]bool),
	}
}

// journalFrom returns the journal of the transaction running on ctx, or nil.
// All record methods are no-ops on a nil journal.
func journalFrom(ctx context.Context) *txJournal {
	j, _ := ctx.Value(txJournalKey{}).(*txJournal)
	return j
}

func (j *txJournal) ride(id string, prior *domain.Ride) {
	if j == nil {
		return
	}
	if _, seen := j.rides[id]; !seen {
		j.rides[id] = prior
	}
}

func (j *txJournal) booking(id string, prior *domain.Booking) {
	if j == nil {
		return
	}
	if _, seen := j.bookings[id]; !seen {
		j.bookings[id] = prior
	}
}

func (j *txJournal) reservation(id string, prior *domain.SeatReservation) {
	if j == nil {
		return
	}
	if _, seen := j.reservations[id]; !seen {
		j.reservations[id] = prior
	}
}

func (j *txJournal) payout(id string) {
	if j != nil {
		j.payoutIDs[id] = true
	}
}

// rollback undoes the rows written under j and nothing else.
func (s *MockStore) rollback(j *txJournal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, prior := range j.rides {
		if prior == nil {
			delete(s.rides, id)
		} else {
			s.rides[id] = prior
		}
	}
	for id, prior := range j.bookings {
		if prior == nil {
			delete(s.bookings, id)
		} else {
			s.bookings[id] = prior
		}
	}
	for id, prior := range j.reservations {
		if prior == nil {
			delete(s.reservations, id)
		} else {
			s.reservations[id] = prior
		}
	}
	if len(j.payoutIDs) > 0 {
		kept := s.payouts[:0:0]
		for _, p := range s.payouts {
			if !j.payoutIDs[p.ID] {
				kept = append(kept, p)
			}
		}
		s.payouts = kept
	}
}

// ──────────────────────────────────────────────
// MOCK TX MANAGER
// ──────────────────────────────────────────────

// MockTxManager serializes transactions. When fn fails, the rows it wrote
// through the transaction context are rolled back; concurrent writes made
// outside the transaction survive.
type MockTxManager struct {
	mu     sync.Mutex
	store  *MockStore
	stores repository.Stores

	TxCount int32

	// Error injection
	BeginError error
}

// NewMockTxManager creates a tx manager over the given repositories.
func NewMockTxManager(store *MockStore, stores repository.Stores) *MockTxManager {
	return &MockTxManager{store: store, stores: stores}
}

func (m *MockTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, s repository.Stores) error) error {
	atomic.AddInt32(&m.TxCount, 1)
	if m.BeginError != nil {
		return m.BeginError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j := newTxJournal()
	if err := fn(context.WithValue(ctx, txJournalKey{}, j), m.stores); err != nil {
		m.store.rollback(j)
		return err
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK PROFILE REPOSITORY
// ──────────────────────────────────────────────

// MockProfileRepository is a mock implementation of ProfileRepository.
type MockProfileRepository struct {
	s *MockStore

	// Error injection
	CreateError error
}

// AddProfile adds a profile to the mock repository.
func (m *MockProfileRepository) AddProfile(profile *domain.Profile) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *profile
	m.s.profiles[profile.ID] = &cp
}

func (m *MockProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.AddProfile(profile)
	return nil
}

func (m *MockProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	profile, ok := m.s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *profile
	return &cp, nil
}

func (m *MockProfileRepository) GetAll(ctx context.Context) ([]*domain.Profile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	result := make([]*domain.Profile, 0, len(m.s.profiles))
	for _, p := range m.s.profiles {
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockProfileRepository) SetApprovedDriver(ctx context.Context, id string, approved bool) error {
	return m.update(id, func(p *domain.Profile) { p.ApprovedDriver = approved })
}

func (m *MockProfileRepository) SetAdmin(ctx context.Context, id string, admin bool) error {
	return m.update(id, func(p *domain.Profile) { p.Admin = admin })
}

func (m *MockProfileRepository) update(id string, fn func(p *domain.Profile)) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	profile, ok := m.s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *profile
	fn(&cp)
	m.s.profiles[id] = &cp
	return nil
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository. Seat
// counter updates are atomic under the store lock, like the guarded SQL.
type MockRideRepository struct {
	s *MockStore

	ReserveCallCount int32
	ReleaseCallCount int32
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *ride
	m.s.rides[ride.ID] = &cp
}

// GetRide returns the stored ride, or nil.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	ride, err := m.GetByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return ride
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	journalFrom(ctx).ride(ride.ID, m.s.rides[ride.ID])
	cp := *ride
	m.s.rides[ride.ID] = &cp
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	ride, ok := m.s.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ride
	return &cp, nil
}

func (m *MockRideRepository) List(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var result []*domain.Ride
	for _, r := range m.s.rides {
		if r.Status != domain.RideStatusUpcoming {
			continue
		}
		if filter.Origin != "" && !strings.Contains(strings.ToLower(r.Origin), strings.ToLower(filter.Origin)) {
			continue
		}
		if filter.Destination != "" && !strings.Contains(strings.ToLower(r.Destination), strings.ToLower(filter.Destination)) {
			continue
		}
		if !filter.DepartureAfter.IsZero() && r.DepartureAt.Before(filter.DepartureAfter) {
			continue
		}
		if !filter.DepartureBy.IsZero() && r.DepartureAt.After(filter.DepartureBy) {
			continue
		}
		if filter.MinSeats > 0 && r.SeatsTotal-r.SeatsReserved < filter.MinSeats {
			continue
		}
		if filter.DriverID != "" && r.DriverID != filter.DriverID {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DepartureAt.Before(result[j].DepartureAt) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MockRideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	return m.List(ctx, domain.RideFilter{DriverID: driverID})
}

func (m *MockRideRepository) ListAll(ctx context.Context) ([]*domain.Ride, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	result := make([]*domain.Ride, 0, len(m.s.rides))
	for _, r := range m.s.rides {
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DepartureAt.After(result[j].DepartureAt) })
	return result, nil
}

func (m *MockRideRepository) ListDeparted(ctx context.Context, now time.Time) ([]*domain.Ride, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var result []*domain.Ride
	for _, r := range m.s.rides {
		if r.Status == domain.RideStatusUpcoming && !r.DepartureAt.After(now) {
			cp := *r
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockRideRepository) ReserveSeats(ctx context.Context, rideID string, seats int) (bool, error) {
	atomic.AddInt32(&m.ReserveCallCount, 1)
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ride, ok := m.s.rides[rideID]
	if !ok || ride.Status != domain.RideStatusUpcoming || ride.SeatsReserved+seats > ride.SeatsTotal {
		return false, nil
	}
	next := *ride
	next.SeatsReserved += seats
	journalFrom(ctx).ride(rideID, ride)
	m.s.rides[rideID] = &next
	return true, nil
}

func (m *MockRideRepository) ReleaseSeats(ctx context.Context, rideID string, seats int) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ride, ok := m.s.rides[rideID]
	if !ok || ride.SeatsReserved < seats {
		return repository.ErrConflict
	}
	next := *ride
	next.SeatsReserved -= seats
	journalFrom(ctx).ride(rideID, ride)
	m.s.rides[rideID] = &next
	return nil
}

func (m *MockRideRepository) UpdateSeatsTotal(ctx context.Context, rideID string, seatsTotal int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ride, ok := m.s.rides[rideID]
	if !ok {
		return repository.ErrNotFound
	}
	if seatsTotal < ride.SeatsReserved {
		return repository.ErrConflict
	}
	next := *ride
	next.SeatsTotal = seatsTotal
	journalFrom(ctx).ride(rideID, ride)
	m.s.rides[rideID] = &next
	return nil
}

func (m *MockRideRepository) UpdateStatus(ctx context.Context, rideID string, from, to domain.RideStatus, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ride, ok := m.s.rides[rideID]
	if !ok || ride.Status != from {
		return repository.ErrConflict
	}
	next := *ride
	next.Status = to
	switch to {
	case domain.RideStatusCompleted:
		next.CompletedAt = at
	case domain.RideStatusCancelled:
		next.CancelledAt = at
	}
	journalFrom(ctx).ride(rideID, ride)
	m.s.rides[rideID] = &next
	return nil
}

func (m *MockRideRepository) Cancel(ctx context.Context, rideID string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	ride, ok := m.s.rides[rideID]
	if !ok || ride.Status != domain.RideStatusUpcoming || ride.SeatsReserved != 0 {
		return repository.ErrConflict
	}
	next := *ride
	next.Status = domain.RideStatusCancelled
	next.CancelledAt = at
	journalFrom(ctx).ride(rideID, ride)
	m.s.rides[rideID] = &next
	return nil
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository.
type MockBookingRepository struct {
	s *MockStore

	// Counters for verification
	CreateCallCount     int32
	TransitionCallCount int32

	// Error injection
	CreateError     error
	TransitionError error
}

// GetBooking returns the stored booking, or nil.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	b, err := m.GetByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return b
}

// CountBookings returns the number of bookings in the given status.
func (m *MockBookingRepository) CountBookings(status domain.BookingStatus) int {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	count := 0
	for _, b := range m.s.bookings {
		if b.Status == status {
			count++
		}
	}
	return count
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	journalFrom(ctx).booking(booking.ID, m.s.bookings[booking.ID])
	cp := *booking
	m.s.bookings[booking.ID] = &cp
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	b, ok := m.s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *MockBookingRepository) Transition(ctx context.Context, booking *domain.Booking, from domain.BookingStatus) error {
	atomic.AddInt32(&m.TransitionCallCount, 1)
	if m.TransitionError != nil {
		return m.TransitionError
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	current, ok := m.s.bookings[booking.ID]
	if !ok || current.Status != from || current.StatusVersion != booking.StatusVersion {
		return repository.ErrConflict
	}
	journalFrom(ctx).booking(booking.ID, current)
	booking.StatusVersion++
	cp := *booking
	m.s.bookings[booking.ID] = &cp
	return nil
}

func (m *MockBookingRepository) list(match func(b *domain.Booking) bool) []*domain.Booking {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var result []*domain.Booking
	for _, b := range m.s.bookings {
		if match(b) {
			cp := *b
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (m *MockBookingRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Booking, error) {
	return m.list(func(b *domain.Booking) bool { return b.RideID == rideID }), nil
}

func (m *MockBookingRepository) ListByPassenger(ctx context.Context, passengerID string) ([]*domain.Booking, error) {
	return m.list(func(b *domain.Booking) bool { return b.PassengerID == passengerID }), nil
}

func (m *MockBookingRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	return m.list(func(b *domain.Booking) bool {
		ride, ok := m.s.rides[b.RideID]
		return ok && ride.DriverID == driverID
	}), nil
}

func (m *MockBookingRepository) ListExpiredPending(ctx context.Context, createdBefore, departedBy time.Time) ([]*domain.Booking, error) {
	return m.list(func(b *domain.Booking) bool {
		if b.Status != domain.BookingStatusPendingDriver {
			return false
		}
		ride, ok := m.s.rides[b.RideID]
		return !b.CreatedAt.After(createdBefore) || (ok && !ride.DepartureAt.After(departedBy))
	}), nil
}

func (m *MockBookingRepository) ListAwaitingRefund(ctx context.Context) ([]*domain.Booking, error) {
	return m.list(func(b *domain.Booking) bool { return b.AwaitingRefund() }), nil
}

// ──────────────────────────────────────────────
// MOCK RESERVATION REPOSITORY
// ──────────────────────────────────────────────

// MockReservationRepository is a mock implementation of ReservationRepository.
type MockReservationRepository struct {
	s *MockStore
}

// Count returns the number of live reservations.
func (m *MockReservationRepository) Count() int {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	return len(m.s.reservations)
}

func (m *MockReservationRepository) Create(ctx context.Context, reservation *domain.SeatReservation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	journalFrom(ctx).reservation(reservation.ID, m.s.reservations[reservation.ID])
	cp := *reservation
	m.s.reservations[reservation.ID] = &cp
	return nil
}

func (m *MockReservationRepository) Delete(ctx context.Context, id string) (*domain.SeatReservation, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	reservation, ok := m.s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	journalFrom(ctx).reservation(id, reservation)
	delete(m.s.reservations, id)
	return reservation, nil
}

func (m *MockReservationRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.SeatReservation, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var result []*domain.SeatReservation
	for _, r := range m.s.reservations {
		if !r.ExpiresAt.After(now) {
			cp := *r
			result = append(result, &cp)
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK AUTHORIZATION REPOSITORY
// ──────────────────────────────────────────────

// MockAuthorizationRepository is a mock implementation of AuthorizationRepository.
type MockAuthorizationRepository struct {
	s *MockStore

	// Error injection
	CreateError       error
	MarkCapturedError error
}

// GetAuthorization returns the stored authorization, or nil.
func (m *MockAuthorizationRepository) GetAuthorization(ref string) *domain.Authorization {
	auth, err := m.GetByRef(context.Background(), ref)
	if err != nil {
		return nil
	}
	return auth
}

func (m *MockAuthorizationRepository) Create(ctx context.Context, auth *domain.Authorization) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.auths {
		if existing.IdempotencyKey == auth.IdempotencyKey {
			return errors.New("duplicate idempotency key")
		}
	}
	cp := *auth
	m.s.auths[auth.Ref] = &cp
	return nil
}

func (m *MockAuthorizationRepository) GetByRef(ctx context.Context, ref string) (*domain.Authorization, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	auth, ok := m.s.auths[ref]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *auth
	return &cp, nil
}

func (m *MockAuthorizationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Authorization, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, auth := range m.s.auths {
		if auth.IdempotencyKey == key {
			cp := *auth
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockAuthorizationRepository) update(ref string, from domain.AuthorizationStatus, apply func(a *domain.Authorization)) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	auth, ok := m.s.auths[ref]
	if !ok || auth.Status != from {
		return repository.ErrConflict
	}
	next := *auth
	apply(&next)
	next.UpdatedAt = time.Now()
	m.s.auths[ref] = &next
	return nil
}

func (m *MockAuthorizationRepository) MarkCaptured(ctx context.Context, ref, captureRef string) error {
	if m.MarkCapturedError != nil {
		return m.MarkCapturedError
	}
	return m.update(ref, domain.AuthorizationStatusAuthorized, func(a *domain.Authorization) {
		a.Status = domain.AuthorizationStatusCaptured
		a.CaptureRef = captureRef
	})
}

func (m *MockAuthorizationRepository) MarkVoided(ctx context.Context, ref string) error {
	return m.update(ref, domain.AuthorizationStatusAuthorized, func(a *domain.Authorization) {
		a.Status = domain.AuthorizationStatusVoided
	})
}

func (m *MockAuthorizationRepository) MarkRefunded(ctx context.Context, ref, refundRef string, amount domain.Money) error {
	return m.update(ref, domain.AuthorizationStatusCaptured, func(a *domain.Authorization) {
		a.Status = domain.AuthorizationStatusRefunded
		a.RefundRef = refundRef
		a.RefundAmount = amount
	})
}

// ──────────────────────────────────────────────
// MOCK PAYOUT REPOSITORY
// ──────────────────────────────────────────────

// MockPayoutRepository is a mock implementation of PayoutRepository.
type MockPayoutRepository struct {
	s *MockStore
}

func (m *MockPayoutRepository) Create(ctx context.Context, payout *domain.Payout) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	journalFrom(ctx).payout(payout.ID)
	cp := *payout
	m.s.payouts = append(m.s.payouts, &cp)
	return nil
}

func (m *MockPayoutRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Payout, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var result []*domain.Payout
	for i := len(m.s.payouts) - 1; i >= 0; i-- {
		if m.s.payouts[i].DriverID == driverID {
			cp := *m.s.payouts[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MockPayoutRepository) ListAll(ctx context.Context) ([]*domain.Payout, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	result := make([]*domain.Payout, 0, len(m.s.payouts))
	for i := len(m.s.payouts) - 1; i >= 0; i-- {
		cp := *m.s.payouts[i]
		result = append(result, &cp)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
// Locks map booking IDs to the holder's token.
type MockLockStore struct {
	mu     sync.Mutex
	locks  map[string]string
	tokens int

	AcquireCallCount int32
	LostReleaseCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]string)}
}

func (m *MockLockStore) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[bookingID]; held {
		return "", false, nil
	}
	m.tokens++
	token := fmt.Sprintf("token-%d", m.tokens)
	m.locks[bookingID] = token
	return token, true, nil
}

func (m *MockLockStore) ReleaseBookingLock(ctx context.Context, bookingID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[bookingID] != token {
		atomic.AddInt32(&m.LostReleaseCount, 1)
		return redis.ErrLockLost
	}
	delete(m.locks, bookingID)
	return nil
}

// Hold takes a lock on behalf of another process, replacing any holder as
// if the previous lock had expired.
func (m *MockLockStore) Hold(bookingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[bookingID] = "other-process"
}

// Drop removes a lock regardless of holder.
func (m *MockLockStore) Drop(bookingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, bookingID)
}

// IsLocked reports whether the booking lock is held.
func (m *MockLockStore) IsLocked(bookingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[bookingID]
	return held
}

// HeldByOther reports whether the lock belongs to the process simulated by Hold.
func (m *MockLockStore) HeldByOther(bookingID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[bookingID] == "other-process"
}

// ──────────────────────────────────────────────
// MOCK SETTLEMENT CACHE
// ──────────────────────────────────────────────

// MockSettlementCache is a mock implementation of SettlementCacheInterface.
type MockSettlementCache struct {
	mu          sync.Mutex
	settlements map[string]*redis.CachedSettlement

	GetCallCount        int32
	InvalidateCallCount int32
}

// NewMockSettlementCache creates a new mock cache.
func NewMockSettlementCache() *MockSettlementCache {
	return &MockSettlementCache{settlements: make(map[string]*redis.CachedSettlement)}
}

func (m *MockSettlementCache) GetSettlement(ctx context.Context, driverID string) (*redis.CachedSettlement, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[driverID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *MockSettlementCache) SetSettlement(ctx context.Context, settlement *redis.CachedSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *settlement
	m.settlements[settlement.DriverID] = &cp
	return nil
}

func (m *MockSettlementCache) InvalidateSettlement(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settlements, driverID)
	return nil
}

// Has reports whether a settlement is cached for the driver.
func (m *MockSettlementCache) Has(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.settlements[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK PROCESSOR
// ──────────────────────────────────────────────

// MockProcessor wraps the in-process processor with counters and error injection.
type MockProcessor struct {
	inner *service.MockProcessor

	AuthorizeCallCount int32
	CaptureCallCount   int32
	VoidCallCount      int32
	RefundCallCount    int32

	// Error injection
	AuthorizeError error
	CaptureError   error
	VoidError      error
	RefundError    error

	// Unsettled keeps refunds pending.
	Unsettled bool

	// BeforeCapture runs before each capture reaches the processor.
	BeforeCapture func()
}

// NewMockProcessor creates a new mock processor.
func NewMockProcessor() *MockProcessor {
	return &MockProcessor{inner: service.NewMockProcessor()}
}

func (m *MockProcessor) Authorize(ctx context.Context, amount domain.Money, source, idempotencyKey string) (string, error) {
	atomic.AddInt32(&m.AuthorizeCallCount, 1)
	if m.AuthorizeError != nil {
		return "", m.AuthorizeError
	}
	return m.inner.Authorize(ctx, amount, source, idempotencyKey)
}

func (m *MockProcessor) Capture(ctx context.Context, authRef string, amount domain.Money) (string, error) {
	atomic.AddInt32(&m.CaptureCallCount, 1)
	if m.BeforeCapture != nil {
		m.BeforeCapture()
	}
	if m.CaptureError != nil {
		return "", m.CaptureError
	}
	return m.inner.Capture(ctx, authRef, amount)
}

func (m *MockProcessor) Void(ctx context.Context, authRef string) error {
	atomic.AddInt32(&m.VoidCallCount, 1)
	if m.VoidError != nil {
		return m.VoidError
	}
	return m.inner.Void(ctx, authRef)
}

func (m *MockProcessor) Refund(ctx context.Context, captureRef string, amount domain.Money, idempotencyKey string) (string, error) {
	atomic.AddInt32(&m.RefundCallCount, 1)
	if m.RefundError != nil {
		return "", m.RefundError
	}
	return m.inner.Refund(ctx, captureRef, amount, idempotencyKey)
}

func (m *MockProcessor) RefundSettled(ctx context.Context, refundRef string) (bool, error) {
	if m.Unsettled {
		return false, nil
	}
	return m.inner.RefundSettled(ctx, refundRef)
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Types returns the types of all published events in order.
func (m *MockPublisher) Types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]events.Type, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// Ensure mocks implement interfaces.
var (
	_ repository.TxManager               = (*MockTxManager)(nil)
	_ repository.ProfileRepository       = (*MockProfileRepository)(nil)
	_ repository.RideRepository          = (*MockRideRepository)(nil)
	_ repository.BookingRepository       = (*MockBookingRepository)(nil)
	_ repository.ReservationRepository   = (*MockReservationRepository)(nil)
	_ repository.AuthorizationRepository = (*MockAuthorizationRepository)(nil)
	_ repository.PayoutRepository        = (*MockPayoutRepository)(nil)
	_ redis.LockStoreInterface           = (*MockLockStore)(nil)
	_ redis.SettlementCacheInterface     = (*MockSettlementCache)(nil)
	_ service.Processor                  = (*MockProcessor)(nil)
	_ events.Publisher                   = (*MockPublisher)(nil)
)
