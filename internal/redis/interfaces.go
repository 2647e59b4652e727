package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseBookingLock(ctx context.Context, bookingID, token string) error
}

// SettlementCacheInterface defines the interface for the settlement read cache.
type SettlementCacheInterface interface {
	GetSettlement(ctx context.Context, driverID string) (*CachedSettlement, error)
	SetSettlement(ctx context.Context, settlement *CachedSettlement) error
	InvalidateSettlement(ctx context.Context, driverID string) error
}

// IdempotencyStoreInterface defines the interface for replayable responses.
type IdempotencyStoreInterface interface {
	Lookup(ctx context.Context, scope string) (*StoredResponse, error)
	Claim(ctx context.Context, scope string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scope string) error
	Save(ctx context.Context, scope string, resp *StoredResponse) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface        = (*LockStore)(nil)
	_ SettlementCacheInterface  = (*CacheStore)(nil)
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)
