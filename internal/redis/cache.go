package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"carpool/internal/domain"
)

// CacheStore handles read-model caching in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore. Entries expire after ttl even
// without explicit invalidation.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = SettlementCacheTTL
	}
	return &CacheStore{client: client, ttl: ttl}
}

// SettlementCacheTTL is the default lifetime of a cached driver settlement.
const SettlementCacheTTL = 5 * time.Minute

const settlementCachePrefix = "cache:settlement:"

// CachedSettlement is the cached form of a driver's reconciliation totals.
type CachedSettlement struct {
	DriverID        string       `json:"driver_id"`
	TotalEarned     domain.Money `json:"total_earned"`
	TotalPaidOut    domain.Money `json:"total_paid_out"`
	BalanceOwed     domain.Money `json:"balance_owed"`
	EarningBookings int          `json:"earning_bookings"`
	PayoutCount     int          `json:"payout_count"`
	ComputedAt      time.Time    `json:"computed_at"`
}

// GetSettlement retrieves a driver settlement from cache.
// Returns nil on a cache miss.
func (s *CacheStore) GetSettlement(ctx context.Context, driverID string) (*CachedSettlement, error) {
	data, err := s.client.Get(ctx, settlementCachePrefix+driverID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var settlement CachedSettlement
	if err := json.Unmarshal(data, &settlement); err != nil {
		return nil, err
	}
	return &settlement, nil
}

// SetSettlement stores a driver settlement in cache.
func (s *CacheStore) SetSettlement(ctx context.Context, settlement *CachedSettlement) error {
	data, err := json.Marshal(settlement)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, settlementCachePrefix+settlement.DriverID, data, s.ttl).Err()
}

// InvalidateSettlement removes a driver settlement from cache.
func (s *CacheStore) InvalidateSettlement(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, settlementCachePrefix+driverID).Err()
}
