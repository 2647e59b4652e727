package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "idempotency:"

	// IdempotencyTTL is how long a stored response is replayed.
	IdempotencyTTL = 24 * time.Hour
)

// StoredResponse is a handler response kept for replay.
type StoredResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// IdempotencyStore keeps responses of mutating requests keyed by the
// caller-scoped Idempotency-Key.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = IdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Lookup returns the stored response for scope, or nil if none exists.
func (s *IdempotencyStore) Lookup(ctx context.Context, scope string) (*StoredResponse, error) {
	data, err := s.client.Get(ctx, idempotencyPrefix+scope).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var resp StoredResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Claim marks scope as in progress. It returns false while another request
// holds the claim.
func (s *IdempotencyStore) Claim(ctx context.Context, scope string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyPrefix+scope+":lock", "1", ttl).Result()
}

// Release drops the in-progress claim on scope.
func (s *IdempotencyStore) Release(ctx context.Context, scope string) error {
	return s.client.Del(ctx, idempotencyPrefix+scope+":lock").Err()
}

// Save stores resp for replay.
func (s *IdempotencyStore) Save(ctx context.Context, scope string, resp *StoredResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyPrefix+scope, data, s.ttl).Err()
}
