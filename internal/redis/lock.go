package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is returned on release when the lock expired and may now
// belong to someone else.
var ErrLockLost = errors.New("booking lock expired before release")

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

func bookingLockKey(bookingID string) string {
	return "lock:booking:" + bookingID
}

// AcquireBookingLock attempts to acquire the lock for a booking. ok is false
// if the lock is already held. The token must be passed to ReleaseBookingLock.
func (s *LockStore) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.New().String()

	ok, err = s.client.SetNX(ctx, bookingLockKey(bookingID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseBookingLock releases the lock if it is still held with token.
func (s *LockStore) ReleaseBookingLock(ctx context.Context, bookingID, token string) error {
	deleted, err := releaseScript.Run(ctx, s.client, []string{bookingLockKey(bookingID)}, token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockLost
	}
	return nil
}
