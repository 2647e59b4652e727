package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	internalRedis "carpool/internal/redis"
)

type memIdempotencyStore struct {
	mu        sync.Mutex
	responses map[string]*internalRedis.StoredResponse
	claims    map[string]bool
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{
		responses: make(map[string]*internalRedis.StoredResponse),
		claims:    make(map[string]bool),
	}
}

func (s *memIdempotencyStore) Lookup(ctx context.Context, scope string) (*internalRedis.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses[scope], nil
}

func (s *memIdempotencyStore) Claim(ctx context.Context, scope string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims[scope] {
		return false, nil
	}
	s.claims[scope] = true
	return true, nil
}

func (s *memIdempotencyStore) Release(ctx context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, scope)
	return nil
}

func (s *memIdempotencyStore) Save(ctx context.Context, scope string, resp *internalRedis.StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[scope] = resp
	return nil
}

func newIdempotentRouter(store internalRedis.IdempotencyStoreInterface, calls *int32, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(callerIDKey, c.GetHeader("X-Test-Caller"))
		c.Next()
	})
	router.Use(Idempotency(store))
	router.POST("/bookings/checkout", func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return router
}

func post(router http.Handler, caller, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/bookings/checkout", strings.NewReader("{}"))
	req.Header.Set("X-Test-Caller", caller)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	var calls int32
	router := newIdempotentRouter(newMemIdempotencyStore(), &calls, http.StatusCreated)

	first := post(router, "p1", "key-1")
	second := post(router, "p1", "key-1")

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Errorf("expected replay of %d %q, got %d %q", first.Code, first.Body.String(), second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replay") != "true" {
		t.Error("expected replay header on the second response")
	}
}

func TestIdempotency_ScopedToCaller(t *testing.T) {
	var calls int32
	router := newIdempotentRouter(newMemIdempotencyStore(), &calls, http.StatusCreated)

	post(router, "p1", "key-1")
	post(router, "p2", "key-1")
	post(router, "p1", "")
	post(router, "p1", "")

	if calls != 4 {
		t.Errorf("expected 4 handler runs, got %d", calls)
	}
}

func TestIdempotency_ServerErrorsNotStored(t *testing.T) {
	var calls int32
	router := newIdempotentRouter(newMemIdempotencyStore(), &calls, http.StatusInternalServerError)

	post(router, "p1", "key-1")
	post(router, "p1", "key-1")

	if calls != 2 {
		t.Errorf("expected a retry after 5xx to run the handler again, ran %d times", calls)
	}
}

func TestIdempotency_InProgress(t *testing.T) {
	var calls int32
	store := newMemIdempotencyStore()
	router := newIdempotentRouter(store, &calls, http.StatusCreated)

	_, _ = store.Claim(context.Background(), "p1:POST:/bookings/checkout:key-1", time.Minute)

	w := post(router, "p1", "key-1")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while the key is claimed, got %d", w.Code)
	}
	if calls != 0 {
		t.Errorf("expected handler not to run, ran %d times", calls)
	}
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	var calls int32
	router := newIdempotentRouter(newMemIdempotencyStore(), &calls, http.StatusCreated)

	w := post(router, "p1", strings.Repeat("k", idempotencyMaxKeyLen+1))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
