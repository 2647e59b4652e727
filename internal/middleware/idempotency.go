package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	internalRedis "carpool/internal/redis"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	idempotencyClaimTTL  = 30 * time.Second
	idempotencyMaxKeyLen = 128
)

// bodyRecorder tees the response body so it can be stored for replay.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a mutating request retried
// with the same Idempotency-Key. Keys are scoped to caller and route.
// Server errors are not stored, so a retry after a 5xx runs the handler again.
func Idempotency(store internalRedis.IdempotencyStoreInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > idempotencyMaxKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key is too long", "code": "validation_error"})
			return
		}

		ctx := c.Request.Context()
		scope := CallerID(c) + ":" + c.Request.Method + ":" + c.FullPath() + ":" + key

		stored, err := store.Lookup(ctx, scope)
		if err != nil {
			// Redis unavailable: serve the request without replay protection.
			c.Next()
			return
		}
		if stored != nil {
			c.Header("Idempotent-Replay", "true")
			c.Data(stored.StatusCode, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		claimed, err := store.Claim(ctx, scope, idempotencyClaimTTL)
		if err == nil && !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is in progress", "code": "request_in_progress"})
			return
		}
		if err == nil {
			defer func() { _ = store.Release(context.WithoutCancel(ctx), scope) }()
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < http.StatusOK || status >= http.StatusInternalServerError {
			return
		}
		_ = store.Save(context.WithoutCancel(ctx), scope, &internalRedis.StoredResponse{
			StatusCode:  status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
	}
}
