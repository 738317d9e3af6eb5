/**
 * @description
 * Request dedup guard for the inbound API. Each mutating request carries a
 * caller-supplied request id; a short-TTL marker in Redis rejects concurrent
 * duplicates instead of double-processing them. The marker is a SET NX;
 * test-and-set must be atomic so two identical requests arriving together
 * cannot both pass.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDuplicateRequest is returned while a request with the same id is still
// in flight.
var ErrDuplicateRequest = errors.New("duplicate request in flight")

// RequestGuard implements the short-TTL dedup marker.
type RequestGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRequestGuard returns a guard whose markers live for ttl.
func NewRequestGuard(client redis.UniversalClient, ttl time.Duration) *RequestGuard {
	if ttl <= 0 {
		ttl = 20 * time.Second
	}
	return &RequestGuard{client: client, ttl: ttl}
}

func requestKey(requestID string) string {
	return "request:" + requestID
}

// Acquire claims the request id, or returns ErrDuplicateRequest if a request
// with the same id is already being processed.
func (g *RequestGuard) Acquire(ctx context.Context, requestID string) error {
	ok, err := g.client.SetNX(ctx, requestKey(requestID), requestID, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim request %s: %w", requestID, err)
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}
