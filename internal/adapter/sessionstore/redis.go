// Package sessionstore persists per-thread conversation state as JSON
// documents in Redis.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stylist-orchestrator/internal/domain"
)

const keyPrefix = "stylist:session:"

type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionRepository creates a SessionRepository on the given Redis
// client. Sessions expire after ttl of inactivity; a ttl of zero keeps them
// forever.
func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) domain.SessionRepository {
	return &redisSessionRepository{client: client, ttl: ttl}
}

// Get loads the session for a thread, or returns a fresh one when the thread
// is unknown.
func (r *redisSessionRepository) Get(ctx context.Context, threadID string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, keyPrefix+threadID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewSession(threadID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save persists the session and refreshes its TTL.
func (r *redisSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+session.ThreadID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
