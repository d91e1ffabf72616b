package repository

import (
	"context"
	"fmt"
	"time"

	"authgate/internal/utils"

	"github.com/redis/go-redis/v9"
)

const defaultSessionKeyPrefix = "authgate:session:"

// SessionRepository keeps session values keyed by session id.
type SessionRepository interface {
	Load(ctx context.Context, sessionID string) (map[string]string, error)
	Save(ctx context.Context, sessionID string, values map[string]string) error
	Delete(ctx context.Context, sessionID string) error
}

type redisSessionRepository struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisSessionRepository(rdb redis.UniversalClient, prefix string, ttl time.Duration) SessionRepository {
	if prefix == "" {
		prefix = defaultSessionKeyPrefix
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &redisSessionRepository{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Load returns nil when the session does not exist or has expired.
func (r *redisSessionRepository) Load(ctx context.Context, sessionID string) (map[string]string, error) {
	if sessionID == "" {
		return nil, nil
	}
	values, err := r.rdb.HGetAll(ctx, r.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

// Save replaces the stored values and refreshes the expiry.
func (r *redisSessionRepository) Save(ctx context.Context, sessionID string, values map[string]string) error {
	key := r.key(sessionID)
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) == 0 {
			return nil
		}
		fields := make([]any, 0, len(values)*2)
		for field, value := range values {
			fields = append(fields, field, value)
		}
		pipe.HSet(ctx, key, fields...)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := r.rdb.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Keys hold a digest of the session id, never the raw cookie value.
func (r *redisSessionRepository) key(sessionID string) string {
	return r.prefix + utils.HashToken(sessionID)
}
