package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisTokenStore keeps issued session tokens and short-lived email
// confirmation codes in Redis. Account documents are never cached here;
// only token material with a TTL.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// CacheToken stores a session token for a user.
func (r *RedisTokenStore) CacheToken(ctx context.Context, userID, token string, ttl time.Duration) error {
	return r.client.Set(ctx, "token:"+userID, token, ttl).Err()
}

// GetToken retrieves a user's session token. A missing token is not an
// error.
func (r *RedisTokenStore) GetToken(ctx context.Context, userID string) (string, error) {
	token, err := r.client.Get(ctx, "token:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

// InvalidateToken removes a user's session token.
func (r *RedisTokenStore) InvalidateToken(ctx context.Context, userID string) error {
	return r.client.Del(ctx, "token:"+userID).Err()
}

// CacheEmailCode stores an email confirmation code for a user.
func (r *RedisTokenStore) CacheEmailCode(ctx context.Context, userID, code string, ttl time.Duration) error {
	return r.client.Set(ctx, "emailcode:"+userID, code, ttl).Err()
}

// GetEmailCode retrieves a user's pending email confirmation code. A
// missing code is not an error.
func (r *RedisTokenStore) GetEmailCode(ctx context.Context, userID string) (string, error) {
	code, err := r.client.Get(ctx, "emailcode:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return code, err
}

// InvalidateEmailCode removes a user's pending email confirmation code.
func (r *RedisTokenStore) InvalidateEmailCode(ctx context.Context, userID string) error {
	return r.client.Del(ctx, "emailcode:"+userID).Err()
}
