package signatureinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/trustgate/pkg/errx"
	"github.com/redis/go-redis/v9"
)

const noncePrefix = "trustgate:nonce:"

// RedisNonceStore implements signature.NonceStore on redis SET NX, which
// gives the set-if-absent atomicity the replay check needs across
// instances.
type RedisNonceStore struct {
	client *redis.Client
}

// NewRedisNonceStore creates a redis-backed nonce store.
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// Remember records the nonce with the given TTL. Returns false when the
// nonce was already present.
func (s *RedisNonceStore) Remember(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	fresh, err := s.client.SetNX(ctx, noncePrefix+nonce, 1, ttl).Result()
	if err != nil {
		return false, errx.Wrap(err, "failed to record nonce", errx.TypeExternal)
	}
	return fresh, nil
}
