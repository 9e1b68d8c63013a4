package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRevocationRedisUnavailable = errors.New("revocation redis unavailable")
	ErrEmptyTokenID               = errors.New("empty token id")
)

// RevocationStore is a Redis denylist of token IDs.
type RevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRevocationStore(redisClient redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = "arv"
	}
	return &RevocationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RevocationStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

// Revoke denylists tokenID for ttl. A non-positive ttl means the token has
// already expired and nothing is written. Revoking twice keeps the first
// entry's expiry.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.SetNX(ctx, s.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	n, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return n == 1, nil
}
