package storage

import (
	"context"
	"time"

	"github.com/boost-engine/internal/errors"
	"github.com/ethereum/go-ethereum/common"
)

// signaturePrefix namespaces consumed-signature keys in redis
const signaturePrefix = "sig:"

// RedisSignatureStore implements auth.ConsumedSignatureStore on redis.
// Keys expire after the verifier's tolerance window has passed twice,
// which bounds the consumed set: anything older is rejected as expired
// before the store is ever consulted.
type RedisSignatureStore struct {
	cache *RedisCache
}

// NewRedisSignatureStore creates a consumed-signature store
func NewRedisSignatureStore(cache *RedisCache) *RedisSignatureStore {
	return &RedisSignatureStore{cache: cache}
}

// Consume marks the digest consumed, returning false if it already was
func (s *RedisSignatureStore) Consume(ctx context.Context, digest common.Hash, ttl time.Duration) (bool, error) {
	ok, err := s.cache.Client().SetNX(ctx, signaturePrefix+digest.Hex(), 1, ttl).Result()
	if err != nil {
		return false, errors.NewCacheError("consume signature", err)
	}
	return ok, nil
}

// Release removes a consumed digest, re-arming the signature
func (s *RedisSignatureStore) Release(ctx context.Context, digest common.Hash) error {
	if err := s.cache.Client().Del(ctx, signaturePrefix+digest.Hex()).Err(); err != nil {
		return errors.NewCacheError("release signature", err)
	}
	return nil
}
