// Package redisstore is a redis-backed token storage backend for
// deployments where the SDK runs across several processes that must share
// one session (e.g. a kiosk fleet behind a single service account).
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicore/go-clinic-client/tokenstore"
)

var _ tokenstore.Backend = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type Option func(*RedisStore)

// WithTTL bounds how long entries survive without being rewritten. Zero
// means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// New creates a RedisStore. All keys are namespaced under prefix.
func New(client *redis.Client, prefix string, options ...Option) *RedisStore {
	s := &RedisStore{client: client, prefix: prefix}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *RedisStore) Get(key string) (string, bool) {
	result, err := s.client.Get(context.Background(), s.prefix+":"+key).Result()
	if err == redis.Nil {
		return "", false
	} else if err != nil {
		return "", false
	}
	return result, true
}

func (s *RedisStore) Set(key, value string) error {
	return s.client.Set(context.Background(), s.prefix+":"+key, value, s.ttl).Err()
}

func (s *RedisStore) Delete(key string) error {
	return s.client.Del(context.Background(), s.prefix+":"+key).Err()
}
