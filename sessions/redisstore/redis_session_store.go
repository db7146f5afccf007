// Package redisstore keeps sessions in Redis hashes so any instance can
// resume a browser flow.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-authenticator/sessions"
	"github.com/redis/go-redis/v9"
)

var _ sessions.Store = (*Store)(nil)

type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

func New(client redis.UniversalClient, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) key(id string) string {
	return s.keyPrefix + "session:" + id
}

func (s *Store) Load(ctx context.Context, id string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("[redisstore.Load] %w", err)
	}
	return values, nil
}

// Save replaces the hash and refreshes its expiry in one transaction.
func (s *Store) Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error {
	key := s.key(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[redisstore.Save] %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("[redisstore.Delete] %w", err)
	}
	return nil
}
