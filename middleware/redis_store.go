// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghosttype/ghosttype/config"
)

// RedisTokenStore is the fast-path tier: a valid bearer token cached
// here means AuthMiddleware never has to touch Postgres for it again
// until the key's TTL lapses.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenStore(cfg *config.Config) (*RedisTokenStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Auth.Redis.Host, cfg.Auth.Redis.Port),
		Password: cfg.Auth.Redis.Password,
		DB:       cfg.Auth.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %v", err)
	}

	return &RedisTokenStore{
		client: client,
		ttl:    time.Duration(cfg.Auth.Redis.KeyTTL) * time.Second,
	}, nil
}

func (s *RedisTokenStore) ValidateToken(token string) (bool, error) {
	exists, err := s.client.Exists(context.Background(), token).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

func (s *RedisTokenStore) CacheToken(token string) error {
	return s.client.Set(context.Background(), token, "1", s.ttl).Err()
}
