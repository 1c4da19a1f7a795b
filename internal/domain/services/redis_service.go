package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"plantcare-http-service/internal/infrastructure/config"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// InterfaceRedisService defines the Redis service interface
type InterfaceRedisService interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Ping(ctx context.Context) error
}

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) InterfaceRedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisService{Client: client}
}

// NewRedisServiceWithClient wraps an existing client
func NewRedisServiceWithClient(client *redis.Client) InterfaceRedisService {
	return &RedisService{Client: client}
}

// 1 Set stores a JSON-encoded value with expiration
func (s *RedisService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, key, jsonValue, expiration).Err()
}

// 2 Get decodes a JSON value into dest, returns ErrCacheMiss when absent
func (s *RedisService) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := s.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// 3 Delete deletes a key from Redis
func (s *RedisService) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

// 4 IncrWindow increments a fixed-window counter and returns the count and the window's remaining TTL
func (s *RedisService) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := s.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.Client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	ttl, err := s.Client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	// 计数器没有过期时间时补上，避免永久限流
	if ttl < 0 {
		if err := s.Client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return count, ttl, nil
}

// 5 Ping checks the connection
func (s *RedisService) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}
