package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/zfogg/sidechain/profiles/internal/logger"
	"github.com/zfogg/sidechain/profiles/internal/models"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProfileCache is a read-through cache of user profiles keyed by user id
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*models.User, bool, error)
	Set(ctx context.Context, user *models.User) error
	Invalidate(ctx context.Context, userID string) error
}

// RedisProfileCache stores profiles as JSON strings with a TTL
type RedisProfileCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ ProfileCache = (*RedisProfileCache)(nil)

// NewRedisClient creates a pooled Redis client and verifies the connection
func NewRedisClient(host string, port string, password string) (*redis.Client, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		_ = client.Close()
		return nil, err
	}

	logger.Log.Info("Redis client connected", zap.String("address", addr))
	return client, nil
}

// NewRedisProfileCache wraps a redis client. A zero ttl keeps entries forever.
func NewRedisProfileCache(client redis.Cmdable, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

func profileKey(userID string) string {
	return "profile:" + userID
}

func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*models.User, bool, error) {
	raw, err := c.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		// corrupt entry, treat as a miss and drop it
		_ = c.client.Del(ctx, profileKey(userID)).Err()
		return nil, false, nil
	}
	return &user, true, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKey(user.ID), raw, c.ttl).Err()
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, profileKey(userID)).Err()
}

// Noop is used when Redis is not configured
type Noop struct{}

func (Noop) Get(context.Context, string) (*models.User, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, *models.User) error                 { return nil }
func (Noop) Invalidate(context.Context, string) error                { return nil }
