package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"multichat/internal/config"
)

// 对话历史窗口缓存
const (
	keyPrefix       = "multichat:"
	HistoryCacheTTL = 30 * time.Minute
)

// ErrMiss key 不存在
var ErrMiss = errors.New("cache miss")

// RedisCache 以 JSON 保存值的 Redis 缓存，所有 key 带 multichat: 前缀
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 连接 Redis，Ping 失败时返回错误
func NewRedisCache(ctx context.Context, cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = HistoryCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

// Set expiration 为 0 时使用默认 TTL
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if expiration <= 0 {
		expiration = c.ttl
	}
	return c.client.Set(ctx, keyPrefix+key, data, expiration).Err()
}

// Get 未命中时返回 ErrMiss
func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// 格式不兼容的旧值直接丢弃
		_ = c.client.Del(ctx, keyPrefix+key).Err()
		return ErrMiss
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	return c.client.Del(ctx, full...).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// IsMiss 判断是否未命中
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss) || errors.Is(err, redis.Nil)
}

// HistoryCacheKey 对话历史窗口的缓存 key
func HistoryCacheKey(chatID string) string {
	return "history:" + chatID
}
