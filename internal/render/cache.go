package render

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"taocv/internal/database"
)

// Cache 是渲染结果缓存端口。
// 生产实现基于 Redis（多实例共享）；测试可注入带命中计数的假实现。
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key string, html string, ttl time.Duration) error
	InvalidateCV(ctx context.Context, cvID uint) error
	InvalidateAll(ctx context.Context) error
}

const cacheKeyPrefix = "rendered:cv:"

// Fingerprint 对渲染输入做指纹：CV ID、模板 ID、cvData、customization，
// 以及每个可见 section 的 type+data（按集合迭代顺序，不排序）。
func Fingerprint(cv *database.CV) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", cv.ID)
	if cv.TemplateID != nil {
		fmt.Fprintf(&b, "%d", *cv.TemplateID)
	}
	if len(cv.CVData) > 0 {
		b.Write(cv.CVData)
	}
	if len(cv.Customization) > 0 {
		b.Write(cv.Customization)
	}
	for _, section := range cv.Sections {
		if section.IsVisible == nil || !*section.IsVisible {
			continue
		}
		b.WriteString(section.SectionType)
		if len(section.SectionData) > 0 {
			b.Write(section.SectionData)
		}
	}
	return b.String()
}

// CacheKey 生成缓存键："rendered:cv:{cvId}:{md5hex(fingerprint)}"。
// 格式对外承诺位级一致，不可改动。
func CacheKey(cvID uint, fingerprint string) string {
	sum := md5.Sum([]byte(fingerprint))
	return fmt.Sprintf("%s%d:%s", cacheKeyPrefix, cvID, hex.EncodeToString(sum[:]))
}

// RedisCache 基于 Redis 的渲染缓存实现。
// 按键模式失效使用 SCAN 而非 KEYS，避免阻塞。
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 构造 Redis 渲染缓存。
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return val, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, html string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, html, ttl).Err(); err != nil {
		return fmt.Errorf("cache put %q: %w", key, err)
	}
	return nil
}

// InvalidateCV 删除某个 CV 的全部渲染缓存。
// 指纹部分对调用方未知，必须按前缀扫描。
func (c *RedisCache) InvalidateCV(ctx context.Context, cvID uint) error {
	return c.deleteByPattern(ctx, fmt.Sprintf("%s%d:*", cacheKeyPrefix, cvID))
}

// InvalidateAll 清空所有已渲染的 CV 缓存（管理端全量清理）。
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	return c.deleteByPattern(ctx, cacheKeyPrefix+"*")
}

func (c *RedisCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0, 16)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %d keys for %q: %w", len(keys), pattern, err)
	}
	return nil
}
