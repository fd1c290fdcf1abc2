package biz

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/sentinel-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/sentinel-rag/pkg/utils/json"
)

// ResultCacheConfig 检索结果缓存配置。
type ResultCacheConfig struct {
	// TTL 缓存过期时间，零值表示禁用。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// ResultCache 基于 Redis 的检索结果缓存。
// 缓存键包含调用方身份，不同调用方之间不会共享私有文档块。
// nil 值可直接使用，表现为始终未命中。
type ResultCache struct {
	redis  goredis.UniversalClient
	config ResultCacheConfig
}

// NewResultCache 创建检索结果缓存。redis 为 nil 或 TTL 为零时返回 nil（禁用）。
func NewResultCache(redis goredis.UniversalClient, config ResultCacheConfig) *ResultCache {
	if redis == nil || config.TTL <= 0 {
		return nil
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rag:search:"
	}
	return &ResultCache{redis: redis, config: config}
}

// Enabled 判断缓存是否启用。
func (c *ResultCache) Enabled() bool {
	return c != nil
}

// cacheKey 基于调用方、topK 与查询变体生成缓存键（使用 SHA256 哈希）。
func (c *ResultCache) cacheKey(caller string, topK int, variants []string) string {
	raw := caller + "\x00" + strconv.Itoa(topK) + "\x00" + strings.Join(variants, "\x00")
	return c.config.KeyPrefix + textutil.HashString(raw)
}

// Get 从缓存获取检索结果。
func (c *ResultCache) Get(ctx context.Context, caller string, topK int, variants []string) ([]ScoredResult, bool) {
	if !c.Enabled() {
		return nil, false
	}

	key := c.cacheKey(caller, topK, variants)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			logger.Warnw("读取检索缓存失败", "error", err.Error(), "key", key)
		}
		return nil, false
	}

	var results []ScoredResult
	if err := json.Unmarshal(data, &results); err != nil {
		logger.Warnw("检索缓存内容损坏，已删除", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}

	logger.Debugw("检索缓存命中", "key", key, "results", len(results))
	return results, true
}

// Set 写入检索结果。写入失败只记录日志。
func (c *ResultCache) Set(ctx context.Context, caller string, topK int, variants []string, results []ScoredResult) {
	if !c.Enabled() {
		return
	}

	key := c.cacheKey(caller, topK, variants)
	data, err := json.Marshal(results)
	if err != nil {
		logger.Warnw("序列化检索结果失败", "error", err.Error())
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("写入检索缓存失败", "error", err.Error(), "key", key)
	}
}

// Clear 清除所有检索缓存，新文档入库后调用。
func (c *ResultCache) Clear(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	// 使用 SCAN 命令查找所有匹配的键
	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("删除缓存键失败", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return err
	}

	logger.Infow("已清除检索缓存", "deleted_count", deleted)
	return nil
}
