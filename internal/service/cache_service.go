package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/creditchain/internal/model"
	"github.com/d60-Lab/creditchain/pkg/logger"
)

const (
	cacheKeyAll            = "insights:all"
	cacheKeyTrendingPrefix = "insights:trending:"
)

// CacheService 读路径的旁路缓存。缓存故障一律降级为直查库，只记 warn。
type CacheService struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCacheService(rdb *redis.Client, ttl time.Duration) *CacheService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CacheService{rdb: rdb, ttl: ttl}
}

// GetInsights 命中时返回 (list, true)；未命中或解码失败返回 (nil, false)
func (c *CacheService) GetInsights(ctx context.Context, key string) ([]*model.Insight, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var out []*model.Insight
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *CacheService) SetInsights(ctx context.Context, key string, items []*model.Insight) {
	payload, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateInsights 写路径后清掉列表类缓存
func (c *CacheService) InvalidateInsights(ctx context.Context) {
	if err := c.rdb.Del(ctx, cacheKeyAll).Err(); err != nil {
		logger.Warn("cache invalidate failed", zap.String("key", cacheKeyAll), zap.Error(err))
	}
	iter := c.rdb.Scan(ctx, 0, cacheKeyTrendingPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("cache invalidate failed", zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warn("cache scan failed", zap.Error(err))
	}
}
