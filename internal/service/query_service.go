package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/creditchain/internal/model"
	"github.com/d60-Lab/creditchain/internal/repository"
)

// QueryService 读侧门面，只读本地库，从不碰账本
type QueryService struct {
	repo  repository.InsightRepository
	cache *CacheService
}

func NewQueryService(repo repository.InsightRepository, cache *CacheService) *QueryService {
	return &QueryService{repo: repo, cache: cache}
}

// GetAll 按创建时间倒序返回全部记录
func (s *QueryService) GetAll(ctx context.Context) ([]*model.Insight, error) {
	if s.cache != nil {
		if items, ok := s.cache.GetInsights(ctx, cacheKeyAll); ok {
			return items, nil
		}
	}
	items, err := s.repo.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Insight{}
	}
	if s.cache != nil {
		s.cache.SetInsights(ctx, cacheKeyAll, items)
	}
	return items, nil
}

// GetByCategory 分类过滤（大小写不敏感），未知分类返回空列表而非报错
func (s *QueryService) GetByCategory(ctx context.Context, category string) ([]*model.Insight, error) {
	items, err := s.repo.ListByCategory(ctx, category, 0, 0)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Insight{}
	}
	return items, nil
}

func (s *QueryService) GetByID(ctx context.Context, id string) (*model.Insight, error) {
	ins, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInsightNotFound
		}
		return nil, err
	}
	return ins, nil
}

// Trending 按热度分排序取前 limit 条
func (s *QueryService) Trending(ctx context.Context, limit int) ([]*model.Insight, error) {
	if limit <= 0 {
		limit = 20
	}
	key := fmt.Sprintf("%s%d", cacheKeyTrendingPrefix, limit)
	if s.cache != nil {
		if items, ok := s.cache.GetInsights(ctx, key); ok {
			return items, nil
		}
	}

	items, err := s.repo.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	SortByScore(items, time.Now())
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []*model.Insight{}
	}
	if s.cache != nil {
		s.cache.SetInsights(ctx, key, items)
	}
	return items, nil
}
