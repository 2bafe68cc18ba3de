package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/creditchain/internal/repository"
)

func TestGetAllOrderedByCreatedAtDesc(t *testing.T) {
	repo := setupTestRepo(t)
	qs := NewQueryService(repo, nil)
	ctx := context.Background()

	first, err := repo.Create(ctx, repository.InsightDraft{Tip: "first", Category: "saving", SubmitterTag: "t"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := repo.Create(ctx, repository.InsightDraft{Tip: "second", Category: "saving", SubmitterTag: "t"})
	require.NoError(t, err)

	items, err := qs.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, second.ID, items[0].ID)
	require.Equal(t, first.ID, items[1].ID)
}

func TestGetAllEmptyIsNotNil(t *testing.T) {
	qs := NewQueryService(setupTestRepo(t), nil)
	items, err := qs.GetAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
}

func TestGetByCategoryUnknownReturnsEmpty(t *testing.T) {
	qs := NewQueryService(setupTestRepo(t), nil)
	items, err := qs.GetByCategory(context.Background(), "astrology")
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
}

func TestTrendingOrdersByScore(t *testing.T) {
	repo := setupTestRepo(t)
	qs := NewQueryService(repo, nil)
	ctx := context.Background()

	cold, err := repo.Create(ctx, repository.InsightDraft{Tip: "cold", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)
	hot, err := repo.Create(ctx, repository.InsightDraft{Tip: "hot", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = repo.IncrementUpvotes(ctx, hot.ID)
		require.NoError(t, err)
	}

	items, err := qs.Trending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, hot.ID, items[0].ID)
	require.Equal(t, cold.ID, items[1].ID)
}

func TestTrendingLimit(t *testing.T) {
	repo := setupTestRepo(t)
	qs := NewQueryService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, repository.InsightDraft{Tip: "tip", Category: "other", SubmitterTag: "t"})
		require.NoError(t, err)
	}
	items, err := qs.Trending(ctx, 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func setupCache(t *testing.T) *CacheService {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCacheService(rdb, time.Minute)
}

func TestGetAllServedFromCache(t *testing.T) {
	repo := setupTestRepo(t)
	cache := setupCache(t)
	qs := NewQueryService(repo, cache)
	ctx := context.Background()

	_, err := repo.Create(ctx, repository.InsightDraft{Tip: "cached", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)

	items, err := qs.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// 绕过缓存直接写库，未失效前读到的仍是缓存内容
	_, err = repo.Create(ctx, repository.InsightDraft{Tip: "fresh", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)

	items, err = qs.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	cache.InvalidateInsights(ctx)
	items, err = qs.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestSubmitInvalidatesCache(t *testing.T) {
	repo := setupTestRepo(t)
	cache := setupCache(t)
	qs := NewQueryService(repo, cache)
	svc := NewInsightService(repo, &fakeLedger{}, cache, testLedgerConfig())
	ctx := context.Background()

	items, err := qs.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	_, err = svc.Submit(ctx, SubmitInput{Tip: "tip", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)

	items, err = qs.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestTrendingInvalidatedAcrossLimits(t *testing.T) {
	repo := setupTestRepo(t)
	cache := setupCache(t)
	qs := NewQueryService(repo, cache)
	svc := NewInsightService(repo, &fakeLedger{}, cache, testLedgerConfig())
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitInput{Tip: "a", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)

	items, err := qs.Trending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.Submit(ctx, SubmitInput{Tip: "b", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)

	// 提交后 trending:* 键整体失效
	items, err = qs.Trending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
}
