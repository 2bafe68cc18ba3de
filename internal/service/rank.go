package service

import (
	"math"
	"sort"
	"time"

	"github.com/d60-Lab/creditchain/internal/model"
)

// Gravity 热度衰减指数，全系统唯一取值（排序与 resync 优先级共用）
const Gravity = 1.8

// Score 热度分：upvotes / (ageDays + 2)^Gravity。
// createdAt 无效或晚于 now 时返回 0，不报错。
func Score(upvotes int64, createdAt, now time.Time) float64 {
	if createdAt.IsZero() || now.Before(createdAt) {
		return 0
	}
	ageDays := now.Sub(createdAt).Hours() / 24
	return float64(upvotes) / math.Pow(ageDays+2, Gravity)
}

// SortByScore 按热度分降序原地排序，分数相同时新记录在前
func SortByScore(items []*model.Insight, now time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		si := Score(items[i].Upvotes, items[i].CreatedAt, now)
		sj := Score(items[j].Upvotes, items[j].CreatedAt, now)
		if si != sj {
			return si > sj
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
