package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/creditchain/internal/model"
)

// InsightDraft 创建入参（id/createdAt 由仓储分配）
type InsightDraft struct {
	Tip          string
	Body         string
	Category     string
	SubmitterTag string
}

type InsightRepository interface {
	Create(ctx context.Context, draft InsightDraft) (*model.Insight, error)
	GetByID(ctx context.Context, id string) (*model.Insight, error)
	List(ctx context.Context, limit, offset int) ([]*model.Insight, error)
	ListByCategory(ctx context.Context, category string, limit, offset int) ([]*model.Insight, error)
	ListBySyncState(ctx context.Context, state string, limit int) ([]*model.Insight, error)
	IncrementUpvotes(ctx context.Context, id string) (*model.Insight, error)
	DecrementUpvotes(ctx context.Context, id string) (*model.Insight, error)
	MarkSynced(ctx context.Context, id string, ledgerRef int64) (*model.Insight, error)
	MarkFailed(ctx context.Context, id string) (*model.Insight, error)
	Count(ctx context.Context) (int64, error)
}

type insightRepository struct {
	db *gorm.DB
}

func NewInsightRepository(db *gorm.DB) InsightRepository { return &insightRepository{db: db} }

func (r *insightRepository) Create(ctx context.Context, draft InsightDraft) (*model.Insight, error) {
	ins := &model.Insight{
		ID:           uuid.New().String(),
		Tip:          draft.Tip,
		Body:         draft.Body,
		Category:     draft.Category,
		SubmitterTag: draft.SubmitterTag,
		Upvotes:      0,
		SyncState:    model.SyncPending,
		CreatedAt:    time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(ins).Error; err != nil {
		return nil, err
	}
	return ins, nil
}

func (r *insightRepository) GetByID(ctx context.Context, id string) (*model.Insight, error) {
	var ins model.Insight
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ins).Error; err != nil {
		return nil, err
	}
	return &ins, nil
}

func (r *insightRepository) List(ctx context.Context, limit, offset int) ([]*model.Insight, error) {
	var res []*model.Insight
	q := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&res).Error
	return res, err
}

func (r *insightRepository) ListByCategory(ctx context.Context, category string, limit, offset int) ([]*model.Insight, error) {
	var res []*model.Insight
	q := r.db.WithContext(ctx).
		Where("LOWER(category) = LOWER(?)", category).
		Order("created_at DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&res).Error
	return res, err
}

func (r *insightRepository) ListBySyncState(ctx context.Context, state string, limit int) ([]*model.Insight, error) {
	var res []*model.Insight
	q := r.db.WithContext(ctx).Where("sync_state = ?", state).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&res).Error
	return res, err
}

// IncrementUpvotes 原子 +1；计数增减必须走 SQL delta，不做读改写
func (r *insightRepository) IncrementUpvotes(ctx context.Context, id string) (*model.Insight, error) {
	var ins model.Insight
	res := r.db.WithContext(ctx).Model(&ins).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		UpdateColumn("upvotes", gorm.Expr("upvotes + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &ins, nil
}

// DecrementUpvotes 原子 -1，计数到 0 封底（guard 在 WHERE 上，不会减出负数）
func (r *insightRepository) DecrementUpvotes(ctx context.Context, id string) (*model.Insight, error) {
	var ins model.Insight
	res := r.db.WithContext(ctx).Model(&ins).
		Clauses(clause.Returning{}).
		Where("id = ? AND upvotes > 0", id).
		UpdateColumn("upvotes", gorm.Expr("upvotes - 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// 记录不存在，或 upvotes 已为 0
		return r.GetByID(ctx, id)
	}
	return &ins, nil
}

// MarkSynced 同一条 UPDATE 写入 ledger_ref 与 sync_state，保证两者一致
func (r *insightRepository) MarkSynced(ctx context.Context, id string, ledgerRef int64) (*model.Insight, error) {
	var ins model.Insight
	res := r.db.WithContext(ctx).Model(&ins).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"ledger_ref": ledgerRef,
			"sync_state": model.SyncSynced,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &ins, nil
}

func (r *insightRepository) MarkFailed(ctx context.Context, id string) (*model.Insight, error) {
	var ins model.Insight
	res := r.db.WithContext(ctx).Model(&ins).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"sync_state": model.SyncFailed,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &ins, nil
}

func (r *insightRepository) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Insight{}).Count(&cnt).Error
	return cnt, err
}
