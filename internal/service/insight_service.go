package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/creditchain/config"
	"github.com/d60-Lab/creditchain/internal/ledger"
	"github.com/d60-Lab/creditchain/internal/model"
	"github.com/d60-Lab/creditchain/internal/repository"
	"github.com/d60-Lab/creditchain/pkg/logger"
)

var (
	ErrTipRequired     = errors.New("tip is required")
	ErrTipTooLong      = errors.New("tip exceeds 200 characters")
	ErrBodyTooLong     = errors.New("body exceeds 500 characters")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInsightNotFound = errors.New("insight not found")

	// ErrCompensationFailed 账本镜像失败后本地回退也失败，计数永久虚高。
	// 必须大声上报，不允许静默吞掉。
	ErrCompensationFailed = errors.New("upvote compensation failed")
)

// IsValidationErr 区分校验类错误（直接 400 给调用方）
func IsValidationErr(err error) bool {
	return errors.Is(err, ErrTipRequired) ||
		errors.Is(err, ErrTipTooLong) ||
		errors.Is(err, ErrBodyTooLong) ||
		errors.Is(err, ErrUnknownCategory)
}

// SubmitInput 提交入参
type SubmitInput struct {
	Tip          string
	Body         string
	Category     string
	SubmitterTag string
}

// InsightService 双写对账核心：先落本地库（权威），再尽力镜像到账本，
// 把镜像结果回写 sync_state。账本不可达从不影响本地可用性。
type InsightService interface {
	Submit(ctx context.Context, in SubmitInput) (*model.Insight, error)
	Upvote(ctx context.Context, id string) (*model.Insight, error)
}

type insightService struct {
	repo          repository.InsightRepository
	ledger        ledger.Client
	cache         *CacheService
	appendTimeout time.Duration
	upvoteTimeout time.Duration
}

func NewInsightService(repo repository.InsightRepository, lc ledger.Client, cache *CacheService, cfg config.LedgerConfig) InsightService {
	return &insightService{
		repo:          repo,
		ledger:        lc,
		cache:         cache,
		appendTimeout: cfg.AppendTimeout,
		upvoteTimeout: cfg.UpvoteTimeout,
	}
}

func validateSubmit(in SubmitInput) error {
	if in.Tip == "" {
		return ErrTipRequired
	}
	if utf8.RuneCountInString(in.Tip) > 200 {
		return ErrTipTooLong
	}
	if utf8.RuneCountInString(in.Body) > 500 {
		return ErrBodyTooLong
	}
	if !model.ValidCategories[in.Category] {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, in.Category)
	}
	return nil
}

// Submit 创建流程：校验 → 本地落库（pending，此处即持久化点）→
// 限时账本追加 → 回写 synced/failed。账本结果不改变本次请求的成败。
func (s *insightService) Submit(ctx context.Context, in SubmitInput) (*model.Insight, error) {
	if err := validateSubmit(in); err != nil {
		return nil, err
	}

	ins, err := s.repo.Create(ctx, repository.InsightDraft{
		Tip:          in.Tip,
		Body:         in.Body,
		Category:     in.Category,
		SubmitterTag: in.SubmitterTag,
	})
	if err != nil {
		return nil, err
	}

	lctx, cancel := context.WithTimeout(ctx, s.appendTimeout)
	receipt, lerr := s.ledger.AppendInsight(lctx, in.Tip, in.Body, in.Category, in.SubmitterTag)
	cancel()

	var updated *model.Insight
	if lerr != nil {
		logger.Warn("ledger append failed",
			zap.String("insight", ins.ID),
			zap.Error(lerr))
		updated, err = s.repo.MarkFailed(ctx, ins.ID)
	} else {
		updated, err = s.repo.MarkSynced(ctx, ins.ID, receipt.LedgerRef)
	}
	if err != nil {
		// 本地记录已持久化，状态回写失败只记日志，仍返回已落库的记录
		logger.Error("sync state write-back failed",
			zap.String("insight", ins.ID),
			zap.Error(err))
		return ins, nil
	}

	s.invalidate(ctx)
	return updated, nil
}

// Upvote 点赞流程：本地乐观 +1 → 有账本索引则限时镜像 →
// 镜像失败做 -1 补偿。补偿本身失败才算致命。
func (s *insightService) Upvote(ctx context.Context, id string) (*model.Insight, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInsightNotFound
		}
		return nil, err
	}

	updated, err := s.repo.IncrementUpvotes(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInsightNotFound
		}
		return nil, err
	}

	// 从未同步过的记录没有账本条目可加，点赞留在本地即可
	if updated.LedgerRef == nil {
		s.invalidate(ctx)
		return updated, nil
	}

	lctx, cancel := context.WithTimeout(ctx, s.upvoteTimeout)
	_, lerr := s.ledger.IncrementUpvote(lctx, *updated.LedgerRef)
	cancel()

	if lerr != nil {
		logger.Warn("ledger upvote failed, compensating",
			zap.String("insight", id),
			zap.Int64("ledger_ref", *updated.LedgerRef),
			zap.Error(lerr))
		reverted, derr := s.repo.DecrementUpvotes(ctx, id)
		if derr != nil {
			cerr := fmt.Errorf("%w: insight %s: %v", ErrCompensationFailed, id, derr)
			logger.Error("upvote compensation failed", zap.String("insight", id), zap.Error(derr))
			sentry.CaptureException(cerr)
			return nil, cerr
		}
		s.invalidate(ctx)
		return reverted, nil
	}

	s.invalidate(ctx)
	return updated, nil
}

func (s *insightService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateInsights(ctx)
	}
}
