package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/creditchain/config"
	"github.com/d60-Lab/creditchain/internal/ledger"
	"github.com/d60-Lab/creditchain/internal/model"
	"github.com/d60-Lab/creditchain/internal/repository"
	"github.com/d60-Lab/creditchain/pkg/logger"
)

// ResyncWorker 定期扫描 sync_state=failed 的记录重试账本追加。
// failed 不是终态：节点恢复后记录可以补齐镜像。
// 超时被记为 failed 的交易可能已在链上落地，重试会产生重复账本条目，
// 本地状态不受影响，审计侧可据 txId 去重。
type ResyncWorker struct {
	repo          repository.InsightRepository
	ledger        ledger.Client
	cache         *CacheService
	interval      time.Duration
	batchSize     int
	appendTimeout time.Duration
}

func NewResyncWorker(repo repository.InsightRepository, lc ledger.Client, cache *CacheService, cfg config.LedgerConfig, interval time.Duration, batchSize int) *ResyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &ResyncWorker{
		repo:          repo,
		ledger:        lc,
		cache:         cache,
		interval:      interval,
		batchSize:     batchSize,
		appendTimeout: cfg.AppendTimeout,
	}
}

// Start 启动后台扫描；返回停止函数
func (w *ResyncWorker) Start() func(context.Context) error {
	stop := make(chan struct{})
	go w.loop(stop)
	return func(ctx context.Context) error {
		close(stop)
		return nil
	}
}

func (w *ResyncWorker) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), w.interval)
			if _, err := w.ProcessOnce(ctx); err != nil {
				logger.Warn("resync sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// ProcessOnce 扫一批 failed 记录并重试，返回本轮补齐的条数。
// 热度高的记录优先重试。
func (w *ResyncWorker) ProcessOnce(ctx context.Context) (int, error) {
	items, err := w.repo.ListBySyncState(ctx, model.SyncFailed, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}
	SortByScore(items, time.Now())

	resynced := 0
	for _, ins := range items {
		lctx, cancel := context.WithTimeout(ctx, w.appendTimeout)
		receipt, lerr := w.ledger.AppendInsight(lctx, ins.Tip, ins.Body, ins.Category, ins.SubmitterTag)
		cancel()
		if lerr != nil {
			logger.Warn("resync append failed",
				zap.String("insight", ins.ID),
				zap.Error(lerr))
			continue
		}
		if _, err := w.repo.MarkSynced(ctx, ins.ID, receipt.LedgerRef); err != nil {
			logger.Error("resync write-back failed",
				zap.String("insight", ins.ID),
				zap.Error(err))
			continue
		}
		resynced++
	}

	if resynced > 0 {
		logger.Info("resync sweep done", zap.Int("resynced", resynced), zap.Int("scanned", len(items)))
		if w.cache != nil {
			w.cache.InvalidateInsights(ctx)
		}
	}
	return resynced, nil
}
