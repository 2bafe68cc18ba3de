package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/creditchain/config"
	"github.com/d60-Lab/creditchain/internal/ledger"
	"github.com/d60-Lab/creditchain/internal/model"
	"github.com/d60-Lab/creditchain/internal/repository"
)

func setupTestRepo(t *testing.T) repository.InsightRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Insight{}))
	return repository.NewInsightRepository(db)
}

func testLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		AppendGas:     300000,
		UpvoteGas:     200000,
		AppendTimeout: time.Second,
		UpvoteTimeout: time.Second,
	}
}

// fakeLedger 可配置失败模式的账本替身
type fakeLedger struct {
	mu         sync.Mutex
	appendErr  error
	upvoteErr  error
	nextRef    int64
	appendCnt  int
	upvoteCnt  int
	lastUpvote int64
}

func (f *fakeLedger) AppendInsight(ctx context.Context, tip, body, category, submitterTag string) (*ledger.AppendReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCnt++
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	ref := f.nextRef
	f.nextRef++
	return &ledger.AppendReceipt{LedgerRef: ref, TxID: "0xfake"}, nil
}

func (f *fakeLedger) IncrementUpvote(ctx context.Context, ledgerRef int64) (*ledger.TxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upvoteCnt++
	f.lastUpvote = ledgerRef
	if f.upvoteErr != nil {
		return nil, f.upvoteErr
	}
	return &ledger.TxReceipt{TxID: "0xfake"}, nil
}

func (f *fakeLedger) setAppendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendErr = err
}

func (f *fakeLedger) setUpvoteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upvoteErr = err
}
