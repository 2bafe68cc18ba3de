package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/creditchain/internal/ledger"
	"github.com/d60-Lab/creditchain/internal/model"
)

func TestResyncHealsFailedRecords(t *testing.T) {
	repo := setupTestRepo(t)
	lc := &fakeLedger{appendErr: ledger.ErrRejected}
	svc := NewInsightService(repo, lc, nil, testLedgerConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, SubmitInput{Tip: "tip", Category: "other", SubmitterTag: "t"})
		require.NoError(t, err)
	}
	failed, err := repo.ListBySyncState(ctx, model.SyncFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 3)

	// 节点恢复后一轮扫描补齐全部镜像
	lc.setAppendErr(nil)
	w := NewResyncWorker(repo, lc, nil, testLedgerConfig(), 0, 0)
	n, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	failed, err = repo.ListBySyncState(ctx, model.SyncFailed, 0)
	require.NoError(t, err)
	require.Empty(t, failed)

	synced, err := repo.ListBySyncState(ctx, model.SyncSynced, 0)
	require.NoError(t, err)
	require.Len(t, synced, 3)
	for _, ins := range synced {
		require.NotNil(t, ins.LedgerRef)
	}
}

func TestResyncLeavesFailedOnPersistentError(t *testing.T) {
	repo := setupTestRepo(t)
	lc := &fakeLedger{appendErr: ledger.ErrTimeout}
	svc := NewInsightService(repo, lc, nil, testLedgerConfig())
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitInput{Tip: "tip", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)

	w := NewResyncWorker(repo, lc, nil, testLedgerConfig(), 0, 0)
	n, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	failed, err := repo.ListBySyncState(ctx, model.SyncFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
}

func TestResyncSkipsSyncedAndPending(t *testing.T) {
	repo := setupTestRepo(t)
	lc := &fakeLedger{}
	svc := NewInsightService(repo, lc, nil, testLedgerConfig())
	ctx := context.Background()

	_, err := svc.Submit(ctx, SubmitInput{Tip: "tip", Category: "other", SubmitterTag: "t"})
	require.NoError(t, err)
	appendsBefore := lc.appendCnt

	w := NewResyncWorker(repo, lc, nil, testLedgerConfig(), 0, 0)
	n, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, appendsBefore, lc.appendCnt)
}
