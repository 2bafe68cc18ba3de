package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/creditchain/config"
	"github.com/d60-Lab/creditchain/internal/ledger"
	"github.com/d60-Lab/creditchain/internal/model"
	"github.com/d60-Lab/creditchain/internal/repository"
	"github.com/d60-Lab/creditchain/internal/service"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// simLedger 模拟账本节点：可配置延迟与失败率，用于压测双写路径
type simLedger struct {
	latency  time.Duration
	failRate float64
	mu       sync.Mutex
	nextRef  int64
}

func (s *simLedger) AppendInsight(ctx context.Context, tip, body, category, submitterTag string) (*ledger.AppendReceipt, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rand.Float64() < s.failRate {
		return nil, ledger.ErrRejected
	}
	ref := s.nextRef
	s.nextRef++
	return &ledger.AppendReceipt{LedgerRef: ref, TxID: fmt.Sprintf("0x%08x", ref)}, nil
}

func (s *simLedger) IncrementUpvote(ctx context.Context, ledgerRef int64) (*ledger.TxReceipt, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rand.Float64() < s.failRate {
		return nil, ledger.ErrRejected
	}
	return &ledger.TxReceipt{TxID: "0xupvote"}, nil
}

func (s *simLedger) wait(ctx context.Context) error {
	select {
	case <-time.After(s.latency):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: simulated", ledger.ErrTimeout)
	}
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return def
}

func main() {
	N := envInt("N", 2000)
	CONC := envInt("CONC", 8)
	latMs := envInt("LEDGER_MS", 5)
	failRate := envFloat("FAIL_RATE", 0.1)

	db := must(gorm.Open(sqlite.Open("file:bench?mode=memory&cache=shared"), &gorm.Config{}))
	sqlDB := must(db.DB())
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.Insight{}); err != nil {
		panic(err)
	}

	repo := repository.NewInsightRepository(db)
	sim := &simLedger{latency: time.Duration(latMs) * time.Millisecond, failRate: failRate}
	lcfg := config.LedgerConfig{AppendTimeout: 2 * time.Second, UpvoteTimeout: 2 * time.Second}
	svc := service.NewInsightService(repo, sim, nil, lcfg)

	ctx := context.Background()
	cats := []string{"budgeting", "saving", "investing", "debt-payoff", "other"}

	// submit 压测
	submitLat := make([]time.Duration, 0, N)
	var mu sync.Mutex
	ids := make([]string, 0, N)
	var wg sync.WaitGroup
	jobs := make(chan int, N)
	start := time.Now()
	for w := 0; w < CONC; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				t0 := time.Now()
				ins, err := svc.Submit(ctx, service.SubmitInput{
					Tip:          fmt.Sprintf("tip %d", i),
					Category:     cats[i%len(cats)],
					SubmitterTag: fmt.Sprintf("tag%d", i%100),
				})
				d := time.Since(t0)
				if err == nil {
					mu.Lock()
					submitLat = append(submitLat, d)
					ids = append(ids, ins.ID)
					mu.Unlock()
				}
			}
		}()
	}
	for i := 0; i < N; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	submitWall := time.Since(start)

	// upvote 压测
	upvoteLat := make([]time.Duration, 0, N)
	jobs2 := make(chan string, len(ids))
	start = time.Now()
	for w := 0; w < CONC; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs2 {
				t0 := time.Now()
				if _, err := svc.Upvote(ctx, id); err == nil {
					mu.Lock()
					upvoteLat = append(upvoteLat, time.Since(t0))
					mu.Unlock()
				}
			}
		}()
	}
	for _, id := range ids {
		jobs2 <- id
	}
	close(jobs2)
	wg.Wait()
	upvoteWall := time.Since(start)

	var synced, failed int64
	db.Model(&model.Insight{}).Where("sync_state = ?", model.SyncSynced).Count(&synced)
	db.Model(&model.Insight{}).Where("sync_state = ?", model.SyncFailed).Count(&failed)

	fmt.Printf("submit: n=%d wall=%v qps=%.0f p50=%v p99=%v\n",
		len(submitLat), submitWall, float64(len(submitLat))/submitWall.Seconds(),
		pct(submitLat, 0.50), pct(submitLat, 0.99))
	fmt.Printf("upvote: n=%d wall=%v qps=%.0f p50=%v p99=%v\n",
		len(upvoteLat), upvoteWall, float64(len(upvoteLat))/upvoteWall.Seconds(),
		pct(upvoteLat, 0.50), pct(upvoteLat, 0.99))
	fmt.Printf("sync:   synced=%d failed=%d (fail_rate=%.2f ledger_ms=%d)\n",
		synced, failed, failRate, latMs)
}

func pct(ds []time.Duration, p float64) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i] < ds[j] })
	idx := int(float64(len(ds)-1) * p)
	return ds[idx]
}
