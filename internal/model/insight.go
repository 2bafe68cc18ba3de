package model

import "time"

// Insight 理财见解（本地库为读写主存储，账本仅作审计镜像）
type Insight struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Tip          string    `json:"tip" gorm:"type:varchar(200);not null"`
	Body         string    `json:"body" gorm:"type:varchar(500)"`
	Category     string    `json:"category" gorm:"type:varchar(32);index:idx_insight_category"`
	SubmitterTag string    `json:"submitterTag" gorm:"type:varchar(64)"`
	Upvotes      int64     `json:"upvotes" gorm:"not null;default:0"`
	LedgerRef    *int64    `json:"ledgerRef" gorm:"index:idx_insight_ledger_ref"`
	SyncState    string    `json:"syncState" gorm:"type:varchar(16);index:idx_insight_sync_state;not null;default:pending"`
	CreatedAt    time.Time `json:"createdAt" gorm:"index:idx_insight_created"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (Insight) TableName() string { return "insights" }

// SyncState 取值。synced 当且仅当 LedgerRef 非空。
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncFailed  = "failed"
)

// ValidCategories 固定分类集合
var ValidCategories = map[string]bool{
	"budgeting":     true,
	"saving":        true,
	"investing":     true,
	"debt-payoff":   true,
	"credit-score":  true,
	"income":        true,
	"frugal-living": true,
	"other":         true,
}
