package ledger

import "errors"

// 镜像失败分类。对外层而言这些都是"预期内"的结果，
// 只影响 sync_state，不作为请求失败向上传播。
var (
	// ErrTimeout 调用超出配置的时限。链上交易可能仍会落地（ghost
	// success），这里一律按失败记账，不做事后回补。
	ErrTimeout = errors.New("ledger: call timed out")

	// ErrRejected 节点返回错误或交易未被接受。
	ErrRejected = errors.New("ledger: transaction rejected")

	// ErrEventMissing 交易被接受但未携带预期事件，身份无法确认，
	// 调用方不得据此认定成功。
	ErrEventMissing = errors.New("ledger: expected event missing from receipt")
)
