package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/d60-Lab/creditchain/config"
)

// 合约方法与事件名，对齐链上 CreditChain 合约
const (
	methodAddInsight    = "addInsight"
	methodUpvoteInsight = "upvoteInsight"
	eventInsightAdded   = "InsightAdded"
)

// AppendReceipt appendInsight 的回执：账本分配的索引 + 交易号
type AppendReceipt struct {
	LedgerRef int64
	TxID      string
}

// TxReceipt 仅携带交易号的回执
type TxReceipt struct {
	TxID string
}

// Client 账本能力封装：追加、计数自增、事件解码。无自身状态。
type Client interface {
	AppendInsight(ctx context.Context, tip, body, category, submitterTag string) (*AppendReceipt, error)
	IncrementUpvote(ctx context.Context, ledgerRef int64) (*TxReceipt, error)
}

type callRequest struct {
	Method string   `json:"method"`
	Args   []string `json:"args"`
	From   string   `json:"from"`
	Gas    uint64   `json:"gas"`
}

type callResponse struct {
	TxID   string  `json:"txId"`
	Status string  `json:"status"` // accepted / rejected
	Error  string  `json:"error,omitempty"`
	Events []event `json:"events"`
}

type event struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
}

type nodeClient struct {
	cfg   config.LedgerConfig
	httpc *http.Client
}

// NewClient 构造指向账本节点的 HTTP 客户端。超时由调用方通过 ctx 控制。
func NewClient(cfg config.LedgerConfig) Client {
	return &nodeClient{cfg: cfg, httpc: &http.Client{}}
}

func (c *nodeClient) AppendInsight(ctx context.Context, tip, body, category, submitterTag string) (*AppendReceipt, error) {
	resp, err := c.call(ctx, callRequest{
		Method: methodAddInsight,
		Args:   []string{tip, body, category, submitterTag},
		From:   c.cfg.SignerAddress,
		Gas:    c.cfg.AppendGas,
	})
	if err != nil {
		return nil, err
	}

	// 交易接受≠成功：必须从回执事件里解出账本索引
	for _, ev := range resp.Events {
		if ev.Name != eventInsightAdded {
			continue
		}
		raw, ok := ev.Attributes["id"]
		if !ok {
			break
		}
		ref, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			break
		}
		return &AppendReceipt{LedgerRef: ref, TxID: resp.TxID}, nil
	}
	return nil, fmt.Errorf("%w: tx %s", ErrEventMissing, resp.TxID)
}

func (c *nodeClient) IncrementUpvote(ctx context.Context, ledgerRef int64) (*TxReceipt, error) {
	resp, err := c.call(ctx, callRequest{
		Method: methodUpvoteInsight,
		Args:   []string{strconv.FormatInt(ledgerRef, 10)},
		From:   c.cfg.SignerAddress,
		Gas:    c.cfg.UpvoteGas,
	})
	if err != nil {
		return nil, err
	}
	return &TxReceipt{TxID: resp.TxID}, nil
}

func (c *nodeClient) call(ctx context.Context, call callRequest) (*callResponse, error) {
	payload, err := json.Marshal(call)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/contracts/%s/calls", c.cfg.Endpoint, c.cfg.ContractAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, call.Method)
		}
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: http %d", ErrRejected, httpResp.StatusCode)
	}

	var resp callResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: bad response: %v", ErrRejected, err)
	}
	if resp.Status != "accepted" {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrRejected, resp.Error)
		}
		return nil, fmt.Errorf("%w: status %q", ErrRejected, resp.Status)
	}
	return &resp, nil
}

// Ping 启动时探测节点连通性，仅用于日志，不阻断启动
func Ping(ctx context.Context, cfg config.LedgerConfig) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Endpoint+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger node status %d", resp.StatusCode)
	}
	return nil
}
