package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/digitbot/godigit/internal/ports"
)

// REST 余额轮询回退。
// 余额推送订阅失败时，会话控制器退化到固定 5 秒的轮询；
// 轮询走 venue 的 REST 端点，不占用 WebSocket 请求队列。

type balanceResponse struct {
	Balance  json.Number `json:"balance"`
	Currency string      `json:"currency"`
}

// initRest 惰性初始化 resty 客户端
func (c *Client) initRest() *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rest == nil {
		c.rest = resty.New().
			SetBaseURL(c.cfg.RestURL).
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond)
	}
	return c.rest
}

// PollBalance 单次余额查询（ports.BalancePoller）
func (c *Client) PollBalance(ctx context.Context) (ports.BalanceUpdate, error) {
	if c.cfg.RestURL == "" {
		return ports.BalanceUpdate{}, errors.New("未配置 REST 端点，无法轮询余额")
	}

	c.mu.RLock()
	token := c.authToken
	c.mu.RUnlock()
	if token == "" {
		return ports.BalanceUpdate{}, errors.New("未鉴权，无法轮询余额")
	}

	var out balanceResponse
	resp, err := c.initRest().R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetResult(&out).
		Get("/v1/account/balance")
	if err != nil {
		return ports.BalanceUpdate{}, errors.Wrap(err, "余额轮询请求失败")
	}
	if resp.IsError() {
		return ports.BalanceUpdate{}, fmt.Errorf("余额轮询返回 %s", resp.Status())
	}

	return ports.BalanceUpdate{
		Balance:  moneyFromNumber(out.Balance),
		Currency: out.Currency,
	}, nil
}
