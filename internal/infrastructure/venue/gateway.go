package venue

import (
	"context"

	"github.com/pkg/errors"

	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/ports"
)

// ports.Gateway 实现。订阅类方法返回的取消函数只摘除本地处理器；
// 对 venue 的 forget 统一在 Disconnect 前由 ForgetAll 处理。

var _ ports.Gateway = (*Client)(nil)

// Authenticate 鉴权
func (c *Client) Authenticate(ctx context.Context, token string) (*ports.AuthResult, error) {
	env, err := c.call(ctx, map[string]interface{}{"authorize": token})
	if err != nil {
		return nil, err
	}
	if env.Authorize == nil {
		return nil, errors.New("venue 鉴权响应为空")
	}

	// 记住 token，重连后恢复会话用
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()

	return &ports.AuthResult{
		AccountID: env.Authorize.AccountID,
		Currency:  env.Authorize.Currency,
		Balance:   moneyFromNumber(env.Authorize.Balance),
	}, nil
}

// SubscribeTicks 订阅 instrument 的 tick 流
func (c *Client) SubscribeTicks(ctx context.Context, instrument string, h ports.TickHandler) (func(), error) {
	c.handlerMu.Lock()
	c.tickHandlers = append(c.tickHandlers, h)
	idx := len(c.tickHandlers) - 1
	c.handlerMu.Unlock()

	c.mu.Lock()
	c.instrument = instrument
	c.mu.Unlock()

	if _, err := c.call(ctx, map[string]interface{}{"ticks": instrument, "subscribe": 1}); err != nil {
		return nil, errors.Wrap(err, "订阅 tick 流失败")
	}

	return func() {
		c.handlerMu.Lock()
		if idx < len(c.tickHandlers) {
			c.tickHandlers[idx] = func(domain.Tick) {}
		}
		c.handlerMu.Unlock()
	}, nil
}

// SubscribeContractUpdates 订阅合约状态推送
func (c *Client) SubscribeContractUpdates(ctx context.Context, h func(ports.ContractUpdate)) (func(), error) {
	c.handlerMu.Lock()
	c.contractHandlers = append(c.contractHandlers, h)
	idx := len(c.contractHandlers) - 1
	c.handlerMu.Unlock()

	if _, err := c.call(ctx, map[string]interface{}{"proposal_open_contract": 1, "subscribe": 1}); err != nil {
		return nil, errors.Wrap(err, "订阅合约状态失败")
	}

	return func() {
		c.handlerMu.Lock()
		if idx < len(c.contractHandlers) {
			c.contractHandlers[idx] = func(ports.ContractUpdate) {}
		}
		c.handlerMu.Unlock()
	}, nil
}

// Propose 请求报价
func (c *Client) Propose(ctx context.Context, req ports.ProposalRequest) (*ports.Proposal, error) {
	payload := map[string]interface{}{
		"proposal":      1,
		"amount":        req.Stake.String(),
		"basis":         "stake",
		"contract_type": req.ContractType,
		"currency":      req.Currency,
		"duration":      req.DurationTicks,
		"duration_unit": "t",
		"symbol":        req.Instrument,
	}
	if req.Barrier != "" {
		payload["barrier"] = req.Barrier
	}

	env, err := c.call(ctx, payload)
	if err != nil {
		return nil, err
	}
	if env.Proposal == nil {
		return nil, errors.New("venue 报价响应为空")
	}
	return &ports.Proposal{
		ID:       env.Proposal.ID,
		AskPrice: moneyFromNumber(env.Proposal.AskPrice),
	}, nil
}

// Buy 按报价买入
func (c *Client) Buy(ctx context.Context, proposalID string, price domain.Money) (string, error) {
	env, err := c.call(ctx, map[string]interface{}{
		"buy":   proposalID,
		"price": price.String(),
	})
	if err != nil {
		return "", err
	}
	if env.Buy == nil {
		return "", errors.New("venue 买入响应为空")
	}
	return env.Buy.ContractID, nil
}

// SubscribeBalance 订阅余额推送
func (c *Client) SubscribeBalance(ctx context.Context, h func(ports.BalanceUpdate)) (func(), error) {
	c.handlerMu.Lock()
	c.balanceHandlers = append(c.balanceHandlers, h)
	idx := len(c.balanceHandlers) - 1
	c.handlerMu.Unlock()

	if _, err := c.call(ctx, map[string]interface{}{"balance": 1, "subscribe": 1}); err != nil {
		return nil, errors.Wrap(err, "订阅余额推送失败")
	}

	return func() {
		c.handlerMu.Lock()
		if idx < len(c.balanceHandlers) {
			c.balanceHandlers[idx] = func(ports.BalanceUpdate) {}
		}
		c.handlerMu.Unlock()
	}, nil
}

// ForgetAll 取消 venue 侧的全部订阅（尽力而为）
func (c *Client) ForgetAll(ctx context.Context) error {
	_, err := c.call(ctx, map[string]interface{}{
		"forget_all": []string{"ticks", "proposal_open_contract", "balance"},
	})
	return err
}

// tickFromMsg 把协议 tick 转成领域 Tick
func tickFromMsg(m *tickMsg) domain.Tick {
	return domain.Tick{
		Quote: formatQuote(m.Quote, m.PipSize),
		Epoch: m.Epoch,
	}
}

// contractUpdateFromMsg 把协议合约推送转成领域更新
func contractUpdateFromMsg(m *contractMsg) ports.ContractUpdate {
	u := ports.ContractUpdate{
		ContractID: m.ContractID,
		IsSold:     bool(m.IsSold),
		Profit:     moneyFromNumber(m.Profit),
		SellPrice:  moneyFromNumber(m.SellPrice),
	}
	if m.Balance != nil {
		b := moneyFromNumber(*m.Balance)
		u.AccountBalance = &b
	}
	return u
}
