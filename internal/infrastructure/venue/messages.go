package venue

import (
	"encoding/json"

	"github.com/digitbot/godigit/internal/domain"
	"github.com/shopspring/decimal"
)

// 协议消息定义。venue 走 JSON-over-WebSocket：请求携带自增 req_id，
// 响应按 msg_type 分类并回显 req_id；订阅类消息在首个响应之后
// 以推送形式持续下发。

// envelope 入站消息的统一外壳
type envelope struct {
	MsgType string    `json:"msg_type"`
	ReqID   int64     `json:"req_id,omitempty"`
	Error   *APIError `json:"error,omitempty"`

	Authorize            *authorizeResult  `json:"authorize,omitempty"`
	Tick                 *tickMsg          `json:"tick,omitempty"`
	Proposal             *proposalMsg      `json:"proposal,omitempty"`
	Buy                  *buyMsg           `json:"buy,omitempty"`
	ProposalOpenContract *contractMsg      `json:"proposal_open_contract,omitempty"`
	Balance              *balanceMsg       `json:"balance,omitempty"`
}

type authorizeResult struct {
	AccountID string      `json:"account_id"`
	Currency  string      `json:"currency"`
	Balance   json.Number `json:"balance"`
}

type tickMsg struct {
	Symbol  string      `json:"symbol"`
	Quote   json.Number `json:"quote"`
	PipSize int32       `json:"pip_size"`
	Epoch   int64       `json:"epoch"`
}

type proposalMsg struct {
	ID       string      `json:"id"`
	AskPrice json.Number `json:"ask_price"`
}

type buyMsg struct {
	ContractID string      `json:"contract_id"`
	BuyPrice   json.Number `json:"buy_price"`
}

type contractMsg struct {
	ContractID string       `json:"contract_id"`
	IsSold     boolish      `json:"is_sold"`
	Profit     json.Number  `json:"profit"`
	SellPrice  json.Number  `json:"sell_price"`
	Balance    *json.Number `json:"account_balance,omitempty"`
}

type balanceMsg struct {
	Balance  json.Number `json:"balance"`
	Currency string      `json:"currency"`
}

// boolish venue 在布尔字段上混用 0/1 和 true/false
type boolish bool

func (b *boolish) UnmarshalJSON(data []byte) error {
	s := string(data)
	*b = s == "1" || s == "true"
	return nil
}

// moneyFromNumber 从 JSON 数字精确转成 Money（走字符串，不经过 float64）
func moneyFromNumber(n json.Number) domain.Money {
	m, err := domain.MoneyFromString(n.String())
	if err != nil {
		return domain.Zero
	}
	return m
}

// formatQuote 按 pip 精度格式化报价，保证末位数字是统计口径的那一位
func formatQuote(quote json.Number, pipSize int32) string {
	d, err := decimal.NewFromString(quote.String())
	if err != nil {
		return quote.String()
	}
	if pipSize <= 0 {
		return quote.String()
	}
	return d.StringFixed(pipSize)
}
