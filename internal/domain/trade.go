package domain

import (
	"time"
)

// TradeStatus 交易记录状态
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"   // 已买入，等待结算
	TradeStatusWon       TradeStatus = "won"       // 结算为赢
	TradeStatusLost      TradeStatus = "lost"      // 结算为输
	TradeStatusUnsettled TradeStatus = "unsettled" // 排空截止前未结算，强制收尾（profit 必须为 0）
	TradeStatusCancelled TradeStatus = "cancelled" // 买入后被 venue 取消
)

// IsFinal 是否为终态（终态只赋值一次，之后不再改写）
func (s TradeStatus) IsFinal() bool {
	return s == TradeStatusWon || s == TradeStatusLost ||
		s == TradeStatusUnsettled || s == TradeStatusCancelled
}

// TradeRecord 交易记录（追加式：创建时写一次，结算时写一次）
type TradeRecord struct {
	ContractID string      // venue 合约 ID
	Module     string      // 所属模块标签（多模块会话区分归属）
	Strategy   string      // 策略标签，例如 "DIGITDIFF:7" / "EVEN"
	Stake      Money       // 买入时的 stake
	Status     TradeStatus // 当前状态
	Profit     *Money      // 结算利润；未结算前为 nil，unsettled 强制为 0
	Payout     Money       // 赔付额（结算时 venue 给出）
	PlacedAt   time.Time   // 买入时间
	SettledAt  *time.Time  // 结算时间（未结算为 nil）
}

// OpenContract 未结算合约
// 只存在于买入确认与结算之间；同一合约 ID 同时至多出现一次。
// 从 open 集合移除是该合约计入总利润的唯一途径。
type OpenContract struct {
	ContractID string
	Module     string // 所属模块标签
	Stake      Money  // 风险敞口
}

// ModuleStats 单模块计数器（多模块会话中各模块完全独立）
type ModuleStats struct {
	TradeCount int
	WinCount   int
	LossCount  int
	Profit     Money
}
