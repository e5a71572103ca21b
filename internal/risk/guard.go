package risk

import (
	"fmt"

	"github.com/digitbot/godigit/internal/domain"
)

// ErrGuardTripped 表示风控已触发，禁止继续调度新交易。
var ErrGuardTripped = fmt.Errorf("risk guard tripped")

// Verdict 风控判定结果
type Verdict int

const (
	VerdictContinue   Verdict = iota // 继续交易
	VerdictTakeProfit                // 达到止盈
	VerdictStopLoss                  // 达到止损
)

// String 判定名
func (v Verdict) String() string {
	switch v {
	case VerdictTakeProfit:
		return "take_profit"
	case VerdictStopLoss:
		return "stop_loss"
	}
	return "continue"
}

// ShouldStop 是否应停止会话
func (v Verdict) ShouldStop() bool {
	return v != VerdictContinue
}

// Config 止盈/止损阈值。约定：<= 0 表示关闭对应限制。
type Config struct {
	TakeProfit domain.Money // 总利润 >= TakeProfit 时止盈
	StopLoss   domain.Money // 总利润 <= -StopLoss 时止损
}

// Guard 止盈/止损风控
//
// 结算屏障不变量：Check 只允许在 open 合约集合为空时评估。
// 这个前置条件由记账方（book）在持锁、open 集合清空的分支里
// 结构性保证，Guard 本身保持纯函数。
type Guard struct {
	cfg Config
}

// NewGuard 创建风控
func NewGuard(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// Check 根据总利润判定是否应停止
func (g *Guard) Check(totalProfit domain.Money) Verdict {
	if g == nil {
		return VerdictContinue
	}
	if g.cfg.TakeProfit.IsPositive() && totalProfit.GreaterThanOrEqual(g.cfg.TakeProfit) {
		return VerdictTakeProfit
	}
	if g.cfg.StopLoss.IsPositive() && totalProfit.LessThanOrEqual(g.cfg.StopLoss.Neg()) {
		return VerdictStopLoss
	}
	return VerdictContinue
}
