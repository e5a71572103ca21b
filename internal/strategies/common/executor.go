package common

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/events"
	"github.com/digitbot/godigit/internal/metrics"
	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/pkg/engine"
)

// Attempt 一次交易尝试的参数
type Attempt struct {
	Module       string       // 模块标签（记账归属）
	Label        string       // 策略标签，例如 "DIFFERS:7"
	ContractType string       // venue 合约类型
	Barrier      string       // 目标数字（digit 合约），可为空
	Stake        domain.Money // 本次 stake
	State        *State       // 失败回滚目标
}

// Executor 共享的交易执行路径：quote → 停止标记复检 → buy → 登记
//
// 每次尝试作为独立任务投递到 Environment.Tasks，慢的 quote/buy
// 往返不会卡住 tick 处理。quote/buy 出错只回滚本次尝试并记日志，
// 不是致命错误，会话继续。
type Executor struct {
	env *engine.Environment
	log *logrus.Entry
}

// NewExecutor 创建执行器
func NewExecutor(env *engine.Environment, log *logrus.Entry) *Executor {
	return &Executor{env: env, log: log}
}

// Spawn 调度一次交易尝试
// 调度前检查停止标记；draining/stopped 状态下不再投递新任务。
func (e *Executor) Spawn(ctx context.Context, a Attempt) bool {
	if !e.env.Stop.ShouldTrade() {
		return false
	}
	a.State.ReserveAttempt()
	e.env.Tasks.Go(func() {
		e.run(ctx, a)
	})
	return true
}

// run 执行一次尝试（独立任务内）
func (e *Executor) run(ctx context.Context, a Attempt) {
	proposal, err := e.env.Trader.Propose(ctx, ports.ProposalRequest{
		Instrument:    e.env.Instrument,
		ContractType:  a.ContractType,
		Barrier:       a.Barrier,
		Stake:         a.Stake,
		DurationTicks: e.env.DurationTicks,
		Currency:      e.env.Currency,
	})
	if err != nil {
		e.abandon(a, "quote 失败: %v", err)
		return
	}

	// 复检停止标记：quote 在途期间风控可能已经触发，
	// 此时不允许把交易真正买出去
	if !e.env.Stop.ShouldTrade() {
		e.abandon(a, "quote 返回后停止标记已置位，放弃买入")
		return
	}

	contractID, err := e.env.Trader.Buy(ctx, proposal.ID, proposal.AskPrice)
	if err != nil {
		e.abandon(a, "buy 失败: %v", err)
		return
	}

	e.env.Book.RegisterOpen(contractID, a.Module, a.Label, a.Stake)
	e.log.Infof("已买入 %s stake=%s contract=%s", a.Label, a.Stake, contractID)
	e.env.Sink.Emit(events.NewLog("info", a.Module,
		"buy "+a.Label+" stake="+a.Stake.String()+" contract="+contractID))
}

// abandon 放弃本次尝试：回滚计数，记录日志，继续运行
func (e *Executor) abandon(a Attempt, format string, args ...interface{}) {
	a.State.RollbackAttempt()
	metrics.TradeErrors.Add(1)
	e.log.Warnf(format, args...)
}
