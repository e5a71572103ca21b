package overunder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/book"
	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/strategies/common"
	"github.com/digitbot/godigit/pkg/engine"
)

const ID = "overunder"

var log = logrus.WithField("strategy", ID)

func init() {
	engine.Register(ID, func() engine.Module { return &Strategy{} })
}

// Config 大小策略配置
type Config struct {
	Barrier            int    `yaml:"barrier" json:"barrier"`                       // barrier 数字（0-9）
	Direction          string `yaml:"direction" json:"direction"`                   // over / under
	TradeIntervalTicks int    `yaml:"tradeIntervalTicks" json:"tradeIntervalTicks"` // 每隔多少个 tick 尝试一次交易
	MaxTrades          int    `yaml:"maxTrades" json:"maxTrades"`                   // 最大交易次数（0 = 不限）
}

// Strategy 大小策略：押末位数字在 barrier 之上或之下
// 注意 barrier 本身不算赢：OVER 9 和 UNDER 0 没有可赢数字，
// 配置校验直接拒绝。
type Strategy struct {
	Config `yaml:",inline" json:",inline"`

	env   *engine.Environment
	exec  *common.Executor
	state *common.State

	tickCount atomic.Int64
}

func (s *Strategy) ID() string { return ID }

// Defaults 应用默认配置
func (s *Strategy) Defaults() error {
	if s.Direction == "" {
		s.Direction = "over"
	}
	s.Direction = strings.ToLower(s.Direction)
	if s.TradeIntervalTicks == 0 {
		s.TradeIntervalTicks = 2
	}
	return nil
}

// Validate 验证配置有效性
func (s *Strategy) Validate() error {
	if s.Barrier < 0 || s.Barrier > 9 {
		return fmt.Errorf("barrier必须在[0, 9]范围内，当前值: %d", s.Barrier)
	}
	if s.Direction != "over" && s.Direction != "under" {
		return fmt.Errorf("direction必须是'over'或'under'，当前值: %s", s.Direction)
	}
	if s.Direction == "over" && s.Barrier == 9 {
		return fmt.Errorf("OVER 9 没有可赢数字")
	}
	if s.Direction == "under" && s.Barrier == 0 {
		return fmt.Errorf("UNDER 0 没有可赢数字")
	}
	if s.TradeIntervalTicks <= 0 {
		return fmt.Errorf("tradeIntervalTicks必须大于0，当前值: %d", s.TradeIntervalTicks)
	}
	if s.MaxTrades < 0 {
		return fmt.Errorf("maxTrades不能为负数，当前值: %d", s.MaxTrades)
	}
	return nil
}

// Bind 注入运行环境
func (s *Strategy) Bind(env *engine.Environment) error {
	s.env = env
	s.exec = common.NewExecutor(env, log)
	s.state = common.NewState(env.BaseStake, env.Staking)
	return nil
}

// contractType 方向对应的 venue 合约类型
func (s *Strategy) contractType() string {
	if s.Direction == "over" {
		return "DIGITOVER"
	}
	return "DIGITUNDER"
}

// label 策略标签
func (s *Strategy) label() string {
	return fmt.Sprintf("%s:%d", strings.ToUpper(s.Direction), s.Barrier)
}

// OnTick 每个 tick：计数，按间隔评估是否尝试交易
func (s *Strategy) OnTick(ctx context.Context, tick domain.Tick) {
	n := s.tickCount.Add(1)

	if !s.env.Stop.ShouldTrade() {
		return
	}
	if n%int64(s.TradeIntervalTicks) != 0 {
		return
	}
	if s.MaxTrades > 0 && s.state.Attempts() >= s.MaxTrades {
		return
	}

	s.exec.Spawn(ctx, common.Attempt{
		Module:       ID,
		Label:        s.label(),
		ContractType: s.contractType(),
		Barrier:      strconv.Itoa(s.Barrier),
		Stake:        s.state.Stake(),
		State:        s.state,
	})
}

// OnSettlement 结算已入账后应用加注策略
func (s *Strategy) OnSettlement(ctx context.Context, res book.SettleResult) {
	if res.Record.Module != ID {
		return
	}
	stake, step := s.state.ApplyOutcome(res.Won)
	log.Infof("结算 %s profit=%s 下一注 stake=%s step=%d 总利润=%s",
		res.Record.ContractID, res.Record.Profit, stake, step, res.TotalProfit)
}
