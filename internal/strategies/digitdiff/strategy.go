package digitdiff

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/book"
	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/strategies/common"
	"github.com/digitbot/godigit/pkg/engine"
)

const ID = "digitdiff"

var log = logrus.WithField("strategy", ID)

func init() {
	engine.Register(ID, func() engine.Module { return &Strategy{} })
}

// 模式常量
const (
	ModeMatch  = "match"  // DIGITMATCH：末位等于目标数字
	ModeDiffer = "differ" // DIGITDIFF：末位不等于目标数字
)

// Config 固定数字 match/differ 策略配置
type Config struct {
	Digit              int    `yaml:"digit" json:"digit"`                           // 目标数字（0-9）
	Mode               string `yaml:"mode" json:"mode"`                             // match / differ
	TradeIntervalTicks int    `yaml:"tradeIntervalTicks" json:"tradeIntervalTicks"` // 每隔多少个 tick 尝试一次交易
	MaxTrades          int    `yaml:"maxTrades" json:"maxTrades"`                   // 最大交易次数（0 = 不限）
}

// Strategy 固定数字策略：每个交易间隔对同一目标数字下单
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
	if s.Mode == "" {
		s.Mode = ModeDiffer
	}
	if s.TradeIntervalTicks == 0 {
		s.TradeIntervalTicks = 2
	}
	return nil
}

// Validate 验证配置有效性
func (s *Strategy) Validate() error {
	if s.Digit < 0 || s.Digit > 9 {
		return fmt.Errorf("digit必须在[0, 9]范围内，当前值: %d", s.Digit)
	}
	if s.Mode != ModeMatch && s.Mode != ModeDiffer {
		return fmt.Errorf("mode必须是'%s'或'%s'，当前值: %s", ModeMatch, ModeDiffer, s.Mode)
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

// contractType 当前模式对应的 venue 合约类型
func (s *Strategy) contractType() string {
	if s.Mode == ModeMatch {
		return "DIGITMATCH"
	}
	return "DIGITDIFF"
}

// label 策略标签
func (s *Strategy) label() string {
	if s.Mode == ModeMatch {
		return fmt.Sprintf("MATCHES:%d", s.Digit)
	}
	return fmt.Sprintf("DIFFERS:%d", s.Digit)
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
		Barrier:      strconv.Itoa(s.Digit),
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
