package mixologist

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

const ID = "mixologist"

var log = logrus.WithField("strategy", ID)

func init() {
	engine.Register(ID, func() engine.Module { return &Strategy{} })
}

// ParityConfig 奇偶子模块配置
type ParityConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Side    string `yaml:"side" json:"side"` // EVEN / ODD
}

// OverUnderConfig 大小子模块配置
type OverUnderConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Barrier   int    `yaml:"barrier" json:"barrier"`
	Direction string `yaml:"direction" json:"direction"` // over / under
}

// DiffersConfig DIFFERS 子模块配置
type DiffersConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Digit   int  `yaml:"digit" json:"digit"`
}

// Config 多模块组合策略配置
type Config struct {
	TradeIntervalTicks int `yaml:"tradeIntervalTicks" json:"tradeIntervalTicks"` // 每隔多少个 tick 尝试一次交易
	MaxTradesPerModule int `yaml:"maxTradesPerModule" json:"maxTradesPerModule"` // 每个子模块的最大交易次数（0 = 不限）

	Parity    ParityConfig    `yaml:"parity" json:"parity"`
	OverUnder OverUnderConfig `yaml:"overUnder" json:"overUnder"`
	Differs   DiffersConfig   `yaml:"differs" json:"differs"`
}

// submodule 一个独立交易的子模块
// stake/加注/输赢状态完全独立；只有总利润通过 book 共享。
type submodule struct {
	tag          string // 记账用的模块标签（mixologist/<name>）
	label        string
	contractType string
	barrier      string
	state        *common.State
}

// Strategy 多模块组合：多个独立子策略同时消费同一条 tick 流
//
// 风控评估仍然由 book 统一把关：必须等*所有*子模块的 open
// 合约都清空，而不是某一个子模块的。子模块自己的连败
// 永远不单独触发会话停止。
type Strategy struct {
	Config `yaml:",inline" json:",inline"`

	env  *engine.Environment
	exec *common.Executor
	subs []*submodule

	tickCount atomic.Int64
}

func (s *Strategy) ID() string { return ID }

// Defaults 应用默认配置
func (s *Strategy) Defaults() error {
	if s.TradeIntervalTicks == 0 {
		s.TradeIntervalTicks = 3
	}
	if !s.Parity.Enabled && !s.OverUnder.Enabled && !s.Differs.Enabled {
		// 全部未配置时启用经典三件套
		s.Parity = ParityConfig{Enabled: true, Side: "EVEN"}
		s.OverUnder = OverUnderConfig{Enabled: true, Barrier: 4, Direction: "over"}
		s.Differs = DiffersConfig{Enabled: true, Digit: 0}
	}
	if s.Parity.Side == "" {
		s.Parity.Side = "EVEN"
	}
	s.Parity.Side = strings.ToUpper(s.Parity.Side)
	if s.OverUnder.Direction == "" {
		s.OverUnder.Direction = "over"
	}
	s.OverUnder.Direction = strings.ToLower(s.OverUnder.Direction)
	return nil
}

// Validate 验证配置有效性
func (s *Strategy) Validate() error {
	if s.TradeIntervalTicks <= 0 {
		return fmt.Errorf("tradeIntervalTicks必须大于0，当前值: %d", s.TradeIntervalTicks)
	}
	if s.MaxTradesPerModule < 0 {
		return fmt.Errorf("maxTradesPerModule不能为负数，当前值: %d", s.MaxTradesPerModule)
	}
	if s.Parity.Enabled && s.Parity.Side != "EVEN" && s.Parity.Side != "ODD" {
		return fmt.Errorf("parity.side必须是'EVEN'或'ODD'，当前值: %s", s.Parity.Side)
	}
	if s.OverUnder.Enabled {
		if s.OverUnder.Barrier < 0 || s.OverUnder.Barrier > 9 {
			return fmt.Errorf("overUnder.barrier必须在[0, 9]范围内，当前值: %d", s.OverUnder.Barrier)
		}
		if s.OverUnder.Direction != "over" && s.OverUnder.Direction != "under" {
			return fmt.Errorf("overUnder.direction必须是'over'或'under'，当前值: %s", s.OverUnder.Direction)
		}
		if s.OverUnder.Direction == "over" && s.OverUnder.Barrier == 9 {
			return fmt.Errorf("overUnder: OVER 9 没有可赢数字")
		}
		if s.OverUnder.Direction == "under" && s.OverUnder.Barrier == 0 {
			return fmt.Errorf("overUnder: UNDER 0 没有可赢数字")
		}
	}
	if s.Differs.Enabled && (s.Differs.Digit < 0 || s.Differs.Digit > 9) {
		return fmt.Errorf("differs.digit必须在[0, 9]范围内，当前值: %d", s.Differs.Digit)
	}
	return nil
}

// Bind 注入运行环境并构建子模块
func (s *Strategy) Bind(env *engine.Environment) error {
	s.env = env
	s.exec = common.NewExecutor(env, log)
	s.subs = nil

	if s.Parity.Enabled {
		ct := "DIGITEVEN"
		if s.Parity.Side == "ODD" {
			ct = "DIGITODD"
		}
		s.subs = append(s.subs, &submodule{
			tag:          ID + "/parity",
			label:        s.Parity.Side,
			contractType: ct,
			state:        common.NewState(env.BaseStake, env.Staking),
		})
	}
	if s.OverUnder.Enabled {
		ct := "DIGITOVER"
		if s.OverUnder.Direction == "under" {
			ct = "DIGITUNDER"
		}
		s.subs = append(s.subs, &submodule{
			tag:          ID + "/overunder",
			label:        fmt.Sprintf("%s:%d", strings.ToUpper(s.OverUnder.Direction), s.OverUnder.Barrier),
			contractType: ct,
			barrier:      strconv.Itoa(s.OverUnder.Barrier),
			state:        common.NewState(env.BaseStake, env.Staking),
		})
	}
	if s.Differs.Enabled {
		s.subs = append(s.subs, &submodule{
			tag:          ID + "/differs",
			label:        fmt.Sprintf("DIFFERS:%d", s.Differs.Digit),
			contractType: "DIGITDIFF",
			barrier:      strconv.Itoa(s.Differs.Digit),
			state:        common.NewState(env.BaseStake, env.Staking),
		})
	}
	if len(s.subs) == 0 {
		return fmt.Errorf("mixologist 至少需要启用一个子模块")
	}
	return nil
}

// OnTick 每个符合间隔的 tick：每个子模块各调度一次交易尝试
func (s *Strategy) OnTick(ctx context.Context, tick domain.Tick) {
	n := s.tickCount.Add(1)

	if !s.env.Stop.ShouldTrade() {
		return
	}
	if n%int64(s.TradeIntervalTicks) != 0 {
		return
	}

	for _, sub := range s.subs {
		if s.MaxTradesPerModule > 0 && sub.state.Attempts() >= s.MaxTradesPerModule {
			continue
		}
		s.exec.Spawn(ctx, common.Attempt{
			Module:       sub.tag,
			Label:        sub.label,
			ContractType: sub.contractType,
			Barrier:      sub.barrier,
			Stake:        sub.state.Stake(),
			State:        sub.state,
		})
	}
}

// OnSettlement 按模块标签路由到对应子模块
func (s *Strategy) OnSettlement(ctx context.Context, res book.SettleResult) {
	for _, sub := range s.subs {
		if res.Record.Module != sub.tag {
			continue
		}
		stake, step := sub.state.ApplyOutcome(res.Won)
		log.Infof("[%s] 结算 %s profit=%s 下一注 stake=%s step=%d 模块利润=%s 总利润=%s",
			sub.tag, res.Record.ContractID, res.Record.Profit, stake, step,
			s.env.Book.ModuleProfit(sub.tag), res.TotalProfit)
		return
	}
}
