package goalseek

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/analysis"
	"github.com/digitbot/godigit/internal/book"
	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/strategies/common"
	"github.com/digitbot/godigit/pkg/engine"
)

const ID = "goalseek"

var log = logrus.WithField("strategy", ID)

func init() {
	engine.Register(ID, func() engine.Module { return &Strategy{} })
}

// Config 自适应策略配置
type Config struct {
	TradeIntervalTicks int `yaml:"tradeIntervalTicks" json:"tradeIntervalTicks"` // 每隔多少个 tick 尝试一次交易
	ReanalyzeEvery     int `yaml:"reanalyzeEvery" json:"reanalyzeEvery"`         // 每结算多少笔交易后重新分析
	MaxTrades          int `yaml:"maxTrades" json:"maxTrades"`                   // 最大交易次数（0 = 不限）
	MinConfidence      int `yaml:"minConfidence" json:"minConfidence"`           // 低于该置信度不交易
}

// Strategy 自适应策略：根据数字频率分析选择合约类型
//
// 预热期（样本不足）只累计统计不交易。之后每结算
// reanalyzeEvery 笔重新分析一次，推荐变化时重置加注
// 进度，不变则保持当前加注序列继续。
type Strategy struct {
	Config `yaml:",inline" json:",inline"`

	env   *engine.Environment
	exec  *common.Executor
	state *common.State

	mu      sync.Mutex
	stats   analysis.DigitStats
	current *analysis.Recommendation
	settled int // 距上次分析以来的结算笔数

	tickCount atomic.Int64
}

func (s *Strategy) ID() string { return ID }

// Defaults 应用默认配置
func (s *Strategy) Defaults() error {
	if s.TradeIntervalTicks == 0 {
		s.TradeIntervalTicks = 2
	}
	if s.ReanalyzeEvery == 0 {
		s.ReanalyzeEvery = 10
	}
	return nil
}

// Validate 验证配置有效性
func (s *Strategy) Validate() error {
	if s.TradeIntervalTicks <= 0 {
		return fmt.Errorf("tradeIntervalTicks必须大于0，当前值: %d", s.TradeIntervalTicks)
	}
	if s.ReanalyzeEvery <= 0 {
		return fmt.Errorf("reanalyzeEvery必须大于0，当前值: %d", s.ReanalyzeEvery)
	}
	if s.MaxTrades < 0 {
		return fmt.Errorf("maxTrades不能为负数，当前值: %d", s.MaxTrades)
	}
	if s.MinConfidence < 0 || s.MinConfidence > 100 {
		return fmt.Errorf("minConfidence必须在[0, 100]范围内，当前值: %d", s.MinConfidence)
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

// OnTick 累计数字统计；就绪后按推荐方向调度交易
func (s *Strategy) OnTick(ctx context.Context, tick domain.Tick) {
	n := s.tickCount.Add(1)

	d := tick.LastDigit()
	if d < 0 {
		log.Warnf("无法从报价提取末位数字: %s", tick.Quote)
		return
	}

	s.mu.Lock()
	s.stats.Add(d)
	if s.current == nil {
		if rec, ok := analysis.Analyze(&s.stats); ok {
			s.current = &rec
			log.Infof("预热完成（%d 样本），初始推荐 %s 置信度=%.0f%%", s.stats.Total, rec.Label(), rec.Confidence)
		}
	}
	rec := s.current
	s.mu.Unlock()

	if rec == nil {
		return
	}
	if !s.env.Stop.ShouldTrade() {
		return
	}
	if n%int64(s.TradeIntervalTicks) != 0 {
		return
	}
	if s.MaxTrades > 0 && s.state.Attempts() >= s.MaxTrades {
		return
	}
	if rec.Confidence < float64(s.MinConfidence) {
		return
	}

	s.exec.Spawn(ctx, common.Attempt{
		Module:       ID,
		Label:        rec.Label(),
		ContractType: contractType(rec.Kind),
		Barrier:      barrier(rec),
		Stake:        s.state.Stake(),
		State:        s.state,
	})
}

// OnSettlement 更新加注状态；每 reanalyzeEvery 笔重新分析
func (s *Strategy) OnSettlement(ctx context.Context, res book.SettleResult) {
	if res.Record.Module != ID {
		return
	}

	stake, step := s.state.ApplyOutcome(res.Won)
	log.Infof("结算 %s won=%v 下一注 stake=%s step=%d 总利润=%s",
		res.Record.ContractID, res.Won, stake, step, res.TotalProfit)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settled++
	if s.settled < s.ReanalyzeEvery || !s.stats.Ready() {
		return
	}
	s.settled = 0
	rec, ok := analysis.Analyze(&s.stats)
	if !ok {
		return
	}
	if s.current != nil && rec.Kind == s.current.Kind && rec.Digit == s.current.Digit {
		return
	}
	prev := "(无)"
	if s.current != nil {
		prev = s.current.Label()
	}
	s.current = &rec
	// 方向切换时放弃当前加注序列，从基础注重新开始
	s.state.ResetToBase()
	log.Infof("推荐切换 %s -> %s 置信度=%.0f%%，加注进度已重置", prev, rec.Label(), rec.Confidence)
}

func contractType(kind analysis.Kind) string {
	switch kind {
	case analysis.KindEven:
		return "DIGITEVEN"
	case analysis.KindOdd:
		return "DIGITODD"
	case analysis.KindOver:
		return "DIGITOVER"
	case analysis.KindUnder:
		return "DIGITUNDER"
	default:
		return "DIGITDIFF"
	}
}

func barrier(rec *analysis.Recommendation) string {
	switch rec.Kind {
	case analysis.KindOver, analysis.KindUnder, analysis.KindDiffers:
		return strconv.Itoa(rec.Digit)
	default:
		return ""
	}
}
