package goalseek

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/digitbot/godigit/internal/analysis"
	"github.com/digitbot/godigit/internal/book"
	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/internal/risk"
	"github.com/digitbot/godigit/internal/staking"
	"github.com/digitbot/godigit/pkg/engine"
	"github.com/digitbot/godigit/pkg/syncgroup"
)

type recordingTrader struct {
	mu   sync.Mutex
	reqs []ports.ProposalRequest
	seq  int
}

func (r *recordingTrader) Propose(ctx context.Context, req ports.ProposalRequest) (*ports.Proposal, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	return &ports.Proposal{ID: "q", AskPrice: req.Stake}, nil
}

func (r *recordingTrader) Buy(ctx context.Context, proposalID string, price domain.Money) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return "gs-" + string(rune('0'+r.seq)), nil
}

func (r *recordingTrader) requests() []ports.ProposalRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.ProposalRequest, len(r.reqs))
	copy(out, r.reqs)
	return out
}

func newBound(t *testing.T, trader ports.Trader) *Strategy {
	t.Helper()
	stop := domain.NewStopFlag()
	env := &engine.Environment{
		Instrument:    "R_100",
		Currency:      "USD",
		DurationTicks: 1,
		BaseStake:     domain.MustMoney("1.00"),
		Staking:       staking.Config{Enabled: true, Multiplier: 2.0, MaxStep: 5},
		Book:          book.New(risk.NewGuard(risk.Config{}), stop),
		Stop:          stop,
		Trader:        trader,
		Sink:          ports.NopSink{},
		Tasks:         syncgroup.NewSyncGroup(),
	}
	s := &Strategy{}
	if err := s.Defaults(); err != nil {
		t.Fatal(err)
	}
	if err := s.Bind(env); err != nil {
		t.Fatal(err)
	}
	return s
}

func tick(q string) domain.Tick {
	return domain.Tick{Quote: q, Epoch: time.Now().Unix()}
}

// 预热期只累计统计，样本够了才开始交易
func TestWarmupBeforeMinSamples(t *testing.T) {
	trader := &recordingTrader{}
	s := newBound(t, trader)

	for i := 0; i < analysis.MinSamples-1; i++ {
		s.OnTick(context.Background(), tick("1.9"))
	}
	s.env.Tasks.Wait()
	if got := len(trader.requests()); got != 0 {
		t.Fatalf("预热期不应交易，实际 %d 笔", got)
	}

	// 第 30 个 tick：样本够了，且正好落在交易间隔上
	s.OnTick(context.Background(), tick("1.9"))
	s.env.Tasks.Wait()

	reqs := trader.requests()
	if len(reqs) != 1 {
		t.Fatalf("预热完成后应出 1 笔，实际 %d", len(reqs))
	}
	// 全 9 样本：奇数占比 1.0，推荐 ODD
	if reqs[0].ContractType != "DIGITODD" {
		t.Fatalf("全 9 样本应推荐 DIGITODD，实际 %s", reqs[0].ContractType)
	}
}

// 置信度低于门槛时不交易
func TestMinConfidenceGate(t *testing.T) {
	trader := &recordingTrader{}
	s := newBound(t, trader)
	s.TradeIntervalTicks = 1
	s.MinConfidence = 50
	s.current = &analysis.Recommendation{Kind: analysis.KindDiffers, Digit: 3, Confidence: 10}

	s.OnTick(context.Background(), tick("1.9"))
	s.env.Tasks.Wait()

	if got := len(trader.requests()); got != 0 {
		t.Fatalf("置信度 10 < 门槛 50，不应交易，实际 %d 笔", got)
	}
}

// 推荐切换时放弃当前加注序列；不变时保持
func TestReanalyzeSwitchResetsStaking(t *testing.T) {
	s := newBound(t, &recordingTrader{})
	s.ReanalyzeEvery = 1

	// 预热：全 9 样本 → 推荐 ODD
	for i := 0; i < analysis.MinSamples; i++ {
		s.stats.Add(9)
	}
	rec, ok := analysis.Analyze(&s.stats)
	if !ok || rec.Kind != analysis.KindOdd {
		t.Fatalf("全 9 样本期望 ODD，实际 %+v ok=%v", rec, ok)
	}
	s.current = &rec

	loss := domain.MustMoney("-1.00")
	settle := func(id string) {
		s.OnSettlement(context.Background(), book.SettleResult{
			Record: domain.TradeRecord{ContractID: id, Module: ID, Profit: &loss},
			Won:    false,
		})
	}

	// 分布没变：重新分析仍是 ODD，加注序列继续
	settle("c1")
	if got := s.state.Stake().String(); got != "2.00" {
		t.Fatalf("推荐未变时输后应翻倍，实际 %s", got)
	}

	// 分布变了：大量 8 之后 OVER:0 的 edge 反超，推荐切换
	for i := 0; i < 100; i++ {
		s.stats.Add(8)
	}
	settle("c2")
	if s.current.Kind != analysis.KindOver {
		t.Fatalf("期望切换到 OVER，实际 %s", s.current.Kind)
	}
	if got := s.state.Stake().String(); got != "1.00" {
		t.Fatalf("切换后应重置到基础注，实际 %s", got)
	}
	if got := s.state.Step(); got != 0 {
		t.Fatalf("切换后级数应为 0，实际 %d", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"合法", Config{TradeIntervalTicks: 2, ReanalyzeEvery: 10, MinConfidence: 30}, false},
		{"间隔为零", Config{TradeIntervalTicks: 0, ReanalyzeEvery: 10}, true},
		{"重分析为零", Config{TradeIntervalTicks: 2, ReanalyzeEvery: 0}, true},
		{"置信度越界", Config{TradeIntervalTicks: 2, ReanalyzeEvery: 10, MinConfidence: 101}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Strategy{Config: tc.cfg}
			err := s.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("期望校验失败")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("期望校验通过: %v", err)
			}
		})
	}
}
