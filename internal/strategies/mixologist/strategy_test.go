package mixologist

import (
	"context"
	"sync"
	"testing"
	"time"

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
	return "mx-" + string(rune('0'+r.seq)), nil
}

func (r *recordingTrader) requests() []ports.ProposalRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.ProposalRequest, len(r.reqs))
	copy(out, r.reqs)
	return out
}

func newEnv(trader ports.Trader) *engine.Environment {
	stop := domain.NewStopFlag()
	return &engine.Environment{
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
}

func TestDefaultsEnableClassicTrio(t *testing.T) {
	s := &Strategy{}
	if err := s.Defaults(); err != nil {
		t.Fatal(err)
	}
	if !s.Parity.Enabled || !s.OverUnder.Enabled || !s.Differs.Enabled {
		t.Fatal("未配置任何子模块时应启用经典三件套")
	}
	if s.Parity.Side != "EVEN" || s.OverUnder.Barrier != 4 || s.Differs.Digit != 0 {
		t.Fatalf("默认参数不对: %+v", s.Config)
	}
}

func TestValidateRejectsImpossibleBarriers(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"OVER 9", Config{TradeIntervalTicks: 1, OverUnder: OverUnderConfig{Enabled: true, Barrier: 9, Direction: "over"}}},
		{"UNDER 0", Config{TradeIntervalTicks: 1, OverUnder: OverUnderConfig{Enabled: true, Barrier: 0, Direction: "under"}}},
		{"parity side 非法", Config{TradeIntervalTicks: 1, Parity: ParityConfig{Enabled: true, Side: "BOTH"}}},
		{"differs 越界", Config{TradeIntervalTicks: 1, Differs: DiffersConfig{Enabled: true, Digit: 10}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Strategy{Config: tc.cfg}
			if err := s.Validate(); err == nil {
				t.Fatal("期望校验失败")
			}
		})
	}
}

// 一个符合间隔的 tick，每个启用的子模块各出一笔
func TestEachSubmoduleTradesPerEligibleTick(t *testing.T) {
	trader := &recordingTrader{}
	env := newEnv(trader)
	s := &Strategy{}
	if err := s.Defaults(); err != nil {
		t.Fatal(err)
	}
	s.TradeIntervalTicks = 1
	if err := s.Bind(env); err != nil {
		t.Fatal(err)
	}

	s.OnTick(context.Background(), domain.Tick{Quote: "1.23", Epoch: time.Now().Unix()})
	env.Tasks.Wait()

	reqs := trader.requests()
	if len(reqs) != 3 {
		t.Fatalf("三个子模块应各出一笔，实际 %d", len(reqs))
	}
	types := map[string]bool{}
	for _, r := range reqs {
		types[r.ContractType] = true
	}
	for _, want := range []string{"DIGITEVEN", "DIGITOVER", "DIGITDIFF"} {
		if !types[want] {
			t.Fatalf("缺少合约类型 %s，实际 %v", want, types)
		}
	}
}

// 子模块的加注状态互不影响：parity 输了翻倍，differs 不动
func TestSettlementRoutedBySubmoduleTag(t *testing.T) {
	env := newEnv(&recordingTrader{})
	s := &Strategy{}
	if err := s.Defaults(); err != nil {
		t.Fatal(err)
	}
	if err := s.Bind(env); err != nil {
		t.Fatal(err)
	}

	loss := domain.MustMoney("-1.00")
	s.OnSettlement(context.Background(), book.SettleResult{
		Record: domain.TradeRecord{ContractID: "c1", Module: ID + "/parity", Profit: &loss},
		Won:    false,
	})

	var parity, differs *submodule
	for _, sub := range s.subs {
		switch sub.tag {
		case ID + "/parity":
			parity = sub
		case ID + "/differs":
			differs = sub
		}
	}
	if parity == nil || differs == nil {
		t.Fatal("缺少子模块")
	}
	if got := parity.state.Stake().String(); got != "2.00" {
		t.Fatalf("parity 输后 stake 期望 2.00，实际 %s", got)
	}
	if got := differs.state.Stake().String(); got != "1.00" {
		t.Fatalf("differs 不应被 parity 的结算影响，实际 %s", got)
	}
}

// 每个子模块各自封顶，互不占用额度
func TestMaxTradesPerModuleIndependent(t *testing.T) {
	trader := &recordingTrader{}
	env := newEnv(trader)
	s := &Strategy{}
	if err := s.Defaults(); err != nil {
		t.Fatal(err)
	}
	s.TradeIntervalTicks = 1
	s.MaxTradesPerModule = 2
	if err := s.Bind(env); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		s.OnTick(context.Background(), domain.Tick{Quote: "1.23", Epoch: time.Now().Unix()})
		env.Tasks.Wait()
	}

	// 3 个子模块 × 2 次封顶
	if got := len(trader.requests()); got != 6 {
		t.Fatalf("每模块封顶 2 次、共 3 个模块，期望 6 笔，实际 %d", got)
	}
}
