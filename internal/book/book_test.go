package book

import (
	"fmt"
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/internal/risk"
)

func newTestBook(tp, sl string) (*Book, *domain.StopFlag) {
	stop := domain.NewStopFlag()
	g := risk.NewGuard(risk.Config{
		TakeProfit: domain.MustMoney(tp),
		StopLoss:   domain.MustMoney(sl),
	})
	return New(g, stop), stop
}

func settle(b *Book, id, profit string) (SettleResult, bool) {
	return b.Settle(ports.ContractUpdate{
		ContractID: id,
		IsSold:     true,
		Profit:     domain.MustMoney(profit),
		SellPrice:  domain.MustMoney("2.00"),
	})
}

// 场景：止盈 5.00，两个合约同时在场。第一个 +3.00 结算时
// 还有一个未结算，风控不评估；第二个 +3.00 结算后 open 清空，
// 风控评估并触发停止。
func TestGuardWaitsForAllOpenContracts(t *testing.T) {
	b, stop := newTestBook("5.00", "0")

	b.RegisterOpen("c1", "parity", "EVEN", domain.MustMoney("1.00"))
	b.RegisterOpen("c2", "parity", "EVEN", domain.MustMoney("1.00"))

	res1, ok := settle(b, "c1", "3.00")
	if !ok {
		t.Fatal("第一次结算应该成功")
	}
	if res1.Verdict.ShouldStop() {
		t.Fatal("仍有合约未结算时不允许触发风控")
	}
	if res1.OpenRemaining != 1 {
		t.Fatalf("OpenRemaining 期望 1，实际 %d", res1.OpenRemaining)
	}
	if !stop.ShouldTrade() {
		t.Fatal("风控未触发时停止标记不应置位")
	}

	res2, ok := settle(b, "c2", "3.00")
	if !ok {
		t.Fatal("第二次结算应该成功")
	}
	if res2.Verdict != risk.VerdictTakeProfit {
		t.Fatalf("open 清空且总利润 6.00 ≥ 5.00，期望止盈，实际 %v", res2.Verdict)
	}
	// 停止标记与风控判定在同一临界区内置位，结算返回时必须已可见
	if stop.ShouldTrade() {
		t.Fatal("风控触发后停止标记必须立即可见")
	}
}

// 幂等：同一合约的第二次结算事件被忽略，不重复计账
func TestSettleIdempotent(t *testing.T) {
	b, _ := newTestBook("0", "0")
	b.RegisterOpen("c1", "parity", "EVEN", domain.MustMoney("1.00"))

	if _, ok := settle(b, "c1", "0.95"); !ok {
		t.Fatal("首次结算应该成功")
	}
	if _, ok := settle(b, "c1", "0.95"); ok {
		t.Fatal("重复结算必须被忽略")
	}
	if got := b.TotalProfit().String(); got != "0.95" {
		t.Fatalf("总利润期望 0.95，实际 %s", got)
	}
}

// 未知合约 ID 与 isSold=false 的事件都被忽略
func TestSettleIgnoresUnknownAndUnsold(t *testing.T) {
	b, _ := newTestBook("0", "0")
	b.RegisterOpen("c1", "parity", "EVEN", domain.MustMoney("1.00"))

	if _, ok := settle(b, "ghost", "1.00"); ok {
		t.Fatal("未知合约必须被忽略")
	}
	if _, ok := b.Settle(ports.ContractUpdate{ContractID: "c1", IsSold: false}); ok {
		t.Fatal("isSold=false 不是结算事件")
	}
	if b.OpenCount() != 1 {
		t.Fatalf("c1 应仍在 open 集合中")
	}
}

// 属性：总利润与结算到达顺序无关（账目顺序无关，只有风控时机顺序相关）
func TestProperty_AccountingOrderIndependent(t *testing.T) {
	property := func(profitCents []int16, seed int64) bool {
		if len(profitCents) == 0 || len(profitCents) > 50 {
			return true
		}

		run := func(order []int) domain.Money {
			b, _ := newTestBook("0", "0")
			for i := range profitCents {
				id := fmt.Sprintf("c%d", i)
				b.RegisterOpen(id, "m", "X", domain.MustMoney("1.00"))
			}
			for _, i := range order {
				p := domain.MoneyFromFloat(float64(profitCents[i]) / 100)
				b.Settle(ports.ContractUpdate{
					ContractID: fmt.Sprintf("c%d", i),
					IsSold:     true,
					Profit:     p,
				})
			}
			return b.TotalProfit()
		}

		forward := make([]int, len(profitCents))
		for i := range forward {
			forward[i] = i
		}
		shuffled := make([]int, len(forward))
		copy(shuffled, forward)
		rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		return run(forward).Equal(run(shuffled))
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 200}); err != nil {
		t.Fatal(err)
	}
}

// 属性：任何结算交错下，风控只在 open 集合清空时评估
// （verdict ≠ continue ⇒ OpenRemaining = 0）
func TestProperty_GuardOnlyWhenOpenEmpty(t *testing.T) {
	property := func(profitCents []int16, opens uint8) bool {
		n := int(opens%5) + 1
		if len(profitCents) < n {
			return true
		}

		b, _ := newTestBook("1.00", "1.00")
		for i := 0; i < n; i++ {
			b.RegisterOpen(fmt.Sprintf("c%d", i), "m", "X", domain.MustMoney("1.00"))
		}
		for i := 0; i < n; i++ {
			res, ok := b.Settle(ports.ContractUpdate{
				ContractID: fmt.Sprintf("c%d", i),
				IsSold:     true,
				Profit:     domain.MoneyFromFloat(float64(profitCents[i]) / 100),
			})
			if !ok {
				return false
			}
			if res.Verdict.ShouldStop() && res.OpenRemaining != 0 {
				return false
			}
		}
		return true
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 300}); err != nil {
		t.Fatal(err)
	}
}

// 排空截止：未结算合约强制收尾为 unsettled，利润必须是 0 而不是 nil
func TestForceFinalizeOpen(t *testing.T) {
	b, _ := newTestBook("0", "0")
	b.RegisterOpen("c1", "m", "X", domain.MustMoney("1.00"))
	b.RegisterOpen("c2", "m", "X", domain.MustMoney("2.00"))
	settle(b, "c1", "0.95")

	forced := b.ForceFinalizeOpen()
	if len(forced) != 1 {
		t.Fatalf("期望强制收尾 1 个合约，实际 %d", len(forced))
	}
	rec := forced[0]
	if rec.Status != domain.TradeStatusUnsettled {
		t.Fatalf("状态期望 unsettled，实际 %s", rec.Status)
	}
	if rec.Profit == nil {
		t.Fatal("unsettled 记录的利润必须是 0，不允许为 nil")
	}
	if !rec.Profit.IsZero() {
		t.Fatalf("unsettled 利润必须为 0，实际 %s", rec.Profit)
	}
	if b.OpenCount() != 0 {
		t.Fatalf("强制收尾后 open 集合应为空")
	}
	// 总利润不被未知结果污染
	if got := b.TotalProfit().String(); got != "0.95" {
		t.Fatalf("总利润期望 0.95，实际 %s", got)
	}
}

// 模块独立计数：多模块记账互不干扰，总利润为各模块之和
func TestModuleStatsIndependent(t *testing.T) {
	b, _ := newTestBook("0", "0")
	b.RegisterOpen("p1", "mixologist/parity", "EVEN", domain.MustMoney("1.00"))
	b.RegisterOpen("d1", "mixologist/differs", "DIFFERS:0", domain.MustMoney("1.00"))

	settle(b, "p1", "0.95")
	settle(b, "d1", "-1.00")

	if got := b.ModuleProfit("mixologist/parity").String(); got != "0.95" {
		t.Fatalf("parity 模块利润期望 0.95，实际 %s", got)
	}
	if got := b.ModuleProfit("mixologist/differs").String(); got != "-1.00" {
		t.Fatalf("differs 模块利润期望 -1.00，实际 %s", got)
	}
	if got := b.TotalProfit().String(); got != "-0.05" {
		t.Fatalf("总利润期望 -0.05，实际 %s", got)
	}
}

// 终态回调在锁外触发，且每条终态记录恰好一次
func TestOnFinalCallback(t *testing.T) {
	b, _ := newTestBook("0", "0")
	var got []domain.TradeRecord
	b.OnFinal(func(rec domain.TradeRecord) { got = append(got, rec) })

	b.RegisterOpen("c1", "m", "X", domain.MustMoney("1.00"))
	settle(b, "c1", "0.95")
	settle(b, "c1", "0.95") // 重复结算不触发回调

	if len(got) != 1 {
		t.Fatalf("期望回调 1 次，实际 %d", len(got))
	}
	if got[0].Status != domain.TradeStatusWon {
		t.Fatalf("回调记录状态期望 won，实际 %s", got[0].Status)
	}
}
