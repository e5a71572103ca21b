package book

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/metrics"
	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/internal/risk"
)

var log = logrus.WithField("component", "book")

// displayRetention 展示用交易记录的保留条数（计数器不受此限制）
const displayRetention = 100

// SettleResult 一次结算的产出
type SettleResult struct {
	Record        domain.TradeRecord
	Won           bool
	TotalProfit   domain.Money
	OpenRemaining int
	Verdict       risk.Verdict // open 集合未清空时恒为 continue
}

// Snapshot 记账状态快照（展示/控制面用）
type Snapshot struct {
	TradeCount    int
	WinCount      int
	LossCount     int
	TotalProfit   domain.Money
	OpenCount     int
	Modules       map[string]domain.ModuleStats
	Records       []domain.TradeRecord
	ProfitHistory []domain.Money
}

// Book 会话记账：open 合约集合 + 交易记录 + 利润账目
//
// 单一串行持有者：所有修改都在 mu 下进行，这是每会话唯一的
// 串行化点。结算屏障不变量在这里结构性成立 —— 风控评估只出现
// 在 open 集合清空的分支里，且停止标记在同一临界区内置位，
// 保证 tick 处理器的下一次调用一定观察到。
type Book struct {
	mu sync.Mutex

	open    map[string]domain.OpenContract
	pending map[string]*domain.TradeRecord // contractID -> 未结算记录
	records []domain.TradeRecord           // 已终态记录（展示保留 displayRetention 条）

	modules     map[string]*domain.ModuleStats
	totalProfit domain.Money
	history     []domain.Money // 每笔结算后的总利润序列

	tradeCount int
	winCount   int
	lossCount  int

	guard *risk.Guard
	stop  *domain.StopFlag

	// onFinal 终态记录回调（交易流水落盘等旁路消费，可为 nil）
	onFinal func(domain.TradeRecord)
}

// New 创建记账
func New(guard *risk.Guard, stop *domain.StopFlag) *Book {
	return &Book{
		open:    make(map[string]domain.OpenContract),
		pending: make(map[string]*domain.TradeRecord),
		modules: make(map[string]*domain.ModuleStats),
		guard:   guard,
		stop:    stop,
	}
}

// OnFinal 注册终态记录回调（在锁外调用）
func (b *Book) OnFinal(fn func(domain.TradeRecord)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFinal = fn
}

// RegisterOpen 登记一笔已确认买入的合约
// 同一合约 ID 重复登记是调用方错误，直接忽略并告警。
func (b *Book) RegisterOpen(contractID, module, strategy string, stake domain.Money) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.open[contractID]; exists {
		log.Warnf("合约 %s 已登记，忽略重复登记", contractID)
		return
	}

	b.open[contractID] = domain.OpenContract{
		ContractID: contractID,
		Module:     module,
		Stake:      stake,
	}
	rec := &domain.TradeRecord{
		ContractID: contractID,
		Module:     module,
		Strategy:   strategy,
		Stake:      stake,
		Status:     domain.TradeStatusPending,
		PlacedAt:   time.Now(),
	}
	b.pending[contractID] = rec
	b.tradeCount++
	b.moduleStats(module).TradeCount++
	metrics.TradesPlaced.Add(1)
}

// Settle 应用一次结算事件
//
// 幂等：未知或已终态的合约 ID 返回 (zero, false)。从 open 集合
// 移除是该合约计入总利润的唯一途径，因此不可能重复计账。
// 记账本身与到达顺序无关；只有风控评估的时机依赖
// “open 集合是否清空”。
func (b *Book) Settle(u ports.ContractUpdate) (SettleResult, bool) {
	if !u.IsSold {
		return SettleResult{}, false
	}

	b.mu.Lock()

	oc, ok := b.open[u.ContractID]
	if !ok {
		b.mu.Unlock()
		return SettleResult{}, false
	}
	delete(b.open, u.ContractID)

	rec := b.pending[u.ContractID]
	delete(b.pending, u.ContractID)
	if rec == nil {
		// 正常流程下不可能：open 与 pending 同生共死
		rec = &domain.TradeRecord{
			ContractID: u.ContractID,
			Module:     oc.Module,
			Stake:      oc.Stake,
			PlacedAt:   time.Now(),
		}
	}

	won := u.Profit.IsPositive()
	now := time.Now()
	profit := u.Profit
	rec.Profit = &profit
	rec.Payout = u.SellPrice
	rec.SettledAt = &now
	if won {
		rec.Status = domain.TradeStatusWon
		b.winCount++
		b.moduleStats(oc.Module).WinCount++
		metrics.TradesWon.Add(1)
	} else {
		rec.Status = domain.TradeStatusLost
		b.lossCount++
		b.moduleStats(oc.Module).LossCount++
		metrics.TradesLost.Add(1)
	}
	metrics.Settlements.Add(1)

	ms := b.moduleStats(oc.Module)
	ms.Profit = ms.Profit.Add(u.Profit)
	b.totalProfit = b.totalProfit.Add(u.Profit)
	b.appendRecordLocked(*rec)

	res := SettleResult{
		Record:        *rec,
		Won:           won,
		TotalProfit:   b.totalProfit,
		OpenRemaining: len(b.open),
		Verdict:       risk.VerdictContinue,
	}

	// 结算屏障：只有 open 集合清空才允许评估风控。
	// 任何仍未结算的合约都可能把总利润拉回阈值另一侧。
	if len(b.open) == 0 {
		res.Verdict = b.guard.Check(b.totalProfit)
		if res.Verdict.ShouldStop() {
			// 在同一临界区内置位：tick 处理器下一次调用即可观察到，
			// 不会再调度新的交易尝试
			b.stop.RequestStop()
		}
	}

	onFinal := b.onFinal
	b.mu.Unlock()

	if onFinal != nil {
		onFinal(res.Record)
	}
	return res, true
}

// Cancel 合约被 venue 取消（买入后未进入结算）
// 利润按 0 计，不计入输赢。
func (b *Book) Cancel(contractID string) bool {
	return b.finalizeZero(contractID, domain.TradeStatusCancelled)
}

// ForceFinalizeOpen 排空截止时间到达后强制收尾所有仍未结算的合约
//
// 状态置为 unsettled，利润强制为 0（绝不猜测）：真实结果以 venue
// 为准，但不能让未知结果污染总利润。返回被收尾的记录。
func (b *Book) ForceFinalizeOpen() []domain.TradeRecord {
	b.mu.Lock()
	ids := make([]string, 0, len(b.open))
	for id := range b.open {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	out := make([]domain.TradeRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := b.finalizeZeroRec(id, domain.TradeStatusUnsettled); ok {
			out = append(out, rec)
			metrics.ForcedUnknowns.Add(1)
		}
	}
	return out
}

func (b *Book) finalizeZero(contractID string, status domain.TradeStatus) bool {
	_, ok := b.finalizeZeroRec(contractID, status)
	return ok
}

func (b *Book) finalizeZeroRec(contractID string, status domain.TradeStatus) (domain.TradeRecord, bool) {
	b.mu.Lock()

	if _, ok := b.open[contractID]; !ok {
		b.mu.Unlock()
		return domain.TradeRecord{}, false
	}
	delete(b.open, contractID)

	rec := b.pending[contractID]
	delete(b.pending, contractID)
	if rec == nil {
		b.mu.Unlock()
		return domain.TradeRecord{}, false
	}

	zero := domain.Zero
	now := time.Now()
	rec.Status = status
	rec.Profit = &zero // 强制 0，不是 nil，也不是猜测值
	rec.SettledAt = &now
	b.appendRecordLocked(*rec)

	onFinal := b.onFinal
	out := *rec
	b.mu.Unlock()

	if onFinal != nil {
		onFinal(out)
	}
	return out, true
}

// appendRecordLocked 追加终态记录并维护总利润序列（须持锁调用）
func (b *Book) appendRecordLocked(rec domain.TradeRecord) {
	b.records = append(b.records, rec)
	if len(b.records) > displayRetention {
		b.records = b.records[len(b.records)-displayRetention:]
	}
	b.history = append(b.history, b.totalProfit)
	if len(b.history) > displayRetention {
		b.history = b.history[len(b.history)-displayRetention:]
	}
}

// moduleStats 取模块计数器（须持锁调用）
func (b *Book) moduleStats(module string) *domain.ModuleStats {
	ms, ok := b.modules[module]
	if !ok {
		ms = &domain.ModuleStats{}
		b.modules[module] = ms
	}
	return ms
}

// OpenCount 当前未结算合约数
func (b *Book) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.open)
}

// TotalProfit 当前总利润
func (b *Book) TotalProfit() domain.Money {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalProfit
}

// TradeCount 已登记的交易总数
func (b *Book) TradeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tradeCount
}

// ModuleProfit 某模块的利润
func (b *Book) ModuleProfit(module string) domain.Money {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ms, ok := b.modules[module]; ok {
		return ms.Profit
	}
	return domain.Zero
}

// Snapshot 返回记账状态快照
func (b *Book) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	mods := make(map[string]domain.ModuleStats, len(b.modules))
	for k, v := range b.modules {
		mods[k] = *v
	}
	recs := make([]domain.TradeRecord, len(b.records))
	copy(recs, b.records)
	hist := make([]domain.Money, len(b.history))
	copy(hist, b.history)

	return Snapshot{
		TradeCount:    b.tradeCount,
		WinCount:      b.winCount,
		LossCount:     b.lossCount,
		TotalProfit:   b.totalProfit,
		OpenCount:     len(b.open),
		Modules:       mods,
		Records:       recs,
		ProfitHistory: hist,
	}
}
