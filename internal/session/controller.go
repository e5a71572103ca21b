package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/book"
	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/events"
	"github.com/digitbot/godigit/internal/infrastructure/venue"
	"github.com/digitbot/godigit/internal/metrics"
	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/internal/risk"
	"github.com/digitbot/godigit/internal/staking"
	"github.com/digitbot/godigit/pkg/engine"
	"github.com/digitbot/godigit/pkg/syncgroup"
)

var log = logrus.WithField("component", "session")

// 认证重试上限（固定小额度，避免掩盖永久无效的凭证）
const maxAuthAttempts = 3

var (
	drainGrace      = 35 * time.Second // 排空阶段的硬性墙钟期限
	balancePollTick = 5 * time.Second  // 余额推送不可用时的轮询间隔
	stopPollTick    = 300 * time.Millisecond
	authBackoffUnit = time.Second // 退避基数：2^attempt × 基数
)

// Phase 会话生命周期阶段
type Phase string

const (
	PhaseUnauthenticated    Phase = "unauthenticated"
	PhaseAuthenticating     Phase = "authenticating"
	PhaseAuthenticated      Phase = "authenticated"
	PhaseSubscribingBalance Phase = "subscribing_balance"
	PhaseRunning            Phase = "running"
	PhaseDraining           Phase = "draining"
	PhaseDisconnected       Phase = "disconnected"
)

// Config 一次会话的完整参数
type Config struct {
	Token         string
	Instrument    string
	Currency      string
	DurationTicks int
	BaseStake     domain.Money
	Staking       staking.Config
	Risk          risk.Config
}

// Status 会话状态快照（控制面/展示用）
type Status struct {
	ID        string
	Phase     Phase
	AccountID string
	Currency  string
	Balance   domain.Money
	TickCount int64
	Book      book.Snapshot
	StartedAt time.Time
}

// Controller 会话生命周期控制器
//
// 状态机：unauthenticated → authenticating → authenticated →
// subscribing_balance → running → draining → disconnected。
// 每个会话独占自己的 book/stop/任务组；stop 只阻止调度新交易，
// 永远不取消在途网络调用或已开仓位。
type Controller struct {
	id     string
	cfg    Config
	gw     ports.Gateway
	sink   ports.EventSink
	module engine.Module

	book  *book.Book
	stop  *domain.StopFlag
	tasks *syncgroup.SyncGroup

	mu        sync.RWMutex
	phase     Phase
	accountID string
	balance   domain.Money
	startedAt time.Time

	tickCount atomic.Int64

	stopC    chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	authFailed error // 认证终态失败原因（仅在 Run 退出后读取）
}

// New 创建会话控制器。module 必须已完成 Defaults/Validate。
func New(cfg Config, gw ports.Gateway, sink ports.EventSink, module engine.Module) *Controller {
	if sink == nil {
		sink = ports.NopSink{}
	}
	stop := domain.NewStopFlag()
	return &Controller{
		id:     uuid.NewString(),
		cfg:    cfg,
		gw:     gw,
		sink:   sink,
		module: module,
		book:   book.New(risk.NewGuard(cfg.Risk), stop),
		stop:   stop,
		tasks:  syncgroup.NewSyncGroup(),
		phase:  PhaseUnauthenticated,
		stopC:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (c *Controller) ID() string       { return c.id }
func (c *Controller) Book() *book.Book { return c.book }

// Done 会话结束时关闭
func (c *Controller) Done() <-chan struct{} { return c.done }

// Stop 请求停止会话（幂等、非阻塞）
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.stop.RequestStop()
		close(c.stopC)
		log.Info("收到停止请求")
	})
}

// Status 返回当前状态快照
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		ID:        c.id,
		Phase:     c.phase,
		AccountID: c.accountID,
		Currency:  c.cfg.Currency,
		Balance:   c.balance,
		TickCount: c.tickCount.Load(),
		Book:      c.book.Snapshot(),
		StartedAt: c.startedAt,
	}
}

// Run 执行完整生命周期，阻塞直到会话结束。
// 引擎崩溃（run 循环逃逸的 panic）会把会话强制置为 stopped，
// 通过 Event Sink 上报一次，不做自动重试。
func (c *Controller) Run(ctx context.Context) (err error) {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("会话引擎崩溃: %v", r)
			log.Errorf("%v", err)
			c.sink.Emit(events.NewLog("error", "session", err.Error()))
			c.stop.MarkStopped()
			c.transition(PhaseDisconnected, "crash")
			_ = c.gw.Disconnect()
		}
	}()

	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()

	auth, err := c.authenticate(ctx)
	if err != nil {
		c.authFailed = err
		c.stop.MarkStopped()
		c.transition(PhaseDisconnected, "auth_failed")
		return err
	}

	c.mu.Lock()
	c.accountID = auth.AccountID
	c.balance = auth.Balance
	if c.cfg.Currency == "" {
		c.cfg.Currency = auth.Currency
	}
	c.mu.Unlock()
	c.transition(PhaseAuthenticated, "")
	log.Infof("认证成功: account=%s currency=%s balance=%s", auth.AccountID, auth.Currency, auth.Balance)

	// 结算流必须先于 tick 流订阅，避免首笔交易的结算推送丢失
	unsubContracts, err := c.gw.SubscribeContractUpdates(ctx, c.onContractUpdate)
	if err != nil {
		c.stop.MarkStopped()
		c.transition(PhaseDisconnected, "subscribe_contracts_failed")
		return fmt.Errorf("订阅合约更新失败: %w", err)
	}
	defer unsubContracts()

	unsubBalance := c.trackBalance(ctx)
	defer unsubBalance()

	if err := c.bindModule(); err != nil {
		c.stop.MarkStopped()
		c.transition(PhaseDisconnected, "bind_failed")
		return err
	}

	unsubTicks, err := c.gw.SubscribeTicks(ctx, c.cfg.Instrument, c.onTick)
	if err != nil {
		c.stop.MarkStopped()
		c.transition(PhaseDisconnected, "subscribe_ticks_failed")
		return fmt.Errorf("订阅tick流失败: %w", err)
	}

	c.transition(PhaseRunning, "")
	log.Infof("会话运行中: instrument=%s module=%s baseStake=%s", c.cfg.Instrument, c.module.ID(), c.cfg.BaseStake)

	c.awaitStop(ctx)

	// 排空：先停掉新交易的调度来源，再等待在途交易落地
	unsubTicks()
	c.stop.RequestStop()
	c.transition(PhaseDraining, "")
	c.drain(ctx)

	c.shutdown(ctx)
	c.stop.MarkStopped()
	c.transition(PhaseDisconnected, "")
	return nil
}

// authenticate 认证（≤3 次，指数退避 2^attempt 秒）。
// 无效/过期凭证立即终态，不重试也不退避。
func (c *Controller) authenticate(ctx context.Context) (*ports.AuthResult, error) {
	c.transition(PhaseAuthenticating, "")

	var lastErr error
	for attempt := 1; attempt <= maxAuthAttempts; attempt++ {
		auth, err := c.gw.Authenticate(ctx, c.cfg.Token)
		if err == nil {
			return auth, nil
		}
		lastErr = err
		if venue.IsTerminalAuthError(err) {
			log.Errorf("认证失败（不可重试）: %v", err)
			return nil, err
		}
		log.Warnf("认证失败（第%d/%d次）: %v", attempt, maxAuthAttempts, err)
		if attempt == maxAuthAttempts {
			break
		}
		backoff := time.Duration(1<<attempt) * authBackoffUnit
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("认证失败（已重试%d次）: %w", maxAuthAttempts, lastErr)
}

func (c *Controller) bindModule() error {
	env := &engine.Environment{
		Instrument:    c.cfg.Instrument,
		Currency:      c.cfg.Currency,
		DurationTicks: c.cfg.DurationTicks,
		BaseStake:     c.cfg.BaseStake,
		Staking:       c.cfg.Staking,
		Book:          c.book,
		Stop:          c.stop,
		Trader:        c.gw,
		Sink:          c.sink,
		Tasks:         c.tasks,
	}
	if err := c.module.Bind(env); err != nil {
		return fmt.Errorf("绑定策略模块失败: %w", err)
	}
	return nil
}

// trackBalance 优先订阅余额推送；订阅失败降级为固定 5 秒轮询。
// 两条路径更新同一字段、产生同一事件形态，下游无法区分。
func (c *Controller) trackBalance(ctx context.Context) func() {
	c.transition(PhaseSubscribingBalance, "")

	unsub, err := c.gw.SubscribeBalance(ctx, c.applyBalance)
	if err == nil {
		return unsub
	}
	log.Warnf("余额推送订阅失败，降级为轮询: %v", err)

	pollCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(balancePollTick)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if c.stop.State() == domain.RunStateStopped {
					return
				}
				bu, err := c.gw.PollBalance(pollCtx)
				if err != nil {
					log.Debugf("余额轮询失败: %v", err)
					continue
				}
				c.applyBalance(bu)
			}
		}
	}()
	return cancel
}

func (c *Controller) applyBalance(bu ports.BalanceUpdate) {
	c.mu.Lock()
	c.balance = bu.Balance
	c.mu.Unlock()
	c.emitSnapshot()
}

// onTick tick 处理器：必须短小非阻塞，交易尝试由模块内部派生任务执行
func (c *Controller) onTick(tick domain.Tick) {
	c.tickCount.Add(1)
	metrics.TicksReceived.Add(1)
	c.module.OnTick(context.Background(), tick)
}

// onContractUpdate 结算处理器：记账归 book 串行化，模块回调在账目落定后执行
func (c *Controller) onContractUpdate(u ports.ContractUpdate) {
	if u.AccountBalance != nil {
		c.mu.Lock()
		c.balance = *u.AccountBalance
		c.mu.Unlock()
	}
	res, ok := c.book.Settle(u)
	if !ok {
		return
	}
	c.module.OnSettlement(context.Background(), res)
	c.emitSnapshot()
	if res.Verdict.ShouldStop() {
		log.Infof("风控触发 %s（总利润 %s），进入排空", res.Verdict, res.TotalProfit)
		c.Stop()
	}
}

func (c *Controller) emitSnapshot() {
	c.mu.RLock()
	bal := c.balance
	c.mu.RUnlock()
	snap := c.book.Snapshot()
	c.sink.Emit(events.NewStatsSnapshot(events.StatsSnapshotPayload{
		TickCount:   c.tickCount.Load(),
		TradeCount:  snap.TradeCount,
		WinCount:    snap.WinCount,
		LossCount:   snap.LossCount,
		TotalProfit: snap.TotalProfit.String(),
		Balance:     bal.String(),
		OpenCount:   snap.OpenCount,
	}))
}

// awaitStop 阻塞到停止请求（风控、外部 Stop 或 ctx 取消）
func (c *Controller) awaitStop(ctx context.Context) {
	ticker := time.NewTicker(stopPollTick)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopC:
			return
		case <-ctx.Done():
			c.Stop()
			return
		case <-ticker.C:
			// 风控在 book 临界区内置位 stop 标记，这里轮询兜底
			if c.stop.State() != domain.RunStateRunning {
				return
			}
		}
	}
}

// drain 等待在途任务与 open 合约清空，硬期限 35 秒。
// 到期仍未结算的合约强制记为 unsettled、利润记 0（绝不猜测），
// 真实结果以场馆为准。
func (c *Controller) drain(ctx context.Context) {
	log.Infof("排空中: 在途任务=%d open合约=%d", c.tasks.Running(), c.book.OpenCount())

	deadline := time.NewTimer(drainGrace)
	defer deadline.Stop()
	ticker := time.NewTicker(stopPollTick)
	defer ticker.Stop()

	for {
		if c.tasks.Running() == 0 && c.book.OpenCount() == 0 {
			log.Info("排空完成：所有交易已落地")
			return
		}
		select {
		case <-deadline.C:
			forced := c.book.ForceFinalizeOpen()
			log.Warnf("排空超时（%s），%d 个合约强制记为 unsettled", drainGrace, len(forced))
			c.emitSnapshot()
			return
		case <-ticker.C:
		}
	}
}

// shutdown 最终余额、退订、断开，每一步尽力而为（失败只记日志）
func (c *Controller) shutdown(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if bu, err := c.gw.PollBalance(fetchCtx); err == nil {
		c.applyBalance(bu)
		log.Infof("最终余额: %s %s", bu.Balance, bu.Currency)
	} else {
		log.Warnf("获取最终余额失败: %v", err)
	}
	if err := c.gw.ForgetAll(fetchCtx); err != nil {
		log.Warnf("退订失败: %v", err)
	}
	if err := c.gw.Disconnect(); err != nil {
		log.Warnf("断开连接失败: %v", err)
	}
}

// transition 切换阶段并广播 lifecycle-transition 事件
func (c *Controller) transition(to Phase, reason string) {
	c.mu.Lock()
	from := c.phase
	c.phase = to
	c.mu.Unlock()
	if from == to {
		return
	}
	log.Infof("生命周期: %s -> %s %s", from, to, reason)
	c.sink.Emit(events.NewTransition(string(from), string(to), reason))
}
