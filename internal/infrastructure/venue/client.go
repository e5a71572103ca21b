package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/metrics"
	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/pkg/ratelimit"
	"github.com/digitbot/godigit/pkg/sigchan"
	"github.com/digitbot/godigit/pkg/syncgroup"
)

var log = logrus.WithField("component", "venue")

// Config gateway 配置
type Config struct {
	WSURL       string        // WebSocket 端点
	RestURL     string        // REST 端点（balance poll 回退用）
	AppID       string        // venue 分配的应用 ID
	CallTimeout time.Duration // 单次请求超时
	PingEvery   time.Duration // 心跳间隔
}

// ApplyDefaults 应用默认值
func (c *Config) ApplyDefaults() {
	if c.CallTimeout == 0 {
		c.CallTimeout = 15 * time.Second
	}
	if c.PingEvery == 0 {
		c.PingEvery = 30 * time.Second
	}
}

// Client venue WebSocket 网关（信号驱动重连）
//
// 出站请求带自增 req_id 做一问一答关联；tick/合约/余额订阅走
// 推送分发。写操作由 writeMu 串行化（gorilla 连接不允许并发写）。
type Client struct {
	cfg Config

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex

	reqID   atomic.Int64
	pending map[int64]chan envelope
	pendMu  sync.Mutex

	// 订阅处理器
	tickHandlers     []ports.TickHandler
	contractHandlers []func(ports.ContractUpdate)
	balanceHandlers  []func(ports.BalanceUpdate)
	handlerMu        sync.RWMutex

	// 重连信号（缓冲 1，非阻塞触发）
	reconnectC     *sigchan.Chan
	reconnectCount int
	maxReconnects  int
	authToken      string // 重连后重新鉴权与重订阅用
	instrument     string

	ctx    context.Context
	cancel context.CancelFunc
	sg     *syncgroup.SyncGroup

	// venue 侧有调用频率上限，出站请求统一过令牌桶
	limiter *ratelimit.TokenBucket

	rest *resty.Client // 惰性创建的 REST 客户端（余额轮询回退）
}

// NewClient 创建 venue 客户端
func NewClient(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{
		cfg:           cfg,
		pending:       make(map[int64]chan envelope),
		reconnectC:    sigchan.New(1),
		maxReconnects: 10,
		sg:            syncgroup.NewSyncGroup(),
		limiter:       ratelimit.NewTokenBucket(10, 5),
	}
}

// Connect 建立连接并启动读循环、心跳和重连器
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil && !c.closed {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	if err := c.dial(); err != nil {
		return err
	}

	c.sg.Go(func() { c.readLoop(c.ctx) })
	c.sg.Go(func() { c.pingLoop(c.ctx) })
	c.sg.Go(func() { c.reconnector(c.ctx) })
	return nil
}

// dial 拨号（最多重试 3 次，递增延迟）
func (c *Client) dial() error {
	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}

	url := c.cfg.WSURL
	if c.cfg.AppID != "" {
		url += "?app_id=" + c.cfg.AppID
	}

	var conn *websocket.Conn
	var err error
	const maxRetries = 3
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			log.Infof("重试连接 venue WebSocket (第 %d/%d 次)...", i+1, maxRetries)
			time.Sleep(time.Duration(i) * 2 * time.Second)
		}
		conn, _, err = dialer.Dial(url, nil)
		if err == nil {
			break
		}
		log.Warnf("连接 venue WebSocket 失败 (尝试 %d/%d): %v", i+1, maxRetries, err)
	}
	if err != nil {
		return errors.Wrapf(err, "连接 venue WebSocket 失败（已重试 %d 次）", maxRetries)
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()
	return nil
}

// call 发送请求并等待对应 req_id 的响应
func (c *Client) call(ctx context.Context, payload map[string]interface{}) (envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return envelope{}, err
	}

	id := c.reqID.Add(1)
	payload["req_id"] = id

	ch := make(chan envelope, 1)
	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}()

	if err := c.send(payload); err != nil {
		return envelope{}, err
	}

	timeout := c.cfg.CallTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env := <-ch:
		if env.Error != nil {
			return envelope{}, env.Error
		}
		return env, nil
	case <-timer.C:
		return envelope{}, errors.Errorf("venue 请求超时 (req_id=%d, timeout=%s)", id, timeout)
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	}
}

// send 串行化写出
func (c *Client) send(payload interface{}) error {
	c.mu.RLock()
	conn := c.conn
	closed := c.closed
	c.mu.RUnlock()
	if conn == nil || closed {
		return errors.New("venue 连接未建立")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		c.signalReconnect()
		return errors.Wrap(err, "写入 venue 请求失败")
	}
	return nil
}

// readLoop 读循环：按 req_id 投递响应，按 msg_type 分发推送
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		closed := c.closed
		c.mu.RUnlock()
		if conn == nil || closed {
			time.Sleep(200 * time.Millisecond)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warnf("读取 venue 消息失败: %v", err)
			c.signalReconnect()
			time.Sleep(200 * time.Millisecond)
			continue
		}

		var env envelope
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&env); err != nil {
			log.Warnf("解析 venue 消息失败: %v", err)
			continue
		}
		c.dispatch(env)
	}
}

// dispatch 单条入站消息的分发
func (c *Client) dispatch(env envelope) {
	// 先满足等待中的请求
	if env.ReqID != 0 {
		c.pendMu.Lock()
		ch, ok := c.pending[env.ReqID]
		c.pendMu.Unlock()
		if ok {
			select {
			case ch <- env:
			default:
			}
			// 订阅类首包同时也是推送流的第一条，继续向下分发
		}
	}

	switch env.MsgType {
	case "tick":
		if env.Tick == nil {
			return
		}
		tick := tickFromMsg(env.Tick)
		c.handlerMu.RLock()
		handlers := c.tickHandlers
		c.handlerMu.RUnlock()
		for _, h := range handlers {
			h(tick)
		}
	case "proposal_open_contract":
		if env.ProposalOpenContract == nil {
			return
		}
		u := contractUpdateFromMsg(env.ProposalOpenContract)
		c.handlerMu.RLock()
		handlers := c.contractHandlers
		c.handlerMu.RUnlock()
		for _, h := range handlers {
			h(u)
		}
	case "balance":
		if env.Balance == nil {
			return
		}
		u := ports.BalanceUpdate{
			Balance:  moneyFromNumber(env.Balance.Balance),
			Currency: env.Balance.Currency,
		}
		c.handlerMu.RLock()
		handlers := c.balanceHandlers
		c.handlerMu.RUnlock()
		for _, h := range handlers {
			h(u)
		}
	}
}

// pingLoop 心跳循环
func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(map[string]interface{}{"ping": 1}); err != nil {
				log.Debugf("心跳发送失败: %v", err)
			}
		}
	}
}

// signalReconnect 触发重连（非阻塞）
func (c *Client) signalReconnect() {
	c.reconnectC.Emit()
}

// reconnector 重连器：收到信号后重新拨号、鉴权并恢复订阅
func (c *Client) reconnector(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.reconnectC.C():
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.reconnectCount++
		count := c.reconnectCount
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()

		if count > c.maxReconnects {
			log.Errorf("重连次数超过上限 (%d)，放弃", c.maxReconnects)
			return
		}

		delay := time.Duration(count) * 2 * time.Second
		log.Infof("venue 连接断开，%s 后重连 (第 %d/%d 次)", delay, count, c.maxReconnects)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		metrics.Reconnects.Add(1)
		if err := c.dial(); err != nil {
			log.Errorf("重连失败: %v", err)
			c.signalReconnect()
			continue
		}
		if err := c.restoreSession(ctx); err != nil {
			log.Errorf("重连后恢复会话失败: %v", err)
			c.signalReconnect()
			continue
		}
		log.Info("venue 连接已恢复")
	}
}

// restoreSession 重连后重新鉴权并重建订阅
func (c *Client) restoreSession(ctx context.Context) error {
	c.mu.RLock()
	token := c.authToken
	instrument := c.instrument
	c.mu.RUnlock()

	if token != "" {
		if _, err := c.call(ctx, map[string]interface{}{"authorize": token}); err != nil {
			return err
		}
	}
	if instrument != "" {
		if _, err := c.call(ctx, map[string]interface{}{"ticks": instrument, "subscribe": 1}); err != nil {
			return err
		}
	}
	c.handlerMu.RLock()
	hasContracts := len(c.contractHandlers) > 0
	hasBalance := len(c.balanceHandlers) > 0
	c.handlerMu.RUnlock()
	if hasContracts {
		if _, err := c.call(ctx, map[string]interface{}{"proposal_open_contract": 1, "subscribe": 1}); err != nil {
			return err
		}
	}
	if hasBalance {
		if _, err := c.call(ctx, map[string]interface{}{"balance": 1, "subscribe": 1}); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect 关闭连接（尽力而为）
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.sg.Wait()
	return err
}
