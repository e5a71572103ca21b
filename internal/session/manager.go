package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/pkg/engine"
)

// Manager 会话管理器：同一进程最多持有一个活动会话。
// 显式持有并按引用传递，不做包级可变全局。
type Manager struct {
	mu      sync.Mutex
	current *Controller

	newGateway func(ctx context.Context) (ports.Gateway, error)
	sink       ports.EventSink
}

// NewManager 创建管理器。newGateway 在每次启动会话时建立新连接。
func NewManager(newGateway func(ctx context.Context) (ports.Gateway, error), sink ports.EventSink) *Manager {
	if sink == nil {
		sink = ports.NopSink{}
	}
	return &Manager{newGateway: newGateway, sink: sink}
}

// Start 启动新会话。已有活动会话时返回错误（先 Stop）。
// Run 在独立 goroutine 中执行，返回的 Controller 立即可查询状态。
func (m *Manager) Start(ctx context.Context, cfg Config, moduleID string, configure func(engine.Module) error) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		select {
		case <-m.current.Done():
			m.current = nil
		default:
			return nil, fmt.Errorf("已有活动会话 %s，请先停止", m.current.ID())
		}
	}

	module, err := engine.NewModule(moduleID)
	if err != nil {
		return nil, err
	}
	if configure != nil {
		if err := configure(module); err != nil {
			return nil, fmt.Errorf("策略配置解析失败: %w", err)
		}
	}
	if err := module.Defaults(); err != nil {
		return nil, err
	}
	if err := module.Validate(); err != nil {
		return nil, fmt.Errorf("策略配置无效: %w", err)
	}

	gw, err := m.newGateway(ctx)
	if err != nil {
		return nil, fmt.Errorf("建立场馆连接失败: %w", err)
	}

	ctrl := New(cfg, gw, m.sink, module)
	m.current = ctrl
	go func() {
		if err := ctrl.Run(ctx); err != nil {
			log.Errorf("会话 %s 结束于错误: %v", ctrl.ID(), err)
		}
	}()
	return ctrl, nil
}

// Current 返回当前会话（可能为 nil）
func (m *Manager) Current() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Stop 请求停止当前会话并等待其结束
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	ctrl := m.current
	m.mu.Unlock()
	if ctrl == nil {
		return nil
	}
	ctrl.Stop()
	select {
	case <-ctrl.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
