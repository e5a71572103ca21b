package shutdown

import (
	"context"
	"sync"

	"github.com/digitbot/godigit/pkg/logger"
)

// Handler 一个关闭动作
type Handler func(ctx context.Context)

// Manager 进程退出时的关闭编排
//
// 会话排空（drain）等关闭动作注册为回调，由进程入口在收到停止
// 信号后统一触发；ctx 的 deadline 约束整体关闭时长，超时后
// 放弃等待直接退出。
type Manager struct {
	mu        sync.Mutex
	callbacks []Handler
}

// NewManager 创建关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, handler)
}

// Shutdown 并发执行所有回调，全部完成或 ctx 超时后返回
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	callbacks := m.callbacks
	m.mu.Unlock()

	if len(callbacks) == 0 {
		return
	}
	logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(len(callbacks))
	for _, cb := range callbacks {
		go func(h Handler) {
			defer wg.Done()
			h(ctx)
		}(cb)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("所有关闭回调已完成")
	case <-ctx.Done():
		logger.Warnf("关闭超时: %v", ctx.Err())
	}
}
