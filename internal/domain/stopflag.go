package domain

import (
	"sync/atomic"
)

// RunState 会话运行状态（三态）
type RunState int32

const (
	RunStateRunning       RunState = iota // 正常运行
	RunStateStopRequested                 // 已请求停止：不再调度新交易，等待在途结算
	RunStateStopped                       // 已停止
)

// String 状态名
func (s RunState) String() string {
	switch s {
	case RunStateRunning:
		return "running"
	case RunStateStopRequested:
		return "stop_requested"
	case RunStateStopped:
		return "stopped"
	}
	return "unknown"
}

// StopFlag 跨任务共享的停止标记（单写多读）
//
// 原子读写：置位后 tick 处理器在下一次调用就能观察到，
// 不允许出现无同步的裸 bool 读。交易尝试任务在挂起点
// （quote 往返）前后都必须重新检查。
type StopFlag struct {
	state atomic.Int32
}

// NewStopFlag 创建处于 running 状态的停止标记
func NewStopFlag() *StopFlag {
	return &StopFlag{}
}

// State 读取当前状态
func (f *StopFlag) State() RunState {
	return RunState(f.state.Load())
}

// ShouldTrade 是否允许调度新交易（仅 running）
func (f *StopFlag) ShouldTrade() bool {
	return f.State() == RunStateRunning
}

// RequestStop 请求停止（running -> stop_requested，幂等）
// 返回 true 表示本次调用完成了状态迁移
func (f *StopFlag) RequestStop() bool {
	return f.state.CompareAndSwap(int32(RunStateRunning), int32(RunStateStopRequested))
}

// MarkStopped 标记为已停止（任何状态均可进入，幂等）
func (f *StopFlag) MarkStopped() {
	f.state.Store(int32(RunStateStopped))
}
