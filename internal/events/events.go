package events

import (
	"time"
)

// Kind 事件类型
type Kind string

const (
	KindLog                 Kind = "log"                  // 结构化日志事件
	KindStatsSnapshot       Kind = "stats-snapshot"       // 会话统计快照
	KindLifecycleTransition Kind = "lifecycle-transition" // 生命周期状态迁移
)

// Event 发往 Event Sink 的事件（fire-and-forget）
type Event struct {
	Kind      Kind        `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// LogPayload 日志事件负载
type LogPayload struct {
	Level   string `json:"level"`
	Module  string `json:"module,omitempty"` // 模块标签（可选）
	Message string `json:"message"`
}

// StatsSnapshotPayload 统计快照负载
// 金额字段使用字符串（精确十进制），避免 JSON 浮点丢精度
type StatsSnapshotPayload struct {
	TickCount   int64  `json:"tickCount"`
	TradeCount  int    `json:"tradeCount"`
	WinCount    int    `json:"winCount"`
	LossCount   int    `json:"lossCount"`
	TotalProfit string `json:"totalProfit"`
	Balance     string `json:"balance,omitempty"`
	Stake       string `json:"stake,omitempty"`
	Step        int    `json:"step,omitempty"`
	OpenCount   int    `json:"openCount"`
}

// LifecycleTransitionPayload 生命周期迁移负载
type LifecycleTransitionPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// NewLog 构造日志事件
func NewLog(level, module, message string) Event {
	return Event{
		Kind:      KindLog,
		Timestamp: time.Now(),
		Payload:   LogPayload{Level: level, Module: module, Message: message},
	}
}

// NewTransition 构造生命周期迁移事件
func NewTransition(from, to, reason string) Event {
	return Event{
		Kind:      KindLifecycleTransition,
		Timestamp: time.Now(),
		Payload:   LifecycleTransitionPayload{From: from, To: to, Reason: reason},
	}
}

// NewStatsSnapshot 构造统计快照事件
func NewStatsSnapshot(p StatsSnapshotPayload) Event {
	return Event{
		Kind:      KindStatsSnapshot,
		Timestamp: time.Now(),
		Payload:   p,
	}
}
