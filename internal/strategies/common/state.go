package common

import (
	"sync"

	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/staking"
)

// State 单模块的 stake/加注状态
//
// 单写者约束：只有所属模块在自己的 tick/结算回调里修改，
// 其他模块和任务永远不碰。锁只用来对抗同模块内
// “tick 回调 vs 在途交易任务回滚”的并发。
type State struct {
	mu sync.Mutex

	base    domain.Money
	stake   domain.Money
	step    int
	staking staking.Config

	attempts int // 已调度的交易尝试数（max-trade-count 口径）
}

// NewState 创建初始状态（stake = base，级数 0）
func NewState(base domain.Money, cfg staking.Config) *State {
	return &State{
		base:    base,
		stake:   base,
		staking: cfg,
	}
}

// Stake 当前 stake
func (s *State) Stake() domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stake
}

// Step 当前马丁格尔级数
func (s *State) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Attempts 已调度的交易尝试数
func (s *State) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// ReserveAttempt 登记一次交易尝试（调度时调用）
func (s *State) ReserveAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
}

// RollbackAttempt 回滚一次失败的交易尝试：
// quote/buy 出错时撤销计数，stake/级数保持尝试前的值不动。
func (s *State) RollbackAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts > 0 {
		s.attempts--
	}
}

// ApplyOutcome 应用一次结算结果，返回下一笔的 stake 和级数
func (s *State) ApplyOutcome(won bool) (domain.Money, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stake, s.step = staking.Next(s.stake, s.base, won, s.staking, s.step)
	return s.stake, s.step
}

// ResetToBase 重置到 base（策略切换时调用：切换不得继承
// 被放弃策略的马丁格尔欠账）
func (s *State) ResetToBase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stake = s.base
	s.step = 0
}
