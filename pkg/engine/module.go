package engine

import (
	"context"

	"github.com/digitbot/godigit/internal/book"
	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/internal/staking"
	"github.com/digitbot/godigit/pkg/syncgroup"
)

// Environment 模块运行环境：共享协作者按引用注入，不走包级全局
type Environment struct {
	Instrument    string
	Currency      string
	DurationTicks int
	BaseStake     domain.Money
	Staking       staking.Config

	Book   *book.Book
	Stop   *domain.StopFlag
	Trader ports.Trader
	Sink   ports.EventSink

	// Tasks 交易尝试任务组：active 状态下投递，draining 只等待不取消
	Tasks *syncgroup.SyncGroup
}

// Module 策略模块（密封变体集合的公共接口）
//
// OnTick / OnSettlement 由会话控制器串行调用；
// 模块自己的 stake/加注状态只被自己修改（单写者约束）。
type Module interface {
	// ID 模块标识（注册表内唯一）
	ID() string

	// Defaults 应用默认配置
	Defaults() error

	// Validate 验证配置（会话启动前调用，交易路径不再校验）
	Validate() error

	// Bind 注入运行环境（Validate 之后、第一个 tick 之前调用一次）
	Bind(env *Environment) error

	// OnTick 处理一个 tick。必须短小、不阻塞：
	// 耗时的 quote→buy 往返交给 Environment.Tasks。
	OnTick(ctx context.Context, tick domain.Tick)

	// OnSettlement 处理一次已入账的结算
	OnSettlement(ctx context.Context, res book.SettleResult)
}
