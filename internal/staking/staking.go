package staking

import (
	"fmt"

	"github.com/digitbot/godigit/internal/domain"
)

// 马丁格尔参数的合法区间。越界配置在会话启动前拒绝，
// 交易路径上不再做校验。
const (
	MinMultiplier = 1.1
	MaxMultiplier = 10.0
	MinMaxStep    = 1
	MaxMaxStep    = 10
)

// Config 加注策略配置
type Config struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`       // 是否启用马丁格尔
	Multiplier float64 `yaml:"multiplier" json:"multiplier"` // 输后加注倍数
	MaxStep    int     `yaml:"maxStep" json:"maxStep"`       // 最大加注级数
}

// ApplyDefaults 应用默认值
func (c *Config) ApplyDefaults() {
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.MaxStep == 0 {
		c.MaxStep = 5
	}
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Multiplier < MinMultiplier || c.Multiplier > MaxMultiplier {
		return fmt.Errorf("martingale multiplier必须在[%.1f, %.1f]范围内，当前值: %.2f",
			MinMultiplier, MaxMultiplier, c.Multiplier)
	}
	if c.MaxStep < MinMaxStep || c.MaxStep > MaxMaxStep {
		return fmt.Errorf("martingale maxStep必须在[%d, %d]范围内，当前值: %d",
			MinMaxStep, MaxMaxStep, c.MaxStep)
	}
	return nil
}

// Next 计算下一笔交易的 stake 和马丁格尔级数（纯函数）
//
// 赢：stake 回到 base，级数清零。
// 输：启用马丁格尔且级数未达上限时级数 +1、stake = 输掉的 stake × multiplier；
// 否则回到 base、级数清零（达到上限后的下一次输不再升级）。
func Next(current, base domain.Money, won bool, cfg Config, step int) (domain.Money, int) {
	if won {
		return base, 0
	}
	if cfg.Enabled && step < cfg.MaxStep {
		return current.MulFloat(cfg.Multiplier), step + 1
	}
	return base, 0
}
