package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/digitbot/godigit/internal/domain"
	"github.com/digitbot/godigit/internal/risk"
	"github.com/digitbot/godigit/internal/staking"
	"github.com/digitbot/godigit/pkg/engine"
)

// VenueConfig 场馆连接配置
type VenueConfig struct {
	WSURL    string `yaml:"wsUrl" json:"wsUrl"`
	RestURL  string `yaml:"restUrl" json:"restUrl"`
	AppID    string `yaml:"appId" json:"appId"`
	TokenEnv string `yaml:"tokenEnv" json:"tokenEnv"` // API token 的环境变量名（token 本身不写入配置文件）
}

// SessionConfig 会话交易参数
type SessionConfig struct {
	Instrument    string         `yaml:"instrument" json:"instrument"`
	Currency      string         `yaml:"currency" json:"currency"`
	DurationTicks int            `yaml:"durationTicks" json:"durationTicks"`
	BaseStake     string         `yaml:"baseStake" json:"baseStake"` // 精确十进制字符串，如 "1.00"
	TakeProfit    string         `yaml:"takeProfit" json:"takeProfit"`
	StopLoss      string         `yaml:"stopLoss" json:"stopLoss"`
	Martingale    staking.Config `yaml:"martingale" json:"martingale"`
}

// StrategyConfig 策略模块选择及其参数
// params 原样保留，启动会话时再反序列化进具体模块
type StrategyConfig struct {
	Module string                 `yaml:"module" json:"module"`
	Params map[string]interface{} `yaml:"params" json:"params"`
}

// MetricsConfig metrics/debug 服务配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// ControlPlaneConfig 控制面配置
type ControlPlaneConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	DBPath  string `yaml:"dbPath" json:"dbPath"`
}

// Config 应用配置
type Config struct {
	LogLevel        string `yaml:"logLevel" json:"logLevel"`
	LogFile         string `yaml:"logFile" json:"logFile"`
	SecretStorePath string `yaml:"secretStorePath" json:"secretStorePath"`

	Venue        VenueConfig        `yaml:"venue" json:"venue"`
	Session      SessionConfig      `yaml:"session" json:"session"`
	Strategy     StrategyConfig     `yaml:"strategy" json:"strategy"`
	Metrics      MetricsConfig      `yaml:"metrics" json:"metrics"`
	ControlPlane ControlPlaneConfig `yaml:"controlPlane" json:"controlPlane"`
}

// Load 从 YAML 文件加载配置并套用默认值与环境变量覆盖
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 环境变量覆盖（部署时免改配置文件）
func (c *Config) applyEnv() {
	if v := os.Getenv("GODIGIT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GODIGIT_WS_URL"); v != "" {
		c.Venue.WSURL = v
	}
	if v := os.Getenv("GODIGIT_REST_URL"); v != "" {
		c.Venue.RestURL = v
	}
	if v := os.Getenv("GODIGIT_APP_ID"); v != "" {
		c.Venue.AppID = v
	}
	if v := os.Getenv("GODIGIT_INSTRUMENT"); v != "" {
		c.Session.Instrument = v
	}
	if v := os.Getenv("GODIGIT_BASE_STAKE"); v != "" {
		c.Session.BaseStake = v
	}
	if v := os.Getenv("GODIGIT_MODULE"); v != "" {
		c.Strategy.Module = v
	}
	if v := os.Getenv("GODIGIT_DURATION_TICKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.DurationTicks = n
		}
	}
}

// ApplyDefaults 应用默认配置
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Venue.TokenEnv == "" {
		c.Venue.TokenEnv = "GODIGIT_API_TOKEN"
	}
	if c.SecretStorePath == "" {
		c.SecretStorePath = "data/secrets"
	}
	if c.Session.Currency == "" {
		c.Session.Currency = "USD"
	}
	if c.Session.DurationTicks == 0 {
		c.Session.DurationTicks = 1
	}
	if c.Session.BaseStake == "" {
		c.Session.BaseStake = "1.00"
	}
	c.Session.Martingale.ApplyDefaults()
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = "127.0.0.1:6060"
	}
	if c.ControlPlane.Addr == "" {
		c.ControlPlane.Addr = "127.0.0.1:8080"
	}
	if c.ControlPlane.DBPath == "" {
		c.ControlPlane.DBPath = "data/godigit.db"
	}
}

// Validate 验证配置。配置错误在会话启动前全部拒绝，
// 永远不在交易路径上浮现。
func (c *Config) Validate() error {
	if c.Venue.WSURL == "" {
		return fmt.Errorf("venue.wsUrl 不能为空")
	}
	if c.Session.Instrument == "" {
		return fmt.Errorf("session.instrument 不能为空")
	}
	if c.Session.DurationTicks < 1 || c.Session.DurationTicks > 10 {
		return fmt.Errorf("session.durationTicks 必须在 [1, 10] 范围内，当前值: %d", c.Session.DurationTicks)
	}
	stake, err := domain.MoneyFromString(c.Session.BaseStake)
	if err != nil {
		return fmt.Errorf("session.baseStake 无效: %w", err)
	}
	if !stake.IsPositive() {
		return fmt.Errorf("session.baseStake 必须大于 0，当前值: %s", c.Session.BaseStake)
	}
	if _, err := c.riskMoney(c.Session.TakeProfit, "takeProfit"); err != nil {
		return err
	}
	if _, err := c.riskMoney(c.Session.StopLoss, "stopLoss"); err != nil {
		return err
	}
	if err := c.Session.Martingale.Validate(); err != nil {
		return err
	}
	if c.Strategy.Module == "" {
		return fmt.Errorf("strategy.module 不能为空（可用: %v）", engine.RegisteredIDs())
	}
	return nil
}

func (c *Config) riskMoney(raw, name string) (domain.Money, error) {
	if raw == "" {
		return domain.Zero, nil
	}
	m, err := domain.MoneyFromString(raw)
	if err != nil {
		return domain.Zero, fmt.Errorf("session.%s 无效: %w", name, err)
	}
	if m.IsNegative() {
		return domain.Zero, fmt.Errorf("session.%s 不能为负数，当前值: %s", name, raw)
	}
	return m, nil
}

// BaseStake 解析后的基础 stake（Validate 通过后调用）
func (c *Config) BaseStake() domain.Money {
	return domain.MustMoney(c.Session.BaseStake)
}

// RiskConfig 解析后的风控配置
func (c *Config) RiskConfig() risk.Config {
	tp, _ := c.riskMoney(c.Session.TakeProfit, "takeProfit")
	sl, _ := c.riskMoney(c.Session.StopLoss, "stopLoss")
	return risk.Config{TakeProfit: tp, StopLoss: sl}
}

// ConfigureModule 把 strategy.params 反序列化进模块实例
// （JSON 中转，与模块结构体的 json 标签对齐）
func (c *Config) ConfigureModule(module engine.Module) error {
	if len(c.Strategy.Params) == 0 {
		return nil
	}
	data, err := json.Marshal(c.Strategy.Params)
	if err != nil {
		return fmt.Errorf("序列化策略参数失败: %w", err)
	}
	if err := json.Unmarshal(data, module); err != nil {
		return fmt.Errorf("反序列化策略参数失败: %w", err)
	}
	return nil
}
