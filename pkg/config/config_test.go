package config

import (
	"os"
	"path/filepath"
	"testing"

	_ "github.com/digitbot/godigit/internal/strategies/all"
	"github.com/digitbot/godigit/pkg/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
venue:
  wsUrl: wss://example.test/ws
  appId: "1089"
session:
  instrument: R_100
  baseStake: "0.35"
  takeProfit: "5.00"
  stopLoss: "10.00"
  martingale:
    enabled: true
    multiplier: 2.2
    maxStep: 4
strategy:
  module: digitdiff
  params:
    digit: 7
    mode: differ
    tradeIntervalTicks: 3
`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LogLevel != "info" {
		t.Fatalf("默认日志级别应为 info，实际 %s", cfg.LogLevel)
	}
	if cfg.Session.Currency != "USD" || cfg.Session.DurationTicks != 1 {
		t.Fatalf("会话默认值不对: %+v", cfg.Session)
	}
	if cfg.Venue.TokenEnv != "GODIGIT_API_TOKEN" {
		t.Fatalf("tokenEnv 默认值不对: %s", cfg.Venue.TokenEnv)
	}
	if got := cfg.BaseStake().String(); got != "0.35" {
		t.Fatalf("baseStake 期望 0.35，实际 %s", got)
	}

	rc := cfg.RiskConfig()
	if rc.TakeProfit.String() != "5.00" || rc.StopLoss.String() != "10.00" {
		t.Fatalf("风控配置不对: tp=%s sl=%s", rc.TakeProfit, rc.StopLoss)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"缺 wsUrl", `
session:
  instrument: R_100
strategy:
  module: digitdiff
`},
		{"缺 instrument", `
venue:
  wsUrl: wss://example.test/ws
strategy:
  module: digitdiff
`},
		{"缺 module", `
venue:
  wsUrl: wss://example.test/ws
session:
  instrument: R_100
`},
		{"stake 为零", `
venue:
  wsUrl: wss://example.test/ws
session:
  instrument: R_100
  baseStake: "0"
strategy:
  module: digitdiff
`},
		{"durationTicks 越界", `
venue:
  wsUrl: wss://example.test/ws
session:
  instrument: R_100
  durationTicks: 11
strategy:
  module: digitdiff
`},
		{"止损为负", `
venue:
  wsUrl: wss://example.test/ws
session:
  instrument: R_100
  stopLoss: "-1.00"
strategy:
  module: digitdiff
`},
		{"倍数越界", `
venue:
  wsUrl: wss://example.test/ws
session:
  instrument: R_100
  martingale:
    enabled: true
    multiplier: 11.0
strategy:
  module: digitdiff
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Fatal("期望加载失败")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GODIGIT_INSTRUMENT", "R_50")
	t.Setenv("GODIGIT_BASE_STAKE", "2.50")
	t.Setenv("GODIGIT_MODULE", "parity")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.Instrument != "R_50" {
		t.Fatalf("环境变量应覆盖 instrument，实际 %s", cfg.Session.Instrument)
	}
	if cfg.Session.BaseStake != "2.50" {
		t.Fatalf("环境变量应覆盖 baseStake，实际 %s", cfg.Session.BaseStake)
	}
	if cfg.Strategy.Module != "parity" {
		t.Fatalf("环境变量应覆盖 module，实际 %s", cfg.Strategy.Module)
	}
}

// params 经 JSON 中转进入模块结构体
func TestConfigureModule(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatal(err)
	}

	module, err := engine.NewModule(cfg.Strategy.Module)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.ConfigureModule(module); err != nil {
		t.Fatal(err)
	}
	if err := module.Defaults(); err != nil {
		t.Fatal(err)
	}
	if err := module.Validate(); err != nil {
		t.Fatalf("配置后的模块应通过校验: %v", err)
	}
}
