package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/broadcast"
	"github.com/digitbot/godigit/internal/controlplane/server"
	"github.com/digitbot/godigit/internal/infrastructure/venue"
	"github.com/digitbot/godigit/internal/metrics"
	"github.com/digitbot/godigit/internal/ports"
	"github.com/digitbot/godigit/internal/session"
	"github.com/digitbot/godigit/pkg/config"
	"github.com/digitbot/godigit/pkg/logger"
	"github.com/digitbot/godigit/pkg/secretstore"
	"github.com/digitbot/godigit/pkg/shutdown"

	// 导入策略集合以触发 init() 注册
	_ "github.com/digitbot/godigit/internal/strategies/all"
)

func main() {
	configPath := flag.String("config", "yml/config.yaml", "配置文件路径")
	moduleOverride := flag.String("module", "", "覆盖配置中的策略模块")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *moduleOverride != "" {
		cfg.Strategy.Module = *moduleOverride
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	token, err := secretstore.ResolveAPIToken(cfg.SecretStorePath, cfg.Venue.TokenEnv)
	if err != nil {
		logrus.Errorf("获取 API token 失败: %v", err)
		os.Exit(1)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if cfg.Metrics.Enabled {
		if _, err := metrics.StartAsync(rootCtx, cfg.Metrics.Addr); err != nil {
			logrus.Errorf("metrics/pprof 启动失败: %v", err)
		} else {
			logrus.Infof("📊 metrics/pprof 启用: listen=%s (expvar:/debug/vars, pprof:/debug/pprof)", cfg.Metrics.Addr)
		}
	}

	registry := broadcast.NewRegistry(256)

	newGateway := func(ctx context.Context) (ports.Gateway, error) {
		client := venue.NewClient(venue.Config{
			WSURL:   cfg.Venue.WSURL,
			RestURL: cfg.Venue.RestURL,
			AppID:   cfg.Venue.AppID,
		})
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
	manager := session.NewManager(newGateway, registry)

	var cp *server.Server
	if cfg.ControlPlane.Enabled {
		cp, err = server.New(server.Config{
			Addr:   cfg.ControlPlane.Addr,
			DBPath: cfg.ControlPlane.DBPath,
		}, manager, registry)
		if err != nil {
			logrus.Errorf("控制面初始化失败: %v", err)
			os.Exit(1)
		}
		cp.StartAsync()
	}

	sessionCfg := session.Config{
		Token:         token,
		Instrument:    cfg.Session.Instrument,
		Currency:      cfg.Session.Currency,
		DurationTicks: cfg.Session.DurationTicks,
		BaseStake:     cfg.BaseStake(),
		Staking:       cfg.Session.Martingale,
		Risk:          cfg.RiskConfig(),
	}
	ctrl, err := manager.Start(rootCtx, sessionCfg, cfg.Strategy.Module, cfg.ConfigureModule)
	if err != nil {
		logrus.Errorf("启动会话失败: %v", err)
		os.Exit(1)
	}
	if cp != nil {
		ctrl.Book().OnFinal(cp.RecordTrade)
	}

	logrus.Infof("🚀 会话 %s 已启动: instrument=%s module=%s，按 Ctrl+C 停止",
		ctrl.ID(), cfg.Session.Instrument, cfg.Strategy.Module)

	sd := shutdown.NewManager()
	sd.OnShutdown(func(ctx context.Context) {
		// 先排空会话再关控制面：结算落盘依赖控制面的数据库
		if err := manager.Stop(ctx); err != nil {
			logrus.Errorf("停止会话失败: %v", err)
		}
		if cp != nil {
			if err := cp.Close(ctx); err != nil {
				logrus.Errorf("关闭控制面失败: %v", err)
			}
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logrus.Info("收到停止信号，正在关闭...")
	case <-ctrl.Done():
		logrus.Info("会话已结束")
	}

	// 排空最长 35 秒，再留出断开连接的余量
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer shutdownCancel()

	sd.Shutdown(shutdownCtx)
	rootCancel()
	logrus.Info("✅ 已停止")
}
