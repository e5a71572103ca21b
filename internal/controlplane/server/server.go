package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/digitbot/godigit/internal/broadcast"
	"github.com/digitbot/godigit/internal/session"
	"github.com/digitbot/godigit/pkg/cache"
)

var log = logrus.WithField("component", "controlplane")

type Config struct {
	Addr   string
	DBPath string
}

// Server 控制面：会话状态查询、停止指令、交易流水落盘。
// 观察引擎而不参与交易路径；journal 写入走 Book 的终态回调。
type Server struct {
	cfg      Config
	db       *sql.DB
	manager  *session.Manager
	registry *broadcast.Registry

	// 流水查询的短 TTL 缓存：按 limit 分键，新流水落盘时整体失效
	trades *cache.TTL[int, []JournalTrade]

	httpSrv *http.Server
}

func New(cfg Config, manager *session.Manager, registry *broadcast.Registry) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	s := &Server{
		cfg:      cfg,
		db:       db,
		manager:  manager,
		registry: registry,
		trades:   cache.NewTTL[int, []JournalTrade](2 * time.Second),
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// StartAsync 启动 HTTP 服务（独立 goroutine）
func (s *Server) StartAsync() {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("控制面监听 %s", s.cfg.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("控制面服务异常退出: %v", err)
		}
	}()
}

func (s *Server) Close(ctx context.Context) error {
	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(ctx)
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/trades", s.handleTrades)
	api.GET("/events", s.handleEvents)
	api.POST("/stop", s.handleStop)

	return r
}
