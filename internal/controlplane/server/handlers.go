package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/digitbot/godigit/internal/session"
)

type moduleStatsDTO struct {
	TradeCount int    `json:"tradeCount"`
	WinCount   int    `json:"winCount"`
	LossCount  int    `json:"lossCount"`
	Profit     string `json:"profit"`
}

type statusDTO struct {
	SessionID   string                    `json:"sessionId,omitempty"`
	Phase       string                    `json:"phase"`
	AccountID   string                    `json:"accountId,omitempty"`
	Currency    string                    `json:"currency,omitempty"`
	Balance     string                    `json:"balance"`
	TickCount   int64                     `json:"tickCount"`
	TradeCount  int                       `json:"tradeCount"`
	WinCount    int                       `json:"winCount"`
	LossCount   int                       `json:"lossCount"`
	TotalProfit string                    `json:"totalProfit"`
	OpenCount   int                       `json:"openCount"`
	Modules     map[string]moduleStatsDTO `json:"modules,omitempty"`
	StartedAt   string                    `json:"startedAt,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	ctrl := s.manager.Current()
	if ctrl == nil {
		c.JSON(http.StatusOK, statusDTO{Phase: "idle", Balance: "0.00", TotalProfit: "0.00"})
		return
	}
	st := ctrl.Status()

	mods := make(map[string]moduleStatsDTO, len(st.Book.Modules))
	for name, ms := range st.Book.Modules {
		mods[name] = moduleStatsDTO{
			TradeCount: ms.TradeCount,
			WinCount:   ms.WinCount,
			LossCount:  ms.LossCount,
			Profit:     ms.Profit.String(),
		}
	}
	dto := statusDTO{
		SessionID:   st.ID,
		Phase:       string(st.Phase),
		AccountID:   st.AccountID,
		Currency:    st.Currency,
		Balance:     st.Balance.String(),
		TickCount:   st.TickCount,
		TradeCount:  st.Book.TradeCount,
		WinCount:    st.Book.WinCount,
		LossCount:   st.Book.LossCount,
		TotalProfit: st.Book.TotalProfit.String(),
		OpenCount:   st.Book.OpenCount,
		Modules:     mods,
	}
	if !st.StartedAt.IsZero() {
		dto.StartedAt = st.StartedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	c.JSON(http.StatusOK, dto)
}

func (s *Server) handleTrades(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit 必须在 1-1000 之间"})
			return
		}
		limit = n
	}
	if cached, ok := s.trades.Get(limit); ok {
		c.JSON(http.StatusOK, gin.H{"trades": cached})
		return
	}
	trades, err := s.listTrades(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("查询交易流水失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询交易流水失败"})
		return
	}
	s.trades.Set(limit, trades)
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.registry.Recent()})
}

// handleStop 请求停止当前会话。立即返回，排空在后台进行
// （排空最长 35 秒，不适合拴在 HTTP 请求上）。
func (s *Server) handleStop(c *gin.Context) {
	ctrl := s.manager.Current()
	if ctrl == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "没有活动会话"})
		return
	}
	select {
	case <-ctrl.Done():
		c.JSON(http.StatusConflict, gin.H{"error": "会话已结束"})
		return
	default:
	}
	ctrl.Stop()
	c.JSON(http.StatusAccepted, gin.H{
		"sessionId": ctrl.ID(),
		"phase":     string(session.PhaseDraining),
	})
}
