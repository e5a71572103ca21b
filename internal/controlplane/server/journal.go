package server

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/digitbot/godigit/internal/domain"
)

// JournalTrade 落盘的一条交易流水
type JournalTrade struct {
	ContractID string  `json:"contractId"`
	Module     string  `json:"module"`
	Strategy   string  `json:"strategy"`
	Stake      string  `json:"stake"`
	Status     string  `json:"status"`
	Profit     *string `json:"profit,omitempty"`
	Payout     string  `json:"payout"`
	PlacedAt   string  `json:"placedAt"`
	SettledAt  *string `json:"settledAt,omitempty"`
}

// RecordTrade 写入一条终态交易记录（Book.OnFinal 回调接入点）。
// 落盘失败只记日志，绝不反向影响交易路径。
func (s *Server) RecordTrade(rec domain.TradeRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var profit, settledAt sql.NullString
	if rec.Profit != nil {
		profit = sql.NullString{String: rec.Profit.String(), Valid: true}
	}
	if rec.SettledAt != nil {
		settledAt = sql.NullString{String: rec.SettledAt.Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO trades (contract_id,module,strategy,stake,status,profit,payout,placed_at,settled_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(contract_id) DO UPDATE SET
  status=excluded.status, profit=excluded.profit, payout=excluded.payout, settled_at=excluded.settled_at
`, rec.ContractID, rec.Module, rec.Strategy, rec.Stake.String(), string(rec.Status),
		profit, rec.Payout.String(), rec.PlacedAt.Format(time.RFC3339Nano), settledAt)
	if err != nil {
		log.Warnf("交易流水落盘失败 %s: %v", rec.ContractID, err)
		return
	}
	s.trades.Clear()
}

func (s *Server) listTrades(ctx context.Context, limit int) ([]JournalTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT contract_id,module,strategy,stake,status,profit,payout,placed_at,settled_at
FROM trades ORDER BY placed_at DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	out := make([]JournalTrade, 0, limit)
	for rows.Next() {
		var t JournalTrade
		var profit, settledAt sql.NullString
		if err := rows.Scan(&t.ContractID, &t.Module, &t.Strategy, &t.Stake, &t.Status,
			&profit, &t.Payout, &t.PlacedAt, &settledAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		if profit.Valid {
			t.Profit = &profit.String
		}
		if settledAt.Valid {
			t.SettledAt = &settledAt.String
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
