package server

import (
	"context"
	"fmt"
	"time"
)

func (s *Server) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS trades (
  contract_id TEXT PRIMARY KEY,
  module TEXT NOT NULL,
  strategy TEXT NOT NULL,
  stake TEXT NOT NULL,
  status TEXT NOT NULL,
  profit TEXT,
  payout TEXT,
  placed_at TEXT NOT NULL,
  settled_at TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_placed_at ON trades(placed_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_module ON trades(module);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
