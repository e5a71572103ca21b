package metrics

import "expvar"

var (
	TicksReceived  = expvar.NewInt("ticks_received")
	TradesPlaced   = expvar.NewInt("trades_placed")
	TradesWon      = expvar.NewInt("trades_won")
	TradesLost     = expvar.NewInt("trades_lost")
	TradeErrors    = expvar.NewInt("trade_errors")
	Settlements    = expvar.NewInt("settlements")
	ForcedUnknowns = expvar.NewInt("forced_unsettled")
	Reconnects     = expvar.NewInt("ws_reconnects")
)
