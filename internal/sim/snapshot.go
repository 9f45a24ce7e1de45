package sim

import (
	"talos/internal/book"
	"talos/internal/matching"
)

// TraderView is one trader's visible slice of a MarketSnapshot.
type TraderView struct {
	TraderID      string  `json:"trader_id"`
	Position      int64   `json:"position"`
	RealizedPnL   int64   `json:"realized_pnl"`
	UnrealizedPnL int64   `json:"unrealized_pnl"`
	Toxicity      float64 `json:"toxicity"`
	VAR           float64 `json:"var"`
}

// MarketSnapshot is the immutable per-tick view emitted to subscribers
// and the journal (spec.md §3).
type MarketSnapshot struct {
	Tick       int64                  `json:"tick"`
	Bids       []book.LevelDepth      `json:"bids"`
	Asks       []book.LevelDepth      `json:"asks"`
	BestBid    int64                  `json:"best_bid,omitempty"`
	HasBestBid bool                   `json:"has_best_bid"`
	BestAsk    int64                  `json:"best_ask,omitempty"`
	HasBestAsk bool                   `json:"has_best_ask"`
	Mid        int64                  `json:"mid"`
	LastTrade  *matching.TradePrint   `json:"last_trade,omitempty"`
	FairValue  int64                  `json:"fair_value"`
	Volatility float64                `json:"volatility"`
	Traders    []TraderView           `json:"traders"`
	Fatal      string                 `json:"fatal,omitempty"`
}
