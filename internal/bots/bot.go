// Package bots defines the abstract decision contract every bot agent
// implements (spec.md §4.5), the latency gate, and the fixed roster
// dispatch order. Concrete strategy logic beyond what's needed to
// exercise the contract and drive the matching/risk/ledger components in
// integration is explicitly out of scope (spec.md §1).
package bots

import (
	"math/rand"

	"talos/internal/book"
	"talos/internal/matching"
)

// Quote is a GTC order a bot wants resting.
type Quote struct {
	Side      book.Side
	Price     int64
	Qty       int64
	ExpiresAt int64
}

// IOCOrder is a market-style aggressive order a bot wants crossed
// immediately; the simulator prices it to cross (opposite best ± N
// ticks) since the bot only expresses side and size.
type IOCOrder struct {
	Side book.Side
	Qty  int64
}

// Decision is what a bot returns from one call to Decide.
type Decision struct {
	Cancels []uint64
	Quotes  []Quote
	IOC     []IOCOrder
}

// View is everything a bot may read to make a decision: bounded book
// depth, the recent tape, the session's fair-value schedule output, the
// bot's own exposure, and its own resting orders (sourced from the
// book's by_trader index so a bot can target its own quotes for
// replacement without the simulator handing back order ids out of
// band).
type View struct {
	Now           int64
	Bids          []book.LevelDepth
	Asks          []book.LevelDepth
	Tape          []matching.TradePrint
	FairValue     int64
	Uncertainty   float64
	Volatility    float64
	Position      int64
	RealizedPnL   int64
	UnrealizedPnL int64
	Toxicity      float64
	OwnOrders     []book.OwnOrder
}

// Bot is the opaque decision function contract. Implementations hold no
// reference to the book or ledger — everything they need arrives in
// View.
type Bot interface {
	TraderID() string
	Decide(view View, rng *rand.Rand) Decision
}
