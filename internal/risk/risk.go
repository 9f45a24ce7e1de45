// Package risk implements the exchange's pre-trade gating and post-tick
// margin enforcement (spec.md §4.4). Checks run in a fixed order and the
// first failure wins, mirroring the fixed-order check list style of
// rishavpaul-system-design/order-matching-engine's internal/risk
// checker (a pack reference, not this repo's teacher).
package risk

import (
	"math"

	"github.com/rs/zerolog/log"

	"talos/internal/book"
	"talos/internal/ledger"
)

// RejectKind enumerates every reason a pre-trade check or a post-tick
// margin call can produce (spec.md §4.4/§7).
type RejectKind int

const (
	SizeLimitExceeded RejectKind = iota
	PositionLimitExceeded
	ConcentrationTooHigh
	LossCircuitBreakerTripped
	MarginCallForced
)

func (k RejectKind) String() string {
	switch k {
	case SizeLimitExceeded:
		return "SizeLimitExceeded"
	case PositionLimitExceeded:
		return "PositionLimitExceeded"
	case ConcentrationTooHigh:
		return "ConcentrationTooHigh"
	case LossCircuitBreakerTripped:
		return "LossCircuitBreakerTripped"
	case MarginCallForced:
		return "MarginCallForced"
	default:
		return "Unknown"
	}
}

// RejectError wraps a RejectKind as an error value so CheckOrder can
// return it through the normal error path.
type RejectError struct {
	Kind RejectKind
}

func (e RejectError) Error() string { return e.Kind.String() }

// Config holds the risk-relevant subset of the session config
// (spec.md §6).
type Config struct {
	MaxOrderQty        int64
	PositionLimit      int64
	ConcentrationFrac  float64
	LossLimit          int64
	MarginThreshold    int64
	MarginPenaltyTicks int64
	VARCoefficient     float64
}

// Manager evaluates pre-trade checks and the post-tick margin call.
type Manager struct {
	cfg Config
}

// New constructs a risk manager.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// CheckOrder runs the four pre-trade checks in spec-mandated order,
// against a trader that would result from a full fill of order, and the
// current book for the concentration check. mid is used to mark the
// trader's unrealized P&L for the loss circuit breaker.
func (m *Manager) CheckOrder(trader *ledger.Trader, order *book.Order, b *book.OrderBook, mid int64) error {
	if order.OriginalQty > m.cfg.MaxOrderQty {
		return RejectError{SizeLimitExceeded}
	}

	signedQty := order.OriginalQty * order.Side.Sign()
	projected := trader.Position + signedQty
	if abs64(projected) > m.cfg.PositionLimit {
		return RejectError{PositionLimitExceeded}
	}

	if order.TimeInForce == book.IOC {
		opposite := b.TotalDepth(order.Side.Opposite())
		if float64(order.OriginalQty) > m.cfg.ConcentrationFrac*float64(opposite) {
			return RejectError{ConcentrationTooHigh}
		}
	}

	if trader.RealizedPnL+trader.UnrealizedPnL(mid) < m.cfg.LossLimit {
		return RejectError{LossCircuitBreakerTripped}
	}

	return nil
}

// ForcedLiquidation is the directive PostTickCheck emits when a trader's
// mark-to-market P&L breaches the margin threshold: a market-IOC for
// exactly -position at a penalty price, to be injected at the start of
// the next tick (never the same tick — spec.md §4.3 step 10).
type ForcedLiquidation struct {
	TraderID     string
	Side         book.Side
	Qty          int64
	PenaltyPrice int64
}

// PostTickCheck marks a trader to market against mid and, if their P&L
// has breached the margin threshold, returns the liquidation directive
// that flattens their position.
func (m *Manager) PostTickCheck(trader *ledger.Trader, b *book.OrderBook, mid int64) *ForcedLiquidation {
	if trader.Position == 0 {
		return nil
	}
	pnl := trader.RealizedPnL + trader.UnrealizedPnL(mid)
	if pnl >= m.cfg.MarginThreshold {
		return nil
	}

	var side book.Side
	var qty int64
	if trader.Position > 0 {
		side, qty = book.Sell, trader.Position
	} else {
		side, qty = book.Buy, -trader.Position
	}

	var penaltyPrice int64
	if side == book.Sell {
		bestBid, ok := b.BestBid()
		if !ok {
			bestBid = mid
		}
		penaltyPrice = bestBid - m.cfg.MarginPenaltyTicks
	} else {
		bestAsk, ok := b.BestAsk()
		if !ok {
			bestAsk = mid
		}
		penaltyPrice = bestAsk + m.cfg.MarginPenaltyTicks
	}
	if penaltyPrice < 1 {
		penaltyPrice = 1
	}

	log.Warn().Str("trader_id", trader.ID).Int64("pnl", pnl).Int64("position", trader.Position).
		Msg("margin call: forcing liquidation next tick")

	return &ForcedLiquidation{TraderID: trader.ID, Side: side, Qty: qty, PenaltyPrice: penaltyPrice}
}

// VAR computes a simple parametric value-at-risk: a volatility
// coefficient times recent realized sigma times absolute position size.
func VAR(k, sigmaRecent float64, position int64) float64 {
	return k * sigmaRecent * math.Abs(float64(position))
}

func abs64(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}
