// Package ledger tracks each trader's cash, position, VWAP-derived cost
// basis, realized/unrealized P&L, bounded fill history, and EWMA
// toxicity score. A trader exists for the full session; only fills
// mutate its state (spec.md §3, "Trader").
package ledger

import (
	"sort"

	"talos/internal/book"
	"talos/internal/matching"
)

const defaultHistoryCap = 64

// Role distinguishes which side of a MatchEvent a fill came from —
// maker fills earn the rebate, taker fills pay the fee.
type Role int

const (
	Maker Role = iota
	Taker
)

// Fill is one line of a trader's bounded execution history.
type Fill struct {
	Tick  int64
	Side  book.Side
	Price int64
	Qty   int64
	Role  Role
	Fee   int64
}

// Trader is one participant's ledger. Position is signed: positive is
// long, negative is short. CostBasis is the signed running notional
// (price*qty, same sign as Position) backing the current position —
// dividing it by Position gives the average entry price without the
// rounding drift a per-fill running average in floating point would
// accumulate (spec.md §9, "Decimals").
type Trader struct {
	ID          string
	Cash        int64
	Position    int64
	CostBasis   int64
	RealizedPnL int64
	Toxicity    float64
	History     []Fill
}

// AvgCost returns the average entry price of the current position, or 0
// if flat.
func (t *Trader) AvgCost() int64 {
	if t.Position == 0 {
		return 0
	}
	return t.CostBasis / t.Position
}

// UnrealizedPnL marks the current position to a mid price.
func (t *Trader) UnrealizedPnL(mid int64) int64 {
	if t.Position == 0 {
		return 0
	}
	return (mid - t.AvgCost()) * t.Position
}

func (t *Trader) recordFill(f Fill, cap int) {
	t.History = append(t.History, f)
	if len(t.History) > cap {
		t.History = t.History[len(t.History)-cap:]
	}
}

type pendingToxicity struct {
	traderID      string
	fillPrice     int64
	aggressorSign int64
	dueTick       int64
}

// Ledger owns every trader in a session plus the one-tick-delayed queue
// used to score toxicity against the mid one tick after the fill
// (spec.md §4.3.1).
type Ledger struct {
	traders    map[string]*Trader
	alpha      float64
	historyCap int
	pending    []pendingToxicity
}

// New constructs a ledger. alpha is the toxicity EWMA coefficient
// (toxicity_alpha from config).
func New(alpha float64) *Ledger {
	return &Ledger{
		traders:    make(map[string]*Trader),
		alpha:      alpha,
		historyCap: defaultHistoryCap,
	}
}

// GetOrCreate returns a trader's ledger entry, creating it on first
// reference.
func (l *Ledger) GetOrCreate(traderID string) *Trader {
	t, ok := l.traders[traderID]
	if !ok {
		t = &Trader{ID: traderID}
		l.traders[traderID] = t
	}
	return t
}

// Get returns a trader's ledger entry, or nil if never referenced.
func (l *Ledger) Get(traderID string) *Trader {
	return l.traders[traderID]
}

// TraderIDs returns every known trader id, sorted, for deterministic
// iteration in the tick pipeline and snapshot building.
func (l *Ledger) TraderIDs() []string {
	ids := make([]string, 0, len(l.traders))
	for id := range l.traders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ApplyFill updates one side of a MatchEvent against its trader's
// ledger: position, cost basis, realized P&L, the fee, fill history, and
// (for takers only) enqueues the one-tick-delayed toxicity measurement.
func (l *Ledger) ApplyFill(traderID string, side book.Side, price, qty int64, role Role, fee int64, tick int64) {
	t := l.GetOrCreate(traderID)
	signedQty := qty * side.Sign()

	switch {
	case t.Position == 0 || sameSign(t.Position, signedQty):
		// Opening or adding to a position: extend the cost basis.
		t.Position += signedQty
		t.CostBasis += price * signedQty
	default:
		// Reducing, and possibly flipping through zero, an existing
		// position. Realize P&L on the portion that closes the old
		// position; anything left over opens a fresh one at this price.
		avg := t.AvgCost()
		closingQty := min(abs64(signedQty), abs64(t.Position))
		t.RealizedPnL += (price - avg) * closingQty * sign64(t.Position)

		newPosition := t.Position + signedQty
		switch {
		case newPosition == 0:
			t.CostBasis = 0
		case sameSign(newPosition, signedQty):
			t.CostBasis = price * newPosition
		default:
			t.CostBasis = avg * newPosition
		}
		t.Position = newPosition
	}

	t.Cash -= fee
	t.recordFill(Fill{Tick: tick, Side: side, Price: price, Qty: qty, Role: role, Fee: fee}, l.historyCap)

	if role == Taker {
		sign := int64(1)
		if side == book.Sell {
			sign = -1
		}
		l.pending = append(l.pending, pendingToxicity{
			traderID: traderID, fillPrice: price, aggressorSign: sign, dueTick: tick + 1,
		})
	}
}

// ResolvePending updates the toxicity score of every taker fill whose
// one-tick delay has elapsed, using the mid observed at now.
func (l *Ledger) ResolvePending(now, mid int64) {
	keep := l.pending[:0]
	for _, p := range l.pending {
		if p.dueTick > now {
			keep = append(keep, p)
			continue
		}
		t := l.traders[p.traderID]
		if t == nil {
			continue
		}
		indicator := 0.0
		if (mid-p.fillPrice)*p.aggressorSign > 0 {
			indicator = 1.0
		}
		t.Toxicity = (1-l.alpha)*t.Toxicity + l.alpha*indicator
	}
	l.pending = keep
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign64(a int64) int64 {
	if a < 0 {
		return -1
	}
	return 1
}

func abs64(a int64) int64 {
	if a < 0 {
		return -a
	}
	return a
}

// ApplyMatchEvent applies a MatchEvent's two legs (maker, then taker) so
// the simulator can apply both with a single call.
func ApplyMatchEvent(l *Ledger, e matching.MatchEvent, makerFee, takerFee int64) {
	makerSide := e.AggressorSide.Opposite()
	l.ApplyFill(e.MakerTraderID, makerSide, e.Price, e.Qty, Maker, makerFee, e.Tick)
	l.ApplyFill(e.TakerTraderID, e.AggressorSide, e.Price, e.Qty, Taker, takerFee, e.Tick)
}
