package book

import (
	"errors"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
)

var (
	ErrDuplicateOrderID = errors.New("book: order id already present")
	ErrOrderNotFound    = errors.New("book: order not found")
	ErrBadQty           = errors.New("book: remaining qty must equal original qty on insert")
	ErrBadPrice         = errors.New("book: price must be a positive multiple of the tick size")

	// ErrInvariantViolation marks a detected inconsistency between the book's
	// indices and its price levels. The simulator treats this as fatal.
	ErrInvariantViolation = errors.New("book: invariant violation")
)

type locator struct {
	side     Side
	price    int64
	traderID string
}

// OrderBook holds two price-keyed maps (bids sorted highest-first, asks
// sorted lowest-first) plus the by_id and by_trader indices required by
// cancel/cancel-all. It performs no locking: the simulator is the sole
// mutator for the duration of a tick.
type OrderBook struct {
	bids *btree.BTreeG[*PriceLevel]
	asks *btree.BTreeG[*PriceLevel]

	byID     map[uint64]locator
	byTrader map[string]map[uint64]struct{}
}

// New constructs an empty order book.
func New() *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price // descending: best bid is Min()
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price // ascending: best ask is Min()
	})
	return &OrderBook{
		bids:     bids,
		asks:     asks,
		byID:     make(map[uint64]locator),
		byTrader: make(map[string]map[uint64]struct{}),
	}
}

func (b *OrderBook) levels(side Side) *btree.BTreeG[*PriceLevel] {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// Insert places a new order at the tail of its (side, price) level,
// creating the level if absent.
func (b *OrderBook) Insert(o *Order) error {
	if o.RemainingQty != o.OriginalQty {
		return ErrBadQty
	}
	if o.Price <= 0 {
		return ErrBadPrice
	}
	if _, exists := b.byID[o.ID]; exists {
		return ErrDuplicateOrderID
	}

	levels := b.levels(o.Side)
	key := &PriceLevel{Price: o.Price}
	level, ok := levels.Get(key)
	if !ok {
		level = newPriceLevel(o.Price)
		levels.Set(level)
	}
	level.Orders = append(level.Orders, o)

	b.byID[o.ID] = locator{side: o.Side, price: o.Price, traderID: o.TraderID}
	ids, ok := b.byTrader[o.TraderID]
	if !ok {
		ids = make(map[uint64]struct{})
		b.byTrader[o.TraderID] = ids
	}
	ids[o.ID] = struct{}{}
	return nil
}

// Cancel removes an order by id, wherever it rests, and removes the
// level if it becomes empty.
func (b *OrderBook) Cancel(id uint64) (*Order, error) {
	loc, ok := b.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	levels := b.levels(loc.side)
	level, ok := levels.Get(&PriceLevel{Price: loc.price})
	if !ok {
		return nil, ErrInvariantViolation
	}
	order, ok := level.removeByID(id)
	if !ok {
		return nil, ErrInvariantViolation
	}
	if len(level.Orders) == 0 {
		levels.Delete(level)
	}
	b.dropIndex(id, loc.traderID)
	return order, nil
}

func (b *OrderBook) dropIndex(id uint64, traderID string) {
	delete(b.byID, id)
	if ids, ok := b.byTrader[traderID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(b.byTrader, traderID)
		}
	}
}

// CancelAll cancels every order resting for a trader, returning them in
// ascending order_id order for determinism.
func (b *OrderBook) CancelAll(traderID string) []*Order {
	ids, ok := b.byTrader[traderID]
	if !ok || len(ids) == 0 {
		return nil
	}
	sorted := make([]uint64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]*Order, 0, len(sorted))
	for _, id := range sorted {
		if o, err := b.Cancel(id); err == nil {
			out = append(out, o)
		}
	}
	return out
}

// Expire removes every GTC order whose ExpiresAt has arrived. IOC orders
// are never expired here — they are cleaned up by the simulator within
// the same tick they were submitted.
func (b *OrderBook) Expire(now int64) []*Order {
	var stale []uint64
	collect := func(level *PriceLevel) bool {
		for _, o := range level.Orders {
			if o.TimeInForce == GTC && o.ExpiresAt > 0 && o.ExpiresAt <= now {
				stale = append(stale, o.ID)
			}
		}
		return true
	}
	b.bids.Scan(collect)
	b.asks.Scan(collect)

	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	expired := make([]*Order, 0, len(stale))
	for _, id := range stale {
		o, err := b.Cancel(id)
		if err != nil {
			log.Error().Err(err).Uint64("order_id", id).Msg("expire: cancel failed")
			continue
		}
		expired = append(expired, o)
	}
	return expired
}

// BestBid returns the highest populated bid price, if any.
func (b *OrderBook) BestBid() (int64, bool) {
	level, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestAsk returns the lowest populated ask price, if any.
func (b *OrderBook) BestAsk() (int64, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// Depth returns up to n populated levels per side, aggregated by
// quantity, best price first on each side.
func (b *OrderBook) Depth(n int) (bids, asks []LevelDepth) {
	bids = b.depthSide(b.bids, n)
	asks = b.depthSide(b.asks, n)
	return
}

func (b *OrderBook) depthSide(levels *btree.BTreeG[*PriceLevel], n int) []LevelDepth {
	out := make([]LevelDepth, 0, n)
	levels.Scan(func(level *PriceLevel) bool {
		if len(out) >= n {
			return false
		}
		out = append(out, LevelDepth{Price: level.Price, Qty: level.totalQty()})
		return true
	})
	return out
}

// TotalDepth sums resting quantity across every level on one side. Used
// by the risk manager's concentration check against the opposite side.
func (b *OrderBook) TotalDepth(side Side) int64 {
	var total int64
	b.levels(side).Scan(func(level *PriceLevel) bool {
		total += level.totalQty()
		return true
	})
	return total
}

// Head returns the order resting at the head of the best level for a
// side, without mutating the book.
func (b *OrderBook) Head(side Side) (*Order, bool) {
	level, ok := b.levels(side).Min()
	if !ok || len(level.Orders) == 0 {
		return nil, false
	}
	return level.Orders[0], true
}

// Fill decrements the head order of the best level on a side by qty. If
// the order is fully consumed it is removed from the book (and its level,
// if now empty); the returned Order reflects its final RemainingQty.
func (b *OrderBook) Fill(side Side, qty int64) *Order {
	levels := b.levels(side)
	level, ok := levels.Min()
	if !ok || len(level.Orders) == 0 {
		return nil
	}
	o := level.Orders[0]
	o.RemainingQty -= qty
	if o.RemainingQty <= 0 {
		return b.dropHead(side)
	}
	return o
}

// DropHead unconditionally removes the head order of the best level on a
// side, used by self-trade prevention to cancel the newer of two
// crossing orders from the same trader without recording a fill.
func (b *OrderBook) DropHead(side Side) *Order {
	return b.dropHead(side)
}

func (b *OrderBook) dropHead(side Side) *Order {
	levels := b.levels(side)
	level, ok := levels.Min()
	if !ok || len(level.Orders) == 0 {
		return nil
	}
	o := level.Orders[0]
	level.Orders = level.Orders[1:]
	if len(level.Orders) == 0 {
		levels.Delete(level)
	}
	b.dropIndex(o.ID, o.TraderID)
	return o
}

// OrdersOf returns the resting orders for a trader, sorted by order_id
// for determinism (map iteration order is not stable).
func (b *OrderBook) OrdersOf(traderID string) []OwnOrder {
	ids, ok := b.byTrader[traderID]
	if !ok {
		return nil
	}
	sorted := make([]uint64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]OwnOrder, 0, len(sorted))
	for _, id := range sorted {
		loc := b.byID[id]
		level, ok := b.levels(loc.side).Get(&PriceLevel{Price: loc.price})
		if !ok {
			continue
		}
		for _, o := range level.Orders {
			if o.ID == id {
				out = append(out, OwnOrder{
					ID: o.ID, Side: o.Side, Price: o.Price,
					RemainingQty: o.RemainingQty, ExpiresAt: o.ExpiresAt,
				})
				break
			}
		}
	}
	return out
}

// IOCOrderIDs returns the ids of every resting IOC order, across both
// sides, sorted for deterministic cancellation order. IOC orders never
// rest past the tick they were submitted in; the simulator calls this
// once matching has run to exhaustion to sweep up any that didn't cross.
func (b *OrderBook) IOCOrderIDs() []uint64 {
	var ids []uint64
	collect := func(level *PriceLevel) bool {
		for _, o := range level.Orders {
			if o.TimeInForce == IOC {
				ids = append(ids, o.ID)
			}
		}
		return true
	}
	b.bids.Scan(collect)
	b.asks.Scan(collect)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CheckInvariants validates P1 (index/level consistency, no empty level
// keys) and P2 (no crossed book). It is cheap relative to a tick and is
// run at the end of every Tick; a failure poisons the simulator.
func (b *OrderBook) CheckInvariants() error {
	seen := make(map[uint64]struct{})
	checkSide := func(levels *btree.BTreeG[*PriceLevel], side Side) error {
		var err error
		levels.Scan(func(level *PriceLevel) bool {
			if len(level.Orders) == 0 {
				err = ErrInvariantViolation
				return false
			}
			for _, o := range level.Orders {
				if o.RemainingQty <= 0 {
					err = ErrInvariantViolation
					return false
				}
				loc, ok := b.byID[o.ID]
				if !ok || loc.side != side || loc.price != level.Price {
					err = ErrInvariantViolation
					return false
				}
				seen[o.ID] = struct{}{}
			}
			return true
		})
		return err
	}
	if err := checkSide(b.bids, Buy); err != nil {
		return err
	}
	if err := checkSide(b.asks, Sell); err != nil {
		return err
	}
	if len(seen) != len(b.byID) {
		return ErrInvariantViolation
	}
	for id, loc := range b.byID {
		ids, ok := b.byTrader[loc.traderID]
		if !ok {
			return ErrInvariantViolation
		}
		if _, ok := ids[id]; !ok {
			return ErrInvariantViolation
		}
	}

	bb, bbok := b.BestBid()
	ba, baok := b.BestAsk()
	if bbok && baok && bb >= ba {
		return ErrInvariantViolation
	}
	return nil
}
