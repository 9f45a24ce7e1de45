// Package book implements the central limit order book: price-level FIFO
// storage, the by_id/by_trader indices, and expiry. It owns no matching
// logic — that lives in internal/matching — and no locking, since the
// simulator is the sole owner of a book for the duration of a tick.
package book

import "fmt"

// Side is which side of the book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Sign returns +1 for Buy, -1 for Sell, for turning a side into a signed
// quantity delta.
func (s Side) Sign() int64 {
	if s == Sell {
		return -1
	}
	return 1
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce controls how an order's unfilled remainder is treated.
type TimeInForce int

const (
	GTC TimeInForce = iota
	IOC
)

func (t TimeInForce) String() string {
	if t == IOC {
		return "IOC"
	}
	return "GTC"
}

// Order is immutable after placement except for RemainingQty, which the
// matching engine decrements in place. Price is an integer number of
// min_tick_size ticks, never a float — see DESIGN.md on why this repo
// doesn't reach for a decimal library for it.
type Order struct {
	ID            uint64
	TraderID      string
	Side          Side
	Price         int64
	OriginalQty   int64
	RemainingQty  int64
	Timestamp     int64 // tick sequence number the order was placed at
	TimeInForce   TimeInForce
	ExpiresAt     int64 // GTC only; 0 means "never expires"
}

func (o *Order) String() string {
	return fmt.Sprintf(
		"Order{id=%d trader=%s side=%s price=%d qty=%d/%d ts=%d tif=%s expires=%d}",
		o.ID, o.TraderID, o.Side, o.Price, o.RemainingQty, o.OriginalQty,
		o.Timestamp, o.TimeInForce, o.ExpiresAt,
	)
}

// before reports whether a is strictly earlier than b in price-time
// priority: ascending (Timestamp, ID). Maker is whichever order is not
// "newer" under this ordering.
func before(a, b *Order) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ID < b.ID
}

// Newer reports whether a is the later-arriving of two orders, by
// (timestamp, order_id). Exported for the matching engine's self-trade
// and maker/taker attribution logic.
func Newer(a, b *Order) bool {
	return before(b, a)
}
