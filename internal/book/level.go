package book

// PriceLevel is a FIFO sequence of orders resting at one price on one
// side. Order within a level is strictly by (timestamp, order_id)
// ascending, enforced by always appending to the tail.
type PriceLevel struct {
	Price  int64
	Orders []*Order
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price}
}

func (l *PriceLevel) totalQty() int64 {
	var sum int64
	for _, o := range l.Orders {
		sum += o.RemainingQty
	}
	return sum
}

func (l *PriceLevel) removeByID(id uint64) (*Order, bool) {
	for i, o := range l.Orders {
		if o.ID == id {
			l.Orders = append(l.Orders[:i], l.Orders[i+1:]...)
			return o, true
		}
	}
	return nil, false
}

// LevelDepth is the aggregated view of a price level exposed to snapshots
// and bots: price plus total resting quantity, no per-order detail.
type LevelDepth struct {
	Price int64
	Qty   int64
}

// OwnOrder is the projection of a resting order exposed via the
// by_trader index — bots use it to find their own working orders without
// the book leaking internal PriceLevel storage.
type OwnOrder struct {
	ID           uint64
	Side         Side
	Price        int64
	RemainingQty int64
	ExpiresAt    int64
}
