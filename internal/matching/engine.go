// Package matching implements price-time-priority crossing over an
// internal/book.OrderBook: self-trade prevention, maker/taker
// attribution, and MatchEvent emission. The engine is pure over its
// inputs — given an identical book and tick, it produces an identical
// event sequence (spec property P5).
package matching

import (
	"github.com/rs/zerolog/log"

	"talos/internal/book"
)

// MatchEvent is one resolved cross between a resting maker order and an
// incoming (or already-resting, in a sweep) taker order.
type MatchEvent struct {
	MakerOrderID  uint64
	TakerOrderID  uint64
	MakerTraderID string
	TakerTraderID string
	Price         int64
	Qty           int64
	AggressorSide book.Side
	Tick          int64
}

// Print projects a MatchEvent down to the tape representation bots see.
func (e MatchEvent) Print() TradePrint {
	return TradePrint{Price: e.Price, Qty: e.Qty, AggressorSide: e.AggressorSide, Tick: e.Tick}
}

// TradePrint is the bounded tape entry derived from a MatchEvent.
type TradePrint struct {
	Price         int64
	Qty           int64
	AggressorSide book.Side
	Tick          int64
}

// Engine resolves crossing orders. It holds no book state of its own.
type Engine struct{}

// New constructs a matching engine.
func New() *Engine {
	return &Engine{}
}

// Match repeatedly resolves the best bid against the best ask until they
// no longer cross, applying self-trade prevention before every fill.
// now is used only as the tick label on emitted events; no time movement
// happens here.
func (e *Engine) Match(b *book.OrderBook, now int64) []MatchEvent {
	var events []MatchEvent

	for {
		bb, bidOK := b.BestBid()
		ba, askOK := b.BestAsk()
		if !bidOK || !askOK || bb < ba {
			break
		}

		bidHead, ok := b.Head(book.Buy)
		if !ok {
			break
		}
		askHead, ok := b.Head(book.Sell)
		if !ok {
			break
		}

		if bidHead.TraderID == askHead.TraderID {
			// Self-trade prevention: drop the newer of the two orders and
			// retry. This never produces a fill between the same trader.
			if book.Newer(askHead, bidHead) {
				dropped := b.DropHead(book.Sell)
				log.Debug().Uint64("order_id", dropped.ID).Str("trader_id", dropped.TraderID).
					Msg("self-trade prevention: dropped newer ask")
			} else {
				dropped := b.DropHead(book.Buy)
				log.Debug().Uint64("order_id", dropped.ID).Str("trader_id", dropped.TraderID).
					Msg("self-trade prevention: dropped newer bid")
			}
			continue
		}

		var makerSide, takerSide book.Side
		if book.Newer(askHead, bidHead) {
			makerSide, takerSide = book.Buy, book.Sell
		} else {
			makerSide, takerSide = book.Sell, book.Buy
		}

		maker, _ := b.Head(makerSide)
		taker, _ := b.Head(takerSide)

		price := maker.Price
		qty := min(maker.RemainingQty, taker.RemainingQty)
		makerOrderID, makerTraderID := maker.ID, maker.TraderID
		takerOrderID, takerTraderID := taker.ID, taker.TraderID

		b.Fill(makerSide, qty)
		b.Fill(takerSide, qty)

		events = append(events, MatchEvent{
			MakerOrderID:  makerOrderID,
			TakerOrderID:  takerOrderID,
			MakerTraderID: makerTraderID,
			TakerTraderID: takerTraderID,
			Price:         price,
			Qty:           qty,
			AggressorSide: takerSide,
			Tick:          now,
		})
	}

	return events
}
