package bots

import (
	"math/rand"

	"talos/internal/book"
)

// MarketMaker quotes both sides around fair value, skewing its prices by
// its own inventory so it leans against a growing position, and
// replaces its previous quotes every time its latency gate opens.
type MarketMaker struct {
	traderID      string
	spreadTicks   int64
	qty           int64
	quoteLifetime int64
	skewPerUnit   float64
}

// NewMarketMaker constructs a market-making bot for traderID.
func NewMarketMaker(traderID string, spreadTicks, qty, quoteLifetime int64, skewPerUnit float64) *MarketMaker {
	return &MarketMaker{
		traderID: traderID, spreadTicks: spreadTicks, qty: qty,
		quoteLifetime: quoteLifetime, skewPerUnit: skewPerUnit,
	}
}

func (m *MarketMaker) TraderID() string { return m.traderID }

func (m *MarketMaker) Decide(v View, _ *rand.Rand) Decision {
	cancels := make([]uint64, 0, len(v.OwnOrders))
	for _, o := range v.OwnOrders {
		cancels = append(cancels, o.ID)
	}

	skew := int64(float64(v.Position) * m.skewPerUnit)
	bidPrice := v.FairValue - m.spreadTicks - skew
	askPrice := v.FairValue + m.spreadTicks - skew
	if bidPrice < 1 {
		bidPrice = 1
	}
	if askPrice <= bidPrice {
		askPrice = bidPrice + 1
	}

	return Decision{
		Cancels: cancels,
		Quotes: []Quote{
			{Side: book.Buy, Price: bidPrice, Qty: m.qty, ExpiresAt: v.Now + m.quoteLifetime},
			{Side: book.Sell, Price: askPrice, Qty: m.qty, ExpiresAt: v.Now + m.quoteLifetime},
		},
	}
}
