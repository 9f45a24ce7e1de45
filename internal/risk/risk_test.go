package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talos/internal/book"
	"talos/internal/ledger"
	"talos/internal/risk"
)

func newOrder(side book.Side, price, qty int64, tif book.TimeInForce) *book.Order {
	return &book.Order{Side: side, Price: price, OriginalQty: qty, RemainingQty: qty, TimeInForce: tif}
}

func TestCheckOrder_SizeLimit(t *testing.T) {
	m := risk.New(risk.Config{MaxOrderQty: 10, PositionLimit: 1000, LossLimit: -1000})
	trader := &ledger.Trader{ID: "A"}
	err := m.CheckOrder(trader, newOrder(book.Buy, 100, 11, book.GTC), book.New(), 100)
	var re risk.RejectError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, risk.SizeLimitExceeded, re.Kind)
}

func TestCheckOrder_PositionLimit(t *testing.T) {
	m := risk.New(risk.Config{MaxOrderQty: 1000, PositionLimit: 10, LossLimit: -1000})
	trader := &ledger.Trader{ID: "A", Position: 8}
	err := m.CheckOrder(trader, newOrder(book.Buy, 100, 5, book.GTC), book.New(), 100)
	var re risk.RejectError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, risk.PositionLimitExceeded, re.Kind)
}

func TestCheckOrder_ConcentrationOnlyForIOC(t *testing.T) {
	m := risk.New(risk.Config{MaxOrderQty: 1000, PositionLimit: 1000, ConcentrationFrac: 0.5, LossLimit: -1000})
	b := book.New()
	require.NoError(t, b.Insert(&book.Order{ID: 1, TraderID: "X", Side: book.Sell, Price: 100, OriginalQty: 10, RemainingQty: 10}))

	trader := &ledger.Trader{ID: "A"}
	err := m.CheckOrder(trader, newOrder(book.Buy, 100, 8, book.IOC), b, 100)
	var re risk.RejectError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, risk.ConcentrationTooHigh, re.Kind)

	// A GTC order of the same size does not rest against existing book
	// depth, so the concentration check never runs.
	err = m.CheckOrder(trader, newOrder(book.Buy, 100, 8, book.GTC), b, 100)
	assert.NoError(t, err)
}

func TestCheckOrder_LossCircuitBreaker(t *testing.T) {
	m := risk.New(risk.Config{MaxOrderQty: 1000, PositionLimit: 1000, LossLimit: -500})
	trader := &ledger.Trader{ID: "A", RealizedPnL: -600}
	err := m.CheckOrder(trader, newOrder(book.Buy, 100, 1, book.GTC), book.New(), 100)
	var re risk.RejectError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, risk.LossCircuitBreakerTripped, re.Kind)
}

func TestCheckOrder_FixedOrderSizeBeforePosition(t *testing.T) {
	// An order that fails both the size and position checks must report
	// size first (spec.md §4.4 "checks evaluated in this fixed order").
	m := risk.New(risk.Config{MaxOrderQty: 5, PositionLimit: 1, LossLimit: -1000})
	trader := &ledger.Trader{ID: "A", Position: 0}
	err := m.CheckOrder(trader, newOrder(book.Buy, 100, 10, book.GTC), book.New(), 100)
	var re risk.RejectError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, risk.SizeLimitExceeded, re.Kind)
}

// Scenario 6 from spec.md §8: margin call.
func TestPostTickCheck_MarginCall(t *testing.T) {
	m := risk.New(risk.Config{MarginThreshold: -50, MarginPenaltyTicks: 2})
	trader := &ledger.Trader{ID: "A", Position: 10, CostBasis: 1000} // avg cost 100

	b := book.New()
	require.NoError(t, b.Insert(&book.Order{ID: 1, TraderID: "X", Side: book.Buy, Price: 78, OriginalQty: 5, RemainingQty: 5}))

	fl := m.PostTickCheck(trader, b, 80)
	require.NotNil(t, fl)
	assert.Equal(t, book.Sell, fl.Side)
	assert.Equal(t, int64(10), fl.Qty)
	assert.Equal(t, int64(76), fl.PenaltyPrice) // best bid 78 - 2
}

func TestPostTickCheck_NoBreachNoLiquidation(t *testing.T) {
	m := risk.New(risk.Config{MarginThreshold: -1000})
	trader := &ledger.Trader{ID: "A", Position: 10, CostBasis: 1000}
	fl := m.PostTickCheck(trader, book.New(), 95)
	assert.Nil(t, fl)
}

func TestVAR(t *testing.T) {
	assert.InDelta(t, 20.0, risk.VAR(2, 1.0, 10), 1e-9)
	assert.InDelta(t, 20.0, risk.VAR(2, 1.0, -10), 1e-9)
}
