package matching_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talos/internal/book"
	"talos/internal/matching"
)

func order(id uint64, trader string, side book.Side, price, qty, ts int64) *book.Order {
	return &book.Order{
		ID: id, TraderID: trader, Side: side, Price: price,
		OriginalQty: qty, RemainingQty: qty, Timestamp: ts, TimeInForce: book.GTC,
	}
}

// Scenario 1 from spec.md §8: FIFO same-price.
func TestMatch_FIFOSamePrice(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 10, 1)))
	require.NoError(t, b.Insert(order(2, "B", book.Buy, 100, 10, 2)))
	require.NoError(t, b.Insert(order(3, "C", book.Sell, 100, 5, 3)))

	events := matching.New().Match(b, 3)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, uint64(1), e.MakerOrderID)
	assert.Equal(t, uint64(3), e.TakerOrderID)
	assert.Equal(t, int64(100), e.Price)
	assert.Equal(t, int64(5), e.Qty)

	aRemaining := b.OrdersOf("A")
	require.Len(t, aRemaining, 1)
	assert.Equal(t, int64(5), aRemaining[0].RemainingQty)

	bRemaining := b.OrdersOf("B")
	require.Len(t, bRemaining, 1)
	assert.Equal(t, int64(10), bRemaining[0].RemainingQty)
}

// Scenario 2: price priority.
func TestMatch_PricePriority(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 101, 5, 1)))
	require.NoError(t, b.Insert(order(2, "B", book.Buy, 100, 10, 1)))
	require.NoError(t, b.Insert(order(3, "C", book.Sell, 100, 7, 2)))

	events := matching.New().Match(b, 2)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].MakerOrderID)
	assert.Equal(t, int64(101), events[0].Price)
	assert.Equal(t, int64(5), events[0].Qty)
	assert.Equal(t, uint64(2), events[1].MakerOrderID)
	assert.Equal(t, int64(100), events[1].Price)
	assert.Equal(t, int64(2), events[1].Qty)

	bRemaining := b.OrdersOf("B")
	require.Len(t, bRemaining, 1)
	assert.Equal(t, int64(8), bRemaining[0].RemainingQty)

	_, askOK := b.BestAsk()
	assert.False(t, askOK)
}

// Scenario 3: self-trade prevention.
func TestMatch_SelfTradePrevention(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 5, 1)))
	require.NoError(t, b.Insert(order(2, "A", book.Sell, 100, 3, 2)))

	events := matching.New().Match(b, 2)
	assert.Empty(t, events)

	orders := b.OrdersOf("A")
	require.Len(t, orders, 1)
	assert.Equal(t, uint64(1), orders[0].ID)
	assert.Equal(t, int64(5), orders[0].RemainingQty)

	_, askOK := b.BestAsk()
	assert.False(t, askOK, "the newer crossing order must be dropped, not rested")
}

func TestMatch_NoSelfTradesAcrossAnyEvent(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 5, 1)))
	require.NoError(t, b.Insert(order(2, "B", book.Buy, 100, 5, 2)))
	require.NoError(t, b.Insert(order(3, "A", book.Sell, 100, 20, 3)))

	events := matching.New().Match(b, 3)
	for _, e := range events {
		assert.NotEqual(t, e.MakerTraderID, e.TakerTraderID)
	}
}

func TestMatch_EmptyBookNoEvents(t *testing.T) {
	b := book.New()
	events := matching.New().Match(b, 1)
	assert.Empty(t, events)
}
