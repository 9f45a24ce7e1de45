package book_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talos/internal/book"
)

func order(id uint64, trader string, side book.Side, price, qty, ts int64) *book.Order {
	return &book.Order{
		ID: id, TraderID: trader, Side: side, Price: price,
		OriginalQty: qty, RemainingQty: qty, Timestamp: ts, TimeInForce: book.GTC,
	}
}

func TestInsert_FIFOWithinLevel(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 10, 1)))
	require.NoError(t, b.Insert(order(2, "B", book.Buy, 100, 5, 2)))

	bb, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(100), bb)

	head, ok := b.Head(book.Buy)
	require.True(t, ok)
	assert.Equal(t, uint64(1), head.ID, "older order must be at the head of the level")
}

func TestInsert_RejectsDuplicateID(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 10, 1)))
	err := b.Insert(order(1, "A", book.Buy, 100, 10, 2))
	assert.ErrorIs(t, err, book.ErrDuplicateOrderID)
}

func TestInsert_RejectsBadPrice(t *testing.T) {
	b := book.New()
	err := b.Insert(order(1, "A", book.Buy, 0, 10, 1))
	assert.ErrorIs(t, err, book.ErrBadPrice)
}

func TestCancel_RemovesEmptyLevel(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 10, 1)))

	o, err := b.Cancel(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), o.ID)

	_, ok := b.BestBid()
	assert.False(t, ok, "level must be removed once its last order is cancelled")

	_, err = b.Cancel(1)
	assert.ErrorIs(t, err, book.ErrOrderNotFound)
}

func TestCancelAll(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 10, 1)))
	require.NoError(t, b.Insert(order(2, "A", book.Buy, 99, 5, 2)))
	require.NoError(t, b.Insert(order(3, "B", book.Buy, 99, 5, 3)))

	cancelled := b.CancelAll("A")
	require.Len(t, cancelled, 2)
	assert.Equal(t, uint64(1), cancelled[0].ID)
	assert.Equal(t, uint64(2), cancelled[1].ID)

	remaining := b.OrdersOf("B")
	require.Len(t, remaining, 1)
	assert.Equal(t, uint64(3), remaining[0].ID)
}

func TestExpire_OnlyGTCPastDeadline(t *testing.T) {
	b := book.New()
	stale := order(1, "A", book.Buy, 100, 10, 1)
	stale.ExpiresAt = 3
	require.NoError(t, b.Insert(stale))

	ioc := order(2, "B", book.Sell, 200, 5, 1)
	ioc.TimeInForce = book.IOC
	ioc.ExpiresAt = 1 // must never be honored for IOC
	require.NoError(t, b.Insert(ioc))

	expired := b.Expire(2)
	assert.Empty(t, expired, "not yet due")

	expired = b.Expire(3)
	require.Len(t, expired, 1)
	assert.Equal(t, uint64(1), expired[0].ID)

	_, stillThere := b.Head(book.Sell)
	assert.True(t, stillThere, "IOC orders are never removed by Expire")
}

func TestDepth_AggregatesAndOrdersBestFirst(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 99, 10, 1)))
	require.NoError(t, b.Insert(order(2, "A", book.Buy, 100, 5, 2)))
	require.NoError(t, b.Insert(order(3, "A", book.Buy, 100, 7, 3)))

	bids, _ := b.Depth(5)
	require.Len(t, bids, 2)
	assert.Equal(t, book.LevelDepth{Price: 100, Qty: 12}, bids[0])
	assert.Equal(t, book.LevelDepth{Price: 99, Qty: 10}, bids[1])
}

func TestFillAndDropHead(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 10, 1)))

	o := b.Fill(book.Buy, 4)
	require.NotNil(t, o)
	assert.Equal(t, int64(6), o.RemainingQty)
	_, ok := b.Head(book.Buy)
	assert.True(t, ok, "partial fill must keep the order resting")

	o = b.Fill(book.Buy, 6)
	require.NotNil(t, o)
	assert.Equal(t, int64(0), o.RemainingQty)
	_, ok = b.Head(book.Buy)
	assert.False(t, ok, "full fill must remove the order and its level")
}

func TestCheckInvariants_NoCrossedBook(t *testing.T) {
	b := book.New()
	require.NoError(t, b.Insert(order(1, "A", book.Buy, 100, 10, 1)))
	require.NoError(t, b.Insert(order(2, "B", book.Sell, 101, 10, 2)))
	assert.NoError(t, b.CheckInvariants())
}
