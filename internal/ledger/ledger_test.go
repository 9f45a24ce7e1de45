package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"talos/internal/book"
	"talos/internal/ledger"
)

func TestApplyFill_OpeningAndAdding(t *testing.T) {
	l := ledger.New(0.1)
	l.ApplyFill("A", book.Buy, 100, 10, ledger.Maker, 0, 1)
	l.ApplyFill("A", book.Buy, 110, 10, ledger.Maker, 0, 2)

	a := l.Get("A")
	assert.Equal(t, int64(20), a.Position)
	assert.Equal(t, int64(105), a.AvgCost())
	assert.Equal(t, int64(0), a.RealizedPnL)
}

func TestApplyFill_ClosingRealizesPnL(t *testing.T) {
	l := ledger.New(0.1)
	l.ApplyFill("A", book.Buy, 100, 10, ledger.Maker, 0, 1)
	l.ApplyFill("A", book.Sell, 110, 4, ledger.Taker, 0, 2)

	a := l.Get("A")
	assert.Equal(t, int64(6), a.Position)
	assert.Equal(t, int64(40), a.RealizedPnL) // (110-100)*4
	assert.Equal(t, int64(100), a.AvgCost(), "remaining position keeps the original cost basis")
}

func TestApplyFill_FlipThroughZero(t *testing.T) {
	l := ledger.New(0.1)
	l.ApplyFill("A", book.Buy, 100, 10, ledger.Maker, 0, 1)
	l.ApplyFill("A", book.Sell, 90, 15, ledger.Taker, 0, 2)

	a := l.Get("A")
	assert.Equal(t, int64(-5), a.Position)
	assert.Equal(t, int64(-100), a.RealizedPnL, "(90-100)*10 realized on the closing leg")
	assert.Equal(t, int64(90), a.AvgCost(), "the flipped remainder opens fresh at the fill price")
}

func TestApplyFill_ShortRealizesOnCover(t *testing.T) {
	l := ledger.New(0.1)
	l.ApplyFill("A", book.Sell, 100, 10, ledger.Maker, 0, 1)
	l.ApplyFill("A", book.Buy, 90, 10, ledger.Taker, 0, 2)

	a := l.Get("A")
	assert.Equal(t, int64(0), a.Position)
	assert.Equal(t, int64(100), a.RealizedPnL, "shorted at 100, covered at 90: profit 10*10")
}

func TestApplyFill_FeesDebitCash(t *testing.T) {
	l := ledger.New(0.1)
	l.ApplyFill("A", book.Buy, 100, 10, ledger.Taker, 5, 1)
	assert.Equal(t, int64(-5), l.Get("A").Cash)
}

func TestResolvePending_ToxicityOnlyForTakers(t *testing.T) {
	l := ledger.New(0.5)
	l.ApplyFill("A", book.Buy, 100, 10, ledger.Maker, 0, 1)
	l.ApplyFill("B", book.Sell, 100, 10, ledger.Taker, 0, 1)

	// mid falls after the tick following the fill: B sold at 100 and the
	// price kept falling, confirming B's sell as informed (toxic) flow.
	l.ResolvePending(2, 90)

	assert.Equal(t, 0.0, l.Get("A").Toxicity, "maker fills are never scored")
	assert.Equal(t, 0.5, l.Get("B").Toxicity)
}

func TestTraderIDs_Sorted(t *testing.T) {
	l := ledger.New(0.1)
	l.GetOrCreate("zeta")
	l.GetOrCreate("alpha")
	l.GetOrCreate("mid")
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, l.TraderIDs())
}
