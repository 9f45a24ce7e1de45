package bots

import (
	"math/rand"

	"talos/internal/book"
)

// Noise models uninformed/adverse flow: each time its latency gate
// opens it fires an IOC of fixed size on a randomly chosen side with
// some probability, otherwise sits out the tick. Its IOC fills are taker
// fills, which are the fills the toxicity score (spec.md §4.3.1) is
// computed from.
type Noise struct {
	traderID   string
	qty        int64
	actionProb float64
}

// NewNoise constructs a noise-trading bot for traderID.
func NewNoise(traderID string, qty int64, actionProb float64) *Noise {
	return &Noise{traderID: traderID, qty: qty, actionProb: actionProb}
}

func (n *Noise) TraderID() string { return n.traderID }

func (n *Noise) Decide(_ View, rng *rand.Rand) Decision {
	if rng.Float64() > n.actionProb {
		return Decision{}
	}
	side := book.Buy
	if rng.Float64() < 0.5 {
		side = book.Sell
	}
	return Decision{IOC: []IOCOrder{{Side: side, Qty: n.qty}}}
}
