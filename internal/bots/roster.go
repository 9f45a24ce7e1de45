package bots

import "math/rand"

// entry pairs a registered bot with its latency gate state.
type entry struct {
	bot            Bot
	baseLatency    int64
	jitter         int64
	nextActionTick int64
}

// Roster dispatches bots in fixed registration order, each gated by its
// own latency so the tick pipeline only calls Decide on bots whose gate
// has opened (spec.md §4.5).
type Roster struct {
	entries    []*entry
	multiplier float64
}

// NewRoster constructs an empty roster. multiplier scales every bot's
// base_latency (the difficulty preset, bot_latency_multiplier).
func NewRoster(multiplier float64) *Roster {
	return &Roster{multiplier: multiplier}
}

// Register adds a bot to the roster. Registration order is part of the
// deterministic contract: bots are always consulted in the order they
// were registered.
func (r *Roster) Register(b Bot, baseLatency, jitter int64) {
	scaled := int64(float64(baseLatency) * r.multiplier)
	r.entries = append(r.entries, &entry{bot: b, baseLatency: scaled, jitter: jitter})
}

// Decided is one bot's output for a tick, paired with its trader id.
type Decided struct {
	TraderID string
	Decision Decision
}

// Dispatch consults every bot whose latency gate has opened at now, in
// registration order, advancing each consulted bot's gate by
// base_latency + uniform(0, jitter) drawn from the session RNG.
func (r *Roster) Dispatch(now int64, viewFor func(traderID string) View, rng *rand.Rand) []Decided {
	var out []Decided
	for _, e := range r.entries {
		if now < e.nextActionTick {
			continue
		}
		d := e.bot.Decide(viewFor(e.bot.TraderID()), rng)
		out = append(out, Decided{TraderID: e.bot.TraderID(), Decision: d})

		jitter := int64(0)
		if e.jitter > 0 {
			jitter = rng.Int63n(e.jitter + 1)
		}
		e.nextActionTick = now + e.baseLatency + jitter
	}
	return out
}
