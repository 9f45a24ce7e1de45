package sim

import "math/rand"

// Schedule produces the session's fair-value process: a bounded, seeded
// random walk anchored to the session's starting price and softly
// mean-reverting toward it, with a shrinking uncertainty term. Its exact
// shape is an Open Question in spec.md §4.3 step 3 ("deterministic
// function of seed and tick"); this is the decision recorded in
// DESIGN.md.
type Schedule struct {
	anchor       int64
	current      int64
	stepSize     int64
	reversion    float64
	uncertainty0 float64
	decay        float64
}

// NewSchedule constructs a fair-value schedule anchored at startPrice.
func NewSchedule(startPrice, stepSize int64, reversion, uncertainty0, decay float64) *Schedule {
	return &Schedule{
		anchor: startPrice, current: startPrice, stepSize: stepSize,
		reversion: reversion, uncertainty0: uncertainty0, decay: decay,
	}
}

// Next draws the fair value and uncertainty for tick `now` from rng. It
// must be called exactly once per tick, in step 3 of the pipeline, so
// that its RNG draws occur in the single fixed order spec.md §5
// requires for determinism.
func (s *Schedule) Next(now int64, rng *rand.Rand) (fairValue int64, uncertainty float64) {
	step := rng.Int63n(2*s.stepSize+1) - s.stepSize
	drift := int64(float64(s.anchor-s.current) * s.reversion)
	s.current += step + drift
	if s.current < 1 {
		s.current = 1
	}
	uncertainty = s.uncertainty0 / (1 + s.decay*float64(now))
	return s.current, uncertainty
}
