package runtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"talos/internal/journal"
	"talos/internal/matching"
	"talos/internal/sim"
)

// Session drives a simulator's tick loop under supervision and queues
// every snapshot, processed command and match event onto the worker pool
// for writing to the journal. Live subscribers receive a snapshot without
// waiting for its journal write to complete.
type Session struct {
	sim       *sim.Simulator
	journal   *journal.Journal
	pool      *Pool
	tickEvery time.Duration
	tomb      tomb.Tomb

	paused chan bool // true = pause, false = resume
}

// NewSession wires a simulator to a journal and a background pool. The
// journal's header should already be written by the caller before ticks
// start flowing.
func NewSession(s *sim.Simulator, j *journal.Journal, poolSize int, tickEvery time.Duration) *Session {
	sess := &Session{
		sim: s, journal: j, pool: NewPool(poolSize),
		tickEvery: tickEvery, paused: make(chan bool, 1),
	}
	s.OnSnapshot(func(snap sim.MarketSnapshot) {
		sess.pool.Submit(func() error {
			return sess.journal.WriteSnapshot(snap)
		})
	})
	s.OnCommand(func(tick int64, cmd sim.Command, result sim.CommandResult) {
		sess.pool.Submit(func() error {
			return sess.journal.WriteCommand(journaledCommand{Tick: tick, Command: cmd, Result: result})
		})
	})
	s.OnMatchEvent(func(evt matching.MatchEvent) {
		sess.pool.Submit(func() error {
			return sess.journal.WriteEvent(evt)
		})
	})
	return sess
}

// journaledCommand pairs a command with the tick it was applied on and
// its result, so replay can re-derive the exact sequence of state
// transitions a session went through.
type journaledCommand struct {
	Tick    int64             `json:"tick"`
	Command sim.Command       `json:"command"`
	Result  sim.CommandResult `json:"result"`
}

// Run starts the pool and the tick loop, and blocks until the session is
// killed or the tick loop exits on a fatal simulator error.
func (s *Session) Run() error {
	s.pool.Start(&s.tomb)
	s.tomb.Go(s.tickLoop)
	return s.tomb.Wait()
}

func (s *Session) tickLoop() error {
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()
	paused := false

	for {
		select {
		case <-s.tomb.Dying():
			return nil
		case want := <-s.paused:
			paused = want
		case <-ticker.C:
			if paused {
				continue
			}
			snap := s.sim.Tick()
			if snap.Fatal != "" {
				log.Error().Str("fatal", snap.Fatal).Int64("tick", snap.Tick).Msg("runtime: simulator poisoned, stopping")
				// A non-nil error kills the tomb, so the pool workers stop too
				// and Run returns.
				return fmt.Errorf("runtime: simulator poisoned at tick %d: %s", snap.Tick, snap.Fatal)
			}
		}
	}
}

// Pause stops the tick loop from advancing without tearing it down.
func (s *Session) Pause() { s.paused <- true }

// Resume restarts tick advancement after a Pause.
func (s *Session) Resume() { s.paused <- false }

// Stop kills the supervised goroutines and waits for them to exit.
func (s *Session) Stop() error {
	s.tomb.Kill(nil)
	return s.tomb.Wait()
}

// WriteHeader marshals and writes the session header before the first
// tick. Exposed here so callers don't need to hold a reference to the
// journal directly.
func (s *Session) WriteHeader(h journal.Header) error {
	return s.journal.WriteHeader(h)
}

// MarshalConfig is a small helper for building journal.Header.Config
// from a typed config struct, via a JSON round-trip through a generic
// map.
func MarshalConfig(cfg any) map[string]any {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
