package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"talos/internal/bots"
	"talos/internal/config"
	"talos/internal/journal"
	"talos/internal/runtime"
	"talos/internal/sim"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		journalPath string
		seed        int64
		startPrice  int64
		ticks       int64
		tickMillis  int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a new session and journal it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return &configError{err}
			}

			j, err := journal.Open(journalPath)
			if err != nil {
				return &journalError{err}
			}
			defer j.Close()

			s := sim.New(cfg, seed, startPrice)
			seedRoster(s)

			sess := runtime.NewSession(s, j, 4, time.Duration(tickMillis)*time.Millisecond)
			if err := sess.WriteHeader(journal.Header{
				RunID: uuid.NewString(),
				Seed:  seed, StartPrice: startPrice,
				Config: runtime.MarshalConfig(cfg),
				Bots:   []string{"marketmaker-1", "marketmaker-2", "noise-1"},
			}); err != nil {
				return &journalError{err}
			}

			log.Info().Int64("seed", seed).Int64("ticks", ticks).Msg("talos: starting session")

			done := make(chan error, 1)
			go func() { done <- sess.Run() }()

			if ticks > 0 {
				time.Sleep(time.Duration(ticks) * time.Duration(tickMillis) * time.Millisecond)
				if err := sess.Stop(); err != nil {
					return err
				}
			}
			return <-done
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "session.yaml", "path to session config YAML")
	cmd.Flags().StringVar(&journalPath, "journal", "session.jsonl", "path to write the session journal")
	cmd.Flags().Int64Var(&seed, "seed", 1, "deterministic RNG seed")
	cmd.Flags().Int64Var(&startPrice, "start-price", 10000, "starting fair value, in ticks")
	cmd.Flags().Int64Var(&ticks, "ticks", 0, "number of ticks to run before exiting (0 = run until killed)")
	cmd.Flags().Int64Var(&tickMillis, "tick-ms", 100, "wall-clock milliseconds per tick")
	return cmd
}

func seedRoster(s *sim.Simulator) {
	s.RegisterBot(bots.NewMarketMaker("marketmaker-1", 2, 10, 20, 1), 3, 1)
	s.RegisterBot(bots.NewMarketMaker("marketmaker-2", 3, 8, 25, 1), 4, 2)
	s.RegisterBot(bots.NewNoise("noise-1", 5, 0.3), 2, 5)
}
