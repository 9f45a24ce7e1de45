// Command talos drives the exchange simulator: "run" starts a live
// session against a YAML config, "replay" reconstructs one from its
// journal. Subcommand layout follows the cobra idiom VictorVVedtion-perp-dex's
// client/cli packages use for their query/tx command trees.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("talos: command failed")
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talos",
		Short: "Deterministic exchange simulator",
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newReplayCmd())
	return cmd
}

// exitCodeFor maps a command failure to spec.md §6's exit-code contract:
// 0 clean, 2 bad config, 3 journal I/O error, 1 anything else.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *configError:
		return 2
	case *journalError:
		return 3
	default:
		return 1
	}
}

type configError struct{ error }
type journalError struct{ error }
