// Command brain is the thin CLI surface over the core entity-graph
// engine: one subcommand per component named in spec.md §6, grounded on
// cmd/bd's one-cobra-command-per-file layout. There is no daemon or rpc
// layer here — spec.md's Non-goals exclude server-mode operation, so
// every invocation opens the store, does its work, and exits.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/config"
	"github.com/pmos/brain/internal/entity"
)

var (
	jsonOutput bool
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "brain",
	Short: "Personal knowledge-graph engine for product managers",
	Long: `brain manages a local, file-backed graph of typed entities:
people, teams, squads, projects, domains, experiments, systems, and
brands. It resolves references, serves blended keyword/graph queries,
and drives an enrichment pipeline that re-derives relationships from
external sources.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the CLI's exit code contract (spec.md
// §6): 0 success, 1 partial/configuration failure, 2 state-detection
// failure. main only reaches this on a non-nil top-level error, so the
// only values it returns are 1 or 2.
func exitCodeFor(err error) int {
	if ec, ok := err.(interface{ ExitCode() int }); ok {
		return ec.ExitCode()
	}
	return 1
}

// entityStore opens the entity store rooted at the loaded config's root,
// shared by every subcommand that needs to walk or read entities.
func entityStore() *entity.Store {
	return entity.New(cfg.Root)
}

// exitCodeErr wraps an error with an explicit CLI exit code.
type exitCodeErr struct {
	err  error
	code int
}

func (e exitCodeErr) Error() string { return e.err.Error() }
func (e exitCodeErr) ExitCode() int { return e.code }
func (e exitCodeErr) Unwrap() error { return e.err }
