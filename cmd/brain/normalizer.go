package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/event"
	"github.com/pmos/brain/internal/normalize"
	"github.com/pmos/brain/internal/resolver"
)

var normalizerCmd = &cobra.Command{
	Use:   "normalizer",
	Short: "Resolve and dedupe relationship targets across the store",
}

var (
	normalizerApply  bool
	normalizerEntity string
)

var normalizerNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize relationships for one entity, or the whole store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := entityStore()
		norm := normalize.New(store, event.New(store, 256), resolver.New(cfg.Root))

		if normalizerEntity != "" {
			result, err := norm.One(normalizerEntity, normalizerApply)
			if err != nil {
				return err
			}
			printNormalizeResult(result)
			return nil
		}

		batch, err := norm.Batch(normalizerApply, func(done, total int, path string) {
			if !jsonOutput {
				fmt.Printf("[%d/%d] %s\n", done, total, path)
			}
		})
		if err != nil {
			return err
		}
		for _, r := range batch.Results {
			if r.Changed {
				printNormalizeResult(r)
			}
		}
		fmt.Printf("%d entities processed, %d orphaned target(s)\n", len(batch.Results), len(batch.Orphans))
		return nil
	},
}

func printNormalizeResult(r normalize.Result) {
	fmt.Printf("%s changed=%v %v\n", r.Path, r.Changed, r.CountByKind)
	for _, o := range r.Orphans {
		fmt.Printf("  orphan: %s %s -> %q unresolved\n", o.EntityID, o.RelType, o.Target)
	}
}

var normalizerReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Dry-run normalize over the whole store and report findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := entityStore()
		norm := normalize.New(store, event.New(store, 256), resolver.New(cfg.Root))
		batch, err := norm.Batch(false, nil)
		if err != nil {
			return err
		}
		changed := 0
		for _, r := range batch.Results {
			if r.Changed {
				changed++
				printNormalizeResult(r)
			}
		}
		fmt.Printf("%d/%d entities would change, %d orphaned target(s)\n", changed, len(batch.Results), len(batch.Orphans))
		return nil
	},
}

func init() {
	normalizerNormalizeCmd.Flags().BoolVar(&normalizerApply, "apply", false, "Write normalized relationships (default is dry-run)")
	normalizerNormalizeCmd.Flags().StringVar(&normalizerEntity, "entity", "", "Normalize only this entity path")
	normalizerCmd.AddCommand(normalizerNormalizeCmd, normalizerReportCmd)
	rootCmd.AddCommand(normalizerCmd)
}
