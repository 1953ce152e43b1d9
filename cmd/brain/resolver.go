package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/resolver"
)

var resolverCmd = &cobra.Command{
	Use:   "resolver",
	Short: "Canonical reference resolver: build, resolve, stats, similar",
}

var resolverBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the resolver cache from the entity store",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := resolver.New(cfg.Root)
		if err := res.Build(true); err != nil {
			return err
		}
		fmt.Println("resolver cache rebuilt")
		return nil
	},
}

var resolverReference string

var resolverResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a reference to its canonical id",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := resolver.New(cfg.Root)
		id, err := res.Resolve(resolverReference)
		if err != nil {
			return err
		}
		if id == "" {
			return exitCodeErr{fmt.Errorf("no entity resolves %q", resolverReference), 2}
		}
		fmt.Println(id)
		return nil
	},
}

var resolverStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report resolver cache size",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := resolver.New(cfg.Root)
		st, err := res.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("entries=%d ids=%d\n", st.Entries, st.Ids)
		return nil
	},
}

var resolverSimilarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Find approximate matches for a reference",
	RunE: func(cmd *cobra.Command, args []string) error {
		res := resolver.New(cfg.Root)
		matches, err := res.FindSimilar(resolverReference, 10)
		if err != nil {
			return err
		}
		if jsonOutput {
			data, err := json.MarshalIndent(matches, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%.2f  %s  (via %q)\n", m.Score, m.ID, m.Ref)
		}
		return nil
	},
}

func init() {
	resolverResolveCmd.Flags().StringVar(&resolverReference, "reference", "", "Reference to resolve")
	resolverSimilarCmd.Flags().StringVar(&resolverReference, "reference", "", "Reference to find similar matches for")
	resolverCmd.AddCommand(resolverBuildCmd, resolverResolveCmd, resolverStatsCmd, resolverSimilarCmd)
	rootCmd.AddCommand(resolverCmd)
}
