package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/index"
	"github.com/pmos/brain/internal/query"
	"github.com/pmos/brain/internal/registry"
)

var (
	queryLimit   int
	queryNoGraph bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a BRAIN+GRAPH query: alias + content search with one-hop graph expansion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.NewBuilder(cfg.Root).Load()
		if err != nil {
			return err
		}
		idx := index.New(cfg.Root, cfg.Index.ExtraStopwords, cfg.Index.Synonyms)
		if _, err := idx.Load(); err != nil {
			return err
		}

		store := entity.New(cfg.Root)
		paths, err := store.List()
		if err != nil {
			return err
		}
		entities := make(map[string]entity.Entity, len(paths))
		for _, p := range paths {
			e, _, err := store.Read(p)
			if err != nil {
				continue
			}
			entities[p] = e
		}

		engine := query.New(reg, idx, entities)
		results := engine.Query(args[0], queryLimit, !queryNoGraph)

		if jsonOutput {
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, r := range results {
			fmt.Printf("%.2f  %-12s  %s\n", r.Score, r.Source, r.ID)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 20, "Maximum results to return")
	queryCmd.Flags().BoolVar(&queryNoGraph, "no-graph", false, "Disable one-hop graph expansion")
	rootCmd.AddCommand(queryCmd)
}
