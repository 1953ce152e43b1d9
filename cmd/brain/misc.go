package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/bootcheck"
	"github.com/pmos/brain/internal/brainindex"
	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/hints"
)

var hintsCmd = &cobra.Command{
	Use:   "hints",
	Short: "Report missing fields per entity and which sources could fill them",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := entityStore()
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
		entries := hints.Scan(entities)
		if jsonOutput {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s (%s)\n", e.ID, e.Type)
			for _, g := range e.Gaps {
				fmt.Printf("  missing %-12s priority=%-6s sources=%v\n", g.Field, g.Priority, g.Sources)
			}
		}
		fmt.Printf("%d entities with gaps\n", len(entries))
		return nil
	},
}

var brainIndexCmd = &cobra.Command{
	Use:   "brain-index",
	Short: "Generate a Markdown index of every entity, grouped by type",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := entityStore()
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
		fmt.Print(brainindex.Generate(entities))
		return nil
	},
}

var bootcheckCmd = &cobra.Command{
	Use:   "bootcheck",
	Short: "Run pre-flight checks: root exists, registry and resolver cache load",
	RunE: func(cmd *cobra.Command, args []string) error {
		result := bootcheck.Run(cfg.Root)
		fmt.Print(bootcheck.Summary(result))
		if !result.OK() {
			return exitCodeErr{fmt.Errorf("one or more boot checks failed"), 2}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hintsCmd, brainIndexCmd, bootcheckCmd)
}
