package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/decay"
	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/stale"
)

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Relationship confidence decay and staleness",
}

var decayMonitorScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Compute effective confidence for every relationship",
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, paths, err := loadAllEntities()
		if err != nil {
			return err
		}
		report := decay.Scan(entities, paths, decay.Options{
			DecayRate: decayRate,
			Floor:     decayFloor,
		})
		return printDecayReport(report)
	},
}

var decayStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List entities that look abandoned",
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, paths, err := loadAllEntities()
		if err != nil {
			return err
		}
		byPath := make(map[string]entity.Entity, len(entities))
		for i, e := range entities {
			byPath[paths[i]] = e
		}
		entries := stale.Detect(byPath, time.Now().UTC())
		if jsonOutput {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%-20s %-10s age=%dd  %s\n", e.ID, e.Reason, e.AgeDays, e.Path)
		}
		fmt.Printf("%d stale entities\n", len(entries))
		return nil
	},
}

var (
	decayRate       float64
	decayFloor      float64
	decayOutput     string
)

var decayReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report stale relationships sorted weakest-first",
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, paths, err := loadAllEntities()
		if err != nil {
			return err
		}
		report := decay.Scan(entities, paths, decay.Options{DecayRate: decayRate, Floor: decayFloor})
		return printDecayReport(report)
	},
}

func printDecayReport(report decay.Report) error {
	if jsonOutput || decayOutput == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	for _, e := range report.Stalest {
		flag := ""
		if e.Stale {
			flag = "STALE"
		}
		fmt.Printf("%-6s %-20s %-12s -> %-20s base=%.2f eff=%.2f\n",
			flag, e.EntityID, e.RelType, e.Target, e.Base, e.Effective)
	}
	fmt.Printf("%d relationships, %d stale\n", report.Total, report.StaleTotal)
	return nil
}

func loadAllEntities() ([]entity.Entity, []string, error) {
	store := entityStore()
	paths, err := store.List()
	if err != nil {
		return nil, nil, err
	}
	entities := make([]entity.Entity, 0, len(paths))
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		e, _, err := store.Read(p)
		if err != nil {
			continue
		}
		entities = append(entities, e)
		kept = append(kept, p)
	}
	return entities, kept, nil
}

func init() {
	decayReportCmd.Flags().Float64Var(&decayRate, "decay-rate", decay.DefaultDecayRate, "Per-week confidence decay rate")
	decayReportCmd.Flags().Float64Var(&decayFloor, "threshold", decay.DefaultFloor, "Minimum effective confidence floor")
	decayReportCmd.Flags().StringVar(&decayOutput, "output", "text", "Output format: text or json")
	decayMonitorScanCmd.Flags().Float64Var(&decayRate, "decay-rate", decay.DefaultDecayRate, "Per-week confidence decay rate")
	decayMonitorScanCmd.Flags().Float64Var(&decayFloor, "floor", decay.DefaultFloor, "Minimum effective confidence floor")
	decayCmd.AddCommand(decayMonitorScanCmd, decayStaleCmd, decayReportCmd)
	rootCmd.AddCommand(decayCmd)
}
