package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/event"
	"github.com/pmos/brain/internal/orphan"
)

var orphanCmd = &cobra.Command{
	Use:   "orphan",
	Short: "Classify and report relationship-less entities",
}

func newOrphanAnalyzer() *orphan.Analyzer {
	store := entityStore()
	return orphan.New(store, event.New(store, 256))
}

var orphanScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Report orphan_reason mismatches without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		muts, err := newOrphanAnalyzer().Scan()
		if err != nil {
			return err
		}
		printMutations(muts)
		return nil
	},
}

var orphanMarkPendingCmd = &cobra.Command{
	Use:   "mark-pending",
	Short: "Apply pending_enrichment to unclassified orphans",
	RunE: func(cmd *cobra.Command, args []string) error {
		muts, err := newOrphanAnalyzer().MarkPending()
		if err != nil {
			return err
		}
		printMutations(muts)
		return nil
	},
}

var orphanMarkStandaloneCmd = &cobra.Command{
	Use:   "mark-standalone",
	Short: "Apply standalone to relationship-less domains and brands",
	RunE: func(cmd *cobra.Command, args []string) error {
		muts, err := newOrphanAnalyzer().MarkStandalone()
		if err != nil {
			return err
		}
		printMutations(muts)
		return nil
	},
}

var orphanClearConnectedCmd = &cobra.Command{
	Use:   "clear-connected",
	Short: "Clear orphan_reason on entities that regained relationships",
	RunE: func(cmd *cobra.Command, args []string) error {
		muts, err := newOrphanAnalyzer().ClearConnected()
		if err != nil {
			return err
		}
		printMutations(muts)
		return nil
	},
}

var orphanReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize orphan_reason distribution across the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := newOrphanAnalyzer().BuildReport()
		if err != nil {
			return err
		}
		if jsonOutput {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("total=%d connected=%d\n", report.Total, report.Connected)
		for reason, count := range report.ByReason {
			fmt.Printf("  %-20s %d\n", reason, count)
		}
		return nil
	},
}

func printMutations(muts []orphan.Mutation) {
	for _, m := range muts {
		fmt.Printf("%s: %q -> %q (%s)\n", m.EntityID, m.From, m.To, m.Path)
	}
	fmt.Printf("%d entities affected\n", len(muts))
}

func init() {
	orphanCmd.AddCommand(orphanScanCmd, orphanMarkPendingCmd, orphanMarkStandaloneCmd, orphanClearConnectedCmd, orphanReportCmd)
	rootCmd.AddCommand(orphanCmd)
}
