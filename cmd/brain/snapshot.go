package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Point-in-time registry and entity snapshots",
}

var snapshotIncludeEntities bool

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Capture a new snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := snapshot.New(cfg.Root)
		path, err := mgr.Create(snapshot.CreateOptions{IncludeEntities: snapshotIncludeEntities, Compress: true})
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List existing snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := snapshot.New(cfg.Root)
		listings, err := mgr.List(time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		if jsonOutput {
			data, err := json.MarshalIndent(listings, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		for _, l := range listings {
			fmt.Printf("%s  %-40s  %d bytes\n", l.Timestamp.Format(time.RFC3339), l.Path, l.SizeBytes)
		}
		return nil
	},
}

var (
	snapshotRetentionDays int
	snapshotKeepMonthly   bool
	snapshotCleanupDryRun bool
)

var snapshotCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune snapshots older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := snapshot.New(cfg.Root)
		removed, err := mgr.Cleanup(snapshot.CleanupOptions{
			RetentionDays: snapshotRetentionDays,
			KeepMonthly:   snapshotKeepMonthly,
			DryRun:        snapshotCleanupDryRun,
		})
		if err != nil {
			return err
		}
		verb := "removed"
		if snapshotCleanupDryRun {
			verb = "would remove"
		}
		for _, r := range removed {
			fmt.Printf("%s %s\n", verb, r)
		}
		fmt.Printf("%s %d snapshot directories\n", verb, len(removed))
		return nil
	},
}

var snapshotGetDate string

var snapshotGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Retrieve the snapshot at or before a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := snapshot.New(cfg.Root)
		var snap *snapshot.Snapshot
		var err error
		if snapshotGetDate == "" {
			snap, err = mgr.Get(time.Time{})
		} else {
			snap, err = mgr.GetByDate(snapshotGetDate)
		}
		if err != nil {
			return err
		}
		if snap == nil {
			return exitCodeErr{fmt.Errorf("no snapshot found"), 2}
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	snapshotCreateCmd.Flags().BoolVar(&snapshotIncludeEntities, "include-entities", false, "Also capture every entity's front matter")
	snapshotCleanupCmd.Flags().IntVar(&snapshotRetentionDays, "retention-days", 30, "Remove date directories older than this many days")
	snapshotCleanupCmd.Flags().BoolVar(&snapshotKeepMonthly, "keep-monthly", false, "Always keep the first snapshot date of each month")
	snapshotCleanupCmd.Flags().BoolVar(&snapshotCleanupDryRun, "dry-run", false, "Report what would be removed without removing it")
	snapshotGetCmd.Flags().StringVar(&snapshotGetDate, "date", "", "Date (YYYY-MM-DD) to retrieve; defaults to the latest snapshot")
	snapshotCmd.AddCommand(snapshotCreateCmd, snapshotListCmd, snapshotCleanupCmd, snapshotGetCmd)
	rootCmd.AddCommand(snapshotCmd)
}
