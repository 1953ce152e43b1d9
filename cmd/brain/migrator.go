package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/migrate"
	"github.com/pmos/brain/internal/registry"
)

var migratorCmd = &cobra.Command{
	Use:   "migrator",
	Short: "v1 to v2 schema migration state machine",
}

var (
	migrateDryRun     bool
	migrateSkipBackup bool
	migrateForce      bool
)

var migratorMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run DETECT -> BACKUP -> MIGRATE -> REBUILD_REGISTRY -> SNAPSHOT -> VERIFY",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := migrate.NewRunner(cfg.Root)
		result, err := runner.Run(migrate.RunOptions{
			DryRun:     migrateDryRun,
			SkipBackup: migrateSkipBackup,
			Force:      migrateForce,
		})
		if jsonOutput {
			data, jerr := json.MarshalIndent(result, "", "  ")
			if jerr != nil {
				return jerr
			}
			fmt.Println(string(data))
		} else {
			fmt.Printf("state=%s migrated=%d skipped=%d failed=%d backup=%s\n",
				result.State, result.Stats.EntitiesMigrated, result.Stats.EntitiesSkipped,
				result.Stats.EntitiesFailed, result.BackupPath)
		}
		if err != nil {
			return exitCodeErr{err, 2}
		}
		return nil
	},
}

var migratorRollbackBackupPath string

var migratorRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the brain root from a prior migration backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migratorRollbackBackupPath == "" {
			return exitCodeErr{fmt.Errorf("--backup-path is required"), 1}
		}
		if err := migrate.Restore(migratorRollbackBackupPath, cfg.Root); err != nil {
			return err
		}
		fmt.Println("restored from", migratorRollbackBackupPath)
		return nil
	},
}

var migratorVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate every entity and confirm the registry loads",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := entityStore()
		results, err := migrate.ValidateAll(store)
		if err != nil {
			return err
		}
		failed := 0
		for _, r := range results {
			if !r.Valid {
				failed++
				fmt.Printf("FAIL %s\n", r.Path)
			}
		}
		fmt.Printf("%d entities checked, %d failed\n", len(results), failed)
		if failed > 0 {
			return exitCodeErr{fmt.Errorf("%d entities failed validation", failed), 2}
		}
		return nil
	},
}

var migratorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the registry's current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.NewBuilder(cfg.Root).Load()
		if err != nil {
			return err
		}
		fmt.Printf("schema=%s entities=%d\n", reg.Schema, len(reg.Entities))
		return nil
	},
}

func init() {
	migratorMigrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Report what would change without writing")
	migratorMigrateCmd.Flags().BoolVar(&migrateSkipBackup, "skip-backup", false, "Skip the pre-migration backup (disables rollback)")
	migratorMigrateCmd.Flags().BoolVar(&migrateForce, "force", false, "Re-run migration even if the registry is already v2")
	migratorRollbackCmd.Flags().StringVar(&migratorRollbackBackupPath, "backup-path", "", "Backup directory to restore from")
	migratorCmd.AddCommand(migratorMigrateCmd, migratorRollbackCmd, migratorVerifyCmd, migratorStatusCmd)
	rootCmd.AddCommand(migratorCmd)
}
