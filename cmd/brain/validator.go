package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/migrate"
)

var (
	validatorAll        bool
	validatorSummary    bool
	validatorErrorsOnly bool
)

var validatorCmd = &cobra.Command{
	Use:   "validator [path]",
	Short: "Validate one entity or the whole store against its schema",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := entityStore()

		var results []migrate.ValidationResult
		switch {
		case validatorAll || len(args) == 0:
			all, err := migrate.ValidateAll(store)
			if err != nil {
				return err
			}
			results = all
		default:
			e, _, err := store.Read(args[0])
			if err != nil {
				return err
			}
			results = []migrate.ValidationResult{migrate.Validate(args[0], e)}
		}

		if validatorErrorsOnly {
			filtered := results[:0]
			for _, r := range results {
				if !r.Valid {
					filtered = append(filtered, r)
				}
			}
			results = filtered
		}

		if jsonOutput {
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return exitCodeFromResults(results)
		}

		failed := 0
		for _, r := range results {
			if !r.Valid {
				failed++
			}
			if validatorSummary {
				continue
			}
			fmt.Printf("%s [%s] valid=%v errors=%d warnings=%d\n",
				r.Path, r.SchemaVersion, r.Valid, len(r.Errors), len(r.Warnings))
			for _, e := range r.Errors {
				fmt.Printf("  ERROR %s: %s\n", e.Field, e.Message)
			}
		}
		fmt.Printf("%d checked, %d failed\n", len(results), failed)
		return exitCodeFromResults(results)
	},
}

func exitCodeFromResults(results []migrate.ValidationResult) error {
	for _, r := range results {
		if !r.Valid {
			return exitCodeErr{fmt.Errorf("one or more entities failed validation"), 2}
		}
	}
	return nil
}

func init() {
	validatorCmd.Flags().BoolVar(&validatorAll, "all", false, "Validate every entity in the store")
	validatorCmd.Flags().BoolVar(&validatorSummary, "summary", false, "Print only the final tally, not per-entity findings")
	validatorCmd.Flags().BoolVar(&validatorErrorsOnly, "errors-only", false, "Only report entities that failed validation")
	rootCmd.AddCommand(validatorCmd)
}
