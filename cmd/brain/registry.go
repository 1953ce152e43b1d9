package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/registry"
)

var (
	registryIncremental bool
	registryDryRun      bool
	registryOutput      string
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Rebuild the denormalized entity registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		builder := registry.NewBuilder(cfg.Root)
		prior, err := builder.Load()
		if err != nil {
			return err
		}
		reg, err := builder.Rebuild(registryIncremental, prior)
		if err != nil {
			return err
		}
		if registryDryRun {
			fmt.Printf("would write %d entities\n", len(reg.Entities))
			return nil
		}
		if registryOutput != "" {
			return registryWriteTo(registryOutput, reg)
		}
		return builder.Save(reg)
	},
}

func registryWriteTo(path string, reg *registry.Registry) error {
	b := registry.NewBuilder(path)
	return b.Save(reg)
}

func init() {
	registryCmd.Flags().BoolVar(&registryIncremental, "incremental", false, "Accepted for compatibility; every rebuild re-derives all entries")
	registryCmd.Flags().BoolVar(&registryDryRun, "dry-run", false, "Report what would change without writing")
	registryCmd.Flags().StringVar(&registryOutput, "output", "", "Write the registry to an alternate path")
	rootCmd.AddCommand(registryCmd)
}
