package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pmos/brain/internal/enrich"
	"github.com/pmos/brain/internal/event"
	"github.com/pmos/brain/internal/orchestrator"
	"github.com/pmos/brain/internal/resolver"
)

var (
	orchestratorSources   []string
	orchestratorWorkers   int
	orchestratorBatchSize int
	orchestratorNoResume  bool
	orchestratorDryRun    bool
)

var orchestratorCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Run the enrichment orchestrator over every configured source",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := entityStore()
		events := event.New(store, 256)
		res := resolver.New(cfg.Root)
		base := enrich.Base{Store: store, Events: events, Resolver: res}

		reg := enrich.NewRegistry()
		reg.Register(enrich.NewChatEnricher(base))
		reg.Register(enrich.NewIssueTrackerEnricher(base))
		reg.Register(enrich.NewCodeHostEnricher(base))
		reg.Register(enrich.NewDocStoreEnricher(base))
		reg.Register(enrich.NewCalendarEnricher(base))
		reg.Register(enrich.NewSpreadsheetEnricher(base))
		reg.Register(enrich.NewSessionEnricher(base))

		orch := orchestrator.New(reg, inboxLoader(cfg.Root))

		opts := orchestrator.Options{
			MaxWorkers:     orchestratorWorkers,
			BatchSize:      orchestratorBatchSize,
			CheckpointFile: orchestrator.DefaultCheckpointPath(cfg.Root),
			Resume:         !orchestratorNoResume,
			DryRun:         orchestratorDryRun,
			Sources:        orchestratorSources,
		}

		summary, err := orch.Run(context.Background(), opts)
		if jsonOutput {
			data, jerr := json.MarshalIndent(summary, "", "  ")
			if jerr != nil {
				return jerr
			}
			fmt.Println(string(data))
		} else {
			fmt.Printf("sources=%v total=%d processed=%d ok=%d failed=%d\n",
				summary.SourcesCompleted, summary.TotalEntities, summary.ProcessedEntities,
				summary.Successful, summary.Failed)
		}
		return err
	},
}

// inboxLoader reads raw enrichment records from <root>/Inbox/<Source>/,
// mirroring enrichment_pipeline.py's _load_source_data: each source
// directory holds one JSON file (or array) per captured record, and a
// record's id is its own "id"/"correlation_id" field if present, else a
// positional fallback so resume has something stable to compare against.
func inboxLoader(root string) orchestrator.SourceLoader {
	return func(source string) ([]orchestrator.Record, error) {
		dir := filepath.Join(root, "Inbox", sourceDirName(source))
		raw, err := enrich.LoadInboxRecords(dir)
		if err != nil {
			return nil, err
		}
		out := make([]orchestrator.Record, 0, len(raw))
		for i, rec := range raw {
			id := enrich.StringField(rec, "id")
			if id == "" {
				id = enrich.StringField(rec, "correlation_id")
			}
			if id == "" {
				id = source + "-" + strconv.Itoa(i)
			}
			out = append(out, orchestrator.Record{ID: id, Data: rec})
		}
		return out, nil
	}
}

// sourceDirName maps a source key to its Inbox directory name, matching
// the original tool's per-source capitalized folder convention.
func sourceDirName(source string) string {
	parts := strings.Split(source, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "")
}

func init() {
	orchestratorCmd.Flags().StringSliceVar(&orchestratorSources, "sources", nil, "Sources to run, in declaration order (default: all)")
	orchestratorCmd.Flags().IntVar(&orchestratorWorkers, "workers", 4, "Maximum concurrent enrichment workers")
	orchestratorCmd.Flags().IntVar(&orchestratorBatchSize, "batch-size", 10, "Records per checkpointed batch")
	orchestratorCmd.Flags().BoolVar(&orchestratorNoResume, "no-resume", false, "Ignore any existing checkpoint and start from the beginning")
	orchestratorCmd.Flags().BoolVar(&orchestratorDryRun, "dry-run", false, "Report what would change without writing events")
	rootCmd.AddCommand(orchestratorCmd)
}
