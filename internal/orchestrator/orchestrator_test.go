package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pmos/brain/internal/enrich"
	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/event"
	"github.com/pmos/brain/internal/resolver"
)

type fakeEnricher struct {
	name string
	log  *[]string
}

func (f *fakeEnricher) SourceName() string      { return f.name }
func (f *fakeEnricher) SourceReliability() float64 { return 0.7 }
func (f *fakeEnricher) Enrich(record map[string]interface{}, dryRun bool) (int, error) {
	*f.log = append(*f.log, record["id"].(string))
	return 1, nil
}
func (f *fakeEnricher) EnrichFromInbox(dir string, dryRun bool) (enrich.Stats, error) {
	return enrich.Stats{}, nil
}

func TestOrchestratorResumesMidSource(t *testing.T) {
	root := t.TempDir()
	store := entity.New(root)
	if err := store.Write("e.md", entity.Entity{Header: entity.Header{
		SchemaVersion: 2, ID: "entity/project/e", Type: entity.TypeProject, Version: 1, Name: "E",
	}}, nil); err != nil {
		t.Fatal(err)
	}
	_ = event.New(store, 16)
	_ = resolver.New(root)

	var log []string
	docsEnricher := &fakeEnricher{name: "docs", log: &log}
	chatEnricher := &fakeEnricher{name: "chat", log: &log}

	reg := enrich.NewRegistry()
	reg.Register(docsEnricher)
	reg.Register(chatEnricher)

	chatRecords := []Record{
		{ID: "c1", Data: map[string]interface{}{"id": "c1"}},
		{ID: "c2", Data: map[string]interface{}{"id": "c2"}},
		{ID: "c3", Data: map[string]interface{}{"id": "c3"}},
	}
	loader := func(source string) ([]Record, error) {
		if source == "docs" {
			return []Record{{ID: "d1", Data: map[string]interface{}{"id": "d1"}}}, nil
		}
		return chatRecords, nil
	}

	orc := New(reg, loader)
	cpPath := filepath.Join(root, ".checkpoint.json")

	// Simulate a prior run that completed docs and processed c1 of chat.
	saveCheckpoint(cpPath, &Checkpoint{
		SourcesCompleted: []string{"docs"},
		CurrentSource:    "chat",
		LastEntityID:     "c1",
	})

	summary, err := orc.Run(context.Background(), Options{
		Sources:        []string{"docs", "chat"},
		CheckpointFile: cpPath,
		Resume:         true,
		RateLimit:      1000,
		BatchSize:      10,
		MaxWorkers:     2,
	})
	if err != nil {
		t.Fatal(err)
	}

	if contains(log, "d1") {
		t.Fatal("expected docs to be skipped as already completed")
	}
	if contains(log, "c1") {
		t.Fatal("expected c1 to be skipped on resume")
	}
	if !contains(log, "c2") || !contains(log, "c3") {
		t.Fatalf("expected c2 and c3 to be processed, got %v", log)
	}
	if len(summary.SourcesCompleted) != 2 {
		t.Fatalf("expected both sources completed, got %v", summary.SourcesCompleted)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
