package orchestrator

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// defaultCheckpointName matches spec.md §6's default
// <brain>/.enrichment_checkpoint.<ext> path.
const defaultCheckpointName = ".enrichment_checkpoint.json"

// Checkpoint is the orchestrator progress record persisted after every
// batch, per spec.md §4.13 and §6.
type Checkpoint struct {
	StartedAt        time.Time `json:"started_at"`
	LastCheckpoint   time.Time `json:"last_checkpoint"`
	TotalEntities    int       `json:"total_entities"`
	ProcessedEntities int      `json:"processed_entities"`
	Successful       int       `json:"successful"`
	Failed           int       `json:"failed"`
	SourcesCompleted []string  `json:"sources_completed"`
	CurrentSource    string    `json:"current_source,omitempty"`
	LastEntityID     string    `json:"last_entity_id,omitempty"`
}

func newCheckpoint() *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{StartedAt: now, LastCheckpoint: now}
}

// loadCheckpoint reads a checkpoint file. When the file is absent or
// unparseable it returns a fresh Checkpoint together with the error, so
// the caller can start over instead of failing the run.
func loadCheckpoint(path string) (*Checkpoint, error) {
	if path == "" {
		return newCheckpoint(), nil
	}
	data, err := os.ReadFile(path) // #nosec G304 - path is an operator-configured checkpoint location
	if err != nil {
		return newCheckpoint(), err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return newCheckpoint(), err
	}
	return &cp, nil
}

// saveCheckpoint writes cp atomically via temp+rename, per spec.md §4.13.
// Failures are non-fatal: checkpointing is best-effort progress tracking,
// never the source of truth for entity state.
func saveCheckpoint(path string, cp *Checkpoint) {
	if path == "" {
		return
	}
	cp.LastCheckpoint = time.Now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 - checkpoint is not a secret
		return
	}
	_ = os.Rename(tmp, path)
}

// DefaultCheckpointPath returns the default checkpoint file path under
// root.
func DefaultCheckpointPath(root string) string {
	return filepath.Join(root, defaultCheckpointName)
}
