// Package migrate detects and migrates v1 entities to the v2 schema, and
// validates entities against either schema, per spec.md §4.7. Ported
// from original_source/tools/brain/migration_runner.py and
// entity_validator.py.
package migrate

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pmos/brain/internal/brainerr"
	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/obs"
	"github.com/pmos/brain/internal/registry"
	"github.com/pmos/brain/internal/resolver"
	"github.com/pmos/brain/internal/snapshot"
)

// State names one step of the migration state machine.
type State string

const (
	StateDetect         State = "DETECT"
	StateBackup         State = "BACKUP"
	StateMigrate        State = "MIGRATE"
	StateRebuildIndex   State = "REBUILD_REGISTRY"
	StateSnapshot       State = "SNAPSHOT"
	StateVerify         State = "VERIFY"
	StateOK             State = "OK"
	StateRolledBack     State = "ROLLED_BACK"
)

// Stats tallies what Run did.
type Stats struct {
	EntitiesMigrated int
	EntitiesSkipped  int
	EntitiesFailed   int
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Result is Run's outcome: the final state reached, stats, and (when the
// run reached at least BACKUP) the backup directory used for rollback.
type Result struct {
	State      State
	Stats      Stats
	BackupPath string
	Errors     []string
}

// RunOptions controls a migration run.
type RunOptions struct {
	DryRun     bool
	SkipBackup bool
	Force      bool
}

// Runner drives the v1->v2 migration FSM for one brain root.
type Runner struct {
	root string
}

// NewRunner creates a Runner over the brain rooted at root.
func NewRunner(root string) *Runner {
	return &Runner{root: root}
}

// Run executes DETECT -> BACKUP -> MIGRATE -> REBUILD_REGISTRY ->
// SNAPSHOT -> VERIFY. If any step after MIGRATE fails and a backup was
// taken, it rolls back to the pre-migration backup and returns
// StateRolledBack; with SkipBackup the failing state is kept.
func (r *Runner) Run(opts RunOptions) (Result, error) {
	logger := obs.Logger("migrate")
	result := Result{Stats: Stats{StartedAt: time.Now().UTC()}}

	already, err := r.isAlreadyMigrated()
	if err != nil {
		return result, err
	}
	if already && !opts.Force {
		result.State = StateOK
		return result, nil
	}
	result.State = StateDetect

	if !opts.SkipBackup && !opts.DryRun {
		backupPath, err := r.backup()
		if err != nil {
			return result, err
		}
		result.BackupPath = backupPath
	}
	result.State = StateBackup

	stats, migrateErrs := r.migrateEntities(opts.DryRun)
	result.Stats.EntitiesMigrated = stats.EntitiesMigrated
	result.Stats.EntitiesSkipped = stats.EntitiesSkipped
	result.Stats.EntitiesFailed = stats.EntitiesFailed
	result.Errors = migrateErrs
	result.State = StateMigrate

	if opts.DryRun {
		result.Stats.FinishedAt = time.Now().UTC()
		result.State = StateOK
		return result, nil
	}

	if err := r.rebuildRegistry(); err != nil {
		return r.rollback(result, backupOrEmpty(opts, result.BackupPath), err, logger)
	}
	result.State = StateRebuildIndex

	if _, err := r.snapshot(); err != nil {
		return r.rollback(result, backupOrEmpty(opts, result.BackupPath), err, logger)
	}
	result.State = StateSnapshot

	if err := r.verify(); err != nil {
		return r.rollback(result, backupOrEmpty(opts, result.BackupPath), err, logger)
	}
	result.State = StateVerify

	result.Stats.FinishedAt = time.Now().UTC()
	result.State = StateOK
	return result, nil
}

func backupOrEmpty(opts RunOptions, path string) string {
	if opts.SkipBackup {
		return ""
	}
	return path
}

// rollback restores the brain from backupPath, if one exists, and
// returns a Result in StateRolledBack along with the triggering error.
func (r *Runner) rollback(result Result, backupPath string, cause error, logger interface {
	Error(string, ...interface{})
}) (Result, error) {
	if backupPath == "" {
		result.Errors = append(result.Errors, "no backup available, could not roll back: "+cause.Error())
		return result, cause
	}
	logger.Error("migration failed, rolling back", "error", cause)
	if err := Restore(backupPath, r.root); err != nil {
		result.Errors = append(result.Errors, "rollback failed: "+err.Error())
		return result, err
	}
	result.State = StateRolledBack
	result.Errors = append(result.Errors, cause.Error())
	return result, cause
}

func (r *Runner) isAlreadyMigrated() (bool, error) {
	b := registry.NewBuilder(r.root)
	if _, err := os.Stat(b.Path()); os.IsNotExist(err) {
		return false, nil
	}
	reg, err := b.Load()
	if err != nil {
		return false, err
	}
	return reg.Schema == registry.Schema, nil
}

// backup copies the entire brain root into <parent>/brain_backups/brain-pre-v2-<timestamp>.
func (r *Runner) backup() (string, error) {
	timestamp := time.Now().UTC().Format("20060102-150405")
	backupsDir := filepath.Join(filepath.Dir(r.root), "brain_backups")
	if err := os.MkdirAll(backupsDir, 0o755); err != nil {
		return "", brainerr.Wrap("migrate.backup", brainerr.ErrIO, err)
	}
	dest := filepath.Join(backupsDir, "brain-pre-v2-"+timestamp)
	if err := copyTree(r.root, dest); err != nil {
		return "", brainerr.Wrap("migrate.backup", brainerr.ErrIO, err)
	}
	return dest, nil
}

// Restore replaces dest with a fresh copy of backupPath, as rollback()
// and the standalone `brain migrator rollback` CLI verb both do.
func Restore(backupPath, dest string) error {
	if err := os.RemoveAll(dest); err != nil {
		return brainerr.Wrap("migrate.Restore", brainerr.ErrIO, err)
	}
	if err := copyTree(backupPath, dest); err != nil {
		return brainerr.Wrap("migrate.Restore", brainerr.ErrIO, err)
	}
	return nil
}

func (r *Runner) migrateEntities(dryRun bool) (Stats, []string) {
	store := entity.New(r.root)
	res := resolver.New(r.root)

	var stats Stats
	var errs []string

	paths, err := store.List()
	if err != nil {
		return stats, []string{err.Error()}
	}

	for _, p := range paths {
		e, node, err := store.Read(p)
		if err != nil {
			stats.EntitiesFailed++
			errs = append(errs, p+": "+err.Error())
			continue
		}
		if e.Header.IsV2() {
			stats.EntitiesSkipped++
			continue
		}
		if dryRun {
			stats.EntitiesMigrated++
			continue
		}
		migrated, err := migrateOne(e, res)
		if err != nil {
			stats.EntitiesFailed++
			errs = append(errs, p+": "+err.Error())
			continue
		}
		if err := store.Write(p, migrated, node); err != nil {
			stats.EntitiesFailed++
			errs = append(errs, p+": "+err.Error())
			continue
		}
		stats.EntitiesMigrated++
	}
	return stats, errs
}

// migrateOne rewrites a v1 entity's header into v2 shape: assigns a
// schema version, infers a canonical id when one is missing, stamps
// created if absent, always sets updated to now, and records a
// `migration` event.
func migrateOne(e entity.Entity, res *resolver.Resolver) (entity.Entity, error) {
	now := time.Now().UTC()
	h := e.Header

	if h.Type == "" {
		h.Type = entity.TypeProject
	}
	if h.Name == "" {
		h.Name = h.ID
	}
	if h.ID == "" {
		h.ID = resolver.InferID(h.Type, h.Name)
	}
	if h.Created.IsZero() {
		h.Created = now
	}
	h.Updated = now
	if h.Version <= 0 {
		h.Version = 1
	}
	h.SchemaVersion = 2

	h.Events = append(h.Events, entity.Event{
		EventID:   "ev-migration-" + now.Format("20060102150405"),
		Timestamp: now,
		Type:      entity.EventMigration,
		Actor:     "migrate",
		Message:   "migrated from v1 to v2 schema",
	})

	e.Header = h
	return e, nil
}

func (r *Runner) rebuildRegistry() error {
	b := registry.NewBuilder(r.root)
	reg, err := b.Rebuild(false, nil)
	if err != nil {
		return err
	}
	return b.Save(reg)
}

func (r *Runner) snapshot() (string, error) {
	mgr := snapshot.New(r.root)
	return mgr.Create(snapshot.CreateOptions{
		IncludeEntities: true,
		Compress:        true,
		Metadata: map[string]interface{}{
			"migration": "v1_to_v2",
		},
	})
}

// verify checks that the post-migration brain is internally consistent:
// the registry loads and every v2 entity validates without errors,
// standing in for the original tool's ad hoc "import every sibling
// module" smoke test (which has no Go equivalent to import).
func (r *Runner) verify() error {
	b := registry.NewBuilder(r.root)
	if _, err := b.Load(); err != nil {
		return err
	}

	results, err := ValidateAll(entity.New(r.root))
	if err != nil {
		return err
	}
	for _, res := range results {
		if !res.Valid {
			return brainerr.Wrap("migrate.verify", brainerr.ErrPreconditionNotMet,
				errVerifyFailed{path: res.Path})
		}
	}
	return nil
}

type errVerifyFailed struct{ path string }

func (e errVerifyFailed) Error() string { return "entity failed post-migration validation: " + e.path }

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src) // #nosec G304 - path enumerated from a directory walk under the brain root
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode) // #nosec G304 - dest derived from backup/restore path
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
