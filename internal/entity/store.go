package entity

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pmos/brain/internal/brainerr"
	"github.com/pmos/brain/internal/obs"
	"gopkg.in/yaml.v3"
)

// reservedNames are non-entity files skipped on enumeration, per
// spec.md §4.1 ("index/readme/snapshot/schema directories").
var reservedNames = map[string]bool{
	"readme.md": true, "index.md": true,
}

// reservedDirs are directory names (relative to the root) whose contents
// are never treated as entities.
var reservedDirs = map[string]bool{
	".snapshots": true, ".schema": true, ".git": true,
}

// entityExt is the file extension entities are stored under.
const entityExt = ".md"

// Store reads and writes entity files under a root directory.
type Store struct {
	Root string
}

// New creates a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// List returns every entity's path relative to the root, sorted, skipping
// reserved files and directories.
func (s *Store) List() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.Root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel != "." && reservedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != entityExt {
			return nil
		}
		if reservedNames[strings.ToLower(d.Name())] {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, brainerr.Wrap("entity.List", brainerr.ErrIO, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Read loads and parses the entity at path (relative to the root).
func (s *Store) Read(path string) (Entity, *yaml.Node, error) {
	full := filepath.Join(s.Root, path)
	data, err := os.ReadFile(full) // #nosec G304 - path constrained to the store root by List
	if err != nil {
		if os.IsNotExist(err) {
			return Entity{}, nil, brainerr.Wrap("entity.Read", brainerr.ErrNotFound, err)
		}
		return Entity{}, nil, brainerr.Wrap("entity.Read", brainerr.ErrIO, err)
	}
	return Unmarshal(path, data)
}

// Write persists an entity as a single whole-file rewrite via temp+rename,
// so readers never observe a torn write (spec.md §5).
func (s *Store) Write(path string, e Entity, orig *yaml.Node) error {
	data, err := Marshal(e, orig)
	if err != nil {
		return err
	}
	full := filepath.Join(s.Root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return brainerr.Wrap("entity.Write", brainerr.ErrIO, err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 - entity files are not secrets
		return brainerr.Wrap("entity.Write", brainerr.ErrIO, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return brainerr.Wrap("entity.Write", brainerr.ErrIO, err)
	}
	return nil
}

// Exists reports whether any entity in the store carries the given
// canonical id. It is an O(n) scan over the store; callers that need
// repeated O(1) lookups should consult the registry instead.
func (s *Store) Exists(id string) (bool, error) {
	paths, err := s.List()
	if err != nil {
		return false, err
	}
	for _, p := range paths {
		e, _, err := s.Read(p)
		if err != nil {
			continue
		}
		if e.Header.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// ChangeEvent reports a filesystem mutation observed by Watch.
type ChangeEvent struct {
	Path string
	Op   string
}

// Watch streams filesystem change notifications for entity files under
// the store root until ctx is canceled, grounded on the teacher's
// fsnotify-based hooks and used to trigger registry/index rebuilds
// without polling.
func (s *Store) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, brainerr.Wrap("entity.Watch", brainerr.ErrIO, err)
	}
	if err := filepath.WalkDir(s.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	}); err != nil {
		_ = w.Close()
		return nil, brainerr.Wrap("entity.Watch", brainerr.ErrIO, err)
	}

	out := make(chan ChangeEvent, 32)
	logger := obs.Logger("entity.watch")
	go func() {
		defer w.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if strings.ToLower(filepath.Ext(ev.Name)) != entityExt {
					continue
				}
				rel, err := filepath.Rel(s.Root, ev.Name)
				if err != nil {
					continue
				}
				select {
				case out <- ChangeEvent{Path: rel, Op: ev.Op.String()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watch error", "error", err)
			}
		}
	}()
	return out, nil
}
