// Package normalize resolves every entity relationship target to its
// canonical id, collapses duplicate (type, target) edges, and records
// unresolved targets in an orphan report, per spec.md §4.8. Ported from
// original_source/tools/brain/relationship_normalizer.py.
package normalize

import (
	"fmt"

	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/event"
	"github.com/pmos/brain/internal/resolver"
)

// ChangeKind classifies one relationship mutation made by a normalize
// pass, used both to build the per-entity event's change list and to
// tally counts by kind for the batch summary.
type ChangeKind string

const (
	ChangeResolved  ChangeKind = "resolved"
	ChangeDeduped   ChangeKind = "deduped"
	ChangeUnchanged ChangeKind = "unchanged"
)

// OrphanEntry records one relationship target that no variant resolved,
// for the orphan report.
type OrphanEntry struct {
	EntityPath string
	EntityID   string
	RelType    string
	Target     string
}

// Result is the outcome of normalizing one entity.
type Result struct {
	Path        string
	Changed     bool
	CountByKind map[ChangeKind]int
	Orphans     []OrphanEntry
}

// Normalizer resolves relationship targets via a resolver.Resolver and
// writes batched normalization events through an event.Store.
type Normalizer struct {
	store    *entity.Store
	events   *event.Store
	resolver *resolver.Resolver
}

// New creates a Normalizer over the given collaborators.
func New(store *entity.Store, events *event.Store, res *resolver.Resolver) *Normalizer {
	return &Normalizer{store: store, events: events, resolver: res}
}

// ProgressFunc is called after each entity is processed in batch mode.
type ProgressFunc func(done, total int, path string)

// One normalizes a single entity at path. When apply is false, the
// store is left untouched and Result reports what would change.
func (n *Normalizer) One(path string, apply bool) (Result, error) {
	e, _, err := n.store.Read(path)
	if err != nil {
		return Result{}, err
	}

	type key struct{ typ, target string }
	seen := map[key]bool{}
	var kept []entity.Relationship
	counts := map[ChangeKind]int{}
	var orphans []OrphanEntry
	changed := false

	for _, rel := range e.Header.Relationships {
		resolved := rel.Target
		if id, err := n.resolver.Resolve(rel.Target); err == nil && id != "" {
			resolved = id
		} else {
			orphans = append(orphans, OrphanEntry{
				EntityPath: path, EntityID: e.Header.ID,
				RelType: rel.Type, Target: rel.Target,
			})
		}

		k := key{rel.Type, resolved}
		if seen[k] {
			counts[ChangeDeduped]++
			changed = true
			continue
		}
		seen[k] = true

		if resolved != rel.Target {
			counts[ChangeResolved]++
			changed = true
		} else {
			counts[ChangeUnchanged]++
		}
		rel.Target = resolved
		kept = append(kept, rel)
	}

	result := Result{Path: path, Changed: changed, CountByKind: counts, Orphans: orphans}
	if !changed || !apply {
		return result, nil
	}

	changes := make([]entity.Change, 0, len(counts))
	total := 0
	for kind, count := range counts {
		if kind == ChangeUnchanged {
			continue
		}
		total += count
		changes = append(changes, entity.Change{
			Field: "relationships", Operation: string(kind),
			Value: count,
		})
	}

	e.Header.Relationships = kept
	if err := n.store.Write(path, e, nil); err != nil {
		return Result{}, err
	}
	if _, err := n.events.AppendBatch(path, entity.EventNormalization,
		fmt.Sprintf("normalized %d relationship(s)", total), "system/normalizer",
		changes, ""); err != nil {
		return Result{}, err
	}

	return result, nil
}

// BatchResult summarizes a store-wide normalize run.
type BatchResult struct {
	Results []Result
	Orphans []OrphanEntry
}

// Batch normalizes every entity in the store, reporting progress via fn
// (which may be nil).
func (n *Normalizer) Batch(apply bool, fn ProgressFunc) (BatchResult, error) {
	paths, err := n.store.List()
	if err != nil {
		return BatchResult{}, err
	}
	var out BatchResult
	for i, p := range paths {
		r, err := n.One(p, apply)
		if err != nil {
			continue
		}
		out.Results = append(out.Results, r)
		out.Orphans = append(out.Orphans, r.Orphans...)
		if fn != nil {
			fn(i+1, len(paths), p)
		}
	}
	return out, nil
}
