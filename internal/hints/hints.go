// Package hints reports per-entity missing fields and recommends which
// external sources could fill them, per spec.md §4.14. Read-only. Ported
// from original_source/tools/brain/extraction_hints.py.
package hints

import (
	"sort"

	"github.com/pmos/brain/internal/entity"
)

// Priority labels a recommended gap fill.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// fieldSpec names one field expected on a given entity type, its
// priority, and the sources that can plausibly fill it.
type fieldSpec struct {
	field    string
	priority Priority
	sources  []string
}

// expectedFields is the static (type, field) -> sources map driving gap
// analysis, per spec.md §4.14.
var expectedFields = map[entity.Type][]fieldSpec{
	entity.TypePerson: {
		{"role", PriorityHigh, []string{"doc_store", "chat"}},
		{"team", PriorityHigh, []string{"issue_tracker", "chat"}},
		{"manager", PriorityMedium, []string{"doc_store"}},
	},
	entity.TypeTeam: {
		{"owner", PriorityHigh, []string{"doc_store"}},
		{"charter", PriorityMedium, []string{"doc_store"}},
	},
	entity.TypeSquad: {
		{"owner", PriorityHigh, []string{"doc_store", "issue_tracker"}},
	},
	entity.TypeProject: {
		{"description", PriorityHigh, []string{"doc_store"}},
		{"owner", PriorityHigh, []string{"issue_tracker", "doc_store"}},
		{"status", PriorityMedium, []string{"issue_tracker"}},
	},
	entity.TypeDomain: {
		{"description", PriorityMedium, []string{"doc_store"}},
	},
	entity.TypeExperiment: {
		{"status", PriorityHigh, []string{"spreadsheet", "doc_store"}},
		{"owner", PriorityHigh, []string{"doc_store"}},
	},
	entity.TypeSystem: {
		{"owner", PriorityHigh, []string{"code_host", "doc_store"}},
		{"description", PriorityMedium, []string{"doc_store"}},
	},
	entity.TypeBrand: {
		{"description", PriorityLow, []string{"doc_store"}},
	},
}

// Gap is one missing field on one entity.
type Gap struct {
	Field    string
	Priority Priority
	Sources  []string
}

// Entry bundles an entity's identity with its gaps, sorted high priority
// first.
type Entry struct {
	Path  string
	ID    string
	Type  entity.Type
	Gaps  []Gap
}

func hasExtra(h entity.Header, field string) bool {
	if field == "status" {
		return h.Status != ""
	}
	v, ok := h.Extra[field]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

// priorityRank orders PriorityHigh before Medium before Low for sorting.
func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Analyze computes the field-gap Entry for one entity; the Entry has no
// gaps when its type has no expected-field spec.
func Analyze(path string, e entity.Entity) Entry {
	entry := Entry{Path: path, ID: e.Header.ID, Type: e.Header.Type}
	for _, spec := range expectedFields[e.Header.Type] {
		if !hasExtra(e.Header, spec.field) {
			entry.Gaps = append(entry.Gaps, Gap{Field: spec.field, Priority: spec.priority, Sources: spec.sources})
		}
	}
	sort.SliceStable(entry.Gaps, func(i, j int) bool {
		return priorityRank(entry.Gaps[i].Priority) < priorityRank(entry.Gaps[j].Priority)
	})
	return entry
}

// Scan runs Analyze over a set of (path, entity) pairs and returns every
// entity that has at least one gap, sorted by entity id.
func Scan(entities map[string]entity.Entity) []Entry {
	var out []Entry
	for path, e := range entities {
		entry := Analyze(path, e)
		if len(entry.Gaps) > 0 {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
