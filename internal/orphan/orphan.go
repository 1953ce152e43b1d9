// Package orphan classifies relationship-less entities with an
// orphan_reason and reports the distribution, per spec.md §4.10. Ported
// from original_source/tools/brain/orphan_analyzer.py.
package orphan

import (
	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/event"
)

// standaloneTypes are entity types that are orphan_reason=standalone by
// default rather than pending_enrichment, configurable in principle but
// fixed here per spec.md's closed type set.
var standaloneTypes = map[entity.Type]bool{
	entity.TypeDomain: true,
	entity.TypeBrand:  true,
}

// Analyzer scans and mutates orphan_reason fields across the store.
type Analyzer struct {
	store  *entity.Store
	events *event.Store
}

// New creates an Analyzer over the given store and event log.
func New(store *entity.Store, events *event.Store) *Analyzer {
	return &Analyzer{store: store, events: events}
}

// Mutation records one orphan_reason change applied (or that would be
// applied) to an entity.
type Mutation struct {
	Path     string
	EntityID string
	From     entity.OrphanReason
	To       entity.OrphanReason
}

// classify derives the orphan_reason an entity should carry, given
// whether a prior enrichment attempt over it produced nothing.
func classify(h entity.Header, enrichmentAttemptedNoResult bool) entity.OrphanReason {
	if h.HasRelationships() {
		return ""
	}
	if enrichmentAttemptedNoResult {
		return entity.OrphanNoExternalData
	}
	if standaloneTypes[h.Type] {
		return entity.OrphanStandalone
	}
	return entity.OrphanPendingEnrichment
}

// Scan walks the store and returns the mutation each entity needs to
// reach its correct orphan_reason, without writing anything.
func (a *Analyzer) Scan() ([]Mutation, error) {
	paths, err := a.store.List()
	if err != nil {
		return nil, err
	}
	var muts []Mutation
	for _, p := range paths {
		e, _, err := a.store.Read(p)
		if err != nil {
			continue
		}
		want := classify(e.Header, false)
		if want != e.Header.OrphanReason {
			muts = append(muts, Mutation{Path: p, EntityID: e.Header.ID, From: e.Header.OrphanReason, To: want})
		}
	}
	return muts, nil
}

// Apply persists a previously computed Mutation, logging a field_update
// event per spec.md §4.10.
func (a *Analyzer) Apply(m Mutation) error {
	e, _, err := a.store.Read(m.Path)
	if err != nil {
		return err
	}
	e.Header.OrphanReason = m.To
	if err := a.store.Write(m.Path, e, nil); err != nil {
		return err
	}
	_, err = a.events.Append(m.Path, entity.EventFieldUpdate,
		"orphan_reason updated by orphan analyzer", "system/orphan_analyzer",
		[]entity.Change{{Field: "orphan_reason", Operation: "set", Value: string(m.To), OldValue: string(m.From)}}, "")
	return err
}

// MarkPending applies pending_enrichment to every orphan currently
// lacking a reason, except those of standalone-by-default types.
func (a *Analyzer) MarkPending() ([]Mutation, error) {
	return a.markWhere(func(h entity.Header) bool {
		return !h.HasRelationships() && h.OrphanReason == "" && !standaloneTypes[h.Type]
	}, entity.OrphanPendingEnrichment)
}

// MarkStandalone applies standalone to every relationship-less entity of
// a standalone-by-default type.
func (a *Analyzer) MarkStandalone() ([]Mutation, error) {
	return a.markWhere(func(h entity.Header) bool {
		return !h.HasRelationships() && standaloneTypes[h.Type]
	}, entity.OrphanStandalone)
}

// ClearConnected clears orphan_reason on every entity that has regained
// relationships since last classified.
func (a *Analyzer) ClearConnected() ([]Mutation, error) {
	return a.markWhere(func(h entity.Header) bool {
		return h.HasRelationships() && h.OrphanReason != ""
	}, "")
}

func (a *Analyzer) markWhere(pred func(entity.Header) bool, to entity.OrphanReason) ([]Mutation, error) {
	paths, err := a.store.List()
	if err != nil {
		return nil, err
	}
	var applied []Mutation
	for _, p := range paths {
		e, _, err := a.store.Read(p)
		if err != nil {
			continue
		}
		if !pred(e.Header) {
			continue
		}
		m := Mutation{Path: p, EntityID: e.Header.ID, From: e.Header.OrphanReason, To: to}
		if err := a.Apply(m); err != nil {
			continue
		}
		applied = append(applied, m)
	}
	return applied, nil
}

// Report tallies orphan_reason distribution across the store.
type Report struct {
	Total      int
	ByReason   map[entity.OrphanReason]int
	Connected  int // entities with relationships (not orphans)
}

// BuildReport scans the store and summarizes orphan_reason distribution.
func (a *Analyzer) BuildReport() (Report, error) {
	paths, err := a.store.List()
	if err != nil {
		return Report{}, err
	}
	report := Report{ByReason: map[entity.OrphanReason]int{}}
	for _, p := range paths {
		e, _, err := a.store.Read(p)
		if err != nil {
			continue
		}
		report.Total++
		if e.Header.HasRelationships() {
			report.Connected++
			continue
		}
		reason := e.Header.OrphanReason
		if reason == "" {
			reason = entity.OrphanPendingEnrichment
		}
		report.ByReason[reason]++
	}
	return report, nil
}
