// Package query implements the unified BRAIN+GRAPH query engine: alias
// and content search produce a seed set, one-hop graph expansion widens
// it, and the merged results are ranked and truncated, per spec.md §4.11.
// Scoring constants and the alias/content two-stage shape are ported
// from original_source/tools/brain/brain_search.py; the three-stage
// tokenize -> structure -> evaluate pipeline shape (here: seed-match ->
// seed-merge -> graph-expand) is grounded on the teacher's
// internal/query lexer/parser/evaluator pipeline, repurposed for a
// ranked-result pipeline instead of a boolean filter.
package query

import (
	"sort"
	"strings"

	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/index"
	"github.com/pmos/brain/internal/obs"
	"github.com/pmos/brain/internal/registry"
)

// Scoring constants, per spec.md §4.11 / brain_search.py.
const (
	ScoreAliasExact     = 1.0
	ScoreAliasPartial   = 0.5
	ScoreAliasPrefix    = 0.5 * 0.8
	ScoreContentTitle   = 0.3
	ScoreContentBody    = 0.1
	aliasRepeatBonus    = 0.1
	defaultGraphDecay   = 0.5
	prefixSlack         = 3 // alias length <= term length + 3 counts as a prefix match
)

// Source names a result's provenance.
type Source string

const (
	SourceAlias   Source = "alias"
	SourceContent Source = "content"
	SourceGraph   Source = "graph"
)

// Result is one ranked query hit.
type Result struct {
	ID      string
	Score   float64
	Source  Source
	Reasons []string

	// Via and RelationshipType are set on graph-sourced results, naming
	// which seed and edge produced this neighbor.
	Via              string
	RelationshipType string
}

// relatedEntity is the subset of entity state the engine needs per
// candidate: its relationships (for graph expansion) and a slug-derived
// name (for content-title boosting).
type relatedEntity struct {
	id            string
	name          string
	relationships []entity.Relationship
}

// Engine answers BRAIN+GRAPH queries over a registry, content index, and
// the relationship graph materialized from the entity store.
type Engine struct {
	reg   *registry.Registry
	idx   *index.Index
	byID  map[string]relatedEntity
}

// New builds an Engine from a loaded registry, a loaded content index,
// and the full set of entities (for relationship expansion).
func New(reg *registry.Registry, idx *index.Index, entities map[string]entity.Entity) *Engine {
	byID := make(map[string]relatedEntity, len(entities))
	for _, e := range entities {
		if e.Header.ID == "" {
			continue
		}
		byID[e.Header.ID] = relatedEntity{
			id:            e.Header.ID,
			name:          strings.ToLower(e.Header.ID[strings.LastIndex(e.Header.ID, "/")+1:]),
			relationships: e.Header.Relationships,
		}
	}
	return &Engine{reg: reg, idx: idx, byID: byID}
}

// Query runs the full BRAIN+GRAPH pipeline: alias search, content
// search, seed merge, optional one-hop graph expansion, re-merge, sort,
// truncate. An empty query returns an empty result without error
// (spec.md §8).
func (e *Engine) Query(text string, limit int, useGraph bool) []Result {
	logger := obs.Logger("query")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	seeds := e.merge(e.searchAlias(text), e.searchContent(text))

	results := seeds
	if useGraph {
		neighbors := e.expandGraph(seeds)
		results = e.merge(seeds, neighbors)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	logger.Debug("query executed", "text", text, "seeds", len(seeds), "results", len(results))
	return results
}

// searchAlias implements spec.md §4.11 step 1: a full-query exact hit,
// then per-term exact hits (with a repeat-match bonus capped at 1.0),
// then alias-prefix matches. The registry's alias_index maps to a slug;
// results are reported under the entity's full canonical id, resolved
// via the registry entry's type.
func (e *Engine) searchAlias(text string) []Result {
	if e.reg == nil {
		return nil
	}
	norm := strings.ToLower(strings.TrimSpace(text))
	byID := map[string]*Result{}

	add := func(slug string, score float64, reason string) {
		id := e.canonicalID(slug)
		if id == "" {
			return
		}
		if r, ok := byID[id]; ok {
			if score > r.Score {
				r.Score = score
			} else {
				score = r.Score
			}
			r.Reasons = append(r.Reasons, reason)
			return
		}
		byID[id] = &Result{ID: id, Score: score, Source: SourceAlias, Reasons: []string{reason}}
	}

	if slug, ok := e.reg.AliasIndex[norm]; ok {
		add(slug, ScoreAliasExact, "alias:exact:"+norm)
		out := make([]Result, 0, len(byID))
		for _, r := range byID {
			out = append(out, *r)
		}
		return out
	}

	terms := strings.Fields(norm)
	matchedTerms := map[string]int{}
	for alias, slug := range e.reg.AliasIndex {
		for _, term := range terms {
			if alias == term {
				matchedTerms[slug]++
				score := ScoreAliasPartial + aliasRepeatBonus*float64(matchedTerms[slug]-1)
				if score > 1.0 {
					score = 1.0
				}
				add(slug, score, "alias:term:"+term)
			} else if len(alias) <= len(term)+prefixSlack && strings.HasPrefix(alias, term) {
				add(slug, ScoreAliasPrefix, "alias:prefix:"+term)
			}
		}
	}

	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	return out
}

// canonicalID reconstructs an entity's full canonical id from its
// registry slug, per the id shape entity/<type>/<slug> (spec.md §3).
func (e *Engine) canonicalID(slug string) string {
	entry, ok := e.reg.Entities[slug]
	if !ok {
		return ""
	}
	if entry.Type == "" {
		return slug
	}
	return "entity/" + string(entry.Type) + "/" + slug
}

// searchContent implements spec.md §4.11 step 2: synonym-expanded token
// intersection via Index.SearchExpanded, scored by token coverage with a
// boost when a query term substrings the candidate's slug-derived name.
func (e *Engine) searchContent(text string) []Result {
	if e.idx == nil {
		return nil
	}
	ids, matched := e.idx.SearchExpanded(text)
	if len(ids) == 0 {
		return nil
	}
	queryTokens := strings.Fields(strings.ToLower(text))
	coverage := 0.0
	if len(queryTokens) > 0 {
		coverage = float64(len(matched)) / float64(len(queryTokens))
	}
	base := ScoreContentBody * coverage

	out := make([]Result, 0, len(ids))
	for _, id := range ids {
		score := base
		reason := "content:coverage"
		if re, ok := e.byID[id]; ok {
			for _, t := range queryTokens {
				if strings.Contains(re.name, t) {
					score = ScoreContentTitle
					reason = "content:title"
					break
				}
			}
		}
		out = append(out, Result{ID: id, Score: score, Source: SourceContent, Reasons: []string{reason}})
	}
	return out
}

// expandGraph implements spec.md §4.11 step 4: one-hop neighbors of each
// seed, scored as seed.score * decay (relationship.Strength if present,
// else 0.5), excluding any id already in the seed set (cycle
// prevention). Per-seed neighbor count is bounded by the seed's own
// relationship count.
func (e *Engine) expandGraph(seeds []Result) []Result {
	seedIDs := map[string]bool{}
	for _, s := range seeds {
		seedIDs[s.ID] = true
	}

	var out []Result
	for _, s := range seeds {
		re, ok := e.byID[s.ID]
		if !ok {
			continue
		}
		for _, rel := range re.relationships {
			if seedIDs[rel.Target] {
				continue
			}
			decay := defaultGraphDecay
			if rel.Strength != nil {
				decay = *rel.Strength
			}
			out = append(out, Result{
				ID: rel.Target, Score: s.Score * decay, Source: SourceGraph,
				Reasons:          []string{"graph:" + rel.Type + ":via:" + s.ID},
				Via:              s.ID,
				RelationshipType: rel.Type,
			})
		}
	}
	return out
}

// merge unions two result sets by id, max-score-wins, concatenating
// reasons, per spec.md §4.11 steps 3/5.
func (e *Engine) merge(a, b []Result) []Result {
	byID := map[string]*Result{}
	order := []string{}
	apply := func(list []Result) {
		for _, r := range list {
			if existing, ok := byID[r.ID]; ok {
				if r.Score > existing.Score {
					existing.Score = r.Score
					existing.Source = r.Source
				}
				existing.Reasons = append(existing.Reasons, r.Reasons...)
				continue
			}
			cp := r
			byID[r.ID] = &cp
			order = append(order, r.ID)
		}
	}
	apply(a)
	apply(b)

	out := make([]Result, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
