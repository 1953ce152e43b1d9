// Package index builds and queries an inverted content index over entity
// markdown bodies, per spec.md §4.4: markup stripped, stopwords removed,
// remaining words stemmed, AND-semantics lookup with synonym expansion.
// Ported from original_source/tools/brain/brain_index.py and
// brain_search.py's query-expansion half.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pmos/brain/internal/brainerr"
	"github.com/pmos/brain/internal/entity"
)

const fileName = "content_index.json"

// Meta describes the build that produced an Index.
type Meta struct {
	Built         time.Time `json:"built"`
	EntityCount   int       `json:"entity_count"`
	TokenCount    int       `json:"token_count"`
	TotalPostings int       `json:"total_postings"`
	Errors        []string  `json:"errors,omitempty"`
}

// Index is an inverted index: stemmed token -> sorted entity ids.
type Index struct {
	Meta     Meta                `json:"meta"`
	Postings map[string][]string `json:"index"`

	root      string
	tokenizer *Tokenizer
	synonyms  map[string][]string
}

// New creates an empty Index over the entity store rooted at root, with
// extra stopwords and synonym overrides from config.
func New(root string, extraStopwords []string, extraSynonyms map[string][]string) *Index {
	return &Index{
		Postings:  map[string][]string{},
		root:      root,
		tokenizer: NewTokenizer(extraStopwords),
		synonyms:  buildSynonyms(extraSynonyms),
	}
}

func (ix *Index) path() string {
	return filepath.Join(ix.root, fileName)
}

// Build walks every entity in the store, tokenizes its body, and records
// a posting for each stemmed token. Unreadable entities are skipped and
// recorded in Meta.Errors (truncated to the first 10), not fatal.
func (ix *Index) Build() error {
	store := entity.New(ix.root)
	paths, err := store.List()
	if err != nil {
		return err
	}

	postings := map[string]map[string]bool{}
	var errs []string
	entityCount := 0
	totalPostings := 0

	for _, p := range paths {
		e, _, err := store.Read(p)
		if err != nil {
			if len(errs) < 10 {
				errs = append(errs, p+": "+err.Error())
			}
			continue
		}
		id := e.Header.ID
		if id == "" {
			id = p
		}
		tokens := ix.tokenizer.TokenizeContent(e.Body)
		for tok := range tokens {
			if postings[tok] == nil {
				postings[tok] = map[string]bool{}
			}
			postings[tok][id] = true
			totalPostings++
		}
		entityCount++
	}

	out := make(map[string][]string, len(postings))
	for tok, ids := range postings {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		sort.Strings(list)
		out[tok] = list
	}

	ix.Postings = out
	ix.Meta = Meta{
		Built:         time.Now().UTC(),
		EntityCount:   entityCount,
		TokenCount:    len(out),
		TotalPostings: totalPostings,
		Errors:        errs,
	}
	return nil
}

// Save persists the index as JSON under the store root.
func (ix *Index) Save() error {
	data, err := json.MarshalIndent(struct {
		Meta  Meta                `json:"meta"`
		Index map[string][]string `json:"index"`
	}{ix.Meta, ix.Postings}, "", "  ")
	if err != nil {
		return brainerr.Wrap("index.Save", brainerr.ErrIO, err)
	}
	return os.WriteFile(ix.path(), data, 0o644) // #nosec G306 - content index is not a secret
}

// Load reads a previously saved index. Returns false (no error) if the
// file does not exist yet, matching the original tool's "build on first
// search" behavior.
func (ix *Index) Load() (bool, error) {
	data, err := os.ReadFile(ix.path()) // #nosec G304 - fixed filename under the brain root
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, brainerr.Wrap("index.Load", brainerr.ErrIO, err)
	}
	var raw struct {
		Meta  Meta                `json:"meta"`
		Index map[string][]string `json:"index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return false, brainerr.Wrap("index.Load", brainerr.ErrMalformed, err)
	}
	ix.Meta = raw.Meta
	ix.Postings = raw.Index
	return true, nil
}

// Mode selects how a multi-token query's posting lists combine.
type Mode int

const (
	// ModeAnd requires every query token to match (default, per spec.md).
	ModeAnd Mode = iota
	// ModeOr matches any query token.
	ModeOr
)

// Search returns entity ids matching the raw (non-synonym-expanded) query
// tokens under the given combination mode. In ModeAnd, any query token
// absent from the index makes the whole query fail, matching
// original_source's BrainIndex.search.
func (ix *Index) Search(query string, mode Mode) []string {
	tokens := ix.tokenizer.TokenizeQuery(query)
	if len(tokens) == 0 {
		return nil
	}

	var lists []map[string]bool
	for _, tok := range tokens {
		if postings, ok := ix.Postings[tok]; ok {
			lists = append(lists, toSet(postings))
		} else if mode == ModeAnd {
			return nil
		}
	}
	if len(lists) == 0 {
		return nil
	}

	result := lists[0]
	for _, l := range lists[1:] {
		if mode == ModeAnd {
			result = intersect(result, l)
		} else {
			result = union(result, l)
		}
	}

	out := make([]string, 0, len(result))
	for id := range result {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SearchExpanded runs content search the way brain_search.py's
// _search_content does: query tokens are expanded through the synonym
// table, every expanded token that exists in the index contributes its
// posting list, and all contributing lists are intersected — so, unlike
// Search, a synonym with no postings is silently skipped rather than
// failing the whole query. Returns the matching ids plus the subset of
// expanded tokens that actually matched, for coverage-based scoring.
func (ix *Index) SearchExpanded(query string) (ids []string, matchedTokens []string) {
	tokens := ix.tokenizer.TokenizeQuery(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	expanded := ix.expand(tokens)

	var lists []map[string]bool
	for _, tok := range expanded {
		if postings, ok := ix.Postings[tok]; ok {
			lists = append(lists, toSet(postings))
			matchedTokens = append(matchedTokens, tok)
		}
	}
	if len(lists) == 0 {
		return nil, nil
	}

	result := lists[0]
	for _, l := range lists[1:] {
		result = intersect(result, l)
	}

	ids = make([]string, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, matchedTokens
}

func (ix *Index) expand(tokens []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range tokens {
		add(t)
		for _, syn := range ix.synonyms[t] {
			add(syn)
		}
	}
	return out
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, v := range list {
		m[v] = true
	}
	return m
}

func intersect(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func union(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}
