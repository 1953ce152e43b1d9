// Package resolver maps any human-written reference to an entity — a
// slug, a path, a filename stem, an alias, a display name — to its single
// canonical identifier, per spec.md §4.2.
package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/idgen"
	"github.com/pmos/brain/internal/obs"
)

// CacheMaxAge bounds how long a persisted resolver cache is trusted
// before being rebuilt, mirroring the original brain tools'
// CACHE_MAX_AGE_HOURS = 24.
const CacheMaxAge = 24 * time.Hour

// cacheFileName is the cache file written under the entity store root.
const cacheFileName = "resolver_cache.json"

// Resolver resolves references to canonical entity ids.
type Resolver struct {
	root  string
	store *entity.Store

	index   map[string]string   // normalized ref -> canonical id
	reverse map[string][]string // canonical id -> all refs that resolve to it
	built   bool
}

// New creates a Resolver over the entity store rooted at root.
func New(root string) *Resolver {
	return &Resolver{root: root, store: entity.New(root)}
}

type cacheFile struct {
	BuiltAt time.Time           `json:"built_at"`
	Index   map[string]string   `json:"index"`
	Reverse map[string][]string `json:"reverse_index"`
}

// Build constructs the in-memory resolution map, reusing a fresh on-disk
// cache when available and rebuilding (silently, on any cache error or
// staleness) otherwise. Pass force=true to always rebuild.
func (r *Resolver) Build(force bool) error {
	logger := obs.Logger("resolver")
	if !force {
		if r.loadCache() {
			return nil
		}
	}

	paths, err := r.store.List()
	if err != nil {
		return err
	}

	index := map[string]string{}
	reverse := map[string][]string{}
	add := func(ref, id string) {
		norm := normalize(ref)
		if norm == "" {
			return
		}
		if _, exists := index[norm]; exists {
			return
		}
		index[norm] = id
		reverse[id] = append(reverse[id], norm)
	}

	for _, p := range paths {
		e, _, err := r.store.Read(p)
		if err != nil {
			logger.Warn("skipping unreadable entity during resolver build", "path", p, "error", err)
			continue
		}
		id := e.Header.ID
		if id == "" {
			continue
		}
		add(id, id)
		add(string(e.Header.Type)+"/"+lastSegment(id), id)
		add(lastSegment(id), id)
		add(p, id)
		for _, variant := range pathVariants(p) {
			add(variant, id)
		}
		for _, alias := range e.Header.Aliases {
			add(alias, id)
		}
		add(e.Header.Name, id)
	}

	r.index = index
	r.reverse = reverse
	r.built = true
	r.saveCache()
	return nil
}

func lastSegment(id string) string {
	parts := strings.Split(id, "/")
	return parts[len(parts)-1]
}

// pathVariants enumerates the path-derived forms a reference might take:
// with/without extension, underscore/hyphen swapped, and the filename
// stem alone.
func pathVariants(path string) []string {
	var out []string
	noExt := strings.TrimSuffix(path, filepath.Ext(path))
	out = append(out, path, noExt)
	out = append(out, strings.ReplaceAll(noExt, "_", "-"), strings.ReplaceAll(noExt, "-", "_"))
	stem := filepath.Base(noExt)
	out = append(out, stem, strings.ReplaceAll(stem, "_", "-"))
	return out
}

// normalize lower-cases ref and applies the fixed variant transforms from
// spec.md §4.2 step 2: underscore<->hyphen, space->hyphen, strip anything
// outside [a-z0-9-/].
func normalize(ref string) string {
	s := strings.ToLower(strings.TrimSpace(ref))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	return s
}

func (r *Resolver) loadCache() bool {
	data, err := os.ReadFile(filepath.Join(r.root, cacheFileName)) // #nosec G304 - fixed filename under the brain root
	if err != nil {
		return false
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return false
	}
	if time.Since(cf.BuiltAt) > CacheMaxAge {
		return false
	}
	r.index = cf.Index
	r.reverse = cf.Reverse
	r.built = true
	return true
}

func (r *Resolver) saveCache() {
	cf := cacheFile{BuiltAt: time.Now().UTC(), Index: r.index, Reverse: r.reverse}
	data, err := json.Marshal(cf)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(r.root, cacheFileName), data, 0o644) // #nosec G306 - resolver cache is not a secret
}

// Resolve maps ref to its canonical id, or "" when no variant matches.
// Resolution is deterministic and case-insensitive, per spec.md §4.2.
func (r *Resolver) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if !r.built {
		if err := r.Build(false); err != nil {
			return "", err
		}
	}
	candidates := []string{ref}
	candidates = append(candidates, pathVariants(ref)...)
	for _, c := range candidates {
		if id, ok := r.index[normalize(c)]; ok {
			return id, nil
		}
	}
	return "", nil
}

// Similarity scoring tiers, most to least specific, per spec.md §4.2.
const (
	scoreEqual              = 1.0
	scoreSubstring          = 0.75
	scorePrefixRatioWeight  = 0.5
	scoreTokenOverlapWeight = 0.25
)

// Similar is one approximate match returned by FindSimilar.
type Similar struct {
	ID    string
	Ref   string
	Score float64
}

// FindSimilar returns approximate matches for ref, scored by equality >
// substring containment > common-prefix-length/max-length >
// token-set overlap. Used only for reporting, never for implicit
// resolution (spec.md §4.2).
func (r *Resolver) FindSimilar(ref string, limit int) ([]Similar, error) {
	if !r.built {
		if err := r.Build(false); err != nil {
			return nil, err
		}
	}
	needle := normalize(ref)
	if needle == "" {
		return nil, nil
	}
	needleTokens := tokenSet(needle)

	seen := map[string]Similar{}
	for candRef, id := range r.index {
		score := similarityScore(needle, candRef, needleTokens)
		if score <= 0 {
			continue
		}
		if best, ok := seen[id]; !ok || score > best.Score {
			seen[id] = Similar{ID: id, Ref: candRef, Score: score}
		}
	}

	out := make([]Similar, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func similarityScore(needle, cand string, needleTokens map[string]bool) float64 {
	if needle == cand {
		return scoreEqual
	}
	if strings.Contains(cand, needle) || strings.Contains(needle, cand) {
		return scoreSubstring
	}

	prefixLen := commonPrefixLen(needle, cand)
	maxLen := len(needle)
	if len(cand) > maxLen {
		maxLen = len(cand)
	}
	var prefixScore float64
	if maxLen > 0 {
		prefixScore = scorePrefixRatioWeight * float64(prefixLen) / float64(maxLen)
	}

	candTokens := tokenSet(cand)
	overlap := 0
	for t := range needleTokens {
		if candTokens[t] {
			overlap++
		}
	}
	denom := len(needleTokens) + len(candTokens) - overlap
	var tokenScore float64
	if denom > 0 {
		tokenScore = scoreTokenOverlapWeight * float64(overlap) / float64(denom)
	}

	return prefixScore + tokenScore
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func tokenSet(s string) map[string]bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '/' || r == ' '
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}

// InferID derives a canonical id (entity/<type>/<slug>) from an entity
// type and display name, used by the migrator when a v1 entity carries
// no id, per spec.md §4.7.
func InferID(t entity.Type, name string) string {
	return "entity/" + string(t) + "/" + idgen.Slugify(name)
}

// Stats summarizes the resolver's built index.
type Stats struct {
	Entries int
	Ids     int
}

// Stats reports the resolver's current index size.
func (r *Resolver) Stats() (Stats, error) {
	if !r.built {
		if err := r.Build(false); err != nil {
			return Stats{}, err
		}
	}
	return Stats{Entries: len(r.index), Ids: len(r.reverse)}, nil
}
