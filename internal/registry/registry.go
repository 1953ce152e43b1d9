// Package registry builds and persists the denormalized entity index: a
// slug-keyed entry per entity, an alias index, and aggregate stats, per
// spec.md §4.3.
package registry

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pmos/brain/internal/brainerr"
	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/obs"
	"gopkg.in/yaml.v3"
)

// Schema is the registry file's literal schema tag.
const Schema = "brain://registry/v2"

// FormatVersion is the registry file format version.
const FormatVersion = "2.0"

const fileName = "registry.yaml"

// Entry is one denormalized registry record.
type Entry struct {
	Ref               string            `yaml:"ref"`
	Type              entity.Type       `yaml:"type,omitempty"`
	Status            string            `yaml:"status,omitempty"`
	Version           int               `yaml:"version"`
	Updated           time.Time         `yaml:"updated"`
	Aliases           []string          `yaml:"aliases,omitempty"`
	Metadata          map[string]string `yaml:"metadata,omitempty"`
	RelationshipCount int               `yaml:"relationships_count"`
	Confidence        float64           `yaml:"confidence"`
	Degraded          bool              `yaml:"degraded,omitempty"`
}

// Registry is the full denormalized index over the entity store.
type Registry struct {
	Schema     string            `yaml:"schema"`
	Version    string            `yaml:"version"`
	Generated  time.Time         `yaml:"generated"`
	Entities   map[string]Entry  `yaml:"entities"`
	AliasIndex map[string]string `yaml:"alias_index"`
	Stats      map[string]int    `yaml:"stats"`
}

func empty() *Registry {
	return &Registry{
		Schema:     Schema,
		Version:    FormatVersion,
		Entities:   map[string]Entry{},
		AliasIndex: map[string]string{},
		Stats:      map[string]int{},
	}
}

// Builder rebuilds a Registry from an entity store.
type Builder struct {
	root  string
	store *entity.Store
}

// NewBuilder creates a Builder over the entity store rooted at root.
func NewBuilder(root string) *Builder {
	return &Builder{root: root, store: entity.New(root)}
}

// Path returns the registry file's path under the store root.
func (b *Builder) Path() string {
	return filepath.Join(b.root, fileName)
}

// Load reads the registry file, or returns an empty registry if absent.
func (b *Builder) Load() (*Registry, error) {
	data, err := os.ReadFile(b.Path()) // #nosec G304 - fixed filename under the brain root
	if err != nil {
		if os.IsNotExist(err) {
			return empty(), nil
		}
		return nil, brainerr.Wrap("registry.Load", brainerr.ErrIO, err)
	}
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, brainerr.Wrap("registry.Load", brainerr.ErrMalformed, err)
	}
	return &reg, nil
}

// Rebuild walks the entity store and produces a fresh Registry. The
// incremental flag is accepted for API parity with the original brain
// tools' incremental rebuild mode; since this registry always re-derives
// every entry from the current on-disk entity, a full rebuild already
// produces identical results, so incremental mode is a no-op here beyond
// skipping the unused prior argument.
func (b *Builder) Rebuild(incremental bool, prior *Registry) (*Registry, error) {
	_ = incremental
	_ = prior
	logger := obs.Logger("registry")

	paths, err := b.store.List()
	if err != nil {
		return nil, err
	}

	reg := empty()
	byType := map[string]int{}
	byStatus := map[string]int{}
	v2Count := 0

	for _, p := range paths {
		e, _, err := b.store.Read(p)
		if err != nil {
			logger.Warn("fabricating degraded registry entry", "path", p, "error", err)
			slug := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
			reg.Entities[slug] = Entry{
				Ref:        p,
				Confidence: 0.1,
				Degraded:   true,
			}
			continue
		}

		slug := lastSegment(e.Header.ID)
		if slug == "" {
			slug = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		}

		entry := Entry{
			Ref:               p,
			Type:              e.Header.Type,
			Status:            e.Header.Status,
			Version:           e.Header.Version,
			Updated:           e.Header.Updated,
			Aliases:           e.Header.Aliases,
			RelationshipCount: len(e.Header.Relationships),
			Confidence:        e.Header.Confidence,
		}
		if m := lightMetadata(e.Header); len(m) > 0 {
			entry.Metadata = m
		}
		reg.Entities[slug] = entry

		for _, alias := range e.Header.Aliases {
			reg.AliasIndex[strings.ToLower(alias)] = slug
		}
		if e.Header.Name != "" {
			reg.AliasIndex[strings.ToLower(e.Header.Name)] = slug
		}
		reg.AliasIndex[strings.ToLower(slug)] = slug

		byType[string(e.Header.Type)]++
		if e.Header.Status != "" {
			byStatus[e.Header.Status]++
		}
		if e.Header.IsV2() {
			v2Count++
		}
	}

	reg.Stats["total"] = len(reg.Entities)
	reg.Stats["v2_format"] = v2Count
	for t, c := range byType {
		reg.Stats["type:"+t] = c
	}
	for st, c := range byStatus {
		reg.Stats["status:"+st] = c
	}
	reg.Generated = time.Now().UTC()

	return reg, nil
}

// lightMetadata extracts the small set of header extras the registry
// surfaces without a full entity read (role, team, owner), per spec.md §3.
func lightMetadata(h entity.Header) map[string]string {
	out := map[string]string{}
	for _, key := range []string{"role", "team", "owner"} {
		if v, ok := h.Extra[key]; ok {
			if s, ok := v.(string); ok {
				out[key] = s
			}
		}
	}
	return out
}

func lastSegment(id string) string {
	if id == "" {
		return ""
	}
	parts := strings.Split(id, "/")
	return parts[len(parts)-1]
}

// Save writes reg atomically via temp+rename, per spec.md §5.
func (b *Builder) Save(reg *Registry) error {
	data, err := yaml.Marshal(reg)
	if err != nil {
		return brainerr.Wrap("registry.Save", brainerr.ErrIO, err)
	}
	tmp := b.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { // #nosec G306 - registry is not a secret
		return brainerr.Wrap("registry.Save", brainerr.ErrIO, err)
	}
	if err := os.Rename(tmp, b.Path()); err != nil {
		return brainerr.Wrap("registry.Save", brainerr.ErrIO, err)
	}
	return nil
}
