// Package enrich defines the enricher capability interface and a
// registry of source-specific enrichers, per spec.md §4.12. Each
// enricher interprets one raw-record shape produced by an out-of-scope
// source client, finds or resolves target entities, and appends typed
// events through the event store — enrichers never bypass it. Ported
// from original_source/tools/brain/enrichers/session_enricher.py and
// the BaseEnricher contract it implements.
package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/event"
	"github.com/pmos/brain/internal/resolver"
)

// Stats summarizes one inbox run, per spec.md §4.12.
type Stats struct {
	Processed int
	Updated   int
	Skipped   int
	Errors    int
}

// Add accumulates another Stats into s.
func (s *Stats) Add(o Stats) {
	s.Processed += o.Processed
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Errors += o.Errors
}

// Enricher is the capability set every source-specific enricher
// implements, dispatched by the orchestrator purely through this
// interface (spec.md §4.12, §9 "dynamic dispatch").
type Enricher interface {
	SourceName() string
	SourceReliability() float64
	// Enrich interprets one raw record and returns the number of entity
	// fields it updated (or would update, when dryRun is true).
	Enrich(record map[string]interface{}, dryRun bool) (fieldsUpdated int, err error)
	// EnrichFromInbox iterates every cached raw record under dir.
	EnrichFromInbox(dir string, dryRun bool) (Stats, error)
}

// Base provides the shared plumbing every source enricher needs: a
// resolver to find target entities, an event store to append mutations
// through, and the entity store itself (to open files the resolver
// names). Concrete enrichers embed Base and add a source-specific
// Enrich body.
type Base struct {
	Source      string
	Reliability float64
	Store       *entity.Store
	Events      *event.Store
	Resolver    *resolver.Resolver
}

// SourceName implements Enricher.
func (b *Base) SourceName() string { return b.Source }

// SourceReliability implements Enricher.
func (b *Base) SourceReliability() float64 { return b.Reliability }

// ResolveMention maps a human-written entity reference found in a raw
// record to the path of its entity file, or "" if it does not resolve
// to an entity that exists on disk, mirroring
// BaseEnricher.find_entity_by_mention + get_entity_path.
func (b *Base) ResolveMention(mention string) (id, path string, err error) {
	id, err = b.Resolver.Resolve(mention)
	if err != nil || id == "" {
		return "", "", err
	}
	paths, err := b.Store.List()
	if err != nil {
		return id, "", err
	}
	for _, p := range paths {
		e, _, err := b.Store.Read(p)
		if err != nil {
			continue
		}
		if e.Header.ID == id {
			return id, p, nil
		}
	}
	return id, "", nil
}

// AppendDiscovery appends a research_discovery (or field_update) event to
// the entity at path, with the enricher's source and reliability recorded
// in the event metadata.
func (b *Base) AppendDiscovery(path, eventType, message, correlationID string, changes []entity.Change) error {
	metadata := map[string]interface{}{
		"source":      b.Source,
		"reliability": b.Reliability,
	}
	_, err := b.Events.AppendWithMetadata(path, eventType, message, "system/"+b.Source+"_enricher", changes, correlationID, metadata)
	return err
}

// LoadInboxRecords reads every *.json file under dir, each containing
// either a single record object or an array of records, matching the
// permissive shape original_source's enrichers read from their Raw/
// subdirectories.
func LoadInboxRecords(dir string) ([]map[string]interface{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var records []map[string]interface{}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name)) // #nosec G304 - dir is a configured inbox path
		if err != nil {
			continue
		}
		var single map[string]interface{}
		if err := json.Unmarshal(data, &single); err == nil {
			records = append(records, single)
			continue
		}
		var list []map[string]interface{}
		if err := json.Unmarshal(data, &list); err == nil {
			records = append(records, list...)
		}
	}
	return records, nil
}

// StringField reads a string field from a raw record, defaulting to "".
func StringField(record map[string]interface{}, key string) string {
	if v, ok := record[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// StringListField reads a []string-shaped field from a raw JSON record.
func StringListField(record map[string]interface{}, key string) []string {
	v, ok := record[key]
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Truncate shortens s to at most n runes, matching the `finding[:200]`
// truncation the source session enricher applies to event messages.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// nowTimestamp is the fallback timestamp used when a raw record omits
// one, matching `datetime.now().isoformat()`.
func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// TimestampField reads an ISO-8601 timestamp field, falling back to now.
func TimestampField(record map[string]interface{}, key string) string {
	if s := StringField(record, key); s != "" {
		return s
	}
	return nowTimestamp()
}

// Registry holds enrichers keyed by source name, dispatched by the
// orchestrator in declaration order (spec.md §5's "sources in
// declaration order").
type Registry struct {
	order     []string
	enrichers map[string]Enricher
}

// NewRegistry creates an empty enricher Registry.
func NewRegistry() *Registry {
	return &Registry{enrichers: map[string]Enricher{}}
}

// Register adds e, keeping first-registration order.
func (r *Registry) Register(e Enricher) {
	name := e.SourceName()
	if _, exists := r.enrichers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.enrichers[name] = e
}

// Order returns the registered source names in declaration order.
func (r *Registry) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the enricher registered for name, or an error if none is.
func (r *Registry) Get(name string) (Enricher, error) {
	e, ok := r.enrichers[name]
	if !ok {
		return nil, fmt.Errorf("enrich: no enricher registered for source %q", name)
	}
	return e, nil
}
