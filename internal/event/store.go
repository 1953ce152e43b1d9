// Package event implements the entity event log: idempotent appends,
// time/type/correlation queries, and a small LRU of recently parsed
// entities, per spec.md §4.5.
package event

import (
	"sort"
	"time"

	"github.com/pmos/brain/internal/brainerr"
	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/idgen"
	"gopkg.in/yaml.v3"
)

// Store appends and queries events on entities backed by an
// *entity.Store, with an LRU cache of recently parsed entities.
type Store struct {
	entities *entity.Store
	cache    *lru
}

// New creates an event Store backed by es, caching up to cacheSize
// recently read entities.
func New(es *entity.Store, cacheSize int) *Store {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &Store{entities: es, cache: newLRU(cacheSize)}
}

// loaded pairs a parsed entity with the yaml.Node needed to rewrite it
// without disturbing unrelated header key order.
type loaded struct {
	e    entity.Entity
	node *yaml.Node
}

func (s *Store) load(path string) (loaded, error) {
	if v, ok := s.cache.get(path); ok {
		return v, nil
	}
	e, node, err := s.entities.Read(path)
	if err != nil {
		return loaded{}, err
	}
	l := loaded{e: e, node: node}
	s.cache.put(path, l)
	return l, nil
}

// Append appends one event to the entity at path, bumping its version and
// updating its `updated` timestamp. Appending an event whose
// (correlation_id, message) pair already exists on the entity is a no-op
// (invariant 7): the entity is returned unchanged and version does not
// advance.
func (s *Store) Append(path string, eventType, message, actor string, changes []entity.Change, correlationID string) (entity.Entity, error) {
	return s.append(path, eventType, message, actor, changes, correlationID, nil)
}

// AppendWithMetadata is Append plus arbitrary event metadata.
func (s *Store) AppendWithMetadata(path string, eventType, message, actor string, changes []entity.Change, correlationID string, metadata map[string]interface{}) (entity.Entity, error) {
	return s.append(path, eventType, message, actor, changes, correlationID, metadata)
}

func (s *Store) append(path string, eventType, message, actor string, changes []entity.Change, correlationID string, metadata map[string]interface{}) (entity.Entity, error) {
	l, err := s.load(path)
	if err != nil {
		return entity.Entity{}, err
	}

	if correlationID != "" && hasDuplicate(l.e.Header.Events, correlationID, message) {
		return l.e, nil
	}

	now := time.Now().UTC()
	ev := entity.Event{
		EventID:       idgen.NewEventID(l.e.Header.ID, message, now, len(l.e.Header.Events)),
		Timestamp:     now,
		Type:          eventType,
		Actor:         actor,
		Message:       message,
		Changes:       changes,
		CorrelationID: correlationID,
		Metadata:      metadata,
	}

	if eventIDExists(l.e.Header.Events, ev.EventID) {
		return entity.Entity{}, brainerr.Wrap("event.Append", brainerr.ErrConflict, errDuplicateEventID)
	}

	l.e.Header.Events = append(l.e.Header.Events, ev)
	l.e.Header.Version++
	l.e.Header.Updated = now

	if err := s.entities.Write(path, l.e, l.node); err != nil {
		return entity.Entity{}, err
	}
	s.cache.put(path, l)
	return l.e, nil
}

// AppendBatch appends several changes that share a correlation id as a
// single event, bumping version exactly once, per SPEC_FULL.md's open
// question #2 decision.
func (s *Store) AppendBatch(path string, eventType, message, actor string, changes []entity.Change, correlationID string) (entity.Entity, error) {
	return s.append(path, eventType, message, actor, changes, correlationID, nil)
}

func hasDuplicate(events []entity.Event, correlationID, message string) bool {
	for _, ev := range events {
		if ev.CorrelationID == correlationID && ev.Message == message {
			return true
		}
	}
	return false
}

func eventIDExists(events []entity.Event, id string) bool {
	for _, ev := range events {
		if ev.EventID == id {
			return true
		}
	}
	return false
}

// EventsFor returns events on the entity at path filtered by an optional
// time window and type set, sorted ascending by timestamp.
func (s *Store) EventsFor(path string, since, until *time.Time, types []string) ([]entity.Event, error) {
	l, err := s.load(path)
	if err != nil {
		return nil, err
	}
	typeSet := toSet(types)
	var out []entity.Event
	for _, ev := range l.e.Header.Events {
		if !inWindow(ev.Timestamp, since, until) {
			continue
		}
		if len(typeSet) > 0 && !typeSet[ev.Type] {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Timeline is an alias for EventsFor named for the spec.md §4.5 operation
// of the same name.
func (s *Store) Timeline(path string, since, until *time.Time) ([]entity.Event, error) {
	return s.EventsFor(path, since, until, nil)
}

// CrossEntityEvent pairs an event with the path of the entity it belongs
// to, for cross-entity queries.
type CrossEntityEvent struct {
	Path  string
	Event entity.Event
}

// QueryOptions filters a cross-entity event query.
type QueryOptions struct {
	Since   *time.Time
	Until   *time.Time
	Types   []string
	Actors  []string
	Limit   int
}

// Query returns events across every entity in the store, ordered
// descending by timestamp (ties broken by entity path, since the store
// offers no cross-entity ordering guarantee per spec.md §5), bounded by
// opts.Limit when positive.
func (s *Store) Query(opts QueryOptions) ([]CrossEntityEvent, error) {
	paths, err := s.entities.List()
	if err != nil {
		return nil, err
	}
	typeSet := toSet(opts.Types)
	actorSet := toSet(opts.Actors)

	var out []CrossEntityEvent
	for _, p := range paths {
		l, err := s.load(p)
		if err != nil {
			continue
		}
		for _, ev := range l.e.Header.Events {
			if !inWindow(ev.Timestamp, opts.Since, opts.Until) {
				continue
			}
			if len(typeSet) > 0 && !typeSet[ev.Type] {
				continue
			}
			if len(actorSet) > 0 && !actorSet[ev.Actor] {
				continue
			}
			out = append(out, CrossEntityEvent{Path: p, Event: ev})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Event.Timestamp.Equal(out[j].Event.Timestamp) {
			return out[i].Event.Timestamp.After(out[j].Event.Timestamp)
		}
		return out[i].Path < out[j].Path
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ByCorrelation returns every event across the store sharing correlationID.
func (s *Store) ByCorrelation(correlationID string) ([]CrossEntityEvent, error) {
	all, err := s.Query(QueryOptions{})
	if err != nil {
		return nil, err
	}
	var out []CrossEntityEvent
	for _, ce := range all {
		if ce.Event.CorrelationID == correlationID {
			out = append(out, ce)
		}
	}
	return out, nil
}

// CountGroupBy is the grouping dimension for Count.
type CountGroupBy string

const (
	CountByType   CountGroupBy = "type"
	CountByActor  CountGroupBy = "actor"
	CountByID     CountGroupBy = "id"
)

// Count tallies events by the requested dimension.
func (s *Store) Count(groupBy CountGroupBy) (map[string]int, error) {
	all, err := s.Query(QueryOptions{})
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, ce := range all {
		var key string
		switch groupBy {
		case CountByType:
			key = ce.Event.Type
		case CountByActor:
			key = ce.Event.Actor
		case CountByID:
			key = ce.Event.EventID
		}
		out[key]++
	}
	return out, nil
}

func inWindow(t time.Time, since, until *time.Time) bool {
	if since != nil && t.Before(*since) {
		return false
	}
	if until != nil && t.After(*until) {
		return false
	}
	return true
}

func toSet(vals []string) map[string]bool {
	if len(vals) == 0 {
		return nil
	}
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

var errDuplicateEventID = errDuplicate{}

type errDuplicate struct{}

func (errDuplicate) Error() string { return "event id already present on entity" }
