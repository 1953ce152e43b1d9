// Package decay computes time-decayed relationship confidence and flags
// stale relationships, per spec.md §4.9. Ported from
// original_source/tools/brain/relationship_decay.py. Read-only: it never
// mutates entities.
package decay

import (
	"sort"
	"time"

	"github.com/pmos/brain/internal/entity"
)

// DefaultDecayRate and DefaultFloor are the spec's built-in defaults.
const (
	DefaultDecayRate = 0.01
	DefaultFloor     = 0.3
)

// defaultStalenessDays is the fallback per-relationship-type staleness
// threshold when a type has no specific entry, copied verbatim from
// relationship_decay.py's STALENESS_THRESHOLDS.
const defaultStalenessDays = 90

// stalenessThresholds gives, per relationship type, the number of days
// after which a relationship is considered stale.
var stalenessThresholds = map[string]int{
	"reports_to": 90,
	"member_of":  60,
	"blocks":     14,
	"owns":       60,
	"depends_on": 30,
	"related_to": 90,
}

// StalenessThreshold returns the staleness threshold in days for relType,
// falling back to the default (90) for unlisted types.
func StalenessThreshold(relType string) int {
	if d, ok := stalenessThresholds[relType]; ok {
		return d
	}
	return defaultStalenessDays
}

// Options configures a decay computation.
type Options struct {
	DecayRate float64 // defaults to DefaultDecayRate when zero
	Floor     float64 // defaults to DefaultFloor when zero
	Now       time.Time
}

func (o Options) resolve() Options {
	if o.DecayRate == 0 {
		o.DecayRate = DefaultDecayRate
	}
	if o.Floor == 0 {
		o.Floor = DefaultFloor
	}
	if o.Now.IsZero() {
		o.Now = time.Now().UTC()
	}
	return o
}

// Effective computes conf_eff(t) = max(floor, base*(1-decay_rate*weeks))
// for one relationship, per spec.md §4.9. ref is last_verified if set,
// else since; when neither is set, Effective returns base unchanged.
func Effective(rel entity.Relationship, opts Options) float64 {
	opts = opts.resolve()
	ref := rel.LastVerified
	if ref == nil {
		ref = rel.Since
	}
	if ref == nil {
		return rel.Confidence
	}
	weeks := opts.Now.Sub(*ref).Hours() / (24 * 7)
	if weeks < 0 {
		weeks = 0
	}
	eff := rel.Confidence * (1 - opts.DecayRate*weeks)
	if eff < opts.Floor {
		return opts.Floor
	}
	return eff
}

// IsStale reports whether rel's reference timestamp is older than its
// type's staleness threshold.
func IsStale(rel entity.Relationship, now time.Time) bool {
	ref := rel.LastVerified
	if ref == nil {
		ref = rel.Since
	}
	if ref == nil {
		return false
	}
	threshold := time.Duration(StalenessThreshold(rel.Type)) * 24 * time.Hour
	return now.Sub(*ref) > threshold
}

// Entry is one relationship's decay report row.
type Entry struct {
	EntityID   string
	EntityPath string
	RelType    string
	Target     string
	Base       float64
	Effective  float64
	Stale      bool
	AgeDays    float64
}

// Report summarizes decay across a set of entities.
type Report struct {
	Total       int
	StaleTotal  int
	StaleByType map[string]int
	Stalest     []Entry // sorted ascending by Effective, i.e. stalest first
}

// Scan computes a Report across every relationship of every entity
// produced by list. Never mutates entities.
func Scan(entities []entity.Entity, paths []string, opts Options) Report {
	opts = opts.resolve()
	report := Report{StaleByType: map[string]int{}}
	var entries []Entry

	for i, e := range entities {
		path := ""
		if i < len(paths) {
			path = paths[i]
		}
		for _, rel := range e.Header.Relationships {
			report.Total++
			stale := IsStale(rel, opts.Now)
			if stale {
				report.StaleTotal++
				report.StaleByType[rel.Type]++
			}
			ref := rel.LastVerified
			if ref == nil {
				ref = rel.Since
			}
			age := 0.0
			if ref != nil {
				age = opts.Now.Sub(*ref).Hours() / 24
			}
			entries = append(entries, Entry{
				EntityID: e.Header.ID, EntityPath: path,
				RelType: rel.Type, Target: rel.Target,
				Base: rel.Confidence, Effective: Effective(rel, opts),
				Stale: stale, AgeDays: age,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Effective != entries[j].Effective {
			return entries[i].Effective < entries[j].Effective
		}
		return entries[i].EntityID < entries[j].EntityID
	})
	report.Stalest = entries
	return report
}
