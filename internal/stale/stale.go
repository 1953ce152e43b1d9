// Package stale reports entities that look abandoned: updated longer ago
// than their type's threshold, terminal status, or an expired validity
// window, per spec.md §4.14. Read-only. Ported from
// original_source/tools/brain/stale_entity_detector.py.
package stale

import (
	"sort"
	"time"

	"github.com/pmos/brain/internal/entity"
)

// defaultThresholdDays is used for any type without a specific entry.
const defaultThresholdDays = 180

// thresholdDays gives, per entity type, how many days may pass since
// `updated` before an entity is considered stale.
var thresholdDays = map[entity.Type]int{
	entity.TypeExperiment: 30,
	entity.TypeProject:    90,
	entity.TypePerson:     365,
	entity.TypeTeam:       365,
	entity.TypeSquad:      180,
	entity.TypeSystem:     180,
	entity.TypeDomain:     365,
	entity.TypeBrand:      365,
}

// terminalStatuses are statuses that make an entity stale regardless of
// its updated timestamp.
var terminalStatuses = map[string]bool{
	"archived":   true,
	"deprecated": true,
}

// Reason names why an entity was flagged.
type Reason string

const (
	ReasonAged             Reason = "aged"
	ReasonTerminalStatus   Reason = "terminal_status"
	ReasonValidityExpired  Reason = "validity_expired"
)

// Entry is one stale finding.
type Entry struct {
	Path      string
	ID        string
	Type      entity.Type
	Reason    Reason
	UpdatedAt time.Time
	AgeDays   int
}

// Detect scans the given (path, entity) pairs and returns every stale
// finding, sorted oldest-updated first.
func Detect(entities map[string]entity.Entity, now time.Time) []Entry {
	var out []Entry
	for path, e := range entities {
		h := e.Header
		ageDays := int(now.Sub(h.Updated).Hours() / 24)

		if h.ValidTo != nil && now.After(*h.ValidTo) {
			out = append(out, Entry{path, h.ID, h.Type, ReasonValidityExpired, h.Updated, ageDays})
			continue
		}
		if terminalStatuses[h.Status] {
			out = append(out, Entry{path, h.ID, h.Type, ReasonTerminalStatus, h.Updated, ageDays})
			continue
		}
		threshold := thresholdDays[h.Type]
		if threshold == 0 {
			threshold = defaultThresholdDays
		}
		if ageDays > threshold {
			out = append(out, Entry{path, h.ID, h.Type, ReasonAged, h.Updated, ageDays})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AgeDays != out[j].AgeDays {
			return out[i].AgeDays > out[j].AgeDays
		}
		return out[i].ID < out[j].ID
	})
	return out
}
