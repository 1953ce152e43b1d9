// Package track implements the enrichment track state machine that
// governs a feature workflow's lifecycle, per spec.md §4.15. Transitions
// are driven by explicit operations; each appends a field_update event
// on the governing entity. Invalid transitions fail with
// brainerr.ErrPreconditionNotMet. Grounded on the teacher's
// internal/storage/dolt/decision_points.go state-gated mutation pattern.
package track

import (
	"github.com/pmos/brain/internal/brainerr"
	"github.com/pmos/brain/internal/entity"
	"github.com/pmos/brain/internal/event"
)

// State is one step in the enrichment track lifecycle.
type State string

const (
	NotStarted State = "NOT_STARTED"
	InProgress State = "IN_PROGRESS"
	Approved   State = "APPROVED"
	Rejected   State = "REJECTED"
	Complete   State = "COMPLETE"
	Blocked    State = "BLOCKED"
)

// transitions enumerates every state -> allowed-next-states edge. The
// spec's diagram draws COMPLETE as one of several states reachable
// directly from IN_PROGRESS, but also calls out "completing a track
// without the required artifacts" as the canonical
// precondition_not_met example; we resolve that by requiring APPROVED
// before COMPLETE, rather than modeling artifacts as a separate,
// spec-unstated field (open-question decision, see DESIGN.md).
var transitions = map[State]map[State]bool{
	NotStarted: {InProgress: true},
	InProgress: {Approved: true, Rejected: true, Blocked: true},
	Blocked:    {InProgress: true, Rejected: true},
	Approved:   {Complete: true},
}

// fieldKey is the header Extra key holding the track state on the
// governing entity.
const fieldKey = "track_state"

// Current reads the track state from h, defaulting to NotStarted when
// absent.
func Current(h entity.Header) State {
	if v, ok := h.Extra[fieldKey]; ok {
		if s, ok := v.(string); ok && s != "" {
			return State(s)
		}
	}
	return NotStarted
}

// CanTransition reports whether from -> to is an allowed edge. Completing
// a track requires APPROVED first, matching spec.md's example
// precondition ("completing a track without the required artifacts
// fails").
func CanTransition(from, to State) bool {
	return transitions[from] != nil && transitions[from][to]
}

// Transition moves the entity at path from its current track state to
// to, appending a field_update event, or returns ErrPreconditionNotMet
// if the edge is not allowed.
func Transition(store *entity.Store, events *event.Store, path string, to State, actor string) (entity.Entity, error) {
	e, _, err := store.Read(path)
	if err != nil {
		return entity.Entity{}, err
	}
	from := Current(e.Header)
	if !CanTransition(from, to) {
		return entity.Entity{}, brainerr.Wrap("track.Transition", brainerr.ErrPreconditionNotMet,
			errInvalidTransition{from, to})
	}

	if e.Header.Extra == nil {
		e.Header.Extra = map[string]interface{}{}
	}
	e.Header.Extra[fieldKey] = string(to)
	if err := store.Write(path, e, nil); err != nil {
		return entity.Entity{}, err
	}

	return events.Append(path, entity.EventFieldUpdate,
		"track transitioned "+string(from)+" -> "+string(to), actor,
		[]entity.Change{{Field: fieldKey, Operation: "set", Value: string(to), OldValue: string(from)}}, "")
}

type errInvalidTransition struct {
	from, to State
}

func (e errInvalidTransition) Error() string {
	return "invalid track transition: " + string(e.from) + " -> " + string(e.to)
}
