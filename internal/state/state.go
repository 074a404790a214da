// Package state models operational states: named partitions of the analysis
// window defined by a segment-database predicate and resolved to known and
// active interval sets.
package state

import (
	"fmt"
	"sort"

	"github.com/vk/detsumm/internal/segments"
)

// AllName is the reserved name of the trivial state whose active interval
// equals the whole window with no gaps.
const AllName = "All"

// State is one operational-mode partition of the analysis window. A State is
// created not-ready; the Resolver marks it ready exactly once per run.
type State struct {
	Name       string
	Definition string // segment-database predicate, e.g. "L1:DMT-SCIENCE:1"

	Known  segments.List
	Active segments.List

	ready bool
}

// New returns a not-ready state for the given predicate definition.
func New(name, definition string) *State {
	return &State{Name: name, Definition: definition}
}

// NewAll returns the not-ready reserved "All" state.
func NewAll() *State {
	return &State{Name: AllName}
}

// IsAll reports whether this is the reserved whole-window state.
func (s *State) IsAll() bool {
	return s.Name == AllName
}

// Ready reports whether intervals have been resolved for this state.
func (s *State) Ready() bool {
	return s.ready
}

// ActiveDuration returns the total active time in seconds.
func (s *State) ActiveDuration() int64 {
	return s.Active.Duration()
}

// String implements fmt.Stringer.
func (s *State) String() string {
	return fmt.Sprintf("state %q (active %ds)", s.Name, s.ActiveDuration())
}

// SortByActive re-sorts states by descending total active duration, stable
// for ties. This ordering drives downstream processing and display priority.
func SortByActive(states []*State) {
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].ActiveDuration() > states[j].ActiveDuration()
	})
}
