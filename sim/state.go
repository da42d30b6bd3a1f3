package sim

import (
	"fmt"
	"sort"
	"strings"
)

// === State Space ===

// StateID indexes a life-course state. IDs are dense and assigned in
// declaration order, so they double as slice indices in compiled
// transition tables.
type StateID uint8

// Canonical four-state space. Extensions declare additional states but
// keep these four, so the IDs below are stable across architectures.
const (
	StateInactive StateID = iota
	StateEmployed
	StateRetired
	StateDeceased
)

// StateDef describes one state in the space.
//
// AbsorbRank orders absorption: 0 marks an ordinary state, and a state
// with rank r can only be followed by itself or by a state with rank
// strictly greater than r. The unique state with the highest rank is
// terminal and ends the trajectory.
type StateDef struct {
	ID         StateID `yaml:"-"`
	Label      string  `yaml:"label"`
	AbsorbRank int     `yaml:"absorb_rank"`
}

// IsAbsorbing reports whether the state can never be left for a
// lower-ranked state.
func (d StateDef) IsAbsorbing() bool {
	return d.AbsorbRank > 0
}

// StateSpace holds an ordered, validated set of state definitions.
// It is immutable after construction.
type StateSpace struct {
	defs     []StateDef
	byLabel  map[string]StateID
	terminal StateID
	initial  StateID
}

// NewStateSpace validates defs and builds a StateSpace. IDs are
// assigned from declaration order. Rules enforced here:
//   - at least two states, labels unique and non-empty
//   - at least one non-absorbing state (the first becomes the initial state)
//   - exactly one state with the maximum absorb rank (the terminal state)
func NewStateSpace(defs []StateDef) (*StateSpace, error) {
	if len(defs) < 2 {
		return nil, fmt.Errorf("state space needs at least 2 states, got %d", len(defs))
	}
	if len(defs) > 64 {
		return nil, fmt.Errorf("state space supports at most 64 states, got %d", len(defs))
	}

	s := &StateSpace{
		defs:    make([]StateDef, len(defs)),
		byLabel: make(map[string]StateID, len(defs)),
	}

	maxRank := 0
	firstOrdinary := -1
	for i, d := range defs {
		if d.Label == "" {
			return nil, fmt.Errorf("state %d has an empty label", i)
		}
		if _, dup := s.byLabel[d.Label]; dup {
			return nil, fmt.Errorf("duplicate state label %q", d.Label)
		}
		if d.AbsorbRank < 0 {
			return nil, fmt.Errorf("state %q: absorb rank must be >= 0, got %d", d.Label, d.AbsorbRank)
		}
		d.ID = StateID(i)
		s.defs[i] = d
		s.byLabel[d.Label] = d.ID
		if d.AbsorbRank > maxRank {
			maxRank = d.AbsorbRank
		}
		if d.AbsorbRank == 0 && firstOrdinary < 0 {
			firstOrdinary = i
		}
	}

	if firstOrdinary < 0 {
		return nil, fmt.Errorf("state space has no non-absorbing state")
	}
	if maxRank == 0 {
		return nil, fmt.Errorf("state space has no terminal state")
	}

	terminalCount := 0
	for _, d := range s.defs {
		if d.AbsorbRank == maxRank {
			s.terminal = d.ID
			terminalCount++
		}
	}
	if terminalCount != 1 {
		return nil, fmt.Errorf("state space needs exactly one terminal state, got %d at rank %d", terminalCount, maxRank)
	}

	s.initial = StateID(firstOrdinary)
	return s, nil
}

// DefaultStateSpace returns the canonical four-state space:
// inactive (initial), employed, retired (absorbing), deceased (terminal).
func DefaultStateSpace() *StateSpace {
	s, err := NewStateSpace([]StateDef{
		{Label: "inactive", AbsorbRank: 0},
		{Label: "employed", AbsorbRank: 0},
		{Label: "retired", AbsorbRank: 1},
		{Label: "deceased", AbsorbRank: 2},
	})
	if err != nil {
		panic(fmt.Sprintf("default state space invalid: %v", err))
	}
	return s
}

// Len returns the number of states.
func (s *StateSpace) Len() int {
	return len(s.defs)
}

// Defs returns a copy of the state definitions in ID order.
func (s *StateSpace) Defs() []StateDef {
	out := make([]StateDef, len(s.defs))
	copy(out, s.defs)
	return out
}

// Def returns the definition for id.
func (s *StateSpace) Def(id StateID) (StateDef, bool) {
	if int(id) >= len(s.defs) {
		return StateDef{}, false
	}
	return s.defs[id], true
}

// Label returns the label for id, or "state(<n>)" when id is unknown.
func (s *StateSpace) Label(id StateID) string {
	if int(id) < len(s.defs) {
		return s.defs[id].Label
	}
	return fmt.Sprintf("state(%d)", id)
}

// ByLabel resolves a label to its StateID.
func (s *StateSpace) ByLabel(label string) (StateID, bool) {
	id, ok := s.byLabel[label]
	return id, ok
}

// Labels returns all labels in ID order.
func (s *StateSpace) Labels() []string {
	out := make([]string, len(s.defs))
	for i, d := range s.defs {
		out[i] = d.Label
	}
	return out
}

// Initial returns the state every individual starts in at birth: the
// first non-absorbing state in declaration order.
func (s *StateSpace) Initial() StateID {
	return s.initial
}

// Terminal returns the unique highest-ranked state.
func (s *StateSpace) Terminal() StateID {
	return s.terminal
}

// IsAbsorbing reports whether id is absorbing.
func (s *StateSpace) IsAbsorbing(id StateID) bool {
	if int(id) >= len(s.defs) {
		return false
	}
	return s.defs[id].IsAbsorbing()
}

// Live returns the IDs of all non-terminal states, in ID order. These
// are the states a living individual can occupy.
func (s *StateSpace) Live() []StateID {
	out := make([]StateID, 0, len(s.defs)-1)
	for _, d := range s.defs {
		if d.ID != s.terminal {
			out = append(out, d.ID)
		}
	}
	return out
}

// Ordinary returns the IDs of all non-absorbing states, in ID order.
// Only these states need transition rows: absorbing states move by the
// absorption rule alone.
func (s *StateSpace) Ordinary() []StateID {
	out := make([]StateID, 0, len(s.defs))
	for _, d := range s.defs {
		if !d.IsAbsorbing() {
			out = append(out, d.ID)
		}
	}
	return out
}

// CanFollow reports whether state to may directly follow state from
// under the absorption ordering.
func (s *StateSpace) CanFollow(from, to StateID) bool {
	fd, ok := s.Def(from)
	if !ok {
		return false
	}
	td, ok := s.Def(to)
	if !ok {
		return false
	}
	if !fd.IsAbsorbing() {
		return true
	}
	return to == from || td.AbsorbRank > fd.AbsorbRank
}

// describe renders the space for hashing and error messages:
// "inactive:0,employed:0,retired:1,deceased:2".
func (s *StateSpace) describe() string {
	parts := make([]string, len(s.defs))
	for i, d := range s.defs {
		parts[i] = fmt.Sprintf("%s:%d", d.Label, d.AbsorbRank)
	}
	return strings.Join(parts, ",")
}

// sortedLabels returns labels in lexical order. Used wherever map
// iteration must be deterministic.
func sortedLabels(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
