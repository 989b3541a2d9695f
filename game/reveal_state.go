package game

import (
	"maps"

	"github.com/samber/lo"
)

// RevealState is the per-ticket scratch progress of a session
type RevealState struct {
	RevealedNumbers       map[string]int     `json:"revealedNumbers"`
	PercentRevealedByCell map[string]float64 `json:"percentRevealedByCell"`
	// Finished is set once a validation outcome has been recorded for the ticket.
	Finished bool `json:"finished,omitempty"`
}

// NewRevealState creates an empty state
func NewRevealState() *RevealState {
	return &RevealState{
		RevealedNumbers:       make(map[string]int),
		PercentRevealedByCell: make(map[string]float64),
	}
}

// Reveal records a cell value. The first value wins; later calls are ignored.
// Returns true when the cell was newly revealed.
func (s *RevealState) Reveal(cellID string, value int) bool {
	if s.RevealedNumbers == nil {
		s.RevealedNumbers = make(map[string]int)
	}
	if _, ok := s.RevealedNumbers[cellID]; ok {
		return false
	}
	s.RevealedNumbers[cellID] = value
	return true
}

// SetPercent records scratch progress for a cell. Progress never goes down.
func (s *RevealState) SetPercent(cellID string, pct float64) {
	if s.PercentRevealedByCell == nil {
		s.PercentRevealedByCell = make(map[string]float64)
	}
	pct = min(max(pct, 0), 100)
	if pct > s.PercentRevealedByCell[cellID] {
		s.PercentRevealedByCell[cellID] = pct
	}
}

// Count is the number of revealed cells
func (s *RevealState) Count() int {
	return len(s.RevealedNumbers)
}

// IsComplete reports whether every one of cells has been revealed
func (s *RevealState) IsComplete(cells int) bool {
	return cells > 0 && s.Count() >= cells
}

// RevealedCells lists the revealed cell ids
func (s *RevealState) RevealedCells() []string {
	return lo.Keys(s.RevealedNumbers)
}

// Clone returns a deep copy
func (s *RevealState) Clone() *RevealState {
	return &RevealState{
		RevealedNumbers:       maps.Clone(s.RevealedNumbers),
		PercentRevealedByCell: maps.Clone(s.PercentRevealedByCell),
		Finished:              s.Finished,
	}
}
