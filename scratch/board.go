package scratch

import (
	"fmt"

	"github.com/blackscorpionster/rubits/game"
)

// Board wires one tracker per ticket cell behind a single Router
type Board struct {
	router   *Router
	trackers []*Tracker
	byID     map[string]*Tracker
}

// NewBoard lays a ticket's cells out inside bounds. onReveal fires once per
// cell as it crosses the reveal threshold.
func NewBoard(ticket *game.Ticket, bounds Rect, cfg Config, onReveal RevealFunc) (*Board, error) {
	gx, gy := ticket.GridSize()
	cells := ticket.Cells()
	if len(cells) != gx*gy {
		return nil, fmt.Errorf("scratch: ticket %s has %d cells, grid is %dx%d", ticket.ID, len(cells), gx, gy)
	}

	b := &Board{
		trackers: make([]*Tracker, len(cells)),
		byID:     make(map[string]*Tracker, len(cells)),
	}
	targets := make([]Target, len(cells))
	for i, c := range cells {
		tr := NewTracker(c.ID, c.Value, cfg, onReveal)
		b.trackers[i] = tr
		b.byID[c.ID] = tr
		targets[i] = tr
	}

	router, err := NewRouter(bounds, gx, gy, targets)
	if err != nil {
		return nil, err
	}
	b.router = router

	if err := b.sizeCells(); err != nil {
		return nil, err
	}
	return b, nil
}

// Router returns the input router spanning the board
func (b *Board) Router() *Router { return b.router }

// Tracker returns the tracker of a cell
func (b *Board) Tracker(cellID string) (*Tracker, bool) {
	t, ok := b.byID[cellID]
	return t, ok
}

// Resize moves the board to new bounds, rescaling every cell
func (b *Board) Resize(bounds Rect) error {
	if err := b.router.SetBounds(bounds); err != nil {
		return err
	}
	return b.sizeCells()
}

// Restore force-reveals the cells already revealed in a saved state, used
// when a partially scratched ticket is resumed.
func (b *Board) Restore(state *game.RevealState) {
	if state == nil {
		return
	}
	for id := range state.RevealedNumbers {
		if t, ok := b.byID[id]; ok {
			t.ForceReveal()
		}
	}
}

// Progress returns the revealed percentage of every cell
func (b *Board) Progress() map[string]float64 {
	out := make(map[string]float64, len(b.trackers))
	for _, t := range b.trackers {
		out[t.CellID()] = t.PercentRevealed()
	}
	return out
}

// Complete reports whether every cell is revealed
func (b *Board) Complete() bool {
	for _, t := range b.trackers {
		if t.State() != Revealed {
			return false
		}
	}
	return true
}

func (b *Board) sizeCells() error {
	w, h := b.router.CellSize()
	for _, t := range b.trackers {
		if err := t.Initialize(w, h); err != nil {
			return err
		}
	}
	return nil
}
