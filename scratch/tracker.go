// Package scratch turns pointer input over a ticket into per-cell reveal events.
package scratch

import (
	"errors"
	"math"
)

// Defaults used when a Config field is left at zero
const (
	DefaultResolution = 20
	DefaultRadius     = 15.0
	DefaultThreshold  = 50.0
)

// ErrInvalidSize is returned when a cell is initialized with a non-positive size
var ErrInvalidSize = errors.New("scratch: cell size must be positive")

// State is the reveal state of a single cell
type State int

const (
	Hidden State = iota
	Revealing
	Revealed
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Revealing:
		return "revealing"
	case Revealed:
		return "revealed"
	}
	return "unknown"
}

// ResizePolicy decides what happens to scratch progress when a cell changes size
type ResizePolicy int

const (
	// ResizeRescale keeps progress. The occlusion grid is expressed in cell
	// relative units, so only the pixel-to-subcell mapping changes.
	ResizeRescale ResizePolicy = iota
	// ResizeReset discards progress of cells that are not yet revealed.
	ResizeReset
)

// Point is a position in pixels, local to the cell for Tracker methods
type Point struct {
	X, Y float64
}

// Config tunes the occlusion grid
type Config struct {
	// Resolution is the side of the square occlusion grid.
	Resolution int
	// Radius of the scratch brush in pixels.
	Radius float64
	// Threshold is the percentage at which the cell counts as revealed.
	Threshold float64
	Resize    ResizePolicy
}

func (c Config) withDefaults() Config {
	if c.Resolution <= 0 {
		c.Resolution = DefaultResolution
	}
	if c.Radius <= 0 {
		c.Radius = DefaultRadius
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	c.Threshold = math.Min(c.Threshold, 100)
	return c
}

// RevealFunc is called once when a cell becomes revealed
type RevealFunc func(cellID string, value int)

// Tracker tracks how much of one cell has been scratched. It is not safe for
// concurrent use; input for a cell is expected from a single event loop.
type Tracker struct {
	cellID   string
	value    int
	cfg      Config
	onReveal RevealFunc

	width, height float64
	subcells      []bool
	scratched     int
	state         State

	drawing bool
	last    Point
}

// NewTracker creates a tracker for a cell. Initialize must be called with
// the cell's pixel size before scratch input is accepted.
func NewTracker(cellID string, value int, cfg Config, onReveal RevealFunc) *Tracker {
	cfg = cfg.withDefaults()
	return &Tracker{
		cellID:   cellID,
		value:    value,
		cfg:      cfg,
		onReveal: onReveal,
		subcells: make([]bool, cfg.Resolution*cfg.Resolution),
	}
}

// CellID returns the id of the tracked cell
func (t *Tracker) CellID() string { return t.cellID }

// Value returns the value hidden under the cell
func (t *Tracker) Value() int { return t.value }

// State returns the current reveal state
func (t *Tracker) State() State { return t.state }

// Initialized reports whether the cell has a drawable size
func (t *Tracker) Initialized() bool { return t.width > 0 && t.height > 0 }

// Initialize sets the drawable size of the cell. Calling it again with a
// different size applies the configured ResizePolicy; a revealed cell always
// stays revealed.
func (t *Tracker) Initialize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	resized := t.Initialized() && (width != t.width || height != t.height)
	t.width, t.height = width, height

	if resized && t.cfg.Resize == ResizeReset && t.state != Revealed {
		clear(t.subcells)
		t.scratched = 0
		t.state = Hidden
		t.drawing = false
	}
	return nil
}

// ApplyScratch marks every occlusion subcell whose centre lies within the
// brush radius of p, plus the subcell containing p.
func (t *Tracker) ApplyScratch(p Point) {
	if !t.Initialized() || t.state == Revealed {
		return
	}
	t.mark(p)
	t.checkThreshold()
}

// ApplyStroke scratches along the segment from..to, sampling at most every
// Radius/2 pixels so fast movement leaves no unscratched strips.
func (t *Tracker) ApplyStroke(from, to Point) {
	if !t.Initialized() || t.state == Revealed {
		return
	}

	dx, dy := to.X-from.X, to.Y-from.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		t.mark(to)
		t.checkThreshold()
		return
	}

	spacing := t.cfg.Radius / 2
	steps := max(1, int(math.Ceil(dist/spacing)))
	for i := 0; i <= steps; i++ {
		f := float64(i) / float64(steps)
		t.mark(Point{X: from.X + dx*f, Y: from.Y + dy*f})
	}
	t.checkThreshold()
}

// Begin starts a direct stroke on this cell at p
func (t *Tracker) Begin(p Point) {
	if !t.Initialized() {
		return
	}
	t.drawing = true
	t.last = p
	t.ApplyScratch(p)
}

// Continue extends a direct stroke to p. It is ignored unless Begin was called.
func (t *Tracker) Continue(p Point) {
	if !t.drawing || !t.Initialized() {
		return
	}
	t.ApplyStroke(t.last, p)
	t.last = p
}

// End finishes a direct stroke
func (t *Tracker) End() {
	t.drawing = false
}

// ForceReveal uncovers the whole cell. It fires the reveal callback only if
// the cell was not revealed already.
func (t *Tracker) ForceReveal() {
	if t.state == Revealed {
		return
	}
	for i := range t.subcells {
		t.subcells[i] = true
	}
	t.scratched = len(t.subcells)
	t.reveal()
}

// PercentRevealed returns the scratched share of the cell, 0 to 100
func (t *Tracker) PercentRevealed() float64 {
	if len(t.subcells) == 0 {
		return 0
	}
	pct := float64(t.scratched) / float64(len(t.subcells)) * 100
	return math.Min(math.Max(pct, 0), 100)
}

// Scratched reports whether the occlusion subcell at (col, row) is scratched
func (t *Tracker) Scratched(col, row int) bool {
	res := t.cfg.Resolution
	if col < 0 || row < 0 || col >= res || row >= res {
		return false
	}
	return t.subcells[row*res+col]
}

// Resolution returns the side of the occlusion grid
func (t *Tracker) Resolution() int { return t.cfg.Resolution }

func (t *Tracker) mark(p Point) {
	res := t.cfg.Resolution
	cw := t.width / float64(res)
	ch := t.height / float64(res)
	r := t.cfg.Radius

	minCol := max(0, int(math.Floor((p.X-r)/cw)))
	maxCol := min(res-1, int(math.Floor((p.X+r)/cw)))
	minRow := max(0, int(math.Floor((p.Y-r)/ch)))
	maxRow := min(res-1, int(math.Floor((p.Y+r)/ch)))

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			cx := (float64(col) + 0.5) * cw
			cy := (float64(row) + 0.5) * ch
			if math.Hypot(cx-p.X, cy-p.Y) <= r {
				t.set(col, row)
			}
		}
	}

	if p.X >= 0 && p.X < t.width && p.Y >= 0 && p.Y < t.height {
		t.set(int(p.X/cw), int(p.Y/ch))
	}

	if t.scratched > 0 && t.state == Hidden {
		t.state = Revealing
	}
}

func (t *Tracker) set(col, row int) {
	res := t.cfg.Resolution
	if col < 0 || row < 0 || col >= res || row >= res {
		return
	}
	idx := row*res + col
	if !t.subcells[idx] {
		t.subcells[idx] = true
		t.scratched++
	}
}

func (t *Tracker) checkThreshold() {
	if t.state != Revealed && t.PercentRevealed() >= t.cfg.Threshold {
		t.reveal()
	}
}

func (t *Tracker) reveal() {
	t.state = Revealed
	t.drawing = false
	if t.onReveal != nil {
		t.onReveal(t.cellID, t.value)
	}
}
