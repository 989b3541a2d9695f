package scratch

import (
	"fmt"
	"math"
)

// Target receives scratch input in cell-local pixel coordinates
type Target interface {
	ApplyScratch(p Point)
	ApplyStroke(from, to Point)
}

// Rect is the on-screen bounding box of a grid
type Rect struct {
	X, Y, Width, Height float64
}

// Router maps one drag gesture over a cols by rows grid of cells onto the
// individual cells. Entering a cell starts a fresh scratch there; moving
// inside a cell draws a stroke from the previous local point. No stroke is
// drawn across a cell boundary.
type Router struct {
	bounds     Rect
	cols, rows int
	targets    []Target

	dragging bool
	current  int
	last     Point
}

// NewRouter creates a router. targets are row-major and must hold cols*rows entries.
func NewRouter(bounds Rect, cols, rows int, targets []Target) (*Router, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("scratch: grid size must be positive, got %dx%d", cols, rows)
	}
	if len(targets) != cols*rows {
		return nil, fmt.Errorf("scratch: expected %d targets, got %d", cols*rows, len(targets))
	}
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return nil, ErrInvalidSize
	}
	return &Router{
		bounds:  bounds,
		cols:    cols,
		rows:    rows,
		targets: targets,
		current: -1,
	}, nil
}

// CellSize returns the pixel size of one cell
func (r *Router) CellSize() (w, h float64) {
	return r.bounds.Width / float64(r.cols), r.bounds.Height / float64(r.rows)
}

// SetBounds updates the grid's bounding box, e.g. after a layout change.
// An in-progress drag restarts at the next move.
func (r *Router) SetBounds(bounds Rect) error {
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return ErrInvalidSize
	}
	r.bounds = bounds
	r.current = -1
	return nil
}

// Locate returns the cell index under p and p in that cell's local
// coordinates. ok is false when p lies outside the grid.
func (r *Router) Locate(p Point) (index int, local Point, ok bool) {
	relX := (p.X - r.bounds.X) / r.bounds.Width
	relY := (p.Y - r.bounds.Y) / r.bounds.Height
	if relX < 0 || relX > 1 || relY < 0 || relY > 1 || math.IsNaN(relX) || math.IsNaN(relY) {
		return 0, Point{}, false
	}

	col := min(int(math.Floor(relX*float64(r.cols))), r.cols-1)
	row := min(int(math.Floor(relY*float64(r.rows))), r.rows-1)

	cw, ch := r.CellSize()
	local = Point{
		X: p.X - r.bounds.X - float64(col)*cw,
		Y: p.Y - r.bounds.Y - float64(row)*ch,
	}
	return row*r.cols + col, local, true
}

// Down starts a drag at p
func (r *Router) Down(p Point) {
	r.dragging = true
	r.current = -1
	r.route(p)
}

// Move continues a drag. Moves without a preceding Down are ignored.
func (r *Router) Move(p Point) {
	if !r.dragging {
		return
	}
	r.route(p)
}

// Up ends the drag
func (r *Router) Up() {
	r.dragging = false
	r.current = -1
}

func (r *Router) route(p Point) {
	idx, local, ok := r.Locate(p)
	if !ok {
		// Leaving the grid ends continuity; re-entry is a fresh entry.
		r.current = -1
		return
	}

	target := r.targets[idx]
	if idx != r.current {
		r.current = idx
		target.ApplyScratch(local)
	} else {
		target.ApplyStroke(r.last, local)
	}
	r.last = local
}
