// Package ticketgen builds the full ticket set of a draw: the winning tickets
// of every prize tier plus losing tickets, each with its content digest, in a
// shuffled issue order.
package ticketgen

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/blackscorpionster/rubits/game"
	"github.com/google/uuid"
)

const (
	defaultMaxTile     = 9
	defaultMaxAttempts = 1000
)

// ErrUnsatisfiable is returned when no grid can meet a draw's rule, e.g. a
// losing grid when a single tile already wins.
var ErrUnsatisfiable = errors.New("ticketgen: draw rule cannot be satisfied")

// Options tune generation
type Options struct {
	// Seed makes runs reproducible; zero picks a random seed.
	Seed int64
	// MaxTile is the highest tile value used for filler cells.
	MaxTile int
	// DefaultMatchingTiles applies to draws without their own rule.
	DefaultMatchingTiles int
	MaxAttempts          int
}

// Generator creates ticket grids. Not safe for concurrent use.
type Generator struct {
	src  *rand.ChaCha8
	rng  *rand.Rand
	opts Options
	now  func() time.Time
}

// New creates a generator
func New(opts Options) *Generator {
	if opts.MaxTile <= 0 {
		opts.MaxTile = defaultMaxTile
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}

	var seed [32]byte
	if opts.Seed != 0 {
		binary.LittleEndian.PutUint64(seed[:8], uint64(opts.Seed))
	} else {
		_, _ = crand.Read(seed[:])
	}
	src := rand.NewChaCha8(seed)

	return &Generator{
		src:  src,
		rng:  rand.New(src),
		opts: opts,
		now:  time.Now,
	}
}

// Generate builds every ticket of draw. Each tier contributes TicketCount
// winners; the remaining NumberOfTickets are losers. Positions follow a
// shuffled order.
func (g *Generator) Generate(draw *game.Draw) ([]*game.Ticket, error) {
	if err := draw.Validate(); err != nil {
		return nil, err
	}

	total := draw.NumberOfTickets
	winners := 0
	for _, t := range draw.Tiers {
		winners += t.TicketCount
	}
	if total < winners {
		total = winners
	}

	created := g.now().UTC()
	tickets := make([]*game.Ticket, 0, total)

	for _, tier := range draw.Tiers {
		tierID := tier.ID
		for i := 0; i < tier.TicketCount; i++ {
			grid, err := g.WinningGrid(draw, tier.TileValue)
			if err != nil {
				return nil, fmt.Errorf("tier %s: %w", tier.ID, err)
			}
			t, err := g.ticket(draw, grid, created)
			if err != nil {
				return nil, err
			}
			t.TierID = &tierID
			tickets = append(tickets, t)
		}
	}

	for len(tickets) < total {
		grid, err := g.LosingGrid(draw)
		if err != nil {
			return nil, err
		}
		t, err := g.ticket(draw, grid, created)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	g.rng.Shuffle(len(tickets), func(i, j int) { tickets[i], tickets[j] = tickets[j], tickets[i] })
	for i, t := range tickets {
		t.Position = i
	}
	return tickets, nil
}

func (g *Generator) ticket(draw *game.Draw, grid []int, created time.Time) (*game.Ticket, error) {
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ticket id: %w", err)
	}
	digest, err := game.Digest(grid)
	if err != nil {
		return nil, err
	}
	return &game.Ticket{
		ID:           id.String(),
		DrawID:       draw.ID,
		GridElements: grid,
		Digest:       digest,
		Status:       game.StatusIntact,
		DateCreated:  created,
	}, nil
}

// WinningGrid returns a grid where one row (or a column, when rows are too
// short for the rule) holds value at least matchingTilesToWin times and no
// other group reaches the rule with any other value.
func (g *Generator) WinningGrid(draw *game.Draw, value int) ([]int, error) {
	gx, gy := draw.GridSizeX, draw.GridSizeY
	need := draw.MatchingTiles(g.opts.DefaultMatchingTiles)
	if need > gx && need > gy {
		return nil, fmt.Errorf("%w: %d matching tiles on a %dx%d grid", ErrUnsatisfiable, need, gx, gy)
	}
	if value <= 0 {
		return nil, fmt.Errorf("%w: tile value %d", ErrUnsatisfiable, value)
	}

	for attempt := 0; attempt < g.opts.MaxAttempts; attempt++ {
		grid := make([]int, gx*gy)
		for _, idx := range g.line(gx, gy, need) {
			grid[idx] = value
		}
		for i := range grid {
			if grid[i] == 0 {
				grid[i] = g.tileExcept(value)
			}
		}

		eval := evaluate(grid, need, gx, gy)
		if !eval.HasWon || eval.WinningValue == nil || *eval.WinningValue != value {
			continue
		}
		if others := evaluate(without(grid, value), need, gx, gy); others.HasWon {
			continue
		}
		return grid, nil
	}
	return nil, fmt.Errorf("%w: no winning grid for value %d after %d attempts", ErrUnsatisfiable, value, g.opts.MaxAttempts)
}

// LosingGrid returns a grid where no row, column or diagonal reaches the rule
func (g *Generator) LosingGrid(draw *game.Draw) ([]int, error) {
	gx, gy := draw.GridSizeX, draw.GridSizeY
	need := draw.MatchingTiles(g.opts.DefaultMatchingTiles)
	if need <= 1 {
		return nil, fmt.Errorf("%w: every tile wins with %d matching tiles", ErrUnsatisfiable, need)
	}

	for attempt := 0; attempt < g.opts.MaxAttempts; attempt++ {
		grid := make([]int, gx*gy)
		for i := range grid {
			grid[i] = 1 + g.rng.IntN(g.opts.MaxTile)
		}
		if !evaluate(grid, need, gx, gy).HasWon {
			return grid, nil
		}
	}
	return nil, fmt.Errorf("%w: no losing grid after %d attempts", ErrUnsatisfiable, g.opts.MaxAttempts)
}

// line picks need cell indexes from one random row, or one random column when
// rows are shorter than need.
func (g *Generator) line(gx, gy, need int) []int {
	out := make([]int, 0, need)
	if need <= gx {
		row := g.rng.IntN(gy)
		for _, col := range g.rng.Perm(gx)[:need] {
			out = append(out, row*gx+col)
		}
		return out
	}
	col := g.rng.IntN(gx)
	for _, row := range g.rng.Perm(gy)[:need] {
		out = append(out, row*gx+col)
	}
	return out
}

func (g *Generator) tileExcept(value int) int {
	if g.opts.MaxTile <= 1 && value == 1 {
		return 2
	}
	for {
		v := 1 + g.rng.IntN(g.opts.MaxTile)
		if v != value {
			return v
		}
	}
}

func evaluate(grid []int, need, gx, gy int) game.Evaluation {
	revealed := make(map[string]int, len(grid))
	for i, v := range grid {
		revealed[game.CellID(i/gx, i%gx)] = v
	}
	return game.Evaluate(revealed, need, gx, gy)
}

func without(grid []int, value int) []int {
	out := make([]int, len(grid))
	for i, v := range grid {
		if v != value {
			out[i] = v
		}
	}
	return out
}
