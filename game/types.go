package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DefaultMatchingTilesToWin applies when a draw does not configure its own rule
const DefaultMatchingTilesToWin = 3

var (
	// ErrNotFound is returned by stores when no record matches a lookup
	ErrNotFound = errors.New("not found")
	// ErrInsufficientInventory is returned when a draw has fewer intact
	// tickets than requested
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// TicketStatus is the persisted lifecycle of a ticket
type TicketStatus string

const (
	StatusIntact    TicketStatus = "intact"
	StatusPurchased TicketStatus = "purchased"
	StatusScratched TicketStatus = "scratched"
)

// Valid reports whether s is a known status
func (s TicketStatus) Valid() bool {
	switch s {
	case StatusIntact, StatusPurchased, StatusScratched:
		return true
	}
	return false
}

// GridCell is one addressable position of a ticket grid
type GridCell struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

// CellID formats the "<row>-<col>" identifier of a cell
func CellID(row, col int) string {
	return strconv.Itoa(row) + "-" + strconv.Itoa(col)
}

// ParseCellID splits a "<row>-<col>" identifier. Only the form CellID
// produces is accepted, so "00-0" or "+0-0" never alias "0-0".
func ParseCellID(id string) (row, col int, err error) {
	r, c, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid cell id %q", id)
	}
	if row, err = strconv.Atoi(r); err != nil {
		return 0, 0, fmt.Errorf("invalid cell row in %q: %w", id, err)
	}
	if col, err = strconv.Atoi(c); err != nil {
		return 0, 0, fmt.Errorf("invalid cell column in %q: %w", id, err)
	}
	if CellID(row, col) != id {
		return 0, 0, fmt.Errorf("non-canonical cell id %q", id)
	}
	return row, col, nil
}

// PrizeTier maps a winning tile value to a payout within a draw
type PrizeTier struct {
	ID          string          `json:"id" mapstructure:"id"`
	DrawID      string          `json:"drawId" mapstructure:"-"`
	Name        string          `json:"name" mapstructure:"name"`
	TileValue   int             `json:"tileValue" mapstructure:"tile_value"`
	Amount      decimal.Decimal `json:"amount" mapstructure:"amount"`
	TicketCount int             `json:"ticketCount" mapstructure:"ticket_count"`
}

// Draw is the read-only configuration shared by a batch of tickets
type Draw struct {
	ID                 string          `json:"id" mapstructure:"id"`
	Name               string          `json:"name" mapstructure:"name"`
	GridSizeX          int             `json:"gridSizeX" mapstructure:"grid_size_x"`
	GridSizeY          int             `json:"gridSizeY" mapstructure:"grid_size_y"`
	MatchingTilesToWin int             `json:"matchingTilesToWin" mapstructure:"matching_tiles_to_win"`
	TicketCost         decimal.Decimal `json:"ticketCost" mapstructure:"ticket_cost"`
	ProfitPercent      decimal.Decimal `json:"profitPercent" mapstructure:"profit_percent"`
	NumberOfTickets    int             `json:"numberOfTickets" mapstructure:"number_of_tickets"`
	TilesTheme         string          `json:"tilesTheme" mapstructure:"tiles_theme"`
	// Tiers stay server-side; clients only learn the outcome through validation.
	Tiers []PrizeTier `json:"-" mapstructure:"tiers"`
}

// CellCount is the number of cells on every ticket of the draw
func (d *Draw) CellCount() int {
	return d.GridSizeX * d.GridSizeY
}

// MatchingTiles returns the draw's win rule, falling back to def and then to
// DefaultMatchingTilesToWin.
func (d *Draw) MatchingTiles(def int) int {
	if d.MatchingTilesToWin > 0 {
		return d.MatchingTilesToWin
	}
	if def > 0 {
		return def
	}
	return DefaultMatchingTilesToWin
}

// Tier looks up a prize tier by id
func (d *Draw) Tier(id string) (PrizeTier, bool) {
	return lo.Find(d.Tiers, func(t PrizeTier) bool { return t.ID == id })
}

// TierForValue looks up the prize tier paying out for a tile value
func (d *Draw) TierForValue(value int) (PrizeTier, bool) {
	return lo.Find(d.Tiers, func(t PrizeTier) bool { return t.TileValue == value })
}

// Validate checks the draw geometry and prize table
func (d *Draw) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("draw id is required")
	}
	if d.GridSizeX <= 0 || d.GridSizeY <= 0 {
		return fmt.Errorf("draw %s: grid size must be positive, got %dx%d", d.ID, d.GridSizeX, d.GridSizeY)
	}
	if d.MatchingTilesToWin < 0 {
		return fmt.Errorf("draw %s: matching_tiles_to_win must be >= 1", d.ID)
	}
	winners := 0
	seen := make(map[int]bool, len(d.Tiers))
	for _, t := range d.Tiers {
		if t.ID == "" {
			return fmt.Errorf("draw %s: tier id is required", d.ID)
		}
		if t.TileValue <= 0 {
			return fmt.Errorf("draw %s: tier %s must map to a tile value >= 1", d.ID, t.ID)
		}
		if seen[t.TileValue] {
			return fmt.Errorf("draw %s: tile value %d is mapped to more than one tier", d.ID, t.TileValue)
		}
		seen[t.TileValue] = true
		if t.Amount.IsNegative() {
			return fmt.Errorf("draw %s: tier %s has a negative amount", d.ID, t.ID)
		}
		winners += t.TicketCount
	}
	if d.NumberOfTickets > 0 && winners > d.NumberOfTickets {
		return fmt.Errorf("draw %s: %d winning tickets exceed %d tickets", d.ID, winners, d.NumberOfTickets)
	}
	return nil
}

// Ticket is one issued scratch ticket. GridElements is row-major.
type Ticket struct {
	ID           string       `json:"id"`
	DrawID       string       `json:"drawId"`
	GridElements []int        `json:"gridElements"`
	Digest       string       `json:"md5"`
	Status       TicketStatus `json:"status"`
	// TierID is only set on winning tickets and is never sent to players.
	TierID      *string    `json:"-"`
	Position    int        `json:"position"`
	DateCreated time.Time  `json:"dateCreated"`
	PurchasedBy *string    `json:"purchasedBy"`
	ScratchedAt *time.Time `json:"scratchedAt,omitempty"`
	Draw        *Draw      `json:"draw,omitempty"`
}

// GridSize returns the ticket geometry from its draw, or a square guess when
// the draw is not attached.
func (t *Ticket) GridSize() (x, y int) {
	if t.Draw != nil && t.Draw.GridSizeX > 0 && t.Draw.GridSizeY > 0 {
		return t.Draw.GridSizeX, t.Draw.GridSizeY
	}
	side := 1
	for side*side < len(t.GridElements) {
		side++
	}
	return side, side
}

// Cells expands GridElements into addressable cells
func (t *Ticket) Cells() []GridCell {
	gx, _ := t.GridSize()
	return lo.Map(t.GridElements, func(v int, i int) GridCell {
		return GridCell{ID: CellID(i/gx, i%gx), Value: v}
	})
}

// ValueAt returns the value printed on a cell
func (t *Ticket) ValueAt(cellID string) (int, bool) {
	row, col, err := ParseCellID(cellID)
	if err != nil {
		return 0, false
	}
	gx, gy := t.GridSize()
	if row < 0 || row >= gy || col < 0 || col >= gx {
		return 0, false
	}
	idx := row*gx + col
	if idx >= len(t.GridElements) {
		return 0, false
	}
	return t.GridElements[idx], true
}

// IsWinner reports whether the ticket was issued with a prize tier
func (t *Ticket) IsWinner() bool {
	return t.TierID != nil && *t.TierID != ""
}

// Player is a registered player identified by email
type Player struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidateRequest is the payload submitted when a player finishes a ticket
type ValidateRequest struct {
	RevealedNumbers    map[string]int `json:"revealedNumbers"`
	Ticket             *Ticket        `json:"ticket"`
	MatchingTilesToWin *int           `json:"matchingTilesToWin,omitempty"`
}

// ValidationResult is returned from a validation call and never persisted
type ValidationResult struct {
	Success bool    `json:"success"`
	Valid   bool    `json:"valid"`
	Won     bool    `json:"won"`
	Prize   *string `json:"prize"`
	Message string  `json:"message,omitempty"`
}

// PurchaseRequest assigns intact tickets of a draw to a player
type PurchaseRequest struct {
	DrawID     string `json:"drawId"`
	PlayerID   string `json:"playerId"`
	NumTickets int    `json:"numTickets"`
}

// FormatPrize renders a payout the way it is shown to players, e.g. "$5" or "$2.50"
func FormatPrize(symbol string, amount decimal.Decimal) string {
	if amount.IsInteger() {
		return symbol + amount.String()
	}
	return symbol + amount.StringFixed(2)
}
