package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/blackscorpionster/rubits/game"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Repository is the ticket store: draws, prize tiers, tickets and players
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a Repository over an open connection
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type drawRow struct {
	ID                 string          `db:"id"`
	Name               string          `db:"name"`
	GridSizeX          int             `db:"grid_size_x"`
	GridSizeY          int             `db:"grid_size_y"`
	MatchingTilesToWin int             `db:"matching_tiles_to_win"`
	TicketCost         decimal.Decimal `db:"ticket_cost"`
	ProfitPercent      decimal.Decimal `db:"profit_percent"`
	NumberOfTickets    int             `db:"number_of_tickets"`
	TilesTheme         string          `db:"tiles_theme"`
}

func (d drawRow) toDraw() game.Draw {
	return game.Draw{
		ID:                 d.ID,
		Name:               d.Name,
		GridSizeX:          d.GridSizeX,
		GridSizeY:          d.GridSizeY,
		MatchingTilesToWin: d.MatchingTilesToWin,
		TicketCost:         d.TicketCost,
		ProfitPercent:      d.ProfitPercent,
		NumberOfTickets:    d.NumberOfTickets,
		TilesTheme:         d.TilesTheme,
	}
}

type tierRow struct {
	ID          string          `db:"id"`
	DrawID      string          `db:"draw_id"`
	Name        string          `db:"name"`
	TileValue   int             `db:"tile_value"`
	Amount      decimal.Decimal `db:"amount"`
	TicketCount int             `db:"ticket_count"`
}

type ticketRow struct {
	ID           string         `db:"id"`
	DrawID       string         `db:"draw_id"`
	GridElements pq.Int64Array  `db:"grid_elements"`
	Digest       string         `db:"digest"`
	Status       string         `db:"status"`
	TierID       sql.NullString `db:"tier_id"`
	Position     int            `db:"position"`
	DateCreated  time.Time      `db:"date_created"`
	PurchasedBy  sql.NullString `db:"purchased_by"`
	ScratchedAt  sql.NullTime   `db:"scratched_at"`
}

func (t ticketRow) toTicket() *game.Ticket {
	out := &game.Ticket{
		ID:           t.ID,
		DrawID:       t.DrawID,
		GridElements: lo.Map(t.GridElements, func(v int64, _ int) int { return int(v) }),
		Digest:       t.Digest,
		Status:       game.TicketStatus(t.Status),
		Position:     t.Position,
		DateCreated:  t.DateCreated,
	}
	if t.TierID.Valid {
		out.TierID = &t.TierID.String
	}
	if t.PurchasedBy.Valid {
		out.PurchasedBy = &t.PurchasedBy.String
	}
	if t.ScratchedAt.Valid {
		out.ScratchedAt = &t.ScratchedAt.Time
	}
	return out
}

const (
	drawColumns   = `id, name, grid_size_x, grid_size_y, matching_tiles_to_win, ticket_cost, profit_percent, number_of_tickets, tiles_theme`
	tierColumns   = `id, draw_id, name, tile_value, amount, ticket_count`
	ticketColumns = `id, draw_id, grid_elements, digest, status, tier_id, position, date_created, purchased_by, scratched_at`
)

// ListDraws returns every draw with its prize tiers
func (r *Repository) ListDraws(ctx context.Context) ([]game.Draw, error) {
	var rows []drawRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+drawColumns+` FROM draws ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("failed to list draws: %w", err)
	}

	var tiers []tierRow
	if err := r.db.SelectContext(ctx, &tiers, `SELECT `+tierColumns+` FROM prize_tiers ORDER BY draw_id, tile_value`); err != nil {
		return nil, fmt.Errorf("failed to list prize tiers: %w", err)
	}
	byDraw := lo.GroupBy(tiers, func(t tierRow) string { return t.DrawID })

	draws := make([]game.Draw, 0, len(rows))
	for _, row := range rows {
		d := row.toDraw()
		d.Tiers = toTiers(byDraw[d.ID])
		draws = append(draws, d)
	}
	return draws, nil
}

// GetDraw returns a draw with its prize tiers
func (r *Repository) GetDraw(ctx context.Context, id string) (*game.Draw, error) {
	var row drawRow
	err := r.db.GetContext(ctx, &row, `SELECT `+drawColumns+` FROM draws WHERE id = $1`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw %s: %w", id, err)
	}

	var tiers []tierRow
	if err := r.db.SelectContext(ctx, &tiers, `SELECT `+tierColumns+` FROM prize_tiers WHERE draw_id = $1 ORDER BY tile_value`, id); err != nil {
		return nil, fmt.Errorf("failed to get prize tiers of %s: %w", id, err)
	}

	d := row.toDraw()
	d.Tiers = toTiers(tiers)
	return &d, nil
}

func toTiers(rows []tierRow) []game.PrizeTier {
	return lo.Map(rows, func(t tierRow, _ int) game.PrizeTier {
		return game.PrizeTier{
			ID:          t.ID,
			DrawID:      t.DrawID,
			Name:        t.Name,
			TileValue:   t.TileValue,
			Amount:      t.Amount,
			TicketCount: t.TicketCount,
		}
	})
}

// GetTicket loads a ticket with its draw
func (r *Repository) GetTicket(ctx context.Context, id string) (*game.Ticket, error) {
	return r.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

// FindTicketByDigest loads a ticket matching both id and content digest
func (r *Repository) FindTicketByDigest(ctx context.Context, id, digest string) (*game.Ticket, error) {
	return r.getTicket(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1 AND digest = $2`, id, digest)
}

func (r *Repository) getTicket(ctx context.Context, query string, args ...interface{}) (*game.Ticket, error) {
	var row ticketRow
	err := r.db.GetContext(ctx, &row, query, args...)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	t := row.toTicket()
	draw, err := r.GetDraw(ctx, t.DrawID)
	if err != nil {
		return nil, err
	}
	t.Draw = draw
	return t, nil
}

// ListTickets returns the tickets bought by a player, optionally filtered by
// status, each with its draw attached
func (r *Repository) ListTickets(ctx context.Context, playerID string, status *game.TicketStatus) ([]*game.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE purchased_by = $1`
	args := []interface{}{playerID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY draw_id, position`

	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return r.attachDraws(ctx, rows)
}

func (r *Repository) attachDraws(ctx context.Context, rows []ticketRow) ([]*game.Ticket, error) {
	draws := make(map[string]*game.Draw)
	tickets := make([]*game.Ticket, 0, len(rows))
	for _, row := range rows {
		t := row.toTicket()
		d, ok := draws[t.DrawID]
		if !ok {
			var err error
			if d, err = r.GetDraw(ctx, t.DrawID); err != nil {
				return nil, err
			}
			draws[t.DrawID] = d
		}
		t.Draw = d
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// MarkScratched moves a purchased ticket to scratched. The update is
// conditional on the current status, so only one caller can win.
func (r *Repository) MarkScratched(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET status = 'scratched', scratched_at = $2 WHERE id = $1 AND status = 'purchased'`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark ticket %s scratched: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// PurchaseTickets assigns the next n intact tickets of a draw to a player in
// one transaction. Rows locked by a concurrent purchase are skipped rather
// than waited on; if fewer than n remain, nothing is assigned.
func (r *Repository) PurchaseTickets(ctx context.Context, drawID, playerID string, n int) ([]*game.Ticket, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin purchase: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM draws WHERE id = $1)`, drawID); err != nil {
		return nil, fmt.Errorf("failed to check draw %s: %w", drawID, err)
	}
	if !exists {
		return nil, game.ErrNotFound
	}

	var ids []string
	err = tx.SelectContext(ctx, &ids,
		`SELECT id FROM tickets WHERE draw_id = $1 AND status = 'intact' ORDER BY position LIMIT $2 FOR UPDATE SKIP LOCKED`,
		drawID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve tickets: %w", err)
	}
	if len(ids) < n {
		return nil, fmt.Errorf("%w: requested %d, available %d", game.ErrInsufficientInventory, n, len(ids))
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = 'purchased', purchased_by = $1, purchased_at = now() WHERE id = ANY($2) AND status = 'intact'`,
		playerID, pq.StringArray(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to assign tickets: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil || int(affected) != len(ids) {
		return nil, fmt.Errorf("failed to assign tickets: %d of %d updated (%v)", affected, len(ids), err)
	}

	var rows []ticketRow
	if err := tx.SelectContext(ctx, &rows,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ANY($1) ORDER BY position`, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("failed to load purchased tickets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	return r.attachDraws(ctx, rows)
}

// CountIntact returns the number of unsold tickets per draw
func (r *Repository) CountIntact(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		DrawID string `db:"draw_id"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT draw_id, count(*) AS count FROM tickets WHERE status = 'intact' GROUP BY draw_id`); err != nil {
		return nil, fmt.Errorf("failed to count inventory: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.DrawID] = row.Count
	}
	return out, nil
}

// FindOrCreatePlayer returns the player registered with email, creating it on
// first login. created reports whether a new player was inserted.
func (r *Repository) FindOrCreatePlayer(ctx context.Context, email string) (*game.Player, bool, error) {
	var row struct {
		ID        string    `db:"id"`
		Email     string    `db:"email"`
		CreatedAt time.Time `db:"created_at"`
		Created   bool      `db:"created"`
	}
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO players (id, email) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, created_at, (xmax = 0) AS created`,
		uuid.NewString(), email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert player: %w", err)
	}
	return &game.Player{ID: row.ID, Email: row.Email, CreatedAt: row.CreatedAt}, row.Created, nil
}

// SaveDraw inserts or updates a draw and replaces its prize tiers
func (r *Repository) SaveDraw(ctx context.Context, d *game.Draw) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin draw save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO draws (`+drawColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			grid_size_x = EXCLUDED.grid_size_x,
			grid_size_y = EXCLUDED.grid_size_y,
			matching_tiles_to_win = EXCLUDED.matching_tiles_to_win,
			ticket_cost = EXCLUDED.ticket_cost,
			profit_percent = EXCLUDED.profit_percent,
			number_of_tickets = EXCLUDED.number_of_tickets,
			tiles_theme = EXCLUDED.tiles_theme`,
		d.ID, d.Name, d.GridSizeX, d.GridSizeY, d.MatchingTiles(0), d.TicketCost, d.ProfitPercent, d.NumberOfTickets, d.TilesTheme)
	if err != nil {
		return fmt.Errorf("failed to save draw %s: %w", d.ID, err)
	}

	for _, t := range d.Tiers {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO prize_tiers (`+tierColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				tile_value = EXCLUDED.tile_value,
				amount = EXCLUDED.amount,
				ticket_count = EXCLUDED.ticket_count`,
			t.ID, d.ID, t.Name, t.TileValue, t.Amount, t.TicketCount)
		if err != nil {
			return fmt.Errorf("failed to save tier %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// InsertTickets stores freshly generated tickets in one transaction.
// progress, when set, is called after each ticket.
func (r *Repository) InsertTickets(ctx context.Context, tickets []*game.Ticket, progress func()) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ticket insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO tickets (id, draw_id, grid_elements, digest, status, tier_id, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ticket insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tickets {
		grid := lo.Map(t.GridElements, func(v int, _ int) int64 { return int64(v) })
		var tier sql.NullString
		if t.TierID != nil {
			tier = sql.NullString{String: *t.TierID, Valid: true}
		}
		status := t.Status
		if status == "" {
			status = game.StatusIntact
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.DrawID, pq.Int64Array(grid), t.Digest, string(status), tier, t.Position); err != nil {
			return fmt.Errorf("failed to insert ticket %s: %w", t.ID, err)
		}
		if progress != nil {
			progress()
		}
	}

	return tx.Commit()
}
