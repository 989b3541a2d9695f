package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"

	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/game"
	"github.com/rs/zerolog"
)

// Phase is the UI state of the active ticket
type Phase string

const (
	PhaseNone          Phase = "none"
	PhaseReadyToReveal Phase = "readyToReveal"
	PhaseTransitioning Phase = "transitioning"
	PhaseWinning       Phase = "winning"
	PhaseLosing        Phase = "losing"
)

var (
	ErrNoTickets       = stderrors.New("session: no tickets loaded")
	ErrUnknownTicket   = stderrors.New("session: unknown ticket")
	ErrNotReady        = stderrors.New("session: active ticket is not ready for validation")
	ErrSubmitting      = stderrors.New("session: a validation is already in flight")
	ErrOutcomePending  = stderrors.New("session: dismiss the current outcome first")
	ErrNotSettled      = stderrors.New("session: no outcome to dismiss")
	ErrNoTicketsRemain = stderrors.New("session: no tickets remain")
	// ErrStaleResult is returned with the result of a validation whose ticket
	// stopped being the active ticket while the request was in flight.
	ErrStaleResult = stderrors.New("session: active ticket changed during validation")
	// ErrRejected wraps the server message of an unsuccessful validation
	ErrRejected = stderrors.New("session: validation rejected")
)

// TicketAPI submits a finished ticket for server-side validation. A transport
// failure is returned as an error; a rejected submission is a result with
// Success false.
type TicketAPI interface {
	Validate(ctx context.Context, req *game.ValidateRequest) (*game.ValidationResult, error)
}

// ProgressSaver persists reveal progress so a ticket can be resumed later
type ProgressSaver interface {
	SaveProgress(ctx context.Context, ticketID string, state *game.RevealState) error
}

// Option configures a Controller
type Option func(*Controller)

// WithProgressSaver persists each newly revealed cell
func WithProgressSaver(s ProgressSaver) Option {
	return func(c *Controller) { c.saver = s }
}

// WithDefaultMatchingTiles sets the rule used for draws that carry none
func WithDefaultMatchingTiles(n int) Option {
	return func(c *Controller) { c.defaultMatching = n }
}

// Controller owns a player's tickets in carousel order and one RevealState per
// ticket, and drives the active ticket through
// none -> readyToReveal -> transitioning -> winning|losing -> none.
//
// It is safe for concurrent use. The validation call runs without holding
// the lock so navigation stays responsive while it is in flight.
type Controller struct {
	mu sync.Mutex

	api             TicketAPI
	saver           ProgressSaver
	logger          zerolog.Logger
	defaultMatching int

	tickets    []*game.Ticket
	states     map[string]*game.RevealState
	active     int
	phase      Phase
	submitting bool
	last       *game.ValidationResult
}

// New creates a Controller with no tickets loaded
func New(api TicketAPI, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		api:             api,
		logger:          logger.With().Str("component", "session").Logger(),
		defaultMatching: game.DefaultMatchingTilesToWin,
		states:          make(map[string]*game.RevealState),
		phase:           PhaseNone,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the ticket set. saved holds previously persisted progress by
// ticket id; tickets without an entry start from an empty state. The first
// unfinished ticket becomes active.
func (c *Controller) Load(tickets []*game.Ticket, saved map[string]*game.RevealState) error {
	if len(tickets) == 0 {
		return ErrNoTickets
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickets = slices.Clone(tickets)
	c.states = make(map[string]*game.RevealState, len(tickets))
	for _, t := range tickets {
		if s, ok := saved[t.ID]; ok && s != nil {
			c.states[t.ID] = s.Clone()
		} else {
			c.states[t.ID] = game.NewRevealState()
		}
	}

	c.active = 0
	if idx, ok := c.nextUnfinished(-1); ok {
		c.active = idx
	}
	c.last = nil
	c.phase = c.restingPhase()
	return nil
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Submitting reports whether a validation is in flight
func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// Active returns the active ticket
func (c *Controller) Active() (*game.Ticket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickets) == 0 {
		return nil, false
	}
	return c.tickets[c.active], true
}

// Tickets returns the loaded tickets in carousel order
func (c *Controller) Tickets() []*game.Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tickets)
}

// State returns a copy of a ticket's reveal state
func (c *Controller) State(ticketID string) (*game.RevealState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[ticketID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// LastResult returns the most recent non-stale validation result
func (c *Controller) LastResult() *game.ValidationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Remaining counts tickets without a recorded outcome
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickets {
		if !c.states[t.ID].Finished {
			n++
		}
	}
	return n
}

// Next moves the carousel forward, wrapping around
func (c *Controller) Next() error {
	return c.move(1)
}

// Prev moves the carousel back, wrapping around
func (c *Controller) Prev() error {
	return c.move(-1)
}

// Select makes the given ticket active
func (c *Controller) Select(ticketID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.canNavigate(); err != nil {
		return err
	}
	idx := slices.IndexFunc(c.tickets, func(t *game.Ticket) bool { return t.ID == ticketID })
	if idx < 0 {
		return ErrUnknownTicket
	}
	c.activate(idx)
	return nil
}

func (c *Controller) move(step int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.canNavigate(); err != nil {
		return err
	}
	n := len(c.tickets)
	c.activate(((c.active+step)%n + n) % n)
	return nil
}

func (c *Controller) canNavigate() error {
	if len(c.tickets) == 0 {
		return ErrNoTickets
	}
	if c.phase == PhaseWinning || c.phase == PhaseLosing {
		return ErrOutcomePending
	}
	return nil
}

// activate switches tickets. Reveal states are never touched; an in-flight
// validation for the previous ticket becomes stale.
func (c *Controller) activate(idx int) {
	if idx == c.active {
		return
	}
	c.active = idx
	c.phase = c.restingPhase()
}

// RecordReveal stores the value of a cell that crossed the reveal threshold.
// The first value recorded for a cell wins. It reports whether the cell was
// newly revealed. Completing the active ticket makes it ready to validate.
func (c *Controller) RecordReveal(ctx context.Context, ticketID, cellID string, value int) (bool, error) {
	c.mu.Lock()
	ticket, state, err := c.lookup(ticketID)
	if err != nil {
		c.mu.Unlock()
		return false, err
	}
	if _, ok := ticket.ValueAt(cellID); !ok {
		c.mu.Unlock()
		return false, fmt.Errorf("session: cell %s is outside ticket %s", cellID, ticketID)
	}
	if state.Finished || !state.Reveal(cellID, value) {
		c.mu.Unlock()
		return false, nil
	}
	if c.tickets[c.active].ID == ticketID && c.phase == PhaseNone && c.complete(ticket, state) {
		c.phase = PhaseReadyToReveal
		c.logger.Debug().Str("ticket_id", ticketID).Msg("ticket ready to reveal")
	}
	snapshot := state.Clone()
	saver := c.saver
	c.mu.Unlock()

	if saver != nil {
		if err := saver.SaveProgress(ctx, ticketID, snapshot); err != nil {
			c.logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("failed to save reveal progress")
		}
	}
	return true, nil
}

// RecordProgress stores scratch progress of a cell. Progress never goes down.
func (c *Controller) RecordProgress(ticketID, cellID string, pct float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, state, err := c.lookup(ticketID)
	if err != nil {
		return err
	}
	state.SetPercent(cellID, pct)
	return nil
}

// Confirm submits the active ticket for validation and resolves the phase to
// winning or losing.
//
// A transport failure returns to readyToReveal with a TransientNetwork error
// and leaves the reveal state untouched. If the player navigated away while
// the request was in flight the outcome is recorded on the submitted ticket
// only, the phase is left alone and ErrStaleResult is returned.
func (c *Controller) Confirm(ctx context.Context) (*game.ValidationResult, error) {
	c.mu.Lock()
	if len(c.tickets) == 0 {
		c.mu.Unlock()
		return nil, ErrNoTickets
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitting
	}
	ticket := c.tickets[c.active]
	state := c.states[ticket.ID]
	if (c.phase != PhaseReadyToReveal && c.phase != PhaseNone) || state.Finished || !c.complete(ticket, state) {
		c.mu.Unlock()
		return nil, ErrNotReady
	}

	matching := c.defaultMatching
	if ticket.Draw != nil {
		matching = ticket.Draw.MatchingTiles(c.defaultMatching)
	}
	req := &game.ValidateRequest{
		RevealedNumbers:    state.Clone().RevealedNumbers,
		Ticket:             ticket,
		MatchingTilesToWin: &matching,
	}
	c.submitting = true
	c.phase = PhaseTransitioning
	c.mu.Unlock()

	logger := c.logger.With().Str("ticket_id", ticket.ID).Logger()
	res, err := c.api.Validate(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	stale := len(c.tickets) == 0 || c.tickets[c.active].ID != ticket.ID

	if err != nil {
		if !stale {
			c.phase = PhaseReadyToReveal
		}
		logger.Warn().Err(err).Msg("validation request failed")
		if !errors.IsAppError(err) {
			err = errors.Wrap(err, errors.ErrTransientNetwork, "could not reach the server, try again")
		}
		return nil, err
	}

	if !res.Success {
		if !stale {
			c.phase = PhaseReadyToReveal
		}
		logger.Warn().Str("message", res.Message).Msg("validation rejected")
		return res, fmt.Errorf("%w: %s", ErrRejected, res.Message)
	}

	if s, ok := c.states[ticket.ID]; ok && res.Valid {
		s.Finished = true
	}

	if stale {
		logger.Info().Bool("won", res.Won).Msg("ignoring validation result for inactive ticket")
		return res, ErrStaleResult
	}

	c.last = res
	if !res.Valid {
		c.phase = PhaseNone
		return res, ErrNotReady
	}
	if res.Won {
		c.phase = PhaseWinning
	} else {
		c.phase = PhaseLosing
	}
	logger.Info().Bool("won", res.Won).Msg("ticket validated")
	return res, nil
}

// Dismiss closes the winning or losing notification and activates the next
// ticket without an outcome. When none is left it returns ErrNoTicketsRemain
// and the caller should offer to buy more.
func (c *Controller) Dismiss() (*game.Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseWinning && c.phase != PhaseLosing {
		return nil, ErrNotSettled
	}
	c.phase = PhaseNone

	idx, ok := c.nextUnfinished(c.active)
	if !ok {
		return nil, ErrNoTicketsRemain
	}
	c.active = idx
	c.phase = c.restingPhase()
	return c.tickets[idx], nil
}

func (c *Controller) lookup(ticketID string) (*game.Ticket, *game.RevealState, error) {
	state, ok := c.states[ticketID]
	if !ok {
		return nil, nil, ErrUnknownTicket
	}
	for _, t := range c.tickets {
		if t.ID == ticketID {
			return t, state, nil
		}
	}
	return nil, nil, ErrUnknownTicket
}

// nextUnfinished scans forward from after, wrapping, and skips after itself
// unless after is -1.
func (c *Controller) nextUnfinished(after int) (int, bool) {
	n := len(c.tickets)
	for i := 1; i <= n; i++ {
		idx := (after + i + n) % n
		if idx == after {
			break
		}
		if !c.states[c.tickets[idx].ID].Finished {
			return idx, true
		}
	}
	return 0, false
}

func (c *Controller) complete(t *game.Ticket, s *game.RevealState) bool {
	gx, gy := t.GridSize()
	return s.IsComplete(gx * gy)
}

func (c *Controller) restingPhase() Phase {
	t := c.tickets[c.active]
	s := c.states[t.ID]
	if !s.Finished && c.complete(t, s) {
		return PhaseReadyToReveal
	}
	return PhaseNone
}
