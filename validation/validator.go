package validation

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/logging"
	"github.com/rs/zerolog"
)

// Store is the persisted ticket store as seen by validation. Tickets are
// returned with their Draw and its prize tiers attached. Lookups return
// game.ErrNotFound when nothing matches.
type Store interface {
	// FindTicketByDigest matches a ticket on id AND content digest
	FindTicketByDigest(ctx context.Context, id, digest string) (*game.Ticket, error)
	// GetTicket loads a ticket by id only
	GetTicket(ctx context.Context, id string) (*game.Ticket, error)
	// MarkScratched moves a purchased ticket to scratched. It reports false
	// when the ticket was no longer purchased.
	MarkScratched(ctx context.Context, id string, at time.Time) (bool, error)
}

// Outcome is a successful validation together with the server-side facts
// behind it. Only Result is sent to the client.
type Outcome struct {
	Result     game.ValidationResult
	Ticket     *game.Ticket
	Tier       *game.PrizeTier
	Evaluation game.Evaluation
}

// Options configures a Validator
type Options struct {
	CurrencySymbol       string
	DefaultMatchingTiles int
}

// Validator checks submitted tickets against the ticket store.
//
// The client's ticket is advisory: its grid is hashed and must match the
// digest stored for that id, but completeness, the win and the prize are
// always computed from the stored ticket.
type Validator struct {
	store  Store
	logger zerolog.Logger
	opts   Options
	now    func() time.Time
}

// New creates a Validator
func New(store Store, logger zerolog.Logger, opts Options) *Validator {
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "$"
	}
	if opts.DefaultMatchingTiles <= 0 {
		opts.DefaultMatchingTiles = game.DefaultMatchingTilesToWin
	}
	return &Validator{
		store:  store,
		logger: logging.WithComponent(logger, "validator"),
		opts:   opts,
		now:    time.Now,
	}
}

// Validate runs the integrity check, the compound lookup, the completeness
// check and prize resolution for one submission. It has no side effects;
// see Settle.
//
// Won is set only when the grid is valid and the ticket's prize tier pays a
// positive amount, so an incomplete submission never discloses the outcome.
func (v *Validator) Validate(ctx context.Context, req *game.ValidateRequest) (*Outcome, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	logger := v.logger.With().Str("ticket_id", req.Ticket.ID).Logger()

	digest, err := game.Digest(req.Ticket.GridElements)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidRequest, "invalid ticket grid")
	}
	if req.Ticket.Digest != "" && !game.DigestMatches(digest, req.Ticket.Digest) {
		logger.Warn().Msg("submitted grid does not hash to the submitted digest")
		return nil, errors.Integrity("submitted grid does not hash to the submitted digest")
	}

	ticket, err := v.store.FindTicketByDigest(ctx, req.Ticket.ID, digest)
	if stderrors.Is(err, game.ErrNotFound) {
		return nil, v.classifyMiss(ctx, logger, req.Ticket.ID)
	}
	if err != nil {
		logger.Error().Err(err).Msg("ticket lookup failed")
		return nil, errors.Wrap(err, errors.ErrStoreError, "failed to validate game")
	}
	if ticket.Status != game.StatusPurchased {
		logger.Warn().Str("status", string(ticket.Status)).Msg("ticket is not awaiting validation")
		return nil, errors.TicketNotFound(fmt.Sprintf("ticket status is %s", ticket.Status))
	}
	if ticket.Draw == nil {
		logger.Error().Str("draw_id", ticket.DrawID).Msg("ticket loaded without its draw")
		return nil, errors.New(errors.ErrInternalServerError, "failed to validate game")
	}

	for cellID, value := range req.RevealedNumbers {
		stored, ok := ticket.ValueAt(cellID)
		if !ok || stored != value {
			logger.Warn().Str("cell", cellID).Int("claimed", value).Msg("revealed value differs from issued grid")
			return nil, errors.Integrity(fmt.Sprintf("revealed value mismatch at %s", cellID))
		}
	}

	// every key is canonical and on the grid, so keys are distinct cells
	draw := ticket.Draw
	valid := len(req.RevealedNumbers) == draw.CellCount()

	out := &Outcome{
		Ticket:     ticket,
		Evaluation: v.crossCheck(logger, ticket),
		Result: game.ValidationResult{
			Success: true,
			Valid:   valid,
		},
	}

	if ticket.IsWinner() {
		tier, ok := draw.Tier(*ticket.TierID)
		if !ok {
			logger.Error().Str("tier_id", *ticket.TierID).Msg("ticket references an unknown tier")
			return nil, errors.New(errors.ErrInternalServerError, "failed to validate game")
		}
		out.Tier = &tier
		if valid && tier.Amount.IsPositive() {
			prize := game.FormatPrize(v.opts.CurrencySymbol, tier.Amount)
			out.Result.Won = true
			out.Result.Prize = &prize
		}
	}

	logger.Info().
		Bool("valid", out.Result.Valid).
		Bool("won", out.Result.Won).
		Int("revealed", len(req.RevealedNumbers)).
		Msg("ticket validated")

	return out, nil
}

// Settle moves a validated ticket to scratched. Incomplete submissions are
// left untouched so the player can finish scratching. A ticket that was
// settled concurrently yields the same error as an unknown ticket.
func (v *Validator) Settle(ctx context.Context, out *Outcome) error {
	if out == nil || !out.Result.Valid {
		return nil
	}
	ok, err := v.store.MarkScratched(ctx, out.Ticket.ID, v.now().UTC())
	if err != nil {
		v.logger.Error().Err(err).Str("ticket_id", out.Ticket.ID).Msg("failed to mark ticket scratched")
		return errors.Wrap(err, errors.ErrStoreError, "failed to validate game")
	}
	if !ok {
		v.logger.Warn().Str("ticket_id", out.Ticket.ID).Msg("ticket was settled concurrently")
		return errors.TicketNotFound("ticket already scratched")
	}
	out.Ticket.Status = game.StatusScratched
	return nil
}

// classifyMiss tells a digest mismatch from an unknown id for the logs only.
// Both produce the same client-facing message.
func (v *Validator) classifyMiss(ctx context.Context, logger zerolog.Logger, id string) error {
	ticket, err := v.store.GetTicket(ctx, id)
	switch {
	case err == nil:
		logger.Warn().Str("status", string(ticket.Status)).Msg("grid digest does not match the issued ticket")
		return errors.Integrity("stored digest mismatch")
	case stderrors.Is(err, game.ErrNotFound):
		logger.Warn().Msg("unknown ticket id submitted")
		return errors.TicketNotFound("unknown ticket id")
	default:
		logger.Error().Err(err).Msg("ticket lookup failed")
		return errors.Wrap(err, errors.ErrStoreError, "failed to validate game")
	}
}

// crossCheck evaluates the issued grid and logs when it disagrees with the
// issued tier. The tier stays authoritative for the payout.
func (v *Validator) crossCheck(logger zerolog.Logger, ticket *game.Ticket) game.Evaluation {
	revealed := make(map[string]int, len(ticket.GridElements))
	for _, c := range ticket.Cells() {
		revealed[c.ID] = c.Value
	}
	gx, gy := ticket.GridSize()
	eval := game.Evaluate(revealed, ticket.Draw.MatchingTiles(v.opts.DefaultMatchingTiles), gx, gy)

	if eval.HasWon != ticket.IsWinner() {
		logger.Error().
			Bool("grid_wins", eval.HasWon).
			Bool("tier_wins", ticket.IsWinner()).
			Msg("issued grid disagrees with issued tier")
	}
	return eval
}

func checkRequest(req *game.ValidateRequest) error {
	if req == nil || req.Ticket == nil {
		return errors.New(errors.ErrInvalidRequest, "ticket is required")
	}
	if req.Ticket.ID == "" {
		return errors.New(errors.ErrInvalidRequest, "ticket id is required")
	}
	if req.RevealedNumbers == nil {
		return errors.New(errors.ErrInvalidRequest, "revealedNumbers is required")
	}
	if len(req.Ticket.GridElements) == 0 {
		return errors.New(errors.ErrInvalidRequest, "ticket gridElements are required")
	}
	if req.MatchingTilesToWin != nil && *req.MatchingTilesToWin < 1 {
		return errors.New(errors.ErrInvalidRequest, "matchingTilesToWin must be at least 1")
	}
	for cellID := range req.RevealedNumbers {
		if _, _, err := game.ParseCellID(cellID); err != nil {
			return errors.NewWithDebug(errors.ErrInvalidRequest, "invalid revealed cell id", err.Error())
		}
	}
	return nil
}
