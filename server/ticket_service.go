package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/blackscorpionster/rubits/auth"
	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/logging"
	"github.com/blackscorpionster/rubits/metrics"
	"github.com/blackscorpionster/rubits/middleware"
	"github.com/blackscorpionster/rubits/provider"
	"github.com/blackscorpionster/rubits/validation"
	"github.com/rs/zerolog"
)

// TicketStore is the persisted ticket store used by the service
type TicketStore interface {
	validation.Store
	Ping(ctx context.Context) error
	ListDraws(ctx context.Context) ([]game.Draw, error)
	GetDraw(ctx context.Context, id string) (*game.Draw, error)
	ListTickets(ctx context.Context, playerID string, status *game.TicketStatus) ([]*game.Ticket, error)
	PurchaseTickets(ctx context.Context, drawID, playerID string, n int) ([]*game.Ticket, error)
	FindOrCreatePlayer(ctx context.Context, email string) (*game.Player, bool, error)
	CountIntact(ctx context.Context) (map[string]int, error)
}

// Locker takes short per-key locks
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ProgressStore keeps scratch progress per player and ticket
type ProgressStore interface {
	GetProgress(ctx context.Context, playerID, ticketID string) (*game.RevealState, error)
	SaveProgress(ctx context.Context, playerID, ticketID string, update *game.RevealState) (*game.RevealState, error)
	DeleteProgress(ctx context.Context, playerID, ticketID string) error
}

// AuditLogger records ticket events
type AuditLogger interface {
	LogPurchase(ctx context.Context, playerID, drawID, traceID string, tickets []*game.Ticket) error
	LogValidation(ctx context.Context, log *provider.ValidationLog) error
}

// ServiceOptions tunes the ticket service
type ServiceOptions struct {
	MaxTicketsPerPurchase int
	ValidationLockTTL     time.Duration
	JWTSecret             string
	JWTExpiration         time.Duration
}

// LoginResponse is returned by Login
type LoginResponse struct {
	Player    *game.Player `json:"player"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Created   bool         `json:"created"`
}

// TicketService orchestrates the ticket flows
//
// Flow: routes -> TicketHandler -> TicketService -> store / validator
//
// Validation takes a per-ticket lock, runs the validator, transitions the
// ticket to scratched, clears saved progress, then reports the outcome to the
// audit log and metrics.
type TicketService struct {
	store     TicketStore
	validator *validation.Validator
	locker    Locker
	progress  ProgressStore
	audit     AuditLogger
	metrics   *metrics.Metrics
	opts      ServiceOptions
	logger    zerolog.Logger
}

// NewTicketService creates the service. locker, progress, audit and m may be nil.
func NewTicketService(
	store TicketStore,
	validator *validation.Validator,
	locker Locker,
	progress ProgressStore,
	audit AuditLogger,
	m *metrics.Metrics,
	opts ServiceOptions,
	logger zerolog.Logger,
) *TicketService {
	if opts.MaxTicketsPerPurchase <= 0 {
		opts.MaxTicketsPerPurchase = 50
	}
	if opts.ValidationLockTTL <= 0 {
		opts.ValidationLockTTL = 10 * time.Second
	}
	if opts.JWTExpiration <= 0 {
		opts.JWTExpiration = 24 * time.Hour
	}
	return &TicketService{
		store:     store,
		validator: validator,
		locker:    locker,
		progress:  progress,
		audit:     audit,
		metrics:   m,
		opts:      opts,
		logger:    logger.With().Str("service", "ticket").Logger(),
	}
}

// Login finds or registers the player and issues a session token
func (s *TicketService) Login(ctx context.Context, email string) (*LoginResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New(errors.ErrInvalidRequest, "email is required")
	}

	player, created, err := s.store.FindOrCreatePlayer(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to find or create player")
		return nil, errors.Wrap(err, errors.ErrStoreError, "failed to log in")
	}

	token, expiresAt, err := auth.GenerateToken(s.opts.JWTSecret, player, s.opts.JWTExpiration)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternalServerError, "failed to log in")
	}

	playerLogger := logging.WithPlayerID(s.logger, player.ID)
	playerLogger.Info().Bool("created", created).Msg("Player logged in")
	return &LoginResponse{Player: player, Token: token, ExpiresAt: expiresAt, Created: created}, nil
}

// ListDraws returns every draw; prize tiers are not serialized
func (s *TicketService) ListDraws(ctx context.Context) ([]game.Draw, error) {
	draws, err := s.store.ListDraws(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list draws")
		return nil, errors.Wrap(err, errors.ErrStoreError, "failed to list draws")
	}
	return draws, nil
}

// ListTickets returns a player's tickets, optionally filtered by status
func (s *TicketService) ListTickets(ctx context.Context, playerID, status string) ([]*game.Ticket, error) {
	if playerID == "" {
		return nil, errors.New(errors.ErrInvalidRequest, "playerId is required")
	}
	if err := s.checkOwner(ctx, playerID); err != nil {
		return nil, err
	}

	var filter *game.TicketStatus
	if status != "" {
		st := game.TicketStatus(status)
		if !st.Valid() {
			return nil, errors.New(errors.ErrInvalidRequest, fmt.Sprintf("invalid status %q", status))
		}
		filter = &st
	}

	tickets, err := s.store.ListTickets(ctx, playerID, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("player_id", playerID).Msg("Failed to list tickets")
		return nil, errors.Wrap(err, errors.ErrStoreError, "failed to list tickets")
	}
	return tickets, nil
}

// GetTicket returns one ticket with its draw
func (s *TicketService) GetTicket(ctx context.Context, id string) (*game.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if stderrors.Is(err, game.ErrNotFound) {
		return nil, errors.New(errors.ErrNotFound, "ticket not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("ticket_id", id).Msg("Failed to get ticket")
		return nil, errors.Wrap(err, errors.ErrStoreError, "failed to get ticket")
	}
	if ticket.PurchasedBy != nil {
		if err := s.checkOwner(ctx, *ticket.PurchasedBy); err != nil {
			return nil, err
		}
	}
	return ticket, nil
}

// Purchase assigns the oldest intact tickets of a draw to the player
func (s *TicketService) Purchase(ctx context.Context, req *game.PurchaseRequest) ([]*game.Ticket, error) {
	if req.DrawID == "" || req.PlayerID == "" {
		return nil, errors.New(errors.ErrInvalidRequest, "drawId and playerId are required")
	}
	if req.NumTickets < 1 || req.NumTickets > s.opts.MaxTicketsPerPurchase {
		return nil, errors.New(errors.ErrInvalidRequest,
			fmt.Sprintf("numTickets must be between 1 and %d", s.opts.MaxTicketsPerPurchase))
	}
	if err := s.checkOwner(ctx, req.PlayerID); err != nil {
		return nil, err
	}

	logger := s.logger.With().Str("draw_id", req.DrawID).Str("player_id", req.PlayerID).Int("num_tickets", req.NumTickets).Logger()

	tickets, err := s.store.PurchaseTickets(ctx, req.DrawID, req.PlayerID, req.NumTickets)
	switch {
	case stderrors.Is(err, game.ErrNotFound):
		return nil, errors.New(errors.ErrDrawNotFound, "draw not found")
	case stderrors.Is(err, game.ErrInsufficientInventory):
		logger.Info().Msg("Purchase rejected: not enough tickets")
		return nil, errors.NewWithDebug(errors.ErrInsufficientInventory, "not enough tickets available", err.Error())
	case err != nil:
		logger.Error().Err(err).Msg("Failed to purchase tickets")
		return nil, errors.Wrap(err, errors.ErrStoreError, "failed to purchase tickets")
	}

	if s.metrics != nil {
		s.metrics.RecordPurchase(req.DrawID, len(tickets))
	}
	if s.audit != nil {
		if err := s.audit.LogPurchase(ctx, req.PlayerID, req.DrawID, middleware.TraceIDFromContext(ctx), tickets); err != nil {
			logger.Warn().Err(err).Msg("Failed to record purchase audit event")
		}
	}

	logger.Info().Msg("Tickets purchased")
	return tickets, nil
}

// Validate checks a finished ticket, settles it and reports the outcome.
// Only the ValidationResult is returned to the caller.
func (s *TicketService) Validate(ctx context.Context, req *game.ValidateRequest) (*game.ValidationResult, error) {
	result, err := s.validate(ctx, req)
	if s.metrics != nil {
		s.metrics.RecordValidation(outcomeLabel(result, err))
	}
	return result, err
}

func (s *TicketService) validate(ctx context.Context, req *game.ValidateRequest) (*game.ValidationResult, error) {
	if req == nil || req.Ticket == nil || req.Ticket.ID == "" {
		return nil, errors.New(errors.ErrInvalidRequest, "ticket is required")
	}
	ticketID := req.Ticket.ID

	if s.locker != nil {
		release, ok, err := s.locker.Lock(ctx, "scratch:validate:"+ticketID, s.opts.ValidationLockTTL)
		if err != nil {
			s.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("Failed to take validation lock")
			return nil, errors.Wrap(err, errors.ErrRedisError, "failed to validate game")
		}
		if !ok {
			return nil, errors.New(errors.ErrValidationInProgress, "ticket validation already in progress")
		}
		defer release()
	}

	out, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	logger := logging.WithTicket(s.logger, out.Ticket.ID, out.Ticket.DrawID)
	owner := ""
	if out.Ticket.PurchasedBy != nil {
		owner = *out.Ticket.PurchasedBy
	}
	if session, ok := game.SessionFromContext(ctx); ok && session.PlayerID != owner {
		logger.Warn().Str("player_id", session.PlayerID).Msg("Validation rejected: ticket belongs to another player")
		return nil, errors.TicketNotFound("ticket owned by another player")
	}

	if err := s.validator.Settle(ctx, out); err != nil {
		return nil, err
	}

	if out.Result.Valid && s.progress != nil && owner != "" {
		if err := s.progress.DeleteProgress(ctx, owner, out.Ticket.ID); err != nil {
			logger.Warn().Err(err).Msg("Failed to clear saved progress")
		}
	}

	if s.audit != nil {
		err := s.audit.LogValidation(ctx, &provider.ValidationLog{
			PlayerID:   owner,
			TraceID:    middleware.TraceIDFromContext(ctx),
			Ticket:     out.Ticket,
			Result:     out.Result,
			Evaluation: out.Evaluation,
			Revealed:   len(req.RevealedNumbers),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to record validation audit event")
		}
	}

	result := out.Result
	return &result, nil
}

// GetProgress returns saved scratch progress of a purchased ticket
func (s *TicketService) GetProgress(ctx context.Context, ticketID string) (*game.RevealState, error) {
	ticket, err := s.progressTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	state, err := s.progress.GetProgress(ctx, *ticket.PurchasedBy, ticketID)
	if err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("Failed to load progress")
		return nil, errors.Wrap(err, errors.ErrRedisError, "failed to load progress")
	}
	return state, nil
}

// SaveProgress merges scratch progress of a purchased ticket. Every revealed
// cell must exist on the ticket and carry the value printed there.
func (s *TicketService) SaveProgress(ctx context.Context, ticketID string, update *game.RevealState) (*game.RevealState, error) {
	ticket, err := s.progressTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if update != nil {
		for cellID, value := range update.RevealedNumbers {
			printed, ok := ticket.ValueAt(cellID)
			if !ok || printed != value {
				s.logger.Warn().Str("ticket_id", ticketID).Str("cell", cellID).Int("claimed", value).Msg("Rejected progress for a cell not on the ticket")
				return nil, errors.NewWithDebug(errors.ErrInvalidRequest, "invalid revealed cell",
					fmt.Sprintf("cell %q does not hold %d on this ticket", cellID, value))
			}
		}
	}

	state, err := s.progress.SaveProgress(ctx, *ticket.PurchasedBy, ticketID, update)
	if stderrors.Is(err, provider.ErrProgressBusy) {
		return nil, errors.New(errors.ErrConflict, "progress save already in progress")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("ticket_id", ticketID).Msg("Failed to save progress")
		return nil, errors.Wrap(err, errors.ErrRedisError, "failed to save progress")
	}
	return state, nil
}

// progressTicket loads a purchased ticket with its grid
func (s *TicketService) progressTicket(ctx context.Context, ticketID string) (*game.Ticket, error) {
	if s.progress == nil {
		return nil, errors.New(errors.ErrServiceUnavailable, "progress storage is not configured")
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != game.StatusPurchased || ticket.PurchasedBy == nil {
		return nil, errors.New(errors.ErrNotFound, "ticket not found")
	}
	return ticket, nil
}

// RefreshInventory updates the intact-ticket gauge
func (s *TicketService) RefreshInventory(ctx context.Context) error {
	counts, err := s.store.CountIntact(ctx)
	if err != nil {
		return fmt.Errorf("failed to count intact tickets: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SetIntact(counts)
	}
	return nil
}

// Ping checks the ticket store
func (s *TicketService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// checkOwner rejects requests for another player's data when a session is present
func (s *TicketService) checkOwner(ctx context.Context, playerID string) error {
	session, ok := game.SessionFromContext(ctx)
	if !ok || session.PlayerID == playerID {
		return nil
	}
	s.logger.Warn().Str("player_id", session.PlayerID).Str("requested_player_id", playerID).Msg("Access to another player's tickets denied")
	return errors.New(errors.ErrForbidden, "access denied")
}

func outcomeLabel(result *game.ValidationResult, err error) string {
	switch {
	case err == nil && result != nil && !result.Valid:
		return metrics.OutcomeIncomplete
	case err == nil && result != nil && result.Won:
		return metrics.OutcomeWon
	case err == nil:
		return metrics.OutcomeLost
	}
	switch errors.GetCode(err) {
	case errors.ErrInvalidRequest, errors.ErrTicketIntegrity, errors.ErrTicketNotFound, errors.ErrValidationInProgress:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
