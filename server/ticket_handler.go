package server

import (
	"net/http"

	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/game"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TicketHandler handles the player-facing ticket API
//
// Flow: HTTP Request -> routes -> TicketHandler -> TicketService -> store / validator
//
// Responsibilities:
// - Bind and check request payloads
// - Call TicketService for business logic
// - Format and return HTTP responses
type TicketHandler struct {
	service *TicketService
	logger  zerolog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(service *TicketService, logger zerolog.Logger) *TicketHandler {
	return &TicketHandler{
		service: service,
		logger:  logger.With().Str("handler", "ticket").Logger(),
	}
}

// LoginRequest is the login payload
// @Description Login request payload
type LoginRequest struct {
	Email string `json:"email" binding:"required,email" example:"player@example.com"`
}

// Login godoc
// @Summary      Log in a player
// @Description  Finds the player by email, registering them on first login, and issues a session token
// @Tags         players
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "Login request"
// @Success      200      {object}  BaseResponse{data=LoginResponse}
// @Failure      400      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Router       /login [post]
func (h *TicketHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.NewWithDebug(errors.ErrInvalidRequest, "a valid email is required", err.Error()))
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req.Email)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, resp)
}

// ListDraws godoc
// @Summary      List draws
// @Description  Lists the draws tickets are issued from. Prize tiers are not included.
// @Tags         draws
// @Produce      json
// @Success      200  {object}  BaseResponse{data=[]game.Draw}
// @Failure      500  {object}  ErrorResponse
// @Router       /draws [get]
func (h *TicketHandler) ListDraws(c *gin.Context) {
	draws, err := h.service.ListDraws(c.Request.Context())
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if draws == nil {
		draws = []game.Draw{}
	}
	OK(c, draws)
}

// ListTickets godoc
// @Summary      List a player's tickets
// @Description  Lists tickets owned by the player, each with its draw embedded
// @Tags         tickets
// @Produce      json
// @Param        playerId  query     string  true   "Player ID"
// @Param        status    query     string  false  "Ticket status"  Enums(intact, purchased, scratched)
// @Success      200       {object}  types.ListResponse[game.Ticket]
// @Failure      400       {object}  ErrorResponse
// @Failure      403       {object}  ErrorResponse
// @Failure      500       {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tickets [get]
func (h *TicketHandler) ListTickets(c *gin.Context) {
	tickets, err := h.service.ListTickets(c.Request.Context(), c.Query("playerId"), c.Query("status"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	List(c, tickets)
}

// GetTicket godoc
// @Summary      Get a ticket
// @Description  Returns one ticket with its draw embedded
// @Tags         tickets
// @Produce      json
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  BaseResponse{data=game.Ticket}
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tickets/{id} [get]
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticket, err := h.service.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, ticket)
}

// Purchase godoc
// @Summary      Purchase tickets
// @Description  Assigns the oldest intact tickets of a draw to the player
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        request  body      game.PurchaseRequest  true  "Purchase request"
// @Success      200      {object}  types.ListResponse[game.Ticket]
// @Failure      400      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /purchase [post]
func (h *TicketHandler) Purchase(c *gin.Context) {
	var req game.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.NewWithDebug(errors.ErrInvalidRequest, "invalid purchase request", err.Error()))
		return
	}

	tickets, err := h.service.Purchase(c.Request.Context(), &req)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	List(c, tickets)
}

// ValidateGame godoc
// @Summary      Validate a finished ticket
// @Description  Checks the submitted ticket against the issued one and returns the outcome. Integrity and lookup failures share one message.
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        request  body      game.ValidateRequest  true  "Validation request"
// @Success      200      {object}  game.ValidationResult
// @Failure      400      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /validate-game [post]
func (h *TicketHandler) ValidateGame(c *gin.Context) {
	var req game.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, errors.NewWithDebug(errors.ErrInvalidRequest, "invalid validation request", err.Error()))
		return
	}

	result, err := h.service.Validate(c.Request.Context(), &req)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetProgress godoc
// @Summary      Get scratch progress
// @Description  Returns the saved reveal state of a purchased ticket
// @Tags         progress
// @Produce      json
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  BaseResponse{data=game.RevealState}
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tickets/{id}/progress [get]
func (h *TicketHandler) GetProgress(c *gin.Context) {
	state, err := h.service.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, state)
}

// SaveProgress godoc
// @Summary      Save scratch progress
// @Description  Merges reveal state into the saved progress. Revealed cells are never removed and percentages never go down. Cells must carry the value printed on the ticket.
// @Tags         progress
// @Accept       json
// @Produce      json
// @Param        id       path      string            true  "Ticket ID"
// @Param        request  body      game.RevealState  true  "Reveal state"
// @Success      200      {object}  BaseResponse{data=game.RevealState}
// @Failure      400      {object}  ErrorResponse
// @Failure      403      {object}  ErrorResponse
// @Failure      404      {object}  ErrorResponse
// @Failure      409      {object}  ErrorResponse
// @Failure      500      {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tickets/{id}/progress [put]
func (h *TicketHandler) SaveProgress(c *gin.Context) {
	var update game.RevealState
	if err := c.ShouldBindJSON(&update); err != nil {
		BadRequest(c, errors.NewWithDebug(errors.ErrInvalidRequest, "invalid progress payload", err.Error()))
		return
	}

	state, err := h.service.SaveProgress(c.Request.Context(), c.Param("id"), &update)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, state)
}
