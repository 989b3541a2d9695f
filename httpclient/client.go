package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/types"
	"github.com/rs/zerolog"
)

// Client talks to the ticket API on behalf of one player. After Login the
// session token is sent with every request.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
	baseURL    string

	mu      sync.RWMutex
	session *game.Session
}

// Config holds HTTP client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
	// HTTPClient overrides the default client, used in tests
	HTTPClient *http.Client
}

// New creates a new ticket API client
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "http-client").Logger(),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Session returns the current player session, nil before Login
func (c *Client) Session() *game.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession replaces the player session
func (c *Client) SetSession(s *game.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

type loginResponse struct {
	Player    *game.Player `json:"player"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Login authenticates by email and stores the returned session
func (c *Client) Login(ctx context.Context, email string) (*game.Session, error) {
	var resp types.SuccessResponse[loginResponse]
	if err := c.call(ctx, http.MethodPost, "/login", map[string]string{"email": email}, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Player == nil {
		return nil, errors.New(errors.ErrTransientNetwork, "login response has no player")
	}

	session := &game.Session{
		PlayerID:  resp.Data.Player.ID,
		Email:     resp.Data.Player.Email,
		Token:     resp.Data.Token,
		IssuedAt:  time.Now(),
		ExpiresAt: resp.Data.ExpiresAt,
	}
	c.SetSession(session)
	return session, nil
}

// ListDraws returns the public draw listing
func (c *Client) ListDraws(ctx context.Context) ([]game.Draw, error) {
	var resp types.SuccessResponse[[]game.Draw]
	if err := c.call(ctx, http.MethodGet, "/draws", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListTickets returns the logged-in player's tickets, optionally filtered
func (c *Client) ListTickets(ctx context.Context, status game.TicketStatus) ([]*game.Ticket, error) {
	session := c.Session()
	if session == nil {
		return nil, errors.New(errors.ErrUnauthorized, "not logged in")
	}

	q := url.Values{"playerId": {session.PlayerID}}
	if status != "" {
		q.Set("status", string(status))
	}

	var resp types.ListResponse[*game.Ticket]
	if err := c.call(ctx, http.MethodGet, "/tickets?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}

// GetTicket returns one ticket with its draw
func (c *Client) GetTicket(ctx context.Context, id string) (*game.Ticket, error) {
	var resp types.SuccessResponse[*game.Ticket]
	if err := c.call(ctx, http.MethodGet, "/tickets/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Purchase buys n tickets of a draw for the logged-in player
func (c *Client) Purchase(ctx context.Context, drawID string, n int) ([]*game.Ticket, error) {
	session := c.Session()
	if session == nil {
		return nil, errors.New(errors.ErrUnauthorized, "not logged in")
	}

	var resp types.ListResponse[*game.Ticket]
	req := game.PurchaseRequest{DrawID: drawID, PlayerID: session.PlayerID, NumTickets: n}
	if err := c.call(ctx, http.MethodPost, "/purchase", req, &resp); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}

// Validate submits a finished ticket. A rejected submission comes back as a
// result with Success false; only transport faults are errors.
func (c *Client) Validate(ctx context.Context, req *game.ValidateRequest) (*game.ValidationResult, error) {
	var result game.ValidationResult
	err := c.call(ctx, http.MethodPost, "/validate-game", req, &result)
	if err == nil {
		return &result, nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Code != errors.ErrTransientNetwork {
		return &game.ValidationResult{Success: false, Message: appErr.Message}, nil
	}
	return nil, err
}

// GetProgress loads saved scratch progress for a ticket
func (c *Client) GetProgress(ctx context.Context, ticketID string) (*game.RevealState, error) {
	var resp types.SuccessResponse[*game.RevealState]
	if err := c.call(ctx, http.MethodGet, "/tickets/"+url.PathEscape(ticketID)+"/progress", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return game.NewRevealState(), nil
	}
	return resp.Data, nil
}

// SaveProgress stores scratch progress for a ticket
func (c *Client) SaveProgress(ctx context.Context, ticketID string, state *game.RevealState) error {
	return c.call(ctx, http.MethodPut, "/tickets/"+url.PathEscape(ticketID)+"/progress", state, nil)
}

// call performs one request and decodes a 2xx body into dest. Transport
// failures and 5xx responses become ErrTransientNetwork; 4xx responses
// become an AppError carrying the server's code and message.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, dest interface{}) error {
	endpoint := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s := c.Session(); s != nil && s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("method", method).
			Str("url", endpoint).
			Dur("duration", time.Since(startTime)).
			Msg("HTTP request failed")
		return errors.Wrap(err, errors.ErrTransientNetwork, "ticket service unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.ErrTransientNetwork, "failed to read response")
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("HTTP request completed")

	if resp.StatusCode >= 500 {
		return errors.NewWithDebug(errors.ErrTransientNetwork, "ticket service unavailable", fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	if dest != nil {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return errors.Wrap(err, errors.ErrTransientNetwork, "failed to decode response")
		}
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var envelope types.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Message == "" {
		return errors.NewWithDebug(codeForStatus(status), http.StatusText(status), string(body))
	}
	code := codeForStatus(status)
	if envelope.Error != nil && envelope.Error.Code != 0 {
		code = envelope.Error.Code
	}
	return errors.New(code, envelope.Message)
}

func codeForStatus(status int) int {
	switch status {
	case http.StatusUnauthorized:
		return errors.ErrUnauthorized
	case http.StatusForbidden:
		return errors.ErrForbidden
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusConflict:
		return errors.ErrConflict
	}
	return errors.ErrInvalidRequest
}
