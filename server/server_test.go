package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/blackscorpionster/rubits/auth"
	"github.com/blackscorpionster/rubits/config"
	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/metrics"
	"github.com/blackscorpionster/rubits/provider"
	"github.com/blackscorpionster/rubits/types"
	"github.com/blackscorpionster/rubits/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

var (
	winningGrid = []int{7, 7, 7, 1, 2, 3, 4, 5, 6}
	losingGrid  = []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
)

type memStore struct {
	mu      sync.Mutex
	draw    *game.Draw
	tickets map[string]*game.Ticket
	players map[string]*game.Player
	pingErr error
}

func newMemStore() *memStore {
	draw := &game.Draw{
		ID:                 "draw-1",
		Name:               "Lucky Sevens",
		GridSizeX:          3,
		GridSizeY:          3,
		MatchingTilesToWin: 3,
		TicketCost:         decimal.NewFromInt(2),
		NumberOfTickets:    3,
		Tiers:              []game.PrizeTier{{ID: "tier-7", TileValue: 7, Amount: decimal.NewFromInt(5), TicketCount: 1}},
	}
	tier := "tier-7"
	s := &memStore{
		draw:    draw,
		tickets: make(map[string]*game.Ticket),
		players: make(map[string]*game.Player),
	}
	s.tickets["t-win"] = &game.Ticket{ID: "t-win", DrawID: draw.ID, GridElements: winningGrid, Digest: game.MustDigest(winningGrid), Status: game.StatusIntact, TierID: &tier, Position: 0}
	s.tickets["t-lose"] = &game.Ticket{ID: "t-lose", DrawID: draw.ID, GridElements: losingGrid, Digest: game.MustDigest(losingGrid), Status: game.StatusIntact, Position: 1}
	return s
}

func (s *memStore) copyOf(t *game.Ticket) *game.Ticket {
	c := *t
	c.GridElements = slices.Clone(t.GridElements)
	c.Draw = s.draw
	return &c
}

func (s *memStore) Ping(context.Context) error { return s.pingErr }

func (s *memStore) ListDraws(context.Context) ([]game.Draw, error) {
	return []game.Draw{*s.draw}, nil
}

func (s *memStore) GetDraw(_ context.Context, id string) (*game.Draw, error) {
	if id != s.draw.ID {
		return nil, game.ErrNotFound
	}
	return s.draw, nil
}

func (s *memStore) GetTicket(_ context.Context, id string) (*game.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	return s.copyOf(t), nil
}

func (s *memStore) FindTicketByDigest(_ context.Context, id, digest string) (*game.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Digest != digest {
		return nil, game.ErrNotFound
	}
	return s.copyOf(t), nil
}

func (s *memStore) MarkScratched(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Status != game.StatusPurchased {
		return false, nil
	}
	t.Status = game.StatusScratched
	t.ScratchedAt = &at
	return true, nil
}

func (s *memStore) ListTickets(_ context.Context, playerID string, status *game.TicketStatus) ([]*game.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*game.Ticket
	for _, t := range s.tickets {
		if t.PurchasedBy == nil || *t.PurchasedBy != playerID {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, s.copyOf(t))
	}
	slices.SortFunc(out, func(a, b *game.Ticket) int { return a.Position - b.Position })
	return out, nil
}

func (s *memStore) PurchaseTickets(_ context.Context, drawID, playerID string, n int) ([]*game.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if drawID != s.draw.ID {
		return nil, game.ErrNotFound
	}
	var intact []*game.Ticket
	for _, t := range s.tickets {
		if t.Status == game.StatusIntact {
			intact = append(intact, t)
		}
	}
	if len(intact) < n {
		return nil, game.ErrInsufficientInventory
	}
	slices.SortFunc(intact, func(a, b *game.Ticket) int { return a.Position - b.Position })
	out := make([]*game.Ticket, 0, n)
	for _, t := range intact[:n] {
		owner := playerID
		t.Status = game.StatusPurchased
		t.PurchasedBy = &owner
		out = append(out, s.copyOf(t))
	}
	return out, nil
}

func (s *memStore) FindOrCreatePlayer(_ context.Context, email string) (*game.Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[email]; ok {
		return p, false, nil
	}
	p := &game.Player{ID: "player-" + email, Email: email, CreatedAt: time.Now()}
	s.players[email] = p
	return p, true, nil
}

func (s *memStore) CountIntact(context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int{}
	for _, t := range s.tickets {
		if t.Status == game.StatusIntact {
			counts[t.DrawID]++
		}
	}
	return counts, nil
}

type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *memLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return func() {}, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true, nil
}

type memProgress struct {
	mu      sync.Mutex
	states  map[string]*game.RevealState
	deleted []string
}

func (p *memProgress) GetProgress(_ context.Context, playerID, ticketID string) (*game.RevealState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.states[playerID+"/"+ticketID]; ok {
		return s.Clone(), nil
	}
	return game.NewRevealState(), nil
}

func (p *memProgress) SaveProgress(_ context.Context, playerID, ticketID string, update *game.RevealState) (*game.RevealState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.states == nil {
		p.states = map[string]*game.RevealState{}
	}
	key := playerID + "/" + ticketID
	s, ok := p.states[key]
	if !ok {
		s = game.NewRevealState()
		p.states[key] = s
	}
	for cell, v := range update.RevealedNumbers {
		s.Reveal(cell, v)
	}
	for cell, pct := range update.PercentRevealedByCell {
		s.SetPercent(cell, pct)
	}
	return s.Clone(), nil
}

func (p *memProgress) DeleteProgress(_ context.Context, playerID, ticketID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, playerID+"/"+ticketID)
	p.deleted = append(p.deleted, ticketID)
	return nil
}

type memAudit struct {
	mu          sync.Mutex
	purchases   int
	validations []*provider.ValidationLog
}

func (a *memAudit) LogPurchase(context.Context, string, string, string, []*game.Ticket) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.purchases++
	return nil
}

func (a *memAudit) LogValidation(_ context.Context, log *provider.ValidationLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validations = append(a.validations, log)
	return nil
}

type testEnv struct {
	app      *App
	store    *memStore
	locker   *memLocker
	progress *memProgress
	audit    *memAudit
	metrics  *metrics.Metrics
	service  *TicketService
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Environment = "test"
	cfg.JWT.Secret = testSecret
	cfg.Server.RateLimit.RequestsPerSecond = 1000
	cfg.Server.RateLimit.Burst = 1000
	cfg.Game.MaxTicketsPerPurchase = 2
	for _, m := range mutate {
		m(cfg)
	}

	env := &testEnv{
		store:    newMemStore(),
		locker:   &memLocker{},
		progress: &memProgress{},
		audit:    &memAudit{},
		metrics:  metrics.New(),
	}
	logger := zerolog.Nop()
	validator := validation.New(env.store, logger, validation.Options{CurrencySymbol: "$"})
	env.service = NewTicketService(env.store, validator, env.locker, env.progress, env.audit, env.metrics, ServiceOptions{
		MaxTicketsPerPurchase: cfg.Game.MaxTicketsPerPurchase,
		JWTSecret:             cfg.JWT.Secret,
		JWTExpiration:         time.Hour,
	}, logger)

	env.app = New(Options{Config: cfg, Logger: logger, Service: env.service, Metrics: env.metrics})
	env.app.UseCommonMiddlewares()
	env.app.RegisterHealthCheck()
	env.app.RegisterRoutes()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.app.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, email string) (string, string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/login", LoginRequest{Email: email}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp types.SuccessResponse[LoginResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.Player.ID, resp.Data.Token
}

func (e *testEnv) purchaseAll(t *testing.T, playerID, token string) []*game.Ticket {
	t.Helper()
	w := e.do(t, http.MethodPost, "/purchase", game.PurchaseRequest{DrawID: "draw-1", PlayerID: playerID, NumTickets: 2}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp types.ListResponse[*game.Ticket]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Tickets
}

func (e *testEnv) scrape(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func fullReveal(grid []int) map[string]int {
	revealed := make(map[string]int, len(grid))
	for i, v := range grid {
		revealed[game.CellID(i/3, i%3)] = v
	}
	return revealed
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLogin_IssuesToken(t *testing.T) {
	env := newTestEnv(t)

	playerID, token := env.login(t, "Alice@Example.com")
	assert.Equal(t, "player-alice@example.com", playerID)

	claims, err := auth.ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, playerID, claims.PlayerID)

	w := env.do(t, http.MethodPost, "/login", map[string]string{"email": "not-an-email"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDraws_HidesTiers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/draws", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gridSizeX":3`)
	assert.NotContains(t, w.Body.String(), "tier-7")
	assert.NotContains(t, w.Body.String(), "tileValue")
}

func TestPurchase_ThenList(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "bob@example.com")

	tickets := env.purchaseAll(t, playerID, token)
	require.Len(t, tickets, 2)
	assert.Equal(t, "t-win", tickets[0].ID)
	assert.Equal(t, game.StatusPurchased, tickets[0].Status)
	assert.Equal(t, 1, env.audit.purchases)
	assert.Contains(t, env.scrape(t), `rubits_tickets_purchased_total{draw_id="draw-1"} 2`)

	w := env.do(t, http.MethodGet, "/tickets?playerId="+playerID+"&status=purchased", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var list types.ListResponse[*game.Ticket]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.True(t, list.Success)
	assert.Equal(t, 2, list.Count)
	require.NotNil(t, list.Tickets[0].Draw)
	assert.Equal(t, "draw-1", list.Tickets[0].Draw.ID)
	assert.NotContains(t, w.Body.String(), "tier-7")
}

func TestPurchase_Errors(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "carol@example.com")

	tests := []struct {
		name   string
		req    game.PurchaseRequest
		status int
		code   int
	}{
		{"zero tickets", game.PurchaseRequest{DrawID: "draw-1", PlayerID: playerID, NumTickets: 0}, http.StatusBadRequest, errors.ErrInvalidRequest},
		{"above limit", game.PurchaseRequest{DrawID: "draw-1", PlayerID: playerID, NumTickets: 3}, http.StatusBadRequest, errors.ErrInvalidRequest},
		{"unknown draw", game.PurchaseRequest{DrawID: "nope", PlayerID: playerID, NumTickets: 1}, http.StatusNotFound, errors.ErrDrawNotFound},
		{"other player", game.PurchaseRequest{DrawID: "draw-1", PlayerID: "someone-else", NumTickets: 1}, http.StatusForbidden, errors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/purchase", tt.req, token)
			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	env.purchaseAll(t, playerID, token)
	w := env.do(t, http.MethodPost, "/purchase", game.PurchaseRequest{DrawID: "draw-1", PlayerID: playerID, NumTickets: 1}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrInsufficientInventory, decodeError(t, w).Error.Code)
}

func TestListTickets_RequiresPlayer(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "dan@example.com")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/tickets", nil, token).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/tickets?playerId="+playerID+"&status=lost", nil, token).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/tickets?playerId=other", nil, token).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/tickets?playerId="+playerID, nil, "garbage").Code)
}

func TestGetTicket_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/tickets/t-lose", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.SuccessResponse[game.Ticket]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, losingGrid, resp.Data.GridElements)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/tickets/missing", nil, "").Code)
}

func TestValidate_WinningTicket(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "erin@example.com")
	tickets := env.purchaseAll(t, playerID, token)

	_, err := env.progress.SaveProgress(context.Background(), playerID, "t-win", &game.RevealState{RevealedNumbers: map[string]int{"0-0": 7}})
	require.NoError(t, err)

	w := env.do(t, http.MethodPost, "/validate-game", game.ValidateRequest{
		RevealedNumbers: fullReveal(winningGrid),
		Ticket:          tickets[0],
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result game.ValidationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.True(t, result.Valid)
	assert.True(t, result.Won)
	require.NotNil(t, result.Prize)
	assert.Equal(t, "$5", *result.Prize)

	assert.Equal(t, game.StatusScratched, env.store.tickets["t-win"].Status)
	assert.Contains(t, env.progress.deleted, "t-win")
	require.Len(t, env.audit.validations, 1)
	assert.Equal(t, playerID, env.audit.validations[0].PlayerID)
	assert.Contains(t, env.scrape(t), `rubits_tickets_validations_total{outcome="won"} 1`)

	// a second submission of the same ticket is rejected
	w = env.do(t, http.MethodPost, "/validate-game", game.ValidateRequest{
		RevealedNumbers: fullReveal(winningGrid),
		Ticket:          tickets[0],
	}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, errors.MsgTicketNotFound, resp.Message)
	assert.Contains(t, env.scrape(t), `rubits_tickets_validations_total{outcome="rejected"} 1`)
}

func TestValidate_IncompleteLeavesTicketPurchased(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "fay@example.com")
	tickets := env.purchaseAll(t, playerID, token)

	revealed := fullReveal(losingGrid)
	delete(revealed, "2-2")
	w := env.do(t, http.MethodPost, "/validate-game", game.ValidateRequest{RevealedNumbers: revealed, Ticket: tickets[1]}, token)
	require.Equal(t, http.StatusOK, w.Code)

	var result game.ValidationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.False(t, result.Valid)
	assert.False(t, result.Won)
	assert.Nil(t, result.Prize)
	assert.Equal(t, game.StatusPurchased, env.store.tickets["t-lose"].Status)
}

func TestValidate_TamperedGrid(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "gus@example.com")
	tickets := env.purchaseAll(t, playerID, token)

	forged := *tickets[1]
	forged.GridElements = winningGrid
	forged.Digest = ""
	w := env.do(t, http.MethodPost, "/validate-game", game.ValidateRequest{
		RevealedNumbers: fullReveal(winningGrid),
		Ticket:          &forged,
	}, token)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, errors.MsgTicketNotFound, resp.Message)
	assert.Empty(t, resp.Error.DebugMessage)
	assert.Equal(t, game.StatusPurchased, env.store.tickets["t-lose"].Status)
}

func TestValidate_OtherPlayersTicket(t *testing.T) {
	env := newTestEnv(t)
	ownerID, ownerToken := env.login(t, "owner@example.com")
	tickets := env.purchaseAll(t, ownerID, ownerToken)
	_, otherToken := env.login(t, "other@example.com")

	w := env.do(t, http.MethodPost, "/validate-game", game.ValidateRequest{
		RevealedNumbers: fullReveal(winningGrid),
		Ticket:          tickets[0],
	}, otherToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, game.StatusPurchased, env.store.tickets["t-win"].Status)
}

func TestValidate_ConcurrentSubmission(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "hal@example.com")
	tickets := env.purchaseAll(t, playerID, token)

	release, ok, err := env.locker.Lock(context.Background(), "scratch:validate:t-win", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	w := env.do(t, http.MethodPost, "/validate-game", game.ValidateRequest{
		RevealedNumbers: fullReveal(winningGrid),
		Ticket:          tickets[0],
	}, token)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errors.ErrValidationInProgress, decodeError(t, w).Error.Code)
}

func TestValidate_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/validate-game", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.app.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/validate-game", map[string]interface{}{"revealedNumbers": map[string]int{}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgress_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "ivy@example.com")
	env.purchaseAll(t, playerID, token)

	w := env.do(t, http.MethodPut, "/tickets/t-win/progress", game.RevealState{
		RevealedNumbers:       map[string]int{"0-0": 7},
		PercentRevealedByCell: map[string]float64{"0-0": 60, "0-1": 20},
	}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPut, "/tickets/t-win/progress", game.RevealState{
		RevealedNumbers:       map[string]int{"1-0": 1},
		PercentRevealedByCell: map[string]float64{"0-1": 10},
	}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/tickets/t-win/progress", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.SuccessResponse[game.RevealState]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[string]int{"0-0": 7, "1-0": 1}, resp.Data.RevealedNumbers)
	assert.Equal(t, 20.0, resp.Data.PercentRevealedByCell["0-1"])

	_, otherToken := env.login(t, "mallory@example.com")
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/tickets/t-win/progress", nil, otherToken).Code)
}

func TestProgress_RejectsCellsNotOnTicket(t *testing.T) {
	env := newTestEnv(t)
	playerID, token := env.login(t, "ivy@example.com")
	env.purchaseAll(t, playerID, token)

	for name, revealed := range map[string]map[string]int{
		"wrong value":     {"0-0": 99},
		"outside grid":    {"3-0": 4},
		"aliased cell id": {"00-0": 7},
		"malformed id":    {"corner": 7},
	} {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/tickets/t-win/progress", game.RevealState{RevealedNumbers: revealed}, token)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	state, err := env.progress.GetProgress(context.Background(), playerID, "t-win")
	require.NoError(t, err)
	assert.Empty(t, state.RevealedNumbers, "rejected progress is not stored")

	// the ticket still validates once the real values are revealed
	w := env.do(t, http.MethodPut, "/tickets/t-win/progress", game.RevealState{RevealedNumbers: map[string]int{"0-0": 7}}, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestProgress_RequiresPurchasedTicket(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/tickets/t-win/progress", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RateLimitedRoutes(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Server.RateLimit.RequestsPerSecond = 0.001
		cfg.Server.RateLimit.Burst = 1
	})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/login", LoginRequest{Email: "a@example.com"}, "").Code)
	w := env.do(t, http.MethodPost, "/login", LoginRequest{Email: "a@example.com"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, env.scrape(t), `rubits_http_rate_limited_total{route="/login"} 1`)

	// reads are not limited
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/draws", nil, "").Code)
}

func TestRouter_RequiredJWT(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.JWT.Required = true })

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/tickets/t-win", nil, "").Code)
	_, token := env.login(t, "jo@example.com")
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/tickets/t-lose", nil, token).Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	env.store.pingErr = assert.AnError
	w = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, env.service.RefreshInventory(context.Background()))
	// both tickets are still intact
	assert.Contains(t, env.scrape(t), `rubits_tickets_intact{draw_id="draw-1"} 2`)
}

func TestRouter_GzipSkipsSmallAndWebsocket(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Server.EnableGzip = true })
	handler, err := env.app.Handler()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	req = httptest.NewRequest(http.MethodGet, "/draws", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}
