package validation

import (
	"context"
	stderrors "errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/game"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu      sync.Mutex
	tickets map[string]*game.Ticket
	failAll error
}

func newMemoryStore(tickets ...*game.Ticket) *memoryStore {
	s := &memoryStore{tickets: make(map[string]*game.Ticket)}
	for _, t := range tickets {
		s.tickets[t.ID] = t
	}
	return s
}

func (s *memoryStore) copyOf(t *game.Ticket) *game.Ticket {
	c := *t
	c.GridElements = slices.Clone(t.GridElements)
	return &c
}

func (s *memoryStore) FindTicketByDigest(_ context.Context, id, digest string) (*game.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	t, ok := s.tickets[id]
	if !ok || t.Digest != digest {
		return nil, game.ErrNotFound
	}
	return s.copyOf(t), nil
}

func (s *memoryStore) GetTicket(_ context.Context, id string) (*game.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	return s.copyOf(t), nil
}

func (s *memoryStore) MarkScratched(_ context.Context, id string, at time.Time) (bool, error) {
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

func testDraw() *game.Draw {
	return &game.Draw{
		ID:                 "draw-1",
		GridSizeX:          3,
		GridSizeY:          3,
		MatchingTilesToWin: 3,
		Tiers: []game.PrizeTier{
			{ID: "tier-7", TileValue: 7, Amount: decimal.NewFromInt(100)},
			{ID: "tier-2", TileValue: 2, Amount: decimal.RequireFromString("2.5")},
		},
	}
}

func issuedTicket(id string, grid []int, tierID string) *game.Ticket {
	t := &game.Ticket{
		ID:           id,
		DrawID:       "draw-1",
		GridElements: grid,
		Digest:       game.MustDigest(grid),
		Status:       game.StatusPurchased,
		Draw:         testDraw(),
	}
	if tierID != "" {
		t.TierID = &tierID
	}
	return t
}

// clientCopy is what a player's browser holds: no tier, same grid
func clientCopy(t *game.Ticket) *game.Ticket {
	return &game.Ticket{
		ID:           t.ID,
		DrawID:       t.DrawID,
		GridElements: slices.Clone(t.GridElements),
		Digest:       t.Digest,
		Status:       t.Status,
	}
}

func revealAll(t *game.Ticket) map[string]int {
	out := make(map[string]int)
	for _, c := range t.Cells() {
		out[c.ID] = c.Value
	}
	return out
}

var (
	winningGrid = []int{7, 7, 7, 1, 2, 3, 4, 5, 6}
	losingGrid  = []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
)

func TestValidate_WinningTicket(t *testing.T) {
	ticket := issuedTicket("t-win", winningGrid, "tier-7")
	v := New(newMemoryStore(ticket), zerolog.Nop(), Options{})

	out, err := v.Validate(context.Background(), &game.ValidateRequest{
		RevealedNumbers: revealAll(ticket),
		Ticket:          clientCopy(ticket),
	})
	require.NoError(t, err)

	assert.True(t, out.Result.Success)
	assert.True(t, out.Result.Valid)
	assert.True(t, out.Result.Won)
	require.NotNil(t, out.Result.Prize)
	assert.Equal(t, "$100", *out.Result.Prize)
	assert.True(t, out.Evaluation.HasWon)
	require.NotNil(t, out.Evaluation.WinningValue)
	assert.Equal(t, 7, *out.Evaluation.WinningValue)
	assert.Equal(t, "tier-7", out.Tier.ID)
}

func TestValidate_LosingTicket(t *testing.T) {
	ticket := issuedTicket("t-lose", losingGrid, "")
	v := New(newMemoryStore(ticket), zerolog.Nop(), Options{CurrencySymbol: "€"})

	out, err := v.Validate(context.Background(), &game.ValidateRequest{
		RevealedNumbers: revealAll(ticket),
		Ticket:          clientCopy(ticket),
	})
	require.NoError(t, err)

	assert.Equal(t, game.ValidationResult{Success: true, Valid: true}, out.Result)
	assert.Nil(t, out.Tier)
}

func TestValidate_IncompleteGridIsNotValid(t *testing.T) {
	ticket := issuedTicket("t-part", winningGrid, "tier-7")
	store := newMemoryStore(ticket)
	v := New(store, zerolog.Nop(), Options{})

	revealed := revealAll(ticket)
	delete(revealed, "2-2")

	out, err := v.Validate(context.Background(), &game.ValidateRequest{
		RevealedNumbers: revealed,
		Ticket:          clientCopy(ticket),
	})
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.False(t, out.Result.Valid)
	assert.False(t, out.Result.Won, "outcome is not disclosed before every cell is revealed")
	assert.Nil(t, out.Result.Prize)

	require.NoError(t, v.Settle(context.Background(), out))
	stored, _ := store.GetTicket(context.Background(), ticket.ID)
	assert.Equal(t, game.StatusPurchased, stored.Status, "incomplete submissions do not settle")
}

func TestValidate_IntegrityRejection(t *testing.T) {
	ticket := issuedTicket("t-1", losingGrid, "")
	v := New(newMemoryStore(ticket), zerolog.Nop(), Options{})

	tests := []struct {
		name   string
		mutate func(req *game.ValidateRequest)
	}{
		{
			name: "grid forged to a winning row with original digest",
			mutate: func(req *game.ValidateRequest) {
				req.Ticket.GridElements = []int{9, 9, 9, 4, 5, 6, 7, 8, 9}
				req.RevealedNumbers = map[string]int{
					"0-0": 9, "0-1": 9, "0-2": 9, "1-0": 4, "1-1": 5, "1-2": 6, "2-0": 7, "2-1": 8, "2-2": 9,
				}
			},
		},
		{
			name: "grid and digest forged together",
			mutate: func(req *game.ValidateRequest) {
				req.Ticket.GridElements = []int{9, 9, 9, 4, 5, 6, 7, 8, 9}
				req.Ticket.Digest = game.MustDigest(req.Ticket.GridElements)
			},
		},
		{
			name: "digest stripped and grid reordered",
			mutate: func(req *game.ValidateRequest) {
				req.Ticket.Digest = ""
				req.Ticket.GridElements[0], req.Ticket.GridElements[1] = req.Ticket.GridElements[1], req.Ticket.GridElements[0]
			},
		},
		{
			name: "revealed value differs from issued grid",
			mutate: func(req *game.ValidateRequest) {
				req.RevealedNumbers["0-0"] = 9
			},
		},
		{
			name: "revealed cell outside the grid",
			mutate: func(req *game.ValidateRequest) {
				req.RevealedNumbers["5-5"] = 1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &game.ValidateRequest{
				RevealedNumbers: revealAll(ticket),
				Ticket:          clientCopy(ticket),
			}
			tt.mutate(req)

			out, err := v.Validate(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, out)

			var appErr *errors.AppError
			require.True(t, stderrors.As(err, &appErr))
			assert.Equal(t, errors.MsgTicketNotFound, appErr.Message)
			assert.Equal(t, 400, errors.HTTPStatusFromCode(appErr.Code))
		})
	}
}

func TestValidate_AliasedCellIDsRejected(t *testing.T) {
	ticket := issuedTicket("t-win", winningGrid, "tier-7")
	store := newMemoryStore(ticket)
	v := New(store, zerolog.Nop(), Options{})

	out, err := v.Validate(context.Background(), &game.ValidateRequest{
		RevealedNumbers: map[string]int{
			"0-0": 7, "00-0": 7, "000-0": 7, "0-00": 7, "0-000": 7,
			"+0-0": 7, "0-+0": 7, "00-00": 7, "+0-+0": 7,
		},
		Ticket: clientCopy(ticket),
	})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, errors.ErrInvalidRequest, errors.GetCode(err))

	stored, _ := store.GetTicket(context.Background(), ticket.ID)
	assert.Equal(t, game.StatusPurchased, stored.Status)
}

func TestValidate_UnknownAndMismatchShareMessage(t *testing.T) {
	ticket := issuedTicket("t-1", losingGrid, "")
	v := New(newMemoryStore(ticket), zerolog.Nop(), Options{})

	forged := clientCopy(ticket)
	forged.GridElements = []int{9, 9, 9, 4, 5, 6, 7, 8, 9}
	forged.Digest = ""
	_, mismatch := v.Validate(context.Background(), &game.ValidateRequest{RevealedNumbers: map[string]int{}, Ticket: forged})

	unknown := clientCopy(ticket)
	unknown.ID = "t-404"
	_, missing := v.Validate(context.Background(), &game.ValidateRequest{RevealedNumbers: map[string]int{}, Ticket: unknown})

	require.Error(t, mismatch)
	require.Error(t, missing)
	assert.True(t, errors.HasCode(mismatch, errors.ErrTicketIntegrity))
	assert.True(t, errors.HasCode(missing, errors.ErrTicketNotFound))

	mismatchResp := mismatch.(*errors.AppError).Response()
	missingResp := missing.(*errors.AppError).Response()
	assert.Equal(t, mismatchResp["message"], missingResp["message"])
	assert.Equal(t, errors.HTTPStatusFromCode(errors.GetCode(mismatch)), errors.HTTPStatusFromCode(errors.GetCode(missing)))
}

func TestValidate_ReplayRejected(t *testing.T) {
	ticket := issuedTicket("t-win", winningGrid, "tier-7")
	store := newMemoryStore(ticket)
	v := New(store, zerolog.Nop(), Options{})
	ctx := context.Background()

	req := &game.ValidateRequest{RevealedNumbers: revealAll(ticket), Ticket: clientCopy(ticket)}

	out, err := v.Validate(ctx, req)
	require.NoError(t, err)
	require.NoError(t, v.Settle(ctx, out))
	assert.Equal(t, game.StatusScratched, out.Ticket.Status)

	_, err = v.Validate(ctx, req)
	require.Error(t, err)
	assert.Equal(t, errors.MsgTicketNotFound, err.(*errors.AppError).Message)
	assert.True(t, errors.HasCode(err, errors.ErrTicketNotFound))
}

func TestSettle_ConcurrentSettleLoses(t *testing.T) {
	ticket := issuedTicket("t-win", winningGrid, "tier-7")
	store := newMemoryStore(ticket)
	v := New(store, zerolog.Nop(), Options{})
	ctx := context.Background()
	req := &game.ValidateRequest{RevealedNumbers: revealAll(ticket), Ticket: clientCopy(ticket)}

	first, err := v.Validate(ctx, req)
	require.NoError(t, err)
	second, err := v.Validate(ctx, req)
	require.NoError(t, err)

	require.NoError(t, v.Settle(ctx, first))
	err = v.Settle(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTicketNotFound))
}

func TestValidate_InputErrors(t *testing.T) {
	v := New(newMemoryStore(), zerolog.Nop(), Options{})
	zero := 0

	tests := []struct {
		name string
		req  *game.ValidateRequest
	}{
		{name: "nil request", req: nil},
		{name: "missing ticket", req: &game.ValidateRequest{RevealedNumbers: map[string]int{}}},
		{name: "missing id", req: &game.ValidateRequest{RevealedNumbers: map[string]int{}, Ticket: &game.Ticket{GridElements: losingGrid}}},
		{name: "missing revealed", req: &game.ValidateRequest{Ticket: &game.Ticket{ID: "x", GridElements: losingGrid}}},
		{name: "missing grid", req: &game.ValidateRequest{RevealedNumbers: map[string]int{}, Ticket: &game.Ticket{ID: "x"}}},
		{name: "bad cell id", req: &game.ValidateRequest{RevealedNumbers: map[string]int{"a": 1}, Ticket: &game.Ticket{ID: "x", GridElements: losingGrid}}},
		{name: "bad rule", req: &game.ValidateRequest{RevealedNumbers: map[string]int{}, Ticket: &game.Ticket{ID: "x", GridElements: losingGrid}, MatchingTilesToWin: &zero}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, errors.ErrInvalidRequest, errors.GetCode(err))
		})
	}
}

func TestValidate_StoreFailureIsServerFault(t *testing.T) {
	ticket := issuedTicket("t-1", losingGrid, "")
	store := newMemoryStore(ticket)
	store.failAll = stderrors.New("connection reset")
	v := New(store, zerolog.Nop(), Options{})

	_, err := v.Validate(context.Background(), &game.ValidateRequest{
		RevealedNumbers: revealAll(ticket),
		Ticket:          clientCopy(ticket),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrStoreError, errors.GetCode(err))
	assert.Equal(t, 500, errors.HTTPStatusFromCode(errors.GetCode(err)))
	assert.NotContains(t, err.(*errors.AppError).Message, "connection reset")
}
