package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	coreredis "github.com/blackscorpionster/rubits/db/redis"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/logging"
	"github.com/rs/zerolog"
)

const (
	defaultProgressTTL = 7 * 24 * time.Hour

	progressLockTTL     = 5 * time.Second
	progressLockRetries = 20
	progressLockBackoff = 25 * time.Millisecond
)

// ErrProgressBusy is returned when another save of the same ticket holds the
// merge lock for longer than SaveProgress is willing to wait.
var ErrProgressBusy = stderrors.New("progress save already in progress")

// Cache is the subset of the redis client used for scratch progress
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ProgressProvider keeps each player's RevealState per ticket in Redis so a
// ticket can be resumed on another device or after a reload.
type ProgressProvider struct {
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewProgressProvider creates a new progress provider
func NewProgressProvider(cache Cache, ttl time.Duration, logger zerolog.Logger) *ProgressProvider {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &ProgressProvider{
		cache:  cache,
		ttl:    ttl,
		logger: logging.WithComponent(logger, "progress_provider"),
	}
}

func (p *ProgressProvider) progressKey(playerID, ticketID string) string {
	return fmt.Sprintf("scratch:progress:%s:%s", playerID, ticketID)
}

// GetProgress returns the stored state, or an empty one when nothing is saved
func (p *ProgressProvider) GetProgress(ctx context.Context, playerID, ticketID string) (*game.RevealState, error) {
	key := p.progressKey(playerID, ticketID)

	var state game.RevealState
	if err := p.cache.GetJSON(ctx, key, &state); err != nil {
		if stderrors.Is(err, coreredis.ErrNotFound) {
			p.logger.Debug().Str("key", key).Msg("No saved progress, returning empty state")
			return game.NewRevealState(), nil
		}
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	if state.RevealedNumbers == nil {
		state.RevealedNumbers = make(map[string]int)
	}
	if state.PercentRevealedByCell == nil {
		state.PercentRevealedByCell = make(map[string]float64)
	}
	return &state, nil
}

// SaveProgress merges update into the stored state and returns the result.
// Revealed cells are never removed and percentages never go down. The read,
// merge and write run under a per-ticket lock so concurrent saves all land.
func (p *ProgressProvider) SaveProgress(ctx context.Context, playerID, ticketID string, update *game.RevealState) (*game.RevealState, error) {
	release, err := p.lock(ctx, p.progressKey(playerID, ticketID)+":lock")
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := p.GetProgress(ctx, playerID, ticketID)
	if err != nil {
		return nil, err
	}

	merged := current.Clone()
	if update != nil {
		for cell, value := range update.RevealedNumbers {
			merged.Reveal(cell, value)
		}
		for cell, pct := range update.PercentRevealedByCell {
			merged.SetPercent(cell, pct)
		}
		merged.Finished = merged.Finished || update.Finished
	}

	if err := p.cache.SetJSON(ctx, p.progressKey(playerID, ticketID), merged, p.ttl); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	return merged, nil
}

// lock waits a short while for key, then gives up with ErrProgressBusy
func (p *ProgressProvider) lock(ctx context.Context, key string) (func(), error) {
	for attempt := 0; attempt < progressLockRetries; attempt++ {
		release, ok, err := p.cache.Lock(ctx, key, progressLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to lock progress: %w", err)
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(progressLockBackoff):
		}
	}
	p.logger.Warn().Str("key", key).Msg("Progress lock still held, giving up")
	return nil, ErrProgressBusy
}

// DeleteProgress removes saved progress, used once a ticket is scratched
func (p *ProgressProvider) DeleteProgress(ctx context.Context, playerID, ticketID string) error {
	if err := p.cache.Delete(ctx, p.progressKey(playerID, ticketID)); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
