package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/blackscorpionster/rubits/config"
	"github.com/blackscorpionster/rubits/errors"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/httpclient"
	"github.com/blackscorpionster/rubits/logging"
	"github.com/blackscorpionster/rubits/scratch"
	"github.com/blackscorpionster/rubits/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const confirmAttempts = 3

func newPlayCmd() *cobra.Command {
	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Scratch and validate a player's tickets against a running server",
		Long: `Play logs in as a player, loads their purchased tickets and scratches each
one with simulated drag strokes before submitting it for validation.
Saved progress is restored, so an interrupted run resumes where it stopped.

Example:
  rubits play --email alice@example.com --buy lucky-7s --count 3`,
		RunE: runPlay,
	}
	playCmd.Flags().String("email", "", "Player email (required)")
	playCmd.Flags().String("server", "", "Ticket API base URL (default: http://localhost:<server.port>)")
	playCmd.Flags().String("buy", "", "Draw id to buy tickets from when none are waiting")
	playCmd.Flags().Int("count", 1, "Number of tickets to buy with --buy")
	playCmd.Flags().Float64("width", 300, "Board width in pixels")
	playCmd.Flags().Float64("height", 300, "Board height in pixels")
	_ = playCmd.MarkFlagRequired("email")
	return playCmd
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		if cfgFile != "" {
			return err
		}
		cfg = config.Default()
	}
	logger := logging.New(cfg.Logging)

	email, _ := cmd.Flags().GetString("email")
	serverURL, _ := cmd.Flags().GetString("server")
	if serverURL == "" {
		serverURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	buy, _ := cmd.Flags().GetString("buy")
	count, _ := cmd.Flags().GetInt("count")
	width, _ := cmd.Flags().GetFloat64("width")
	height, _ := cmd.Flags().GetFloat64("height")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	client := httpclient.New(httpclient.Config{BaseURL: serverURL, Logger: logger, Timeout: 10 * time.Second})
	if _, err := client.Login(ctx, email); err != nil {
		return err
	}

	tickets, err := client.ListTickets(ctx, game.StatusPurchased)
	if err != nil {
		return err
	}
	if len(tickets) == 0 && buy != "" {
		if tickets, err = client.Purchase(ctx, buy, count); err != nil {
			return err
		}
		fmt.Fprintf(out, "Bought %d ticket(s) of %s\n", len(tickets), buy)
	}
	if len(tickets) == 0 {
		fmt.Fprintln(out, "No tickets to play. Buy some with --buy <draw-id>.")
		return nil
	}

	saved := make(map[string]*game.RevealState, len(tickets))
	for _, t := range tickets {
		state, err := client.GetProgress(ctx, t.ID)
		if err != nil {
			logger.Warn().Err(err).Str("ticket_id", t.ID).Msg("Could not load saved progress")
			continue
		}
		saved[t.ID] = state
	}

	ctrl := session.New(client, logger,
		session.WithProgressSaver(client),
		session.WithDefaultMatchingTiles(cfg.Game.DefaultMatchingTiles),
	)
	if err := ctrl.Load(tickets, saved); err != nil {
		return err
	}

	p := &player{
		ctrl:   ctrl,
		logger: logger,
		out:    out,
		bounds: scratch.Rect{Width: width, Height: height},
		cfg: scratch.Config{
			Resolution: cfg.Game.OcclusionResolution,
			Radius:     cfg.Game.ScratchRadius,
			Threshold:  cfg.Game.RevealThreshold,
		},
	}

	for {
		ticket, ok := ctrl.Active()
		if !ok {
			return nil
		}
		if err := p.play(ctx, ticket); err != nil {
			return err
		}
		if _, err := ctrl.Dismiss(); err != nil {
			if stderrors.Is(err, session.ErrNoTicketsRemain) {
				fmt.Fprintln(out, "All tickets played.")
				return nil
			}
			return err
		}
	}
}

type player struct {
	ctrl   *session.Controller
	logger zerolog.Logger
	out    io.Writer
	bounds scratch.Rect
	cfg    scratch.Config
}

// play scratches one ticket until every cell is revealed, then validates it
func (p *player) play(ctx context.Context, ticket *game.Ticket) error {
	logger := logging.WithTicket(p.logger, ticket.ID, ticket.DrawID)

	board, err := scratch.NewBoard(ticket, p.bounds, p.cfg, func(cellID string, value int) {
		if _, err := p.ctrl.RecordReveal(ctx, ticket.ID, cellID, value); err != nil {
			logger.Warn().Err(err).Str("cell_id", cellID).Msg("Failed to record reveal")
		}
	})
	if err != nil {
		return err
	}
	if state, ok := p.ctrl.State(ticket.ID); ok {
		board.Restore(state)
	}

	gx, _ := ticket.GridSize()
	scratchBoard(board.Router(), p.bounds, p.cfg.Radius)
	for cellID, pct := range board.Progress() {
		_ = p.ctrl.RecordProgress(ticket.ID, cellID, pct)
	}
	if !board.Complete() {
		return fmt.Errorf("ticket %s: board not fully revealed after scratching", ticket.ID)
	}

	fmt.Fprintf(p.out, "\nTicket %s\n", ticket.ID)
	printGrid(p.out, ticket.GridElements, gx)

	result, err := p.confirm(ctx)
	switch {
	case stderrors.Is(err, session.ErrRejected):
		fmt.Fprintf(p.out, "Rejected: %s\n", result.Message)
		return err
	case err != nil:
		return err
	}

	if result.Won && result.Prize != nil {
		fmt.Fprintf(p.out, "You won %s!\n", *result.Prize)
	} else {
		fmt.Fprintln(p.out, "No win this time.")
	}
	return nil
}

// confirm validates the active ticket, retrying transient network faults
func (p *player) confirm(ctx context.Context) (*game.ValidationResult, error) {
	var lastErr error
	for attempt := 1; attempt <= confirmAttempts; attempt++ {
		result, err := p.ctrl.Confirm(ctx)
		if err == nil || !errors.HasCode(err, errors.ErrTransientNetwork) {
			return result, err
		}
		lastErr = err
		p.logger.Warn().Err(err).Int("attempt", attempt).Msg("Validation failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, lastErr
}

// scratchBoard drags horizontal strokes across the whole board, radius
// apart, so every cell is covered by the brush.
func scratchBoard(router *scratch.Router, bounds scratch.Rect, radius float64) {
	if radius <= 0 {
		radius = scratch.DefaultRadius
	}
	step := radius
	for y := bounds.Y + step/2; y < bounds.Y+bounds.Height; y += step {
		router.Down(scratch.Point{X: bounds.X, Y: y})
		for x := bounds.X + step/2; x < bounds.X+bounds.Width; x += step / 2 {
			router.Move(scratch.Point{X: x, Y: y})
		}
		router.Move(scratch.Point{X: bounds.X + bounds.Width - 1, Y: y})
		router.Up()
	}
}

func printGrid(w io.Writer, values []int, cols int) {
	for i, v := range values {
		fmt.Fprintf(w, "%3d", v)
		if (i+1)%cols == 0 {
			fmt.Fprintln(w)
		}
	}
}
