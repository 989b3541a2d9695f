package main

import (
	"context"
	"fmt"

	"github.com/blackscorpionster/rubits/db/postgres"
	"github.com/blackscorpionster/rubits/game"
	"github.com/blackscorpionster/rubits/logging"
	"github.com/blackscorpionster/rubits/pkg/ticketgen"
	"github.com/cheggaaa/pb/v3"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSeedCmd() *cobra.Command {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate and store the tickets of every catalog draw",
		Long: `Seed saves every draw of the catalog with its prize tiers, then
generates the draw's full ticket set and stores it as intact tickets.

Example:
  rubits seed --catalog config/draws.yaml --draw lucky-7s --seed 42`,
		RunE: runSeed,
	}
	seedCmd.Flags().String("catalog", "", "Draw catalog file or directory (default: game.draw_catalog)")
	seedCmd.Flags().StringSlice("draw", nil, "Only seed these draw ids")
	seedCmd.Flags().Int64("seed", 0, "Generator seed for reproducible tickets (0 = random)")
	return seedCmd
}

func newDrawsCmd() *cobra.Command {
	drawsCmd := &cobra.Command{
		Use:   "draws",
		Short: "Print the draw catalog with its prize tiers",
		RunE:  runDraws,
	}
	drawsCmd.Flags().String("catalog", "", "Draw catalog file or directory (default: game.draw_catalog)")
	return drawsCmd
}

func loadCatalog(cmd *cobra.Command, fallback string) (*game.Catalog, error) {
	path, _ := cmd.Flags().GetString("catalog")
	if path == "" {
		path = fallback
	}
	if path == "" {
		return nil, fmt.Errorf("no draw catalog: pass --catalog or set game.draw_catalog")
	}
	return game.LoadCatalog(path)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)

	catalog, err := loadCatalog(cmd, cfg.Game.DrawCatalog)
	if err != nil {
		return err
	}
	only, _ := cmd.Flags().GetStringSlice("draw")
	seed, _ := cmd.Flags().GetInt64("seed")

	draws := catalog.Draws
	if len(only) > 0 {
		draws = lo.Filter(draws, func(d game.Draw, _ int) bool { return lo.Contains(only, d.ID) })
		if len(draws) == 0 {
			return fmt.Errorf("none of %v are in the catalog", only)
		}
	}

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := postgres.NewRepository(db)

	gen := ticketgen.New(ticketgen.Options{
		Seed:                 seed,
		DefaultMatchingTiles: cfg.Game.DefaultMatchingTiles,
	})

	ctx := context.Background()
	for i := range draws {
		draw := &draws[i]
		if err := repo.SaveDraw(ctx, draw); err != nil {
			return err
		}

		tickets, err := gen.Generate(draw)
		if err != nil {
			return fmt.Errorf("draw %s: %w", draw.ID, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeding %s (%d tickets)\n", draw.ID, len(tickets))
		bar := pb.StartNew(len(tickets))
		err = repo.InsertTickets(ctx, tickets, func() { bar.Increment() })
		bar.Finish()
		if err != nil {
			return err
		}

		winners := lo.CountBy(tickets, func(t *game.Ticket) bool { return t.IsWinner() })
		logger.Info().
			Str("draw_id", draw.ID).
			Int("tickets", len(tickets)).
			Int("winners", winners).
			Msg("Draw seeded")
	}
	return nil
}

type tierView struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	TileValue   int    `yaml:"tile_value"`
	Amount      string `yaml:"amount"`
	TicketCount int    `yaml:"ticket_count"`
}

type drawView struct {
	ID                 string     `yaml:"id"`
	Name               string     `yaml:"name"`
	Grid               string     `yaml:"grid"`
	MatchingTilesToWin int        `yaml:"matching_tiles_to_win"`
	TicketCost         string     `yaml:"ticket_cost"`
	NumberOfTickets    int        `yaml:"number_of_tickets"`
	Tiers              []tierView `yaml:"tiers"`
}

func runDraws(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cmd, cfg.Game.DrawCatalog)
	if err != nil {
		return err
	}

	views := lo.Map(catalog.Draws, func(d game.Draw, _ int) drawView {
		return drawView{
			ID:                 d.ID,
			Name:               d.Name,
			Grid:               fmt.Sprintf("%dx%d", d.GridSizeX, d.GridSizeY),
			MatchingTilesToWin: d.MatchingTiles(cfg.Game.DefaultMatchingTiles),
			TicketCost:         game.FormatPrize(cfg.Game.CurrencySymbol, d.TicketCost),
			NumberOfTickets:    d.NumberOfTickets,
			Tiers: lo.Map(d.Tiers, func(t game.PrizeTier, _ int) tierView {
				return tierView{
					ID:          t.ID,
					Name:        t.Name,
					TileValue:   t.TileValue,
					Amount:      game.FormatPrize(cfg.Game.CurrencySymbol, t.Amount),
					TicketCount: t.TicketCount,
				}
			}),
		}
	})

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(map[string]interface{}{"draws": views}); err != nil {
		return err
	}
	return enc.Close()
}
