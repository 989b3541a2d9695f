package main

import (
	"context"
	"fmt"
	"time"

	"github.com/blackscorpionster/rubits/wire"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ticket API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, cleanup, err := wire.InitializeRuntime(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	logger := rt.Logger

	if rt.Consumer != nil {
		rt.Consumer.Start()
		logger.Info().Str("topic", cfg.Kafka.AuditTopic()).Msg("Win feed consumer started")
	}

	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := rt.Service.RefreshInventory(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to refresh ticket inventory")
		}
	}
	refresh()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scheduler.InventoryRefresh, refresh); err != nil {
		cleanup()
		return fmt.Errorf("invalid inventory refresh schedule %q: %w", cfg.Scheduler.InventoryRefresh, err)
	}
	scheduler.Start()

	rt.App.OnShutdown(func() {
		<-scheduler.Stop().Done()
		logger.Info().Msg("Scheduler stopped")
	})
	rt.App.OnShutdown(cleanup)

	logger.Info().
		Str("version", version).
		Str("environment", cfg.Environment).
		Msg("Starting rubits")

	return rt.App.Run()
}
