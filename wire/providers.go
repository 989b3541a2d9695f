package wire

import (
	"fmt"

	"github.com/blackscorpionster/rubits/config"
	"github.com/blackscorpionster/rubits/db/postgres"
	"github.com/blackscorpionster/rubits/db/redis"
	"github.com/blackscorpionster/rubits/events/kafka"
	"github.com/blackscorpionster/rubits/logging"
	"github.com/blackscorpionster/rubits/metrics"
	"github.com/blackscorpionster/rubits/pkg/winfeed"
	"github.com/blackscorpionster/rubits/provider"
	"github.com/blackscorpionster/rubits/server"
	"github.com/blackscorpionster/rubits/validation"
	"github.com/google/wire"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Runtime is everything `rubits serve` starts and stops
type Runtime struct {
	Config   *config.Config
	Logger   zerolog.Logger
	App      *server.App
	Service  *server.TicketService
	Consumer *kafka.Consumer
}

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideDB opens the ticket store and applies migrations when configured
func ProvideDB(cfg *config.Config, logger zerolog.Logger) (*sqlx.DB, func(), error) {
	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	if cfg.Postgres.MigrateOnStart {
		m, err := postgres.NewMigrator(db)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := m.Up(); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		version, _, _ := m.Version()
		logger.Info().Uint("version", version).Msg("Database migrated")
	}
	return db, cleanup, nil
}

// ProvideRedisClient provides a Redis client
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideProgressProvider stores scratch progress in Redis
func ProvideProgressProvider(client *redis.Client, cfg *config.Config, logger zerolog.Logger) *provider.ProgressProvider {
	return provider.NewProgressProvider(client, cfg.Game.ProgressTTL, logger)
}

// ProvideFeed provides the in-process win feed behind /ws/wins
func ProvideFeed() *winfeed.Feed {
	return winfeed.New(16, 20)
}

// ProvideProducer provides the audit producer. It is nil without brokers.
func ProvideProducer(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) (*kafka.Producer, func()) {
	p := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers, Logger: logger})
	if p == nil {
		logger.Warn().Msg("No Kafka brokers configured, audit events are disabled")
		return nil, func() {}
	}
	p.OnResult = m.RecordAuditEvent
	return p, func() { _ = p.Close() }
}

// ProvideAuditProvider publishes ticket events. Without a producer, wins go
// straight to the local feed.
func ProvideAuditProvider(p *kafka.Producer, cfg *config.Config, feed *winfeed.Feed, logger zerolog.Logger) *provider.AuditProvider {
	audit := provider.NewAuditProvider(p, cfg.Kafka.AuditTopic(), logger)
	audit.SetLocalFeed(feed)
	return audit
}

// ProvideConsumer feeds validated wins from the audit topic into the win
// feed. It is nil without brokers and is started by the caller.
func ProvideConsumer(cfg *config.Config, feed *winfeed.Feed, logger zerolog.Logger) (*kafka.Consumer, func()) {
	c := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.AuditTopic(),
		ConsumerGroup: cfg.Kafka.ConsumerGroup + "-winfeed",
		Logger:        logger,
	})
	if c == nil {
		return nil, func() {}
	}
	c.Handle(provider.ActionTicketValidated, provider.WinFeedHandler(feed, logger))
	return c, func() { _ = c.Stop() }
}

// ProvideValidator provides the ticket validator
func ProvideValidator(repo *postgres.Repository, cfg *config.Config, logger zerolog.Logger) *validation.Validator {
	return validation.New(repo, logger, validation.Options{
		CurrencySymbol:       cfg.Game.CurrencySymbol,
		DefaultMatchingTiles: cfg.Game.DefaultMatchingTiles,
	})
}

// ProvideServiceOptions provides ticket service tuning from config
func ProvideServiceOptions(cfg *config.Config) server.ServiceOptions {
	return server.ServiceOptions{
		MaxTicketsPerPurchase: cfg.Game.MaxTicketsPerPurchase,
		ValidationLockTTL:     cfg.Game.ValidationLockTTL,
		JWTSecret:             cfg.JWT.Secret,
		JWTExpiration:         cfg.JWT.Expiration,
	}
}

// ProvideServerOptions provides server options
func ProvideServerOptions(cfg *config.Config, logger zerolog.Logger, svc *server.TicketService, feed *winfeed.Feed, m *metrics.Metrics) server.Options {
	return server.Options{
		Config:  cfg,
		Logger:  logger,
		Service: svc,
		Feed:    feed,
		Metrics: m,
	}
}

// ProvideApp provides the application with its routes registered
func ProvideApp(opts server.Options) *server.App {
	app := server.New(opts)
	app.UseCommonMiddlewares()
	app.RegisterHealthCheck()
	app.RegisterRoutes()
	if opts.Config.Server.EnableSwagger {
		app.RegisterSwagger()
	}
	return app
}

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
)

// StoreSet is the wire provider set for the Postgres ticket store
var StoreSet = wire.NewSet(
	ProvideDB,
	postgres.NewRepository,
	wire.Bind(new(server.TicketStore), new(*postgres.Repository)),
)

// RedisSet is the wire provider set for Redis locks and progress
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideProgressProvider,
	wire.Bind(new(server.Locker), new(*redis.Client)),
	wire.Bind(new(server.ProgressStore), new(*provider.ProgressProvider)),
)

// EventSet is the wire provider set for Kafka audit events and the win feed
var EventSet = wire.NewSet(
	ProvideFeed,
	ProvideProducer,
	ProvideAuditProvider,
	ProvideConsumer,
	wire.Bind(new(server.AuditLogger), new(*provider.AuditProvider)),
)

// ServerSet is the wire provider set for the HTTP application
var ServerSet = wire.NewSet(
	metrics.New,
	ProvideValidator,
	ProvideServiceOptions,
	server.NewTicketService,
	ProvideServerOptions,
	ProvideApp,
)

// FullSet includes every provider `rubits serve` needs
var FullSet = wire.NewSet(
	LoggingSet,
	StoreSet,
	RedisSet,
	EventSet,
	ServerSet,
	wire.Struct(new(Runtime), "*"),
)
