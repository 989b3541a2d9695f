package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blackscorpionster/rubits/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string          `mapstructure:"environment"`
	Server      ServerConfig    `mapstructure:"server"`
	Postgres    PostgresConfig  `mapstructure:"postgres"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	Logging     logging.Config  `mapstructure:"logging"`
	Game        GameConfig      `mapstructure:"game"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration   `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	EnableCORS     bool            `mapstructure:"enable_cors"`
	EnableGzip     bool            `mapstructure:"enable_gzip"`
	EnableSwagger  bool            `mapstructure:"enable_swagger"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds write endpoints per client IP
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// PostgresConfig holds ticket store connection configuration
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers       []string          `mapstructure:"brokers"`
	ConsumerGroup string            `mapstructure:"consumer_group"`
	Topics        map[string]string `mapstructure:"topics"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
	// Required rejects player routes without a bearer token.
	Required bool `mapstructure:"required"`
}

// GameConfig holds scratch and validation tuning
type GameConfig struct {
	OcclusionResolution   int           `mapstructure:"occlusion_resolution"`
	ScratchRadius         float64       `mapstructure:"scratch_radius"`
	RevealThreshold       float64       `mapstructure:"reveal_threshold"`
	DefaultMatchingTiles  int           `mapstructure:"default_matching_tiles"`
	MaxTicketsPerPurchase int           `mapstructure:"max_tickets_per_purchase"`
	ProgressTTL           time.Duration `mapstructure:"progress_ttl"`
	ValidationLockTTL     time.Duration `mapstructure:"validation_lock_ttl"`
	CurrencySymbol        string        `mapstructure:"currency_symbol"`
	DrawCatalog           string        `mapstructure:"draw_catalog"`
}

// SchedulerConfig holds background job schedules (cron spec strings)
type SchedulerConfig struct {
	InventoryRefresh string `mapstructure:"inventory_refresh"`
}

// AuditTopic returns the topic used for ticket audit events
func (k KafkaConfig) AuditTopic() string {
	if t, ok := k.Topics["audit"]; ok && t != "" {
		return t
	}
	return "scratch.audit"
}

// Load loads configuration from YAML file using Viper.
// A .env file next to the working directory is applied first when present.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigFile(filename)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return unmarshal(v)
}

// LoadByEnv loads config-<env>.yaml from configDir, env taken from APP_ENV
func LoadByEnv(configDir string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	env := v.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config-%s", env))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.setDefaults()
	return &config, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{Environment: "development"}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 15 * time.Second
	}
	if c.Server.RateLimit.RequestsPerSecond == 0 {
		c.Server.RateLimit.RequestsPerSecond = 5
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 10
	}
	if c.Postgres.MaxOpenConns == 0 {
		c.Postgres.MaxOpenConns = 20
	}
	if c.Postgres.MaxIdleConns == 0 {
		c.Postgres.MaxIdleConns = 5
	}
	if c.Postgres.ConnMaxLifetime == 0 {
		c.Postgres.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "rubits:"
	}
	if c.JWT.Expiration == 0 {
		c.JWT.Expiration = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Game.OcclusionResolution == 0 {
		c.Game.OcclusionResolution = 20
	}
	if c.Game.ScratchRadius == 0 {
		c.Game.ScratchRadius = 15
	}
	if c.Game.RevealThreshold == 0 {
		c.Game.RevealThreshold = 50
	}
	if c.Game.DefaultMatchingTiles == 0 {
		c.Game.DefaultMatchingTiles = 3
	}
	if c.Game.MaxTicketsPerPurchase == 0 {
		c.Game.MaxTicketsPerPurchase = 50
	}
	if c.Game.ProgressTTL == 0 {
		c.Game.ProgressTTL = 7 * 24 * time.Hour
	}
	if c.Game.ValidationLockTTL == 0 {
		c.Game.ValidationLockTTL = 10 * time.Second
	}
	if c.Game.CurrencySymbol == "" {
		c.Game.CurrencySymbol = "$"
	}
	if c.Scheduler.InventoryRefresh == "" {
		c.Scheduler.InventoryRefresh = "@every 1m"
	}
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
