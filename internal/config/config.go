// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Currency CurrencyConfig `mapstructure:"currency"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Settings SettingsConfig `mapstructure:"settings"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds Redis connection configuration. Redis backs the
// dashboard cache and the rate limiter; the service runs without it.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RewardsConfig holds the reward cycle tuning knobs.
type RewardsConfig struct {
	Spin          SpinConfig   `mapstructure:"spin"`
	Trivia        TriviaConfig `mapstructure:"trivia"`
	WatchAdPoints int64        `mapstructure:"watch_ad_points"`
	ReferralBonus int64        `mapstructure:"referral_bonus"`
}

// SpinConfig holds the prize wheel table.
type SpinConfig struct {
	Segments []SpinSegment `mapstructure:"segments"`
}

// SpinSegment is one configured prize band.
type SpinSegment struct {
	Points int64  `mapstructure:"points"`
	Label  string `mapstructure:"label"`
	Weight int    `mapstructure:"weight"`
}

// TriviaConfig holds trivia scoring configuration.
type TriviaConfig struct {
	BasePoints int64 `mapstructure:"base_points"`
	StreakStep int64 `mapstructure:"streak_step"`
	StreakCap  int64 `mapstructure:"streak_cap"`
}

// CurrencyConfig holds display currency conversion rates, quoted as
// units per base currency.
type CurrencyConfig struct {
	Base  string             `mapstructure:"base"`
	Rates map[string]float64 `mapstructure:"rates"`
}

// PaymentsConfig holds payment gateway credentials.
type PaymentsConfig struct {
	CallbackURL string         `mapstructure:"callback_url"`
	Paystack    PaystackConfig `mapstructure:"paystack"`
	Stripe      StripeConfig   `mapstructure:"stripe"`
}

// PaystackConfig holds Paystack API credentials. An empty base URL
// targets the public API.
type PaystackConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

// StripeConfig holds Stripe API credentials.
type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
}

// SettingsConfig holds the configured fallbacks for remotely-managed
// platform settings.
type SettingsConfig struct {
	AdClientID     string `mapstructure:"ad_client_id"`
	WatchAdEnabled bool   `mapstructure:"watch_ad_enabled"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Addr returns the host:port the HTTP server binds to.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Addr returns the Redis host:port.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., SERVER_PORT, DATABASE_HOST, REDIS_HOST
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.rate_limit_window", "1m")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "rewards")
	v.SetDefault("database.name", "rewards")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Reward cycle defaults
	v.SetDefault("rewards.spin.segments", []map[string]interface{}{
		{"points": 0, "label": "No luck today", "weight": 30},
		{"points": 5, "label": "5 points", "weight": 25},
		{"points": 10, "label": "10 points", "weight": 20},
		{"points": 25, "label": "25 points", "weight": 15},
		{"points": 50, "label": "50 points", "weight": 8},
		{"points": 100, "label": "Jackpot", "weight": 2},
	})
	v.SetDefault("rewards.trivia.base_points", 10)
	v.SetDefault("rewards.trivia.streak_step", 5)
	v.SetDefault("rewards.trivia.streak_cap", 50)
	v.SetDefault("rewards.watch_ad_points", 5)
	v.SetDefault("rewards.referral_bonus", 50)

	// Currency defaults
	v.SetDefault("currency.base", "USD")
	v.SetDefault("currency.rates", map[string]float64{
		"USD": 1.0,
		"EUR": 0.92,
		"GBP": 0.79,
		"NGN": 1600.0,
	})

	// Payment defaults
	v.SetDefault("payments.callback_url", "http://localhost:8080/payments/return")

	// Platform setting fallbacks
	v.SetDefault("settings.watch_ad_enabled", true)
	v.SetDefault("settings.ad_client_id", "")
}
