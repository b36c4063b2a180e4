package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server       Server       `mapstructure:"server"`
	Logger       Logger       `mapstructure:"logger"`
	Database     Database     `mapstructure:"database"`
	Webhook      Webhook      `mapstructure:"webhook"`
	Telegram     Telegram     `mapstructure:"telegram"`
	Trading      Trading      `mapstructure:"trading"`
	Confirmation Confirmation `mapstructure:"confirmation"`
	Router       Router       `mapstructure:"router"`
	Venues       Venues       `mapstructure:"venues"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Port           int     `mapstructure:"port"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Webhook holds the configuration for inbound alert delivery.
type Webhook struct {
	Secret string `mapstructure:"secret"`
}

// Telegram holds the configuration for the operator notification channel.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Trading holds account and risk parameters.
type Trading struct {
	Equity          float64 `mapstructure:"equity"`
	RiskPercent     float64 `mapstructure:"risk_percent"`
	DrawdownPercent float64 `mapstructure:"drawdown_percent"`
	PaperMode       bool    `mapstructure:"paper_mode"`
}

// Confirmation holds the operator decision parameters.
type Confirmation struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Router holds the retry policy for order execution.
type Router struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	BaseDelayMs    int `mapstructure:"base_delay_ms"`
	BackoffFactor  int `mapstructure:"backoff_factor"`
	MaxDelayMs     int `mapstructure:"max_delay_ms"`
	AttemptTimeout int `mapstructure:"attempt_timeout_seconds"`
}

// Venue holds credentials and trading rules for a single execution venue.
type Venue struct {
	BaseURL        string  `mapstructure:"base_url"`
	ApiKey         string  `mapstructure:"api_key"`
	SecretKey      string  `mapstructure:"secret_key"`
	LotStep        string  `mapstructure:"lot_step"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Venues holds per-venue configuration.
type Venues struct {
	Crypto   Venue `mapstructure:"crypto"`
	FX       Venue `mapstructure:"fx"`
	Equities Venue `mapstructure:"equities"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.rate_limit", 10) // requests per second
	viper.SetDefault("server.rate_limit_burst", 20)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("database.dsn", "alerts.db")
	viper.SetDefault("trading.risk_percent", 1)
	viper.SetDefault("trading.drawdown_percent", 5)
	viper.SetDefault("trading.paper_mode", true)
	viper.SetDefault("confirmation.timeout_seconds", 300)
	viper.SetDefault("router.max_attempts", 5)
	viper.SetDefault("router.base_delay_ms", 500)
	viper.SetDefault("router.backoff_factor", 2)
	viper.SetDefault("router.max_delay_ms", 5000)
	viper.SetDefault("router.attempt_timeout_seconds", 10)
	viper.SetDefault("venues.crypto.lot_step", "0.00001")
	viper.SetDefault("venues.fx.lot_step", "1000")
	viper.SetDefault("venues.equities.lot_step", "1")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
