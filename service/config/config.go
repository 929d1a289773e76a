package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// It is built once at startup and passed by value-pointer into constructors;
// nothing reads the environment after Load returns.
type Config struct {
	// Server configuration
	ServerAddr     string
	LogLevel       string
	MaxBodyBytes   int64
	MetricsEnabled bool

	// Discord alert delivery
	DiscordWebhookURL  string
	DiscordUsername    string
	AlertTimeout       time.Duration
	AlertRatePerMinute int
	AlertBurst         int
	BotName            string
	ExplorerTxURL      string

	// MirrorTimeout bounds publishing one event to all mirrors.
	MirrorTimeout time.Duration

	// NATS mirror (disabled when NATSURL is empty)
	NATSURL string

	// Redis mirror (disabled when RedisAddr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	RedisMode     string

	// Kafka mirror (disabled when KafkaBrokers is empty)
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables and validates it.
// A missing DISCORD_WEBHOOK_URL is not an error; see Warnings.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	if port := os.Getenv("PORT"); port != "" {
		cfg.ServerAddr = ":" + port
	}
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	maxBody, err := parseInt("MAX_BODY_BYTES", 5<<20)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.MaxBodyBytes = int64(maxBody)

	cfg.MetricsEnabled, err = parseBool("METRICS_ENABLED", true)
	if err != nil {
		errs = append(errs, err)
	}

	// Discord configuration
	cfg.DiscordWebhookURL = strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL"))
	cfg.DiscordUsername = os.Getenv("DISCORD_USERNAME")
	cfg.BotName = getEnvOrDefault("BOT_NAME", "LuxaBot")
	cfg.ExplorerTxURL = getEnvOrDefault("EXPLORER_TX_URL", "https://solscan.io/tx/")

	cfg.AlertTimeout, err = parseDuration("ALERT_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	}

	// Rate limiting is opt-in: a limiter wait that cannot finish inside
	// ALERT_TIMEOUT fails the event without any delivery attempt.
	cfg.AlertRatePerMinute, err = parseInt("ALERT_RATE_PER_MINUTE", 0)
	if err != nil {
		errs = append(errs, err)
	}

	cfg.AlertBurst, err = parseInt("ALERT_BURST", 5)
	if err != nil {
		errs = append(errs, err)
	}

	// Mirrors
	cfg.MirrorTimeout, err = parseDuration("MIRROR_TIMEOUT", "2s")
	if err != nil {
		errs = append(errs, err)
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB, err = parseInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.RedisKey = getEnvOrDefault("REDIS_KEY", "luxabot:events")
	cfg.RedisMode = getEnvOrDefault("REDIS_MODE", "pubsub")

	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaTopic = getEnvOrDefault("KAFKA_TOPIC", "luxabot.events")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LogLevel must be one of debug, info, warn, error"))
	}

	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MaxBodyBytes must be positive"))
	}

	if c.AlertTimeout < time.Second || c.AlertTimeout > time.Minute {
		errs = append(errs, fmt.Errorf("AlertTimeout must be between 1s and 1m"))
	}

	if c.AlertRatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("AlertRatePerMinute cannot be negative"))
	}

	if c.AlertRatePerMinute > 0 && c.AlertBurst < 1 {
		errs = append(errs, fmt.Errorf("AlertBurst must be at least 1 when rate limiting is enabled"))
	}

	if c.MirrorTimeout < 100*time.Millisecond || c.MirrorTimeout > 30*time.Second {
		errs = append(errs, fmt.Errorf("MirrorTimeout must be between 100ms and 30s"))
	}

	if c.ExplorerTxURL == "" {
		errs = append(errs, fmt.Errorf("ExplorerTxURL is required"))
	}

	if c.RedisAddr != "" && c.RedisMode != "pubsub" && c.RedisMode != "list" {
		errs = append(errs, fmt.Errorf("RedisMode must be 'pubsub' or 'list'"))
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, fmt.Errorf("KafkaTopic is required when KafkaBrokers is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// Warnings returns non-fatal configuration problems that should be logged at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.DiscordWebhookURL == "" {
		warnings = append(warnings, "DISCORD_WEBHOOK_URL is not set; alerts will fail until it is configured")
	}
	return warnings
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
