package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(5<<20), cfg.MaxBodyBytes)
	assert.True(t, cfg.MetricsEnabled)
	assert.Empty(t, cfg.DiscordWebhookURL)
	assert.Equal(t, 10*time.Second, cfg.AlertTimeout)
	assert.Zero(t, cfg.AlertRatePerMinute, "alert rate limiting is off unless configured")
	assert.Equal(t, 5, cfg.AlertBurst)
	assert.Equal(t, 2*time.Second, cfg.MirrorTimeout)
	assert.Equal(t, "LuxaBot", cfg.BotName)
	assert.Equal(t, "https://solscan.io/tx/", cfg.ExplorerTxURL)
	assert.Empty(t, cfg.NATSURL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "luxabot:events", cfg.RedisKey)
	assert.Equal(t, "pubsub", cfg.RedisMode)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "luxabot.events", cfg.KafkaTopic)
}

func TestLoad_MissingWebhookURLIsWarning(t *testing.T) {
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "DISCORD_WEBHOOK_URL is not set")
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("DISCORD_WEBHOOK_URL", " https://discord.com/api/webhooks/1/abc ")
	os.Setenv("DISCORD_USERNAME", "relay")
	os.Setenv("ALERT_TIMEOUT", "5s")
	os.Setenv("ALERT_RATE_PER_MINUTE", "60")
	os.Setenv("MIRROR_TIMEOUT", "500ms")
	os.Setenv("BOT_NAME", "TestBot")
	os.Setenv("EXPLORER_TX_URL", "https://explorer.solana.com/tx/")
	os.Setenv("METRICS_ENABLED", "false")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("REDIS_ADDR", "localhost:6379")
	os.Setenv("REDIS_DB", "2")
	os.Setenv("REDIS_MODE", "list")
	os.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", cfg.DiscordWebhookURL)
	assert.Equal(t, "relay", cfg.DiscordUsername)
	assert.Equal(t, 5*time.Second, cfg.AlertTimeout)
	assert.Equal(t, 60, cfg.AlertRatePerMinute)
	assert.Equal(t, 500*time.Millisecond, cfg.MirrorTimeout)
	assert.Equal(t, "TestBot", cfg.BotName)
	assert.Equal(t, "https://explorer.solana.com/tx/", cfg.ExplorerTxURL)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "list", cfg.RedisMode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.Warnings())
}

func TestLoad_PortOverridesServerAddr(t *testing.T) {
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("PORT", "10000")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":10000", cfg.ServerAddr)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"bad timeout", "ALERT_TIMEOUT", "soon", "invalid duration"},
		{"timeout too long", "ALERT_TIMEOUT", "5m", "AlertTimeout must be between"},
		{"bad rate", "ALERT_RATE_PER_MINUTE", "many", "invalid integer"},
		{"negative rate", "ALERT_RATE_PER_MINUTE", "-1", "cannot be negative"},
		{"bad metrics flag", "METRICS_ENABLED", "maybe", "invalid boolean"},
		{"bad log level", "LOG_LEVEL", "verbose", "LogLevel must be one of"},
		{"bad body size", "MAX_BODY_BYTES", "0", "MaxBodyBytes must be positive"},
		{"bad mirror timeout", "MIRROR_TIMEOUT", "later", "invalid duration"},
		{"mirror timeout too long", "MIRROR_TIMEOUT", "1m", "MirrorTimeout must be between"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv(tt.key, tt.value)
			defer cleanupEnv()

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServerAddr:         ":8080",
			LogLevel:           "info",
			MaxBodyBytes:       1024,
			AlertTimeout:       10 * time.Second,
			AlertRatePerMinute: 30,
			AlertBurst:         5,
			MirrorTimeout:      2 * time.Second,
			ExplorerTxURL:      "https://solscan.io/tx/",
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.AlertBurst = 0
	assert.ErrorContains(t, cfg.Validate(), "AlertBurst must be at least 1")

	cfg = valid()
	cfg.RedisAddr = "localhost:6379"
	cfg.RedisMode = "stream"
	assert.ErrorContains(t, cfg.Validate(), "RedisMode must be")

	cfg = valid()
	cfg.KafkaBrokers = []string{"k1:9092"}
	assert.ErrorContains(t, cfg.Validate(), "KafkaTopic is required")

	cfg = valid()
	cfg.MirrorTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "MirrorTimeout must be between")

	cfg = valid()
	cfg.ExplorerTxURL = ""
	assert.ErrorContains(t, cfg.Validate(), "ExplorerTxURL is required")
}

func TestMustLoad_Panics(t *testing.T) {
	os.Setenv("ALERT_TIMEOUT", "invalid")
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"SERVER_ADDR", "PORT", "LOG_LEVEL", "MAX_BODY_BYTES", "METRICS_ENABLED",
		"DISCORD_WEBHOOK_URL", "DISCORD_USERNAME", "ALERT_TIMEOUT", "ALERT_RATE_PER_MINUTE",
		"ALERT_BURST", "BOT_NAME", "EXPLORER_TX_URL", "NATS_URL",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY", "REDIS_MODE",
		"KAFKA_BROKERS", "KAFKA_TOPIC", "MIRROR_TIMEOUT",
	} {
		os.Unsetenv(key)
	}
}
