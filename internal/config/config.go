package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// HTTP
	HTTPAddr string

	// Postgres; empty keeps everything in memory
	DatabaseURL   string
	NotifyChannel string

	// Audio/commentary webhook; empty disables it
	WebhookURL        string
	WebhookRatePerSec float64
	WebhookQueue      int

	// Defaults for new sessions
	DefaultTitle  string
	DefaultP1Name string
	DefaultP2Name string

	// Telemetry
	MetricsInterval time.Duration // 0 disables the periodic dump
	LogLevel        string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr: envStr("HTTP_ADDR", ":8080"),

		DatabaseURL:   envStr("DATABASE_URL", ""),
		NotifyChannel: envStr("NOTIFY_CHANNEL", "game_updates"),

		WebhookURL:        envStr("WEBHOOK_URL", ""),
		WebhookRatePerSec: envFloat("WEBHOOK_RATE_PER_SEC", 5),
		WebhookQueue:      envInt("WEBHOOK_QUEUE", 32),

		DefaultTitle:  envStr("DEFAULT_TITLE", "Mein Spiel"),
		DefaultP1Name: envStr("DEFAULT_P1_NAME", "Spieler 1"),
		DefaultP2Name: envStr("DEFAULT_P2_NAME", "Spieler 2"),

		MetricsInterval: time.Duration(envInt("METRICS_INTERVAL_SEC", 60)) * time.Second,
		LogLevel:        envStr("LOG_LEVEL", "info"),
	}
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
