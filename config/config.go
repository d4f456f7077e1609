package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"swing-systemv1/internal/model"
	"swing-systemv1/internal/timeframe"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	GatewayAddr   string
	MetricsAddr   string

	// Instruments (comma-separated, e.g. "XAUUSD,XAGUSD")
	Symbols string

	// Enabled timeframes (comma-separated names, e.g. "M1,M5,H1,D1")
	EnabledTFs string

	// Plausible price ranges per symbol ("XAUUSD:1000:3000,XAGUSD:10:60")
	PriceBands string

	// Generation defaults
	ZigZagDeviation float64
	ZigZagDepth     int
	JobBatchSize    int

	// Optional alert channels
	TelegramBotToken string
	TelegramChatID   string
	AlertWebhookURL  string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	return &Config{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		Symbols:    getEnv("SYMBOLS", "XAUUSD"),
		EnabledTFs: getEnv("ENABLED_TFS", "M1,M5,M15,M30,H1,H4,D1"),
		PriceBands: getEnv("PRICE_BANDS", "XAUUSD:1000:3000"),

		ZigZagDeviation: getFloat("ZIGZAG_DEVIATION", 5.0),
		ZigZagDepth:     getInt("ZIGZAG_DEPTH", 12),
		JobBatchSize:    getInt("JOB_BATCH_SIZE", 10000),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
	}
}

// ParseSymbols splits the configured symbol list.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseTFs parses the enabled timeframe names, skipping invalid entries.
func (c *Config) ParseTFs() []timeframe.Timeframe {
	return timeframe.ParseList(c.EnabledTFs)
}

// ParseBands parses the per-symbol price bands. Unknown symbols get a
// zero band, which accepts any price.
func (c *Config) ParseBands() map[string]model.PriceBand {
	bands := make(map[string]model.PriceBand)
	for _, entry := range strings.Split(c.PriceBands, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			log.Printf("[config] skipping invalid price band: %q", entry)
			continue
		}
		min, err1 := strconv.ParseFloat(parts[1], 64)
		max, err2 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || min >= max {
			log.Printf("[config] skipping invalid price band: %q", entry)
			continue
		}
		bands[parts[0]] = model.PriceBand{Min: min, Max: max}
	}
	return bands
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
