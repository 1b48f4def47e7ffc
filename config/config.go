package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	// HTTP
	HTTPAddr    string
	SubmitRate  float64 // backtest submissions per second
	SubmitBurst int
	TOTPSecret  string // empty disables the TOTP guard

	// Infrastructure
	RedisAddr     string // empty disables result publication
	RedisPassword string
	SQLitePath    string
	DataDir       string
	ResultTTL     time.Duration

	// Jobs
	MaxConcurrentJobs int

	// Strategy defaults
	ModelPath    string
	StrategyFile string

	// Notifications
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		SubmitRate:  getFloat("SUBMIT_RATE", 1),
		SubmitBurst: getInt("SUBMIT_BURST", 5),
		TOTPSecret:  getEnv("API_TOTP_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/backtest.db"),
		DataDir:       getEnv("DATA_DIR", "data"),
		ResultTTL:     getDuration("RESULT_TTL", 24*time.Hour),

		MaxConcurrentJobs: getInt("MAX_CONCURRENT_JOBS", 2),

		ModelPath:    getEnv("MODEL_PATH", ""),
		StrategyFile: getEnv("STRATEGY_FILE", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
