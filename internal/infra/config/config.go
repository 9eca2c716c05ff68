package config

import (
	"fmt"
	"os"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the external endpoints the bot talks to. Both can be
// overridden from the environment, which the tests and any proxy setup rely on.
const (
	DefaultOhaasaPageURL = "https://www.asahi.co.jp/ohaasa/week/horoscope/"
	DefaultOhaasaJSONURL = "https://www.asahi.co.jp/data/ohaasa2020/horoscope.json"
	DefaultGeminiAPIURL  = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash-preview-09-2025:generateContent"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken string
	DatabaseURL   string
	LogLevel      string
	Environment   string
	TickInterval  time.Duration // Scheduler evaluation period
	HTTPTimeout   time.Duration // Timeout for the Oha-Asa and Gemini requests
	OhaasaPageURL string
	OhaasaJSONURL string
	GeminiAPIURL  string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.TickInterval, err = parseDurationEnv("SCHEDULER_TICK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.HTTPTimeout, err = parseDurationEnv("HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.OhaasaPageURL = os.Getenv("OHAASA_PAGE_URL")
	if cfg.OhaasaPageURL == "" {
		cfg.OhaasaPageURL = DefaultOhaasaPageURL
	}

	cfg.OhaasaJSONURL = os.Getenv("OHAASA_JSON_URL")
	if cfg.OhaasaJSONURL == "" {
		cfg.OhaasaJSONURL = DefaultOhaasaJSONURL
	}

	cfg.GeminiAPIURL = os.Getenv("GEMINI_API_URL")
	if cfg.GeminiAPIURL == "" {
		cfg.GeminiAPIURL = DefaultGeminiAPIURL
	}

	return cfg, nil
}

func parseDurationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return d, nil
}
