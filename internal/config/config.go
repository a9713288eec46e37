package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the application.
type Config struct {
	SpoonacularAPIKey     string
	SpoonacularBaseURL    string
	SpoonacularRPS        float64
	SpoonacularMaxRetries int

	DatabasePath string
	RedisURL     string

	CacheDetailTTL time.Duration
	CacheSearchTTL time.Duration
	CacheRandomTTL time.Duration

	// Discovery defaults
	DiscoveryCount      int
	DiscoveryRanking    int
	DiscoveryMaxMissing int
	DefaultBudget       float64
	ResurfaceSkipped    bool
	PersistDebounce     time.Duration

	// HTTP API
	Port           string
	APIJWTSecret   string
	APICORSOrigins []string

	LogLevel  string
	LogFormat string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64

	GeminiAPIKey string
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("SPOONACULAR_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("SPOONACULAR_API_KEY environment variable not set")
	}

	cfg := &Config{
		SpoonacularAPIKey:  apiKey,
		SpoonacularBaseURL: strings.TrimRight(envOr("SPOONACULAR_BASE_URL", "https://api.spoonacular.com"), "/"),
		DatabasePath:       envOr("DATABASE_PATH", "data/recipe-swiper.db"),
		RedisURL:           os.Getenv("REDIS_URL"),
		Port:               envOr("PORT", "8080"),
		APIJWTSecret:       os.Getenv("API_JWT_SECRET"),
		APICORSOrigins:     splitList(os.Getenv("API_CORS_ORIGINS")),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		LogFormat:          envOr("LOG_FORMAT", "json"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
	}

	var err error
	if cfg.SpoonacularRPS, err = envFloat("SPOONACULAR_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.SpoonacularMaxRetries, err = envInt("SPOONACULAR_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.CacheDetailTTL, err = envDuration("CACHE_DETAIL_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheSearchTTL, err = envDuration("CACHE_SEARCH_TTL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheRandomTTL, err = envDuration("CACHE_RANDOM_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	for key, ttl := range map[string]time.Duration{
		"CACHE_DETAIL_TTL": cfg.CacheDetailTTL,
		"CACHE_SEARCH_TTL": cfg.CacheSearchTTL,
		"CACHE_RANDOM_TTL": cfg.CacheRandomTTL,
	} {
		if ttl <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration, got %s", key, ttl)
		}
	}
	if cfg.DiscoveryCount, err = envInt("DISCOVERY_COUNT", 10); err != nil {
		return nil, err
	}
	if cfg.DiscoveryRanking, err = envInt("DISCOVERY_RANKING", 2); err != nil {
		return nil, err
	}
	if cfg.DiscoveryMaxMissing, err = envInt("DISCOVERY_MAX_MISSING", 3); err != nil {
		return nil, err
	}
	if cfg.DefaultBudget, err = envFloat("DEFAULT_BUDGET", 100); err != nil {
		return nil, err
	}
	if cfg.PersistDebounce, err = envDuration("PERSIST_DEBOUNCE", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ResurfaceSkipped, err = envBool("RESURFACE_SKIPPED", true); err != nil {
		return nil, err
	}

	for _, raw := range splitList(os.Getenv("TELEGRAM_ALLOWED_USER_IDS")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ALLOWED_USER_IDS contains invalid id %q", raw)
		}
		cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
	}
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		if cfg.AdminTelegramID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID must be a number, got %q", raw)
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, raw)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, raw)
	}
	return v, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, raw)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
