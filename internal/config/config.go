package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the uplink service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	LogLevel       string
	LogDevelopment bool

	UplinkMode       string
	UplinkBaseURL    string
	UplinkChatPath   string
	UplinkTimeout    time.Duration
	UplinkFormatHint string

	PersonaCatalogPath string
	PersonaDefaultID   string

	StageWindowSize int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "uplink"),
		AllowAnyOrigin:   false,
		LogLevel:         strings.ToLower(envOrDefault("APP_LOG_LEVEL", "info")),
		UplinkMode:       strings.ToLower(envOrDefault("UPLINK_MODE", "ollama")),
		// Ollama's default listen address.
		UplinkBaseURL:  envOrDefault("UPLINK_BASE_URL", "http://localhost:11434"),
		UplinkChatPath: envOrDefault("UPLINK_CHAT_PATH", "/api/chat"),
		// Empty is meaningful here: it drops the format field from the request.
		UplinkFormatHint:   stringsTrimSpaceOr("UPLINK_FORMAT_HINT", "json"),
		PersonaCatalogPath: stringsTrimSpace("PERSONA_CATALOG_PATH"),
		PersonaDefaultID:   stringsTrimSpace("PERSONA_DEFAULT_ID"),
		ShutdownTimeout:    15 * time.Second,
		// Local models on CPU can take a long time for a full non-streamed reply.
		UplinkTimeout:   120 * time.Second,
		StageWindowSize: 256,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UplinkTimeout, err = durationFromEnv("UPLINK_TIMEOUT", cfg.UplinkTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.LogDevelopment, err = boolFromEnv("APP_LOG_DEVELOPMENT", cfg.LogDevelopment)
	if err != nil {
		return Config{}, err
	}
	cfg.StageWindowSize, err = intFromEnv("STAGE_WINDOW_SIZE", cfg.StageWindowSize)
	if err != nil {
		return Config{}, err
	}

	switch cfg.UplinkMode {
	case "ollama", "mock":
	default:
		return Config{}, fmt.Errorf("UPLINK_MODE must be ollama or mock, got %q", cfg.UplinkMode)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("APP_LOG_LEVEL must be one of debug|info|warn|error, got %q", cfg.LogLevel)
	}
	if cfg.UplinkTimeout <= 0 {
		return Config{}, fmt.Errorf("UPLINK_TIMEOUT must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if cfg.StageWindowSize <= 0 {
		return Config{}, fmt.Errorf("STAGE_WINDOW_SIZE must be positive")
	}
	if cfg.UplinkMode == "ollama" && strings.TrimSpace(cfg.UplinkBaseURL) == "" {
		return Config{}, fmt.Errorf("UPLINK_BASE_URL is required when UPLINK_MODE=ollama")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// stringsTrimSpaceOr returns fallback only when key is unset, so an explicit
// empty value is preserved.
func stringsTrimSpaceOr(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(v)
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
