package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	RedisURL             string
	JWTSecret            string
	KnackAppID           string
	KnackAPIKey          string
	KnackBaseURL         string
	KnackPageSize        int
	KnackRequestTimeout  time.Duration
	DashboardCacheTTL    time.Duration
	CatalogCacheTTL      time.Duration
	UndoWindow           time.Duration
	ContentSourceTimeout time.Duration
	ContentSources       []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("VESPA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "VESPA Activities API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("knack.base_url", "https://api.knack.com/v1")
	v.SetDefault("knack.page_size", 1000)
	v.SetDefault("knack.request_timeout", "15s")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("catalog.cache_ttl", "30m")
	v.SetDefault("undo.window", "6s")
	v.SetDefault("content.source_timeout", "5s")
	v.SetDefault("content.sources", "")

	dashboardTTL, err := parseDurationSetting(v, "dashboard.cache_ttl", "5m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid dashboard cache ttl: %w", err)
	}

	catalogTTL, err := parseDurationSetting(v, "catalog.cache_ttl", "30m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid catalog cache ttl: %w", err)
	}

	undoWindow, err := parseDurationSetting(v, "undo.window", "6s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid undo window: %w", err)
	}

	requestTimeout, err := parseDurationSetting(v, "knack.request_timeout", "15s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid knack request timeout: %w", err)
	}

	sourceTimeout, err := parseDurationSetting(v, "content.source_timeout", "5s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid content source timeout: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		RedisURL:             v.GetString("redis.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		KnackAppID:           v.GetString("knack.app_id"),
		KnackAPIKey:          v.GetString("knack.api_key"),
		KnackBaseURL:         strings.TrimRight(v.GetString("knack.base_url"), "/"),
		KnackPageSize:        v.GetInt("knack.page_size"),
		KnackRequestTimeout:  requestTimeout,
		DashboardCacheTTL:    dashboardTTL,
		CatalogCacheTTL:      catalogTTL,
		UndoWindow:           undoWindow,
		ContentSourceTimeout: sourceTimeout,
		ContentSources:       splitSources(v.GetString("content.sources")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.KnackAppID == "" || cfg.KnackAPIKey == "" {
		return Config{}, fmt.Errorf("knack credentials must be provided")
	}

	if cfg.KnackPageSize <= 0 || cfg.KnackPageSize > 1000 {
		cfg.KnackPageSize = 1000
	}

	return cfg, nil
}

func parseDurationSetting(v *viper.Viper, key, fallback string) (time.Duration, error) {
	value := v.GetString(key)
	if value == "" {
		value = fallback
	}

	return time.ParseDuration(value)
}

func splitSources(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	sources := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sources = append(sources, trimmed)
		}
	}

	return sources
}
