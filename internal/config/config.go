// Package config reads runtime configuration from the environment. A .env
// file in the working directory is honored when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the externally supplied configuration for the service. Nothing
// here is hardcoded in the core packages; they receive these values through
// their constructors.
type Config struct {
	Addr   string
	DBPath string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	PollinationsServer string
	PollinationsModel  string

	ImageBudgetKB   int
	MaxImageDim     int
	MaxContextTurns int
	ProbeTTL        time.Duration
}

// FromEnv loads configuration from environment variables, applying defaults
// for anything unset.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:   envOr("GLIMPSE_ADDR", ":8080"),
		DBPath: envOr("GLIMPSE_DB", "./glimpse.db"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o-mini"),

		PollinationsServer: os.Getenv("POLLINATIONS_SERVER"),
		PollinationsModel:  os.Getenv("POLLINATIONS_MODEL"),
	}

	var err error
	if cfg.ImageBudgetKB, err = envInt("IMAGE_BUDGET_KB", 100); err != nil {
		return nil, err
	}
	if cfg.MaxImageDim, err = envInt("MAX_IMAGE_DIM", 1024); err != nil {
		return nil, err
	}
	if cfg.MaxContextTurns, err = envInt("MAX_CONTEXT_TURNS", 2); err != nil {
		return nil, err
	}

	ttl, err := envInt("PROBE_TTL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.ProbeTTL = time.Duration(ttl) * time.Second

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
