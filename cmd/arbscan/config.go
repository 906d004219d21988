package main

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type config struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	Kalshi struct {
		APIURL string `yaml:"api_url"`
	} `yaml:"kalshi"`
	Polymarket struct {
		ClobURL string `yaml:"clob_url"`
	} `yaml:"polymarket"`

	MinSimilarity float64 `yaml:"min_similarity"`
	FeeBuffer     float64 `yaml:"fee_buffer"`

	// Database is optional; when host is set, title vectors are
	// upserted so matches can also be browsed with a nearest-vector
	// query.
	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		PoolSize int    `yaml:"pool_size"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"database"`
}

func readConfig(configPath *string) (*config, error) {
	rawConfig, err := os.ReadFile(*configPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't read file %s: %w", *configPath, err)
	}

	cfg := &config{}
	if err = yaml.Unmarshal(rawConfig, cfg); err != nil {
		return nil, fmt.Errorf("couldn't parse config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("couldn't validate config: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *config) error {
	if cfg.Kalshi.APIURL == "" {
		return fmt.Errorf("kalshi.api_url is required")
	}
	if cfg.Polymarket.ClobURL == "" {
		return fmt.Errorf("polymarket.clob_url is required")
	}
	if cfg.MinSimilarity <= 0 || cfg.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be in (0, 1]")
	}
	if cfg.FeeBuffer < 0 {
		return fmt.Errorf("fee_buffer must not be negative")
	}
	return nil
}
