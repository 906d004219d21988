package main

import (
	"fmt"
	"os"

	configtypes "github.com/polyquant/polyquant/internal/config"
	"go.yaml.in/yaml/v4"
)

type config struct {
	LogLevel    string `yaml:"log_level"` // debug, info, warn, error
	MetricsAddr string `yaml:"metrics_addr"`
	Database    struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		PoolSize int    `yaml:"pool_size"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"database"`
	Polymarket struct {
		WebsocketURL       string               `yaml:"websocket_url"`
		GammaURL           string               `yaml:"gamma_url"`
		ClobURL            string               `yaml:"clob_url"`
		Assets             []string             `yaml:"assets"`
		MarketSyncInterval configtypes.Duration `yaml:"market_sync_interval"`
	} `yaml:"polymarket"`
	SnapshotInterval configtypes.Duration `yaml:"snapshot_interval"`
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
	// Database
	if cfg.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535")
	}
	if cfg.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if cfg.Database.Password == "" {
		return fmt.Errorf("database.password is required")
	}
	if cfg.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if cfg.Database.PoolSize <= 0 {
		return fmt.Errorf("database.pool_size must be greater than 0")
	}
	if cfg.Database.SSLMode == "" {
		return fmt.Errorf("database.ssl_mode is required")
	}

	// Polymarket
	if cfg.Polymarket.WebsocketURL == "" {
		return fmt.Errorf("polymarket.websocket_url is required")
	}
	if cfg.Polymarket.GammaURL == "" {
		return fmt.Errorf("polymarket.gamma_url is required")
	}
	if cfg.Polymarket.ClobURL == "" {
		return fmt.Errorf("polymarket.clob_url is required")
	}
	if len(cfg.Polymarket.Assets) == 0 {
		return fmt.Errorf("polymarket.assets is required")
	}
	if cfg.Polymarket.MarketSyncInterval.Duration() <= 0 {
		return fmt.Errorf("polymarket.market_sync_interval must be greater than 0")
	}

	if cfg.SnapshotInterval.Duration() <= 0 {
		return fmt.Errorf("snapshot_interval must be greater than 0")
	}

	return nil
}
