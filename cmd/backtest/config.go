package main

import (
	"fmt"
	"os"
	"time"

	configtypes "github.com/polyquant/polyquant/internal/config"
	"github.com/polyquant/polyquant/internal/strategy"
	"go.yaml.in/yaml/v4"
)

type strategyConfig struct {
	EntryThreshold float64              `yaml:"entry_threshold"`
	HedgeThreshold float64              `yaml:"hedge_threshold"`
	DCALevels      []float64            `yaml:"dca_levels"`
	ForceUnwind    configtypes.Duration `yaml:"force_unwind"`
	UnitSize       float64              `yaml:"unit_size"`
	HedgeRatio     float64              `yaml:"hedge_ratio"`
	AllowLevelSkip bool                 `yaml:"allow_level_skip"`
	SlippageBps    float64              `yaml:"slippage_bps"`
	FeeBps         float64              `yaml:"fee_bps"`
	StaleAfter     configtypes.Duration `yaml:"stale_after"`
}

func (s strategyConfig) toStrategy() strategy.Config {
	return strategy.Config{
		EntryThreshold: s.EntryThreshold,
		HedgeThreshold: s.HedgeThreshold,
		DCALevels:      s.DCALevels,
		ForceUnwind:    s.ForceUnwind.Duration(),
		UnitSize:       s.UnitSize,
		HedgeRatio:     s.HedgeRatio,
		AllowLevelSkip: s.AllowLevelSkip,
		SlippageBps:    s.SlippageBps,
		FeeBps:         s.FeeBps,
		StaleAfter:     s.StaleAfter.Duration(),
	}
}

type config struct {
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	Polymarket struct {
		ClobURL         string `yaml:"clob_url"`
		GammaURL        string `yaml:"gamma_url"`
		HistoryFidelity int    `yaml:"history_fidelity"`
	} `yaml:"polymarket"`

	Assets  []string  `yaml:"assets"`
	From    time.Time `yaml:"from"`
	To      time.Time `yaml:"to"`
	Workers int       `yaml:"workers"`

	Strategy strategyConfig `yaml:"strategy"`

	OutputCSV string `yaml:"output_csv"`

	// CandlesDir enables per-asset OHLC output built from the same
	// replayed feeds.
	CandlesDir      string               `yaml:"candles_dir"`
	CandleTimeframe configtypes.Duration `yaml:"candle_timeframe"`

	// Database is optional; when host is set, results are also
	// persisted.
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
	if cfg.Polymarket.ClobURL == "" {
		return fmt.Errorf("polymarket.clob_url is required")
	}
	if cfg.Polymarket.GammaURL == "" {
		return fmt.Errorf("polymarket.gamma_url is required")
	}
	if len(cfg.Assets) == 0 {
		return fmt.Errorf("assets is required")
	}
	if cfg.From.IsZero() || cfg.To.IsZero() {
		return fmt.Errorf("from and to are required")
	}
	if !cfg.To.After(cfg.From) {
		return fmt.Errorf("to must be after from")
	}
	if err := cfg.Strategy.toStrategy().Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if cfg.CandlesDir != "" && cfg.CandleTimeframe.Duration() <= 0 {
		return fmt.Errorf("candle_timeframe is required when candles_dir is set")
	}
	return nil
}
