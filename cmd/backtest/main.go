package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/polyquant/polyquant/internal/backtest"
	"github.com/polyquant/polyquant/internal/candle"
	"github.com/polyquant/polyquant/internal/market"
	"github.com/polyquant/polyquant/internal/polymarket"
	"github.com/polyquant/polyquant/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/backtest/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := readConfig(configPath)
	if err != nil {
		log.Fatalf("Couldn't read config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pm := polymarket.New(polymarket.Config{
		ClobURL:         cfg.Polymarket.ClobURL,
		GammaURL:        cfg.Polymarket.GammaURL,
		HistoryFidelity: cfg.Polymarket.HistoryFidelity,
	}, nil, nil, logger)

	var instances []market.Instance
	for _, asset := range cfg.Assets {
		insts, err := pm.Instances(ctx, asset, cfg.From, cfg.To)
		if err != nil {
			log.Fatalf("Couldn't enumerate %s windows: %v", asset, err)
		}
		logger.Info("enumerated windows", "asset", asset, "count", len(insts))
		instances = append(instances, insts...)
	}

	source := backtest.HistorySource(pm)
	var capture *capturingSource
	if cfg.CandlesDir != "" {
		capture = &capturingSource{inner: pm, byAsset: make(map[string][]market.Snapshot)}
		source = capture
	}

	pool := &backtest.Pool{Source: source, Workers: cfg.Workers, Log: logger}
	results, err := pool.Run(ctx, cfg.Strategy.toStrategy(), instances)
	if err != nil {
		log.Fatalf("Couldn't run backtest: %v", err)
	}

	summary := backtest.Summarize(results)
	logger.Info("backtest complete",
		"markets", summary.Markets,
		"entered", summary.Entered,
		"win_rate", summary.WinRate,
		"avg_pnl", summary.AvgPnL,
		"avg_roi", summary.AvgROI,
		"expected_value", summary.ExpectedValue,
		"forced_rate", summary.ForcedRate,
	)

	if cfg.OutputCSV != "" {
		if err := writeCSV(cfg.OutputCSV, results); err != nil {
			log.Fatalf("Couldn't write results CSV: %v", err)
		}
		logger.Info("wrote results", "path", cfg.OutputCSV, "rows", len(results))
	}

	if capture != nil {
		if err := writeCandles(cfg, capture); err != nil {
			log.Fatalf("Couldn't write candles: %v", err)
		}
		logger.Info("wrote candles", "dir", cfg.CandlesDir)
	}

	if cfg.Database.Host != "" {
		if err := persistResults(ctx, cfg, results); err != nil {
			log.Fatalf("Couldn't persist results: %v", err)
		}
		logger.Info("persisted results", "rows", len(results))
	}
}

// capturingSource passes histories through while keeping them grouped
// by asset so candle output reuses the fetched feeds.
type capturingSource struct {
	inner   backtest.HistorySource
	mu      sync.Mutex
	byAsset map[string][]market.Snapshot
}

func (c *capturingSource) History(ctx context.Context, inst market.Instance) ([]market.Snapshot, error) {
	snaps, err := c.inner.History(ctx, inst)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.byAsset[inst.Asset] = append(c.byAsset[inst.Asset], snaps...)
	c.mu.Unlock()
	return snaps, nil
}

func writeCandles(cfg *config, capture *capturingSource) error {
	if err := os.MkdirAll(cfg.CandlesDir, 0o755); err != nil {
		return err
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()

	for asset, snaps := range capture.byAsset {
		builder, err := candle.NewBuilder(cfg.CandleTimeframe.Duration())
		if err != nil {
			return err
		}
		for _, s := range snaps {
			builder.Add(s)
		}

		f, err := os.Create(filepath.Join(cfg.CandlesDir, asset+".csv"))
		if err != nil {
			return err
		}
		if err := candle.WriteCSV(f, builder.Candles()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, results []backtest.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return backtest.WriteResultsCSV(f, results)
}

func persistResults(ctx context.Context, cfg *config, results []backtest.Result) error {
	pool, err := store.NewPool(ctx, store.PoolConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		PoolSize: cfg.Database.PoolSize,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return err
	}
	s := store.New(pool)
	defer s.Close()

	params := make([]store.InsertBacktestResultParams, 0, len(results))
	for _, r := range results {
		params = append(params, store.InsertBacktestResultParams{
			RunID:            r.RunID,
			Slug:             r.Slug,
			Asset:            r.Asset,
			Epoch:            r.Epoch,
			Entered:          r.Entered,
			Reason:           string(r.Settlement.Reason),
			FeedTruncated:    r.Settlement.FeedTruncated,
			DataStale:        r.Settlement.DataStale,
			AvgEntryPrice:    r.AvgEntryPrice,
			TotalCost:        r.TotalCost,
			MaxGrossExposure: r.MaxGrossExposure,
			PnL:              r.Settlement.RealizedPnL,
			ROI:              r.Settlement.ROI,
		})
	}

	return s.WithTx(ctx, func(q *store.Queries) error {
		_, err := q.InsertBacktestResultBatch(ctx, params)
		return err
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
