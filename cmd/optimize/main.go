package main

import (
	"context"
	"encoding/csv"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/polyquant/polyquant/internal/backtest"
	"github.com/polyquant/polyquant/internal/market"
	"github.com/polyquant/polyquant/internal/polymarket"
	"github.com/polyquant/polyquant/internal/strategy"
)

func main() {
	configPath := flag.String("config", "configs/optimize/config.yaml", "path to config file")
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
		instances = append(instances, insts...)
	}
	logger.Info("enumerated windows", "count", len(instances))

	// Every grid point replays the same feeds, so histories are
	// fetched once and served from memory for the rest of the sweep.
	source := &cachingSource{inner: pm, histories: make(map[string][]market.Snapshot)}

	configs := cfg.Grid.toGrid().Expand(cfg.Strategy.toStrategy())
	logger.Info("sweeping grid", "configs", len(configs))

	var rankings []rankedConfig

	for i, sc := range configs {
		pool := &backtest.Pool{Source: source, Workers: cfg.Workers, Log: logger}
		results, err := pool.Run(ctx, sc, instances)
		if err != nil {
			log.Fatalf("Couldn't run grid point %d: %v", i, err)
		}
		summary := backtest.Summarize(results)
		rankings = append(rankings, rankedConfig{cfg: sc, summary: summary})

		logger.Debug("grid point done",
			"index", i,
			"entry", sc.EntryThreshold,
			"hedge", sc.HedgeThreshold,
			"expected_value", summary.ExpectedValue,
		)
	}

	sort.Slice(rankings, func(i, j int) bool {
		return rankings[i].summary.ExpectedValue > rankings[j].summary.ExpectedValue
	})

	top := cfg.TopN
	if top > len(rankings) {
		top = len(rankings)
	}
	for i := 0; i < top; i++ {
		r := rankings[i]
		logger.Info("grid result",
			"rank", i+1,
			"entry", r.cfg.EntryThreshold,
			"hedge", r.cfg.HedgeThreshold,
			"dca_levels", r.cfg.DCALevels,
			"force_unwind", r.cfg.ForceUnwind,
			"entered", r.summary.Entered,
			"win_rate", r.summary.WinRate,
			"avg_win", r.summary.AvgWin,
			"avg_loss", r.summary.AvgLoss,
			"expected_value", r.summary.ExpectedValue,
		)
	}

	if cfg.OutputCSV != "" {
		if err := writeRankingsCSV(cfg.OutputCSV, rankings); err != nil {
			log.Fatalf("Couldn't write rankings CSV: %v", err)
		}
		logger.Info("wrote rankings", "path", cfg.OutputCSV, "rows", len(rankings))
	}
}

type rankedConfig struct {
	cfg     strategy.Config
	summary backtest.Summary
}

func writeRankingsCSV(path string, rankings []rankedConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := []string{
		"rank", "entry_threshold", "hedge_threshold", "dca_levels",
		"force_unwind", "markets", "entered", "win_rate", "avg_pnl",
		"median_pnl", "avg_win", "avg_loss", "max_loss", "avg_roi",
		"expected_value", "forced_rate",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, r := range rankings {
		levels := make([]string, len(r.cfg.DCALevels))
		for j, l := range r.cfg.DCALevels {
			levels[j] = strconv.FormatFloat(l, 'f', -1, 64)
		}
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(r.cfg.EntryThreshold, 'f', -1, 64),
			strconv.FormatFloat(r.cfg.HedgeThreshold, 'f', -1, 64),
			strings.Join(levels, "|"),
			r.cfg.ForceUnwind.String(),
			strconv.Itoa(r.summary.Markets),
			strconv.Itoa(r.summary.Entered),
			strconv.FormatFloat(r.summary.WinRate, 'f', 6, 64),
			strconv.FormatFloat(r.summary.AvgPnL, 'f', 6, 64),
			strconv.FormatFloat(r.summary.MedianPnL, 'f', 6, 64),
			strconv.FormatFloat(r.summary.AvgWin, 'f', 6, 64),
			strconv.FormatFloat(r.summary.AvgLoss, 'f', 6, 64),
			strconv.FormatFloat(r.summary.MaxLoss, 'f', 6, 64),
			strconv.FormatFloat(r.summary.AvgROI, 'f', 6, 64),
			strconv.FormatFloat(r.summary.ExpectedValue, 'f', 6, 64),
			strconv.FormatFloat(r.summary.ForcedRate, 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// cachingSource memoizes histories by slug. Failures are not cached,
// so a flaky fetch is retried on the next grid point.
type cachingSource struct {
	inner     backtest.HistorySource
	mu        sync.Mutex
	histories map[string][]market.Snapshot
}

func (c *cachingSource) History(ctx context.Context, inst market.Instance) ([]market.Snapshot, error) {
	c.mu.Lock()
	snaps, ok := c.histories[inst.Slug]
	c.mu.Unlock()
	if ok {
		return snaps, nil
	}

	snaps, err := c.inner.History(ctx, inst)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.histories[inst.Slug] = snaps
	c.mu.Unlock()
	return snaps, nil
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
