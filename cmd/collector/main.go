package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polyquant/polyquant/internal/feed"
	"github.com/polyquant/polyquant/internal/metrics"
	"github.com/polyquant/polyquant/internal/platform"
	"github.com/polyquant/polyquant/internal/polymarket"
	"github.com/polyquant/polyquant/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/collector/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := readConfig(configPath)
	if err != nil {
		log.Fatalf("Couldn't read config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
		log.Fatalf("Couldn't connect to database: %v", err)
	}
	s := store.New(pool)
	defer s.Close()

	logger.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	f := feed.New(logger)
	go f.Start(ctx)

	writer := feed.NewSnapshotWriter(f, s, cfg.SnapshotInterval.Duration(), logger)
	go writer.Start(ctx)

	var pm platform.Platform = polymarket.New(polymarket.Config{
		ClobURL:            cfg.Polymarket.ClobURL,
		GammaURL:           cfg.Polymarket.GammaURL,
		WebsocketURL:       cfg.Polymarket.WebsocketURL,
		Assets:             cfg.Polymarket.Assets,
		MarketSyncInterval: cfg.Polymarket.MarketSyncInterval.Duration(),
	}, s, f, logger)

	if err := pm.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("collector stopped", "error", err)
		os.Exit(1)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := pm.Stop(stopCtx); err != nil {
		logger.Warn("stopping platform", "error", err)
	}
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
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
