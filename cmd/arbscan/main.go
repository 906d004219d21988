package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pgvector/pgvector-go"

	"github.com/polyquant/polyquant/internal/arb"
	kalshiapi "github.com/polyquant/polyquant/internal/kalshi/api"
	"github.com/polyquant/polyquant/internal/polymarket/clob"
	"github.com/polyquant/polyquant/internal/store"
)

func main() {
	configPath := flag.String("config", "configs/arbscan/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := readConfig(configPath)
	if err != nil {
		log.Fatalf("Couldn't read config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	markets, err := fetchMarkets(cfg, logger)
	if err != nil {
		log.Fatalf("Couldn't fetch markets: %v", err)
	}
	logger.Info("fetched markets", "count", len(markets))

	var s *store.Store
	if cfg.Database.Host != "" {
		s, err = openStore(ctx, cfg)
		if err != nil {
			log.Fatalf("Couldn't connect to database: %v", err)
		}
		defer s.Close()

		if err := persistVectors(ctx, s, markets); err != nil {
			log.Fatalf("Couldn't persist title vectors: %v", err)
		}
		logger.Info("persisted title vectors", "count", len(markets))
	}

	opps := arb.Scan(markets, cfg.MinSimilarity, cfg.FeeBuffer)
	logger.Info("scan complete", "opportunities", len(opps))

	for _, o := range opps {
		logger.Info("opportunity",
			"buy_platform", o.Buy.Platform,
			"buy_title", o.Buy.Title,
			"hedge_platform", o.Hedge.Platform,
			"hedge_title", o.Hedge.Title,
			"cost", o.Cost,
			"edge", o.Edge,
			"similarity", o.Similarity,
		)
		if s != nil {
			logNearest(ctx, s, logger, o.Buy)
		}
	}
}

// logNearest cross-checks a matched pair against the stored title
// vectors: the hedge leg should show up among the nearest neighbours.
func logNearest(ctx context.Context, s *store.Store, logger *slog.Logger, m *arb.StandardMarket) {
	rows, err := s.NearestMarkets(ctx, pgvector.NewVector(arb.TitleVector(m.Title)), m.Platform, 3)
	if err != nil {
		logger.Warn("nearest markets lookup failed", "market", m.ID, "error", err)
		return
	}
	for _, r := range rows {
		logger.Debug("vector neighbour",
			"market", m.ID,
			"neighbour", r.ID,
			"neighbour_platform", r.Platform,
			"neighbour_title", r.Question,
			"distance", r.Distance,
		)
	}
}

func fetchMarkets(cfg *config, logger *slog.Logger) ([]*arb.StandardMarket, error) {
	var markets []*arb.StandardMarket

	kalshi := kalshiapi.New(cfg.Kalshi.APIURL)
	kalshiMarkets, err := kalshi.GetAllMarkets()
	if err != nil {
		return nil, err
	}
	for _, m := range kalshiMarkets {
		if m.YesAsk <= 0 || m.NoAsk <= 0 {
			continue
		}
		markets = append(markets, &arb.StandardMarket{
			Platform: "kalshi",
			ID:       m.Ticker,
			Title:    m.Title,
			YesPrice: float64(m.YesAsk) / 100,
			NoPrice:  float64(m.NoAsk) / 100,
		})
	}
	logger.Info("fetched kalshi markets", "count", len(kalshiMarkets))

	clobClient := clob.New(cfg.Polymarket.ClobURL)
	polyMarkets, err := clobClient.GetAllMarkets()
	if err != nil {
		return nil, err
	}
	for _, m := range polyMarkets {
		if m.Closed || len(m.Tokens) != 2 {
			continue
		}
		markets = append(markets, &arb.StandardMarket{
			Platform: "polymarket",
			ID:       m.ConditionID,
			Title:    m.Question,
			YesPrice: m.Tokens[0].Price.Float(),
			NoPrice:  m.Tokens[1].Price.Float(),
		})
	}
	logger.Info("fetched polymarket markets", "count", len(polyMarkets))

	return markets, nil
}

func openStore(ctx context.Context, cfg *config) (*store.Store, error) {
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
		return nil, err
	}
	return store.New(pool), nil
}

func persistVectors(ctx context.Context, s *store.Store, markets []*arb.StandardMarket) error {
	return s.WithTx(ctx, func(q *store.Queries) error {
		for _, m := range markets {
			if err := q.UpsertMarket(ctx, store.UpsertMarketParams{
				ID:       m.ID,
				Platform: m.Platform,
				Slug:     m.ID,
				Question: m.Title,
			}); err != nil {
				return err
			}
			if err := q.UpsertMarketVector(ctx, m.ID, pgvector.NewVector(arb.TitleVector(m.Title))); err != nil {
				return err
			}
		}
		return nil
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
