package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/polyquant/polyquant/internal/market"
	"github.com/polyquant/polyquant/internal/strategy"
)

// HistorySource supplies the merged snapshot sequence for a market
// instance. Implementations retry and rate-limit as they see fit; the
// pool does not.
type HistorySource interface {
	History(ctx context.Context, inst market.Instance) ([]market.Snapshot, error)
}

// Pool runs many market instances in parallel. Machines share no
// state, so the only coordination is the concurrency limit.
type Pool struct {
	Source  HistorySource
	Workers int
	Log     *slog.Logger
}

// Run evaluates cfg over every instance. A failing instance (bad feed,
// sequencing error) is logged and skipped; it never affects the other
// instances. The shared config is validated once, up front.
func (p *Pool) Run(ctx context.Context, cfg strategy.Config, insts []market.Instance) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid strategy config: %w", err)
	}

	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	runID := uuid.NewString()

	workers := p.Workers
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	results := make([]Result, 0, len(insts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, inst := range insts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snaps, err := p.Source.History(ctx, inst)
			if err != nil {
				log.Warn("skipping market", "slug", inst.Slug, "error", err)
				return nil
			}
			res, err := Run(cfg, inst, snaps)
			if err != nil {
				log.Warn("skipping market", "slug", inst.Slug, "error", err)
				return nil
			}
			res.RunID = runID

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
