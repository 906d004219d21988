// Package backtest replays recorded price paths through the strategy
// state machine, one independent machine per market instance, and
// aggregates the settlements.
package backtest

import (
	"fmt"

	"github.com/polyquant/polyquant/internal/market"
	"github.com/polyquant/polyquant/internal/strategy"
)

// Result is the outcome of one market instance under one config.
type Result struct {
	RunID string
	Slug  string
	Asset string
	Epoch int64

	Entered          bool
	Fills            []strategy.Fill
	Settlement       strategy.Settlement
	AvgEntryPrice    float64
	TotalCost        float64
	MaxGrossExposure float64
}

// Run feeds one instance's snapshot sequence through a fresh machine.
// The feed ending before the machine closes counts as a truncated
// feed and forces the exit at the last known prices.
func Run(cfg strategy.Config, inst market.Instance, snaps []market.Snapshot) (Result, error) {
	m, err := strategy.NewMachine(cfg, inst.Expiry())
	if err != nil {
		return Result{}, err
	}

	var fills []strategy.Fill
	for _, s := range snaps {
		stepFills, err := m.Step(s)
		if err != nil {
			return Result{}, fmt.Errorf("market %s: %w", inst.Slug, err)
		}
		fills = append(fills, stepFills...)
		if m.State() == strategy.StateClosed {
			break
		}
	}

	settlement, exitFills := m.Finish()
	fills = append(fills, exitFills...)

	pos := m.Position()
	return Result{
		Slug:             inst.Slug,
		Asset:            inst.Asset,
		Epoch:            inst.Epoch,
		Entered:          pos.DeployedCapital() > 0,
		Fills:            fills,
		Settlement:       *settlement,
		AvgEntryPrice:    pos.AverageEntryPrice(),
		TotalCost:        pos.TotalCost(),
		MaxGrossExposure: m.MaxGrossExposure(),
	}, nil
}
