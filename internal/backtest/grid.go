package backtest

import (
	"time"

	"github.com/polyquant/polyquant/internal/strategy"
)

// Grid describes the parameter ranges a grid search sweeps. Empty
// dimensions fall back to the base config's value.
type Grid struct {
	EntryThresholds []float64       `yaml:"entry_thresholds"`
	HedgeThresholds []float64       `yaml:"hedge_thresholds"`
	DCALevelSets    [][]float64     `yaml:"dca_level_sets"`
	ForceUnwinds    []time.Duration `yaml:"force_unwinds"`
}

// Expand produces the cartesian product of the grid over base. Every
// returned config is a complete, independent value; invalid
// combinations (for example a hedge threshold at or below an entry
// threshold) are filtered out rather than reported.
func (g Grid) Expand(base strategy.Config) []strategy.Config {
	entries := fallback(g.EntryThresholds, base.EntryThreshold)
	hedges := fallback(g.HedgeThresholds, base.HedgeThreshold)
	levelSets := g.DCALevelSets
	if len(levelSets) == 0 {
		levelSets = [][]float64{base.DCALevels}
	}
	unwinds := fallback(g.ForceUnwinds, base.ForceUnwind)

	var configs []strategy.Config
	for _, entry := range entries {
		for _, hedge := range hedges {
			for _, levels := range levelSets {
				for _, unwind := range unwinds {
					cfg := base
					cfg.EntryThreshold = entry
					cfg.HedgeThreshold = hedge
					cfg.DCALevels = append([]float64(nil), levels...)
					cfg.ForceUnwind = unwind
					if cfg.Validate() != nil {
						continue
					}
					configs = append(configs, cfg)
				}
			}
		}
	}
	return configs
}

func fallback[T any](vals []T, def T) []T {
	if len(vals) == 0 {
		return []T{def}
	}
	return vals
}
