// Package strategy implements the position state machine for one
// short-lived binary market: entry below a threshold, staged DCA adds
// into an adverse move, a hedge into a favorable reversal, and a
// forced exit before settlement.
package strategy

import (
	"fmt"
	"time"
)

// Config is the immutable parameter set for one market instance.
// It is passed by value; the zero value is invalid.
type Config struct {
	// EntryThreshold opens a YES position when yes_price falls to or
	// below it. Must be in (0,1).
	EntryThreshold float64 `yaml:"entry_threshold"`

	// HedgeThreshold buys the NO side once yes_price recovers to or
	// above it. Must be in (0,1) and strictly above EntryThreshold.
	HedgeThreshold float64 `yaml:"hedge_threshold"`

	// DCALevels are add-on thresholds, strictly descending, each below
	// EntryThreshold. Levels are consumed one at a time in order.
	DCALevels []float64 `yaml:"dca_levels"`

	// ForceUnwind closes any open position once time-to-expiry falls
	// to or below this duration.
	ForceUnwind time.Duration `yaml:"force_unwind"`

	// UnitSize is the share count per entry/DCA fill.
	UnitSize float64 `yaml:"unit_size"`

	// HedgeRatio is the fraction of accumulated YES shares offset by
	// the hedge fill. Zero means the default of 1 (full offset).
	HedgeRatio float64 `yaml:"hedge_ratio"`

	// AllowLevelSkip back-fills DCA levels gapped over by a single
	// snapshot. Off by default: levels are consumed strictly one per
	// snapshot, in order.
	AllowLevelSkip bool `yaml:"allow_level_skip"`

	// SlippageBps worsens every buy fill: price*(1+bps/10000).
	SlippageBps float64 `yaml:"slippage_bps"`

	// FeeBps is charged on total traded notional at settlement.
	FeeBps float64 `yaml:"fee_bps"`

	// StaleAfter flags the settlement data_stale when the gap between
	// consecutive snapshots exceeds it. Zero disables the check.
	StaleAfter time.Duration `yaml:"stale_after"`
}

// MaxLevels returns the number of configured DCA levels.
func (c Config) MaxLevels() int {
	return len(c.DCALevels)
}

func (c Config) hedgeRatio() float64 {
	if c.HedgeRatio == 0 {
		return 1
	}
	return c.HedgeRatio
}

// Validate rejects a configuration before any snapshot is processed.
func (c Config) Validate() error {
	if c.EntryThreshold <= 0 || c.EntryThreshold >= 1 {
		return fmt.Errorf("entry_threshold %v must be in (0,1)", c.EntryThreshold)
	}
	if c.HedgeThreshold <= 0 || c.HedgeThreshold >= 1 {
		return fmt.Errorf("hedge_threshold %v must be in (0,1)", c.HedgeThreshold)
	}
	if c.HedgeThreshold <= c.EntryThreshold {
		return fmt.Errorf("hedge_threshold %v must exceed entry_threshold %v",
			c.HedgeThreshold, c.EntryThreshold)
	}
	prev := c.EntryThreshold
	for i, lvl := range c.DCALevels {
		if lvl <= 0 || lvl >= prev {
			return fmt.Errorf("dca_levels[%d] = %v must be in (0, %v): levels descend strictly below entry_threshold", i, lvl, prev)
		}
		prev = lvl
	}
	if c.ForceUnwind < 0 {
		return fmt.Errorf("force_unwind %v must not be negative", c.ForceUnwind)
	}
	if c.UnitSize <= 0 {
		return fmt.Errorf("unit_size %v must be positive", c.UnitSize)
	}
	if c.HedgeRatio < 0 || c.HedgeRatio > 1 {
		return fmt.Errorf("hedge_ratio %v must be in [0,1]", c.HedgeRatio)
	}
	if c.SlippageBps < 0 || c.FeeBps < 0 {
		return fmt.Errorf("slippage_bps and fee_bps must not be negative")
	}
	if c.StaleAfter < 0 {
		return fmt.Errorf("stale_after %v must not be negative", c.StaleAfter)
	}
	return nil
}
