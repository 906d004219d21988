package backtest

import (
	"sort"

	"github.com/polyquant/polyquant/internal/strategy"
)

// Summary aggregates settlements across one run. All statistics cover
// entered markets only: instances that never deployed capital carry
// no opportunity and are excluded rather than counted as losses.
type Summary struct {
	Markets int
	Entered int
	Stale   int // entered markets flagged data_stale

	WinRate   float64
	AvgPnL    float64
	MedianPnL float64
	AvgWin    float64
	AvgLoss   float64
	MaxLoss   float64
	AvgROI    float64

	// ExpectedValue is win_rate*avg_win + (1-win_rate)*avg_loss, the
	// optimizer's ranking objective.
	ExpectedValue float64

	ForcedRate float64
}

// Summarize reduces a result set to its aggregate statistics.
func Summarize(results []Result) Summary {
	s := Summary{Markets: len(results)}

	var pnls, wins, losses []float64
	var roiSum float64
	var forced int

	for _, r := range results {
		if !r.Entered {
			continue
		}
		s.Entered++
		if r.Settlement.DataStale {
			s.Stale++
		}

		pnl := r.Settlement.RealizedPnL
		pnls = append(pnls, pnl)
		roiSum += r.Settlement.ROI
		if pnl > 0 {
			wins = append(wins, pnl)
		} else {
			losses = append(losses, pnl)
		}
		if r.Settlement.Reason == strategy.ReasonForceUnwind {
			forced++
		}
	}

	if s.Entered == 0 {
		return s
	}

	s.WinRate = float64(len(wins)) / float64(s.Entered)
	s.AvgPnL = mean(pnls)
	s.MedianPnL = median(pnls)
	s.AvgWin = mean(wins)
	s.AvgLoss = mean(losses)
	s.MaxLoss = minOf(pnls)
	s.AvgROI = roiSum / float64(s.Entered)
	s.ExpectedValue = s.WinRate*s.AvgWin + (1-s.WinRate)*s.AvgLoss
	s.ForcedRate = float64(forced) / float64(s.Entered)
	return s
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
