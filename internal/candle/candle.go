// Package candle aggregates price snapshots into OHLC candles.
package candle

import (
	"fmt"
	"time"

	"github.com/google/btree"

	"github.com/polyquant/polyquant/internal/market"
)

// Candle is one OHLC bucket of YES-side prices.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Count    int // snapshots aggregated into the bucket
}

func lessByOpenTime(a, b Candle) bool {
	return a.OpenTime.Before(b.OpenTime)
}

// Builder buckets snapshots into candles of a fixed timeframe,
// indexed by bucket open time. Snapshots may arrive in any order
// across buckets; within a bucket they must arrive in time order for
// Open/Close to be meaningful.
type Builder struct {
	timeframe time.Duration
	buckets   *btree.BTreeG[Candle]
}

// NewBuilder creates a Builder for the given timeframe.
func NewBuilder(timeframe time.Duration) (*Builder, error) {
	if timeframe <= 0 {
		return nil, fmt.Errorf("timeframe %v must be positive", timeframe)
	}
	return &Builder{
		timeframe: timeframe,
		buckets:   btree.NewG(32, lessByOpenTime),
	}, nil
}

// Add folds one snapshot's YES price into its bucket.
func (b *Builder) Add(s market.Snapshot) {
	open := s.Time.Truncate(b.timeframe)

	c, ok := b.buckets.Get(Candle{OpenTime: open})
	if !ok {
		b.buckets.ReplaceOrInsert(Candle{
			OpenTime: open,
			Open:     s.Yes,
			High:     s.Yes,
			Low:      s.Yes,
			Close:    s.Yes,
			Count:    1,
		})
		return
	}

	if s.Yes > c.High {
		c.High = s.Yes
	}
	if s.Yes < c.Low {
		c.Low = s.Yes
	}
	c.Close = s.Yes
	c.Count++
	b.buckets.ReplaceOrInsert(c)
}

// Candles returns all buckets in ascending open-time order.
func (b *Builder) Candles() []Candle {
	out := make([]Candle, 0, b.buckets.Len())
	b.buckets.Ascend(func(c Candle) bool {
		out = append(out, c)
		return true
	})
	return out
}

// Len returns the number of buckets built so far.
func (b *Builder) Len() int {
	return b.buckets.Len()
}
