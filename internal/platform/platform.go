// Package platform provides an adapter interface for prediction
// market platforms.
package platform

import (
	"context"
	"time"

	"github.com/polyquant/polyquant/internal/market"
)

type Platform interface {
	Name() string
	// Start blocks until ctx is cancelled or the platform fails.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Instances enumerates the up/down market windows for one asset
	// whose open time falls in [from, to).
	Instances(ctx context.Context, asset string, from, to time.Time) ([]market.Instance, error)
}
