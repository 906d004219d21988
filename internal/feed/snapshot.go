package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/polyquant/polyquant/internal/metrics"
	"github.com/polyquant/polyquant/internal/store"
)

// SnapshotWriter periodically captures the latest token prices and
// writes them to the database.
type SnapshotWriter struct {
	feed     *Client
	store    *store.Store
	interval time.Duration
	logger   *slog.Logger
}

// NewSnapshotWriter creates a new snapshot writer.
func NewSnapshotWriter(feed *Client, s *store.Store, interval time.Duration, logger *slog.Logger) *SnapshotWriter {
	return &SnapshotWriter{
		feed:     feed,
		store:    s,
		interval: interval,
		logger:   logger.With("component", "snapshot_writer"),
	}
}

// Start runs the snapshot writer until the context is cancelled.
func (sw *SnapshotWriter) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("started snapshot writer", "interval", sw.interval)

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("snapshot writer stopped", "error", ctx.Err())
			return
		case <-ticker.C:
			sw.writeSnapshots(ctx)
		}
	}
}

func (sw *SnapshotWriter) writeSnapshots(ctx context.Context) {
	snapshots := sw.feed.TakeSnapshots()
	if len(snapshots) == 0 {
		return
	}

	params := make([]store.InsertPriceSnapshotBatchParams, 0, len(snapshots))
	for _, snap := range snapshots {
		params = append(params, store.InsertPriceSnapshotBatchParams{
			Time:    pgtype.Timestamptz{Time: snap.Time, Valid: true},
			TokenID: snap.TokenID,
			Price:   int64(snap.Price),
			Size:    int64(snap.Size),
		})
	}

	count, err := sw.store.InsertPriceSnapshotBatch(ctx, params)
	if err != nil {
		sw.logger.Error("failed to write snapshots", "error", err)
		return
	}
	metrics.SnapshotRowsWritten.Add(float64(count))

	sw.logger.Debug("wrote snapshots", "tokens", len(snapshots), "rows", count)
}
