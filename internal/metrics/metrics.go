// Package metrics exposes Prometheus instrumentation for the
// collector.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyquant_feed_updates_total",
		Help: "Price updates accepted by the feed.",
	})

	FeedUpdatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyquant_feed_updates_dropped_total",
		Help: "Price updates dropped because a buffer was full.",
	})

	FeedTrackedTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyquant_feed_tracked_tokens",
		Help: "Tokens with a live price worker.",
	})

	MarketsSynced = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyquant_markets_synced",
		Help: "Up/down market instances found in the last sync.",
	})

	SnapshotRowsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyquant_snapshot_rows_written_total",
		Help: "Price snapshot rows written to the database.",
	})

	WebsocketReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyquant_websocket_reads_total",
		Help: "Websocket messages read, by event type.",
	}, []string{"event_type"})
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
