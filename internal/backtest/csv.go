package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteResultsCSV writes one row per market instance.
func WriteResultsCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)

	header := []string{
		"run_id", "slug", "asset", "epoch", "entered", "reason",
		"feed_truncated", "data_stale", "avg_entry_price", "total_cost",
		"max_gross_exposure", "exit_yes", "exit_no", "pnl", "roi",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("couldn't write header: %w", err)
	}

	for _, r := range results {
		row := []string{
			r.RunID,
			r.Slug,
			r.Asset,
			strconv.FormatInt(r.Epoch, 10),
			strconv.FormatBool(r.Entered),
			string(r.Settlement.Reason),
			strconv.FormatBool(r.Settlement.FeedTruncated),
			strconv.FormatBool(r.Settlement.DataStale),
			formatFloat(r.AvgEntryPrice),
			formatFloat(r.TotalCost),
			formatFloat(r.MaxGrossExposure),
			formatFloat(r.Settlement.ExitYes),
			formatFloat(r.Settlement.ExitNo),
			formatFloat(r.Settlement.RealizedPnL),
			formatFloat(r.Settlement.ROI),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("couldn't write result row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
