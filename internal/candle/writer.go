package candle

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// WriteCSV writes candles as rows of ts,open,high,low,close,count with
// a header line. Timestamps are RFC 3339 UTC.
func WriteCSV(w io.Writer, candles []Candle) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"ts", "open", "high", "low", "close", "count"}); err != nil {
		return fmt.Errorf("couldn't write header: %w", err)
	}

	for _, c := range candles {
		row := []string{
			c.OpenTime.UTC().Format(time.RFC3339),
			formatPrice(c.Open),
			formatPrice(c.High),
			formatPrice(c.Low),
			formatPrice(c.Close),
			strconv.Itoa(c.Count),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("couldn't write candle row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
