package feed

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/polyquant/polyquant/internal/price"
)

func waitForTokens(t *testing.T, c *Client, want int) []TokenPrice {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snaps := c.TakeSnapshots()
		if len(snaps) == want {
			return snaps
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d tracked tokens, got %d", want, len(c.TakeSnapshots()))
	return nil
}

func TestFeed_TracksLatestPrint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(slog.Default())
	go c.Start(ctx)

	t0 := time.Now().UTC()
	c.Send(Update{TokenID: "t-up", Price: price.FromFloat(0.40), EventTime: t0})
	c.Send(Update{TokenID: "t-up", Price: price.FromFloat(0.34), EventTime: t0.Add(time.Second)})
	c.Send(Update{TokenID: "t-down", Price: price.FromFloat(0.66), EventTime: t0})

	snaps := waitForTokens(t, c, 2)

	byToken := make(map[string]TokenPrice, len(snaps))
	for _, s := range snaps {
		byToken[s.TokenID] = s
	}

	deadline := time.Now().Add(2 * time.Second)
	for byToken["t-up"].Price != price.FromFloat(0.34) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		for _, s := range c.TakeSnapshots() {
			byToken[s.TokenID] = s
		}
	}

	if got := byToken["t-up"].Price; got != price.FromFloat(0.34) {
		t.Errorf("t-up price = %v, want 0.34", got)
	}
	if got := byToken["t-down"].Price; got != price.FromFloat(0.66) {
		t.Errorf("t-down price = %v, want 0.66", got)
	}
}

func TestFeed_StalePrintDoesNotRegress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(slog.Default())
	go c.Start(ctx)

	t0 := time.Now().UTC()
	c.Send(Update{TokenID: "t-up", Price: price.FromFloat(0.34), EventTime: t0.Add(time.Minute)})
	waitForTokens(t, c, 1)

	// An older print must not replace a newer one.
	c.Send(Update{TokenID: "t-up", Price: price.FromFloat(0.40), EventTime: t0})

	time.Sleep(50 * time.Millisecond)
	snaps := c.TakeSnapshots()
	if len(snaps) != 1 || snaps[0].Price != price.FromFloat(0.34) {
		t.Errorf("snapshots = %+v, want the newer print kept", snaps)
	}
}
