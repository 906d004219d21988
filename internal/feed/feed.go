// Package feed tracks the latest trade price for each subscribed
// token (market + outcome).
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polyquant/polyquant/internal/metrics"
	"github.com/polyquant/polyquant/internal/price"
)

const maximumUpdates = 100

type Client struct {
	// tokenid:price_worker
	priceWorkers map[string]*priceWorker
	mu           sync.RWMutex
	updates      chan Update
	logger       *slog.Logger
}

type priceWorker struct {
	mu      sync.Mutex
	last    Update
	updates chan Update
	logger  *slog.Logger
}

type Update struct {
	Price     price.Price
	Size      price.Size
	TokenID   string
	EventTime time.Time // Timestamp from source API (zero = use current time)
}

func New(l *slog.Logger) *Client {
	return &Client{
		logger:       l.With("component", "feed"),
		priceWorkers: make(map[string]*priceWorker),
		updates:      make(chan Update, maximumUpdates),
	}
}

// Send queues an update for processing. Returns false if the buffer is full.
func (c *Client) Send(u Update) bool {
	select {
	case c.updates <- u:
		return true
	default:
		c.logger.Warn("feed buffer full, dropping update", "token", u.TokenID)
		metrics.FeedUpdatesDropped.Inc()
		return false
	}
}

func (w *priceWorker) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("context stopped price worker", "error", ctx.Err())
			return
		case update := <-w.updates:
			if update.EventTime.IsZero() {
				update.EventTime = time.Now()
			}

			w.mu.Lock()
			// Keep the freshest print only; the snapshot writer
			// samples, it does not need every trade.
			if !update.EventTime.Before(w.last.EventTime) {
				w.last = update
			}
			w.mu.Unlock()
		}
	}
}

func (c *Client) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context stopped feed", "error", ctx.Err())
			return
		case update := <-c.updates:
			metrics.FeedUpdatesTotal.Inc()

			c.mu.RLock()
			worker, ok := c.priceWorkers[update.TokenID]
			c.mu.RUnlock()

			if !ok {
				c.mu.Lock()
				// Double-check after acquiring write lock.
				worker, ok = c.priceWorkers[update.TokenID]
				if !ok {
					worker = &priceWorker{
						updates: make(chan Update, maximumUpdates),
						logger:  c.logger.With("tokenID", update.TokenID),
					}
					c.priceWorkers[update.TokenID] = worker
					metrics.FeedTrackedTokens.Inc()
					go worker.start(ctx)
				}
				c.mu.Unlock()
			}

			select {
			case worker.updates <- update:
				// Sent.
			default:
				c.logger.Warn("worker buffer full", "token", update.TokenID)
				metrics.FeedUpdatesDropped.Inc()
			}
		}
	}
}

// TokenPrice is the freshest observed print for one token.
type TokenPrice struct {
	TokenID string
	Price   price.Price
	Size    price.Size
	Time    time.Time
}

// TakeSnapshots returns the latest price of every tracked token.
// Tokens that have not printed yet are omitted. Safe to call
// concurrently with updates.
func (c *Client) TakeSnapshots() []TokenPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshots := make([]TokenPrice, 0, len(c.priceWorkers))
	for tokenID, worker := range c.priceWorkers {
		worker.mu.Lock()
		last := worker.last
		worker.mu.Unlock()
		if last.EventTime.IsZero() {
			continue
		}
		snapshots = append(snapshots, TokenPrice{
			TokenID: tokenID,
			Price:   last.Price,
			Size:    last.Size,
			Time:    last.EventTime,
		})
	}
	return snapshots
}
