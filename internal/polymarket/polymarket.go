// Package polymarket adapts Polymarket's APIs (CLOB, Gamma, WebSocket)
// to the Platform interface and serves recorded price histories to the
// backtester.
package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/polyquant/polyquant/internal/feed"
	"github.com/polyquant/polyquant/internal/market"
	"github.com/polyquant/polyquant/internal/metrics"
	"github.com/polyquant/polyquant/internal/polymarket/clob"
	"github.com/polyquant/polyquant/internal/polymarket/gamma"
	"github.com/polyquant/polyquant/internal/polymarket/websocket"
	"github.com/polyquant/polyquant/internal/price"
	"github.com/polyquant/polyquant/internal/store"
	"github.com/polyquant/polyquant/pkg/hashset"
)

const platformName = "polymarket"

// historyBuffer extends the history window past expiry so the
// resolution print is included.
const historyBuffer = 2 * time.Minute

type Config struct {
	ClobURL            string
	GammaURL           string
	WebsocketURL       string
	Assets             []string
	MarketSyncInterval time.Duration
	HistoryFidelity    int // minutes per sample, 1 is the densest
}

type Polymarket struct {
	config           Config
	store            *store.Store
	feed             *feed.Client
	log              *slog.Logger
	subscribedTokens hashset.Set[string]

	clob  *clob.Client
	gamma *gamma.Client
	ws    *websocket.Client
}

// New creates a Polymarket client. Call Start() to connect. The store
// and feed may be nil for offline use; Start requires both.
func New(cfg Config, s *store.Store, f *feed.Client, log *slog.Logger) *Polymarket {
	if cfg.HistoryFidelity <= 0 {
		cfg.HistoryFidelity = 1
	}
	return &Polymarket{
		config:           cfg,
		store:            s,
		feed:             f,
		log:              log.With("component", platformName),
		subscribedTokens: hashset.NewSet[string](),
		clob:             clob.New(cfg.ClobURL),
		gamma:            gamma.New(cfg.GammaURL),
	}
}

func (p *Polymarket) Name() string { return platformName }

// Start connects the websocket and begins reading messages.
// This method blocks until ctx is cancelled.
func (p *Polymarket) Start(ctx context.Context) error {
	p.log.Info("starting")

	ws, err := websocket.New(ctx, p.config.WebsocketURL, "/market")
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	p.ws = ws
	p.log.Info("websocket connected", "url", p.config.WebsocketURL)

	go p.syncLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("stopping", "reason", ctx.Err())
			return ctx.Err()
		default:
			msg, err := p.ws.ReadMessage(ctx)
			if err != nil {
				p.log.Error("read message failed", "error", err)
				return err
			}
			p.handleMessage(msg)
		}
	}
}

// Stop closes the websocket connection.
func (p *Polymarket) Stop(ctx context.Context) error {
	if p.ws != nil {
		return p.ws.Close(ctx)
	}
	return nil
}

func (p *Polymarket) handleMessage(msg *websocket.Message) {
	metrics.WebsocketReads.WithLabelValues(msg.EventType).Inc()

	switch msg.EventType {
	case websocket.LastTradePriceEvent:
		ltp := msg.LastTradePrice
		px, err := strconv.ParseFloat(ltp.Price, 64)
		if err != nil {
			p.log.Warn("bad last trade price", "value", ltp.Price, "token", ltp.AssetID)
			return
		}
		sz, err := strconv.ParseFloat(ltp.Size, 64)
		if err != nil {
			p.log.Warn("bad last trade size", "value", ltp.Size, "token", ltp.AssetID)
			return
		}
		p.feed.Send(feed.Update{
			TokenID:   ltp.AssetID,
			Price:     price.FromFloat(px),
			Size:      price.Size(price.FromFloat(sz)),
			EventTime: parseMillis(ltp.Timestamp),
		})
	case websocket.MarketResolvedEvent:
		p.log.Info("market resolved", "condition_id", msg.MarketResolved.MarketConditionID)
	default:
		p.log.Debug("ignoring event", "event_type", msg.EventType)
	}
}

func parseMillis(ts string) time.Time {
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (p *Polymarket) syncLoop(ctx context.Context) {
	if err := p.syncMarkets(ctx); err != nil {
		p.log.Error("initial market sync", "error", err)
	}

	ticker := time.NewTicker(p.config.MarketSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.syncMarkets(ctx); err != nil {
				p.log.Error("syncing markets", "error", err)
			}
		case <-ctx.Done():
			p.log.Info("market sync stopped", "reason", ctx.Err())
			return
		}
	}
}

// syncMarkets discovers the live up/down windows (the current one and
// the next), upserts them, and subscribes to any new tokens.
func (p *Polymarket) syncMarkets(ctx context.Context) error {
	now := time.Now().UTC()
	currentEpoch := now.Truncate(market.Lifetime).Unix()

	var newTokens []string
	var synced int

	for _, asset := range p.config.Assets {
		for _, epoch := range []int64{currentEpoch, currentEpoch + int64(market.Lifetime/time.Second)} {
			inst, err := p.resolveInstance(market.Slug(asset, epoch))
			if err != nil {
				p.log.Debug("window not listed", "asset", asset, "epoch", epoch, "error", err)
				continue
			}
			synced++

			if err := p.upsertInstance(ctx, inst); err != nil {
				return err
			}

			for _, tokenID := range []string{inst.YesTokenID, inst.NoTokenID} {
				if !p.subscribedTokens.Has(tokenID) {
					p.subscribedTokens.Set(tokenID)
					newTokens = append(newTokens, tokenID)
				}
			}
		}
	}
	metrics.MarketsSynced.Set(float64(synced))

	if len(newTokens) > 0 {
		if err := p.ws.SubscribeMarket(ctx, p.subscribedTokens.AsSlice(), true); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		p.log.Info("subscribed to tokens", "new", len(newTokens), "total", len(p.subscribedTokens))
	}

	p.log.Info("synced markets", "count", synced)
	return nil
}

func (p *Polymarket) upsertInstance(ctx context.Context, inst market.Instance) error {
	return p.store.WithTx(ctx, func(q *store.Queries) error {
		if err := q.UpsertMarket(ctx, store.UpsertMarketParams{
			ID:       inst.Slug,
			Platform: platformName,
			Slug:     inst.Slug,
			Question: fmt.Sprintf("%s up or down at %s", strings.ToUpper(inst.Asset), inst.Expiry().Format(time.RFC3339)),
			EndDate:  pgtype.Timestamptz{Time: inst.Expiry(), Valid: true},
		}); err != nil {
			return err
		}
		if err := q.UpsertToken(ctx, store.UpsertTokenParams{
			ID:       inst.YesTokenID,
			MarketID: inst.Slug,
			Outcome:  "Up",
		}); err != nil {
			return err
		}
		return q.UpsertToken(ctx, store.UpsertTokenParams{
			ID:       inst.NoTokenID,
			MarketID: inst.Slug,
			Outcome:  "Down",
		})
	})
}

// Instances enumerates the up/down windows for one asset whose open
// time falls in [from, to). Windows the platform never listed are
// skipped.
func (p *Polymarket) Instances(ctx context.Context, asset string, from, to time.Time) ([]market.Instance, error) {
	start := from.UTC().Truncate(market.Lifetime)
	if start.Before(from.UTC()) {
		start = start.Add(market.Lifetime)
	}

	var instances []market.Instance
	for open := start; open.Before(to.UTC()); open = open.Add(market.Lifetime) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inst, err := p.resolveInstance(market.Slug(asset, open.Unix()))
		if err != nil {
			p.log.Debug("window not listed", "asset", asset, "open", open, "error", err)
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// resolveInstance looks a slug up on Gamma and maps its outcome
// tokens onto the YES (Up) and NO (Down) sides.
func (p *Polymarket) resolveInstance(slug string) (market.Instance, error) {
	asset, epoch, err := market.ParseSlug(slug)
	if err != nil {
		return market.Instance{}, err
	}

	m, err := p.gamma.GetMarketBySlug(slug)
	if err != nil {
		return market.Instance{}, err
	}
	if len(m.Outcomes) != len(m.ClobTokenIDs) || len(m.Outcomes) != 2 {
		return market.Instance{}, fmt.Errorf("market %s has %d outcomes and %d tokens", slug, len(m.Outcomes), len(m.ClobTokenIDs))
	}

	inst := market.Instance{Slug: slug, Asset: asset, Epoch: epoch}
	for i, outcome := range m.Outcomes {
		switch strings.ToLower(outcome) {
		case "up", "yes":
			inst.YesTokenID = m.ClobTokenIDs[i]
		case "down", "no":
			inst.NoTokenID = m.ClobTokenIDs[i]
		}
	}
	if inst.YesTokenID == "" || inst.NoTokenID == "" {
		return market.Instance{}, fmt.Errorf("market %s outcomes %v are not an up/down pair", slug, m.Outcomes)
	}
	return inst, nil
}

// History fetches both tokens' recorded price series for one window
// and inner-joins them into the snapshot sequence the backtester
// replays. Satisfies backtest.HistorySource.
func (p *Polymarket) History(ctx context.Context, inst market.Instance) ([]market.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTs := inst.OpenTime().Unix()
	endTs := inst.Expiry().Add(historyBuffer).Unix()

	yes, err := p.clob.PricesHistory(inst.YesTokenID, startTs, endTs, p.config.HistoryFidelity)
	if err != nil {
		return nil, fmt.Errorf("couldn't get YES history for %s: %w", inst.Slug, err)
	}
	no, err := p.clob.PricesHistory(inst.NoTokenID, startTs, endTs, p.config.HistoryFidelity)
	if err != nil {
		return nil, fmt.Errorf("couldn't get NO history for %s: %w", inst.Slug, err)
	}

	snaps := market.MergeHistories(yes, no)
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no overlapping history for %s", inst.Slug)
	}
	return snaps, nil
}
